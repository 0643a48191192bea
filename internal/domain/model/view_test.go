package model_test

import (
	"testing"

	"github.com/okian/duel/internal/domain/model"
)

func TestExplorationBucket(t *testing.T) {
	cases := []struct {
		comparisons int
		want        int
	}{
		{0, 0}, {-1, 0}, {1, 1}, {2, 2}, {3, 2}, {4, 3}, {7, 3}, {8, 4}, {1023, 10}, {1024, 11},
	}
	for _, tc := range cases {
		if got := model.ExplorationBucket(tc.comparisons); got != tc.want {
			t.Errorf("ExplorationBucket(%d) = %d, want %d", tc.comparisons, got, tc.want)
		}
	}
}
