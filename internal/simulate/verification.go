package simulate

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrInconsistent reports a leaderboard that breaks a ranking invariant.
var ErrInconsistent = errors.New("leaderboard inconsistent")

const ratingTolerance = 1e-6

// verify checks the after-run leaderboard against the before-run one:
// canonical order, per-item counters, conserved rating mass and the
// number of comparisons added by accepted votes.
func verify(before, after []Entry, accepted int64) error {
	var problems []string
	if len(after) != len(before) {
		problems = append(problems, fmt.Sprintf("item count changed from %d to %d", len(before), len(after)))
	}

	for i, e := range after {
		if e.Comparisons != e.Wins+e.Losses {
			problems = append(problems, fmt.Sprintf("%s: comparisons %d != wins %d + losses %d", e.ID, e.Comparisons, e.Wins, e.Losses))
		}
		if i == 0 {
			continue
		}
		prev := after[i-1]
		if e.Rating > prev.Rating || (e.Rating == prev.Rating && e.ID < prev.ID) {
			problems = append(problems, fmt.Sprintf("entries %d and %d out of order", i-1, i))
		}
	}

	massBefore, compBefore := totals(before)
	massAfter, compAfter := totals(after)
	if tol := ratingTolerance * float64(max(len(after), 1)); math.Abs(massAfter-massBefore) > tol {
		problems = append(problems, fmt.Sprintf("rating mass drifted from %.6f to %.6f", massBefore, massAfter))
	}
	if got, want := int64(compAfter-compBefore), 2*accepted; got != want {
		problems = append(problems, fmt.Sprintf("comparisons grew by %d, want %d", got, want))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInconsistent, strings.Join(problems, "; "))
	}
	return nil
}

func totals(entries []Entry) (mass float64, comparisons int) {
	for _, e := range entries {
		mass += e.Rating
		comparisons += e.Comparisons
	}
	return mass, comparisons
}
