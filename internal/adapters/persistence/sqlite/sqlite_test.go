package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/okian/duel/internal/domain/model"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEnsureItems_KeepsExistingRows(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	x := model.NewItem("low-hanging fruit", 1500)
	require.NoError(t, s.EnsureItems(ctx, []model.Item{x}))

	x.Rating = 9999
	require.NoError(t, s.EnsureItems(ctx, []model.Item{x, model.NewItem("deep dive", 1500)}))

	items, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, it := range items {
		require.Equal(t, 1500.0, it.Rating)
	}
}

func TestSaveResult_VersionedUpsert(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	x := model.NewItem("bandwidth", 1500)
	y := model.NewItem("touch base", 1500)
	require.NoError(t, s.EnsureItems(ctx, []model.Item{x, y}))

	newer := model.Result{
		Winner: model.Item{ID: x.ID, Text: x.Text, Rating: 1530, Comparisons: 2, Wins: 2},
		Loser:  model.Item{ID: y.ID, Text: y.Text, Rating: 1470, Comparisons: 2, Losses: 2},
		TS:     time.Now(),
	}
	older := model.Result{
		Winner: model.Item{ID: x.ID, Text: x.Text, Rating: 1516, Comparisons: 1, Wins: 1},
		Loser:  model.Item{ID: y.ID, Text: y.Text, Rating: 1484, Comparisons: 1, Losses: 1},
		TS:     time.Now(),
	}
	require.NoError(t, s.SaveResult(ctx, newer))
	require.NoError(t, s.SaveResult(ctx, older)) // late write must not regress

	items, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, x.ID, items[0].ID)
	require.InDelta(t, 1530, items[0].Rating, 1e-9)
	require.Equal(t, 2, items[0].Comparisons)
	require.Equal(t, 2, items[0].Wins)
	require.InDelta(t, 1470, items[1].Rating, 1e-9)
	require.Equal(t, 2, items[1].Losses)
}

func TestSaveResult_InsertsUnknownItems(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)

	res := model.Result{
		Winner: model.Item{ID: "w", Text: "win", Rating: 1516, Comparisons: 1, Wins: 1},
		Loser:  model.Item{ID: "l", Text: "lose", Rating: 1484, Comparisons: 1, Losses: 1},
		TS:     time.Now(),
	}
	require.NoError(t, s.SaveResult(ctx, res))

	items, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestReopenKeepsRatings(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "duel.db")

	s, err := New(path)
	require.NoError(t, err)
	x := model.NewItem("paradigm shift", 1500)
	y := model.NewItem("win-win", 1500)
	require.NoError(t, s.EnsureItems(ctx, []model.Item{x, y}))
	require.NoError(t, s.SaveResult(ctx, model.Result{
		Winner: model.Item{ID: x.ID, Text: x.Text, Rating: 1516, Comparisons: 1, Wins: 1},
		Loser:  model.Item{ID: y.ID, Text: y.Text, Rating: 1484, Comparisons: 1, Losses: 1},
		TS:     time.Now(),
	}))
	require.NoError(t, s.Close())

	s, err = New(path)
	require.NoError(t, err)
	defer s.Close()
	items, err := s.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.InDelta(t, 1516, items[0].Rating, 1e-9)

	v, err := s.schemaVersion()
	require.NoError(t, err)
	require.Equal(t, len(migrations), v)
}
