// Package persistence defines the durable rating store contract and the
// in-process implementations shared by every driver.
package persistence

import (
	"context"

	"github.com/okian/duel/internal/domain/model"
)

// Persister is the durable side of the rating store.
//
// Rows are versioned by comparisons: SaveResult only overwrites a row whose
// stored comparisons count is lower than the incoming one, so a late or
// reordered write never regresses an item.
type Persister interface {
	// LoadAll returns every stored item.
	LoadAll(ctx context.Context) ([]model.Item, error)
	// EnsureItems inserts items that are missing and leaves existing rows alone.
	EnsureItems(ctx context.Context, items []model.Item) error
	// SaveResult writes both items of an applied vote in one transaction.
	SaveResult(ctx context.Context, res model.Result) error
	Close() error
}

// Merge overlays persisted state on corpus items by id. Persisted rows win;
// persisted items missing from the corpus are kept so their ratings stay visible.
func Merge(corpus, persisted []model.Item) []model.Item {
	stored := make(map[string]model.Item, len(persisted))
	for _, it := range persisted {
		stored[it.ID] = it
	}
	out := make([]model.Item, 0, len(corpus)+len(persisted))
	seen := make(map[string]struct{}, len(corpus))
	for _, it := range corpus {
		if p, ok := stored[it.ID]; ok {
			it = p
		}
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		out = append(out, it)
	}
	for _, it := range persisted {
		if _, ok := seen[it.ID]; !ok {
			seen[it.ID] = struct{}{}
			out = append(out, it)
		}
	}
	return out
}
