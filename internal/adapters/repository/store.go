// Package repository holds the authoritative in-memory rating store.
package repository

import (
	"context"

	"github.com/okian/duel/internal/domain/model"
)

// Store defines the rating store contract. Returned items are value copies.
type Store interface {
	// Seed inserts items that are not yet present. Existing items keep their state.
	Seed(ctx context.Context, items []model.Item) (int, error)
	// Get returns an item by id or ErrNotFound.
	Get(ctx context.Context, id string) (model.Item, error)
	// ByText resolves a phrase text to its item or ErrNotFound.
	ByText(ctx context.Context, text string) (model.Item, error)
	// ListAll returns every item in canonical order: rating DESC, id ASC.
	ListAll(ctx context.Context) []model.Item
	// Page returns up to limit items starting at the 0-based position offset.
	Page(ctx context.Context, offset, limit int) ([]model.Item, error)
	// Rank returns the 1-based position of id in canonical order.
	Rank(ctx context.Context, id string) (int, error)
	// Count returns the number of items.
	Count(ctx context.Context) int
	// ApplyResult records that winnerID beat loserID. Both sides change together or not at all.
	ApplyResult(ctx context.Context, winnerID, loserID string) (model.Result, error)
	// View runs fn against a consistent read view of the index.
	View(fn func(Index))
	// OnChange registers fn to run after every committed result.
	OnChange(fn func(model.Result))
}

// Persister is the durable side of the store. SaveResult must write both
// items of a result together.
type Persister interface {
	SaveResult(ctx context.Context, res model.Result) error
}

// Index is a read view over the store, valid only inside a View callback.
type Index = model.RankedView
