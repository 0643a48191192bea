// Package postgres persists item ratings in PostgreSQL through pgxpool.
package postgres

import (
	"context"
	"embed"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/duel/internal/domain/model"
)

//go:embed schema.sql
var schema embed.FS

// DB is a persistence.Persister on PostgreSQL.
type DB struct{ *pgxpool.Pool }

// Open connects to dsn. Call Migrate before use.
func Open(ctx context.Context, dsn string) (*DB, error) {
	p, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	return &DB{p}, nil
}

// Close implements persistence.Persister.
func (db *DB) Close() error {
	db.Pool.Close()
	return nil
}

// Ping checks connectivity.
func (db *DB) Ping(ctx context.Context) error { return db.Pool.Ping(ctx) }

// Migrate applies the embedded schema.
func Migrate(ctx context.Context, db *DB) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	if _, err = db.Exec(ctx, string(sqlBytes)); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// LoadAll returns every stored item.
func (db *DB) LoadAll(ctx context.Context) ([]model.Item, error) {
	rows, err := db.Query(ctx, `
		SELECT id, text, rating, comparisons, wins, losses
		  FROM items
		 ORDER BY rating DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.Item, error) {
		var it model.Item
		err := row.Scan(&it.ID, &it.Text, &it.Rating, &it.Comparisons, &it.Wins, &it.Losses)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan items: %w", err)
	}
	return items, nil
}

// EnsureItems inserts missing items in one batch and leaves existing rows alone.
func (db *DB) EnsureItems(ctx context.Context, items []model.Item) error {
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(`
			INSERT INTO items (id, text, rating, comparisons, wins, losses)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (id) DO NOTHING
		`, it.ID, it.Text, it.Rating, it.Comparisons, it.Wins, it.Losses)
	}
	if err := db.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("ensure items: %w", err)
	}
	return nil
}

// SaveResult writes both items of a vote in one transaction. A row is only
// overwritten by a newer comparisons count.
func (db *DB) SaveResult(ctx context.Context, res model.Result) error {
	return pgx.BeginFunc(ctx, db.Pool, func(tx pgx.Tx) error {
		for _, it := range []model.Item{res.Winner, res.Loser} {
			if _, err := tx.Exec(ctx, `
				INSERT INTO items (id, text, rating, comparisons, wins, losses, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (id) DO UPDATE
				   SET rating      = EXCLUDED.rating,
				       comparisons = EXCLUDED.comparisons,
				       wins        = EXCLUDED.wins,
				       losses      = EXCLUDED.losses,
				       updated_at  = EXCLUDED.updated_at
				 WHERE items.comparisons < EXCLUDED.comparisons
			`, it.ID, it.Text, it.Rating, it.Comparisons, it.Wins, it.Losses, res.TS); err != nil {
				return fmt.Errorf("save item %s: %w", it.ID, err)
			}
		}
		return nil
	})
}
