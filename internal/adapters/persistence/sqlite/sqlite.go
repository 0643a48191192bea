// Package sqlite persists item ratings in an embedded SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/okian/duel/internal/domain/model"
)

// Store is a persistence.Persister on SQLite.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at path and applies the schema.
// ":memory:" gives a private in-memory database.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer; also keeps ":memory:" on a single connection.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) init() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return s.runMigrations()
}

func (s *Store) runMigrations() error {
	current, err := s.schemaVersion()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.Version <= current {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}
		for _, stmt := range m.Statements {
			if strings.TrimSpace(stmt) == "" {
				continue
			}
			if _, err := tx.Exec(stmt); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d failed: %w", m.Version, err)
			}
		}
		if _, err := tx.Exec(`
			INSERT INTO store_metadata (key, value, updated_at)
			VALUES ('schema_version', ?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		`, strconv.Itoa(m.Version), time.Now().UnixMilli()); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema_version for migration %d: %w", m.Version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}
		current = m.Version
	}
	return nil
}

func (s *Store) schemaVersion() (int, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM store_metadata WHERE key = 'schema_version'`).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema_version: %w", err)
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid schema_version %q: %w", value, err)
	}
	return v, nil
}

// LoadAll returns every stored item.
func (s *Store) LoadAll(ctx context.Context) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, text, rating, comparisons, wins, losses
		  FROM items
		 ORDER BY rating DESC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	defer rows.Close()

	var out []model.Item
	for rows.Next() {
		var it model.Item
		if err := rows.Scan(&it.ID, &it.Text, &it.Rating, &it.Comparisons, &it.Wins, &it.Losses); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

// EnsureItems inserts missing items and leaves existing rows untouched.
func (s *Store) EnsureItems(ctx context.Context, items []model.Item) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin ensure items: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO items (id, text, rating, comparisons, wins, losses, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare ensure items: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UnixMilli()
	for _, it := range items {
		if _, err := stmt.ExecContext(ctx, it.ID, it.Text, it.Rating, it.Comparisons, it.Wins, it.Losses, now); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("ensure item %s: %w", it.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ensure items: %w", err)
	}
	return nil
}

// upsertItem overwrites a row only when the incoming comparisons count is newer.
const upsertItem = `
	INSERT INTO items (id, text, rating, comparisons, wins, losses, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		rating      = excluded.rating,
		comparisons = excluded.comparisons,
		wins        = excluded.wins,
		losses      = excluded.losses,
		updated_at  = excluded.updated_at
	WHERE excluded.comparisons > items.comparisons
`

// SaveResult writes both items of a vote in one transaction.
func (s *Store) SaveResult(ctx context.Context, res model.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save result: %w", err)
	}
	ts := res.TS.UnixMilli()
	for _, it := range []model.Item{res.Winner, res.Loser} {
		if _, err := tx.ExecContext(ctx, upsertItem, it.ID, it.Text, it.Rating, it.Comparisons, it.Wins, it.Losses, ts); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("save item %s: %w", it.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save result: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
