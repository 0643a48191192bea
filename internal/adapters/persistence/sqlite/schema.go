package sqlite

// schema defines the SQLite tables. comparisons doubles as the row version.
const schema = `
CREATE TABLE IF NOT EXISTS items (
    id          TEXT PRIMARY KEY,
    text        TEXT NOT NULL,
    rating      REAL NOT NULL,
    comparisons INTEGER NOT NULL DEFAULT 0,
    wins        INTEGER NOT NULL DEFAULT 0,
    losses      INTEGER NOT NULL DEFAULT 0,
    updated_at  INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_items_rating ON items(rating DESC, id ASC);

CREATE TABLE IF NOT EXISTS store_metadata (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at INTEGER NOT NULL
);
`

type migration struct {
	Version    int
	Statements []string
}

// migrations run in order after schema; each bumps schema_version.
var migrations = []migration{
	{
		Version: 1,
		Statements: []string{
			`CREATE INDEX IF NOT EXISTS idx_items_text ON items(text)`,
		},
	},
}
