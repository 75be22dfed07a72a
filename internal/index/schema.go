// Package index keeps a SQLite catalogue of captured callback requests so
// they can be listed and filtered without reading every record file.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS captures (
	file         TEXT PRIMARY KEY,
	id           TEXT NOT NULL,
	method       TEXT NOT NULL,
	path         TEXT NOT NULL DEFAULT '',
	url          TEXT NOT NULL DEFAULT '',
	content_type TEXT NOT NULL DEFAULT '',
	body_size    INTEGER NOT NULL DEFAULT 0,
	received_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_captures_method ON captures(method);
CREATE INDEX IF NOT EXISTS idx_captures_received ON captures(received_at);
`

// DB wraps a sql.DB with capture index operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
