// Package index provides the SQLite-backed document listing index (with
// optional FTS5 full-text search) and the recycle-entry ledger.
package index

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const coreSchemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	path       TEXT PRIMARY KEY,
	id         TEXT NOT NULL,
	type       TEXT NOT NULL,
	state      TEXT NOT NULL,
	slug       TEXT NOT NULL,
	title      TEXT NOT NULL DEFAULT '',
	checksum   TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '[]',
	categories TEXT NOT NULL DEFAULT '[]',
	body       TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_documents_id ON documents(id);
CREATE INDEX IF NOT EXISTS idx_documents_type_state ON documents(type, state);

CREATE TABLE IF NOT EXISTS recycle_entries (
	id            TEXT PRIMARY KEY,
	document_id   TEXT NOT NULL,
	type          TEXT NOT NULL,
	slug          TEXT NOT NULL,
	title         TEXT NOT NULL DEFAULT '',
	original_path TEXT NOT NULL,
	stored_path   TEXT NOT NULL UNIQUE,
	was_draft     INTEGER NOT NULL DEFAULT 0,
	discarded_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_recycle_type ON recycle_entries(type, discarded_at);
`

// DB wraps a sql.DB with index-specific operations.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the SQLite database and applies the schema.
func Open(dsn string) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("index: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: ping: %w", err)
	}
	if _, err := conn.Exec(coreSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply core schema: %w", err)
	}
	if err := initFTS(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("index: apply fts schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the underlying database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}
