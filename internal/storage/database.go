// Package storage provides SQLite-backed persistence for legal
// documents and their chunks, including the FTS5 keyword index used
// by the hybrid retriever's sparse search path.
package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// New opens a SQLite database at the given path and configures the
// connection pool. Use ":memory:" for tests.
func New(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// Migrate creates the schema if it does not exist. The chunks_fts
// virtual table indexes diacritic-folded chunk text; triggers keep it
// in sync with the chunks table.
func Migrate(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			law_number TEXT NOT NULL DEFAULT '',
			law_date TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS chunks (
			id TEXT PRIMARY KEY,
			document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			article TEXT NOT NULL DEFAULT '',
			pages TEXT NOT NULL DEFAULT '',
			content TEXT NOT NULL,
			content_folded TEXT NOT NULL,
			char_count INTEGER NOT NULL,
			UNIQUE(document_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks(document_id, position)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
			content_folded,
			content='chunks',
			content_rowid='rowid'
		)`,
		`CREATE TRIGGER IF NOT EXISTS chunks_fts_insert AFTER INSERT ON chunks BEGIN
			INSERT INTO chunks_fts(rowid, content_folded) VALUES (new.rowid, new.content_folded);
		END`,
		`CREATE TRIGGER IF NOT EXISTS chunks_fts_delete AFTER DELETE ON chunks BEGIN
			INSERT INTO chunks_fts(chunks_fts, rowid, content_folded) VALUES ('delete', old.rowid, old.content_folded);
		END`,
		`CREATE TRIGGER IF NOT EXISTS chunks_fts_update AFTER UPDATE ON chunks BEGIN
			INSERT INTO chunks_fts(chunks_fts, rowid, content_folded) VALUES ('delete', old.rowid, old.content_folded);
			INSERT INTO chunks_fts(rowid, content_folded) VALUES (new.rowid, new.content_folded);
		END`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}
