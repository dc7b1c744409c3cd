// Package store provides SQLite persistence for the automation subsystem.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store wraps a single SQLite database holding all automation state.
type Store struct {
	db *sql.DB
}

// New opens (or creates) the database at dbPath and applies the schema.
// The parent directory is created on first run.
func New(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open store db: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	// Best-effort migrations for existing dbs (no-op when the column exists).
	_, _ = db.Exec(`ALTER TABLE leads ADD COLUMN qualified_at DATETIME`)
	_, _ = db.Exec(`ALTER TABLE observer_suggestions ADD COLUMN target_id TEXT DEFAULT ''`)
	_, _ = db.Exec(`ALTER TABLE crm_sync_queue ADD COLUMN external_id TEXT DEFAULT ''`)

	return &Store{db: db}, nil
}

// DB exposes the raw handle for status queries.
func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error {
	return s.db.Close()
}
