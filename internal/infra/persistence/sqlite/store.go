// Package sqlite provides the embedded SQLite backend built on modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"protocoldesk/internal/infra/persistence/sqlstore"
)

const defaultPath = "protocoldesk.db"

// Dialect returns the sqlite flavour of the shared SQL store.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Name:        "sqlite",
		Placeholder: sqlstore.QuestionMarks,
		Schema: []string{
			`CREATE TABLE IF NOT EXISTS protocols (
				id INTEGER PRIMARY KEY,
				date TEXT NOT NULL,
				name TEXT NOT NULL,
				number INTEGER NOT NULL,
				secretary TEXT NOT NULL,
				rows_json TEXT NOT NULL DEFAULT '[]'
			)`,
			`CREATE TABLE IF NOT EXISTS regions (name TEXT PRIMARY KEY)`,
			`CREATE TABLE IF NOT EXISTS executors (name TEXT PRIMARY KEY)`,
		},
	}
}

// Store is a file-backed store.
type Store struct {
	*sqlstore.Store
	path string
}

// NewStore opens (creating if needed) the database file at path.
func NewStore(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// single writer; avoids SQLITE_BUSY between pooled connections
	db.SetMaxOpenConns(1)
	inner, err := sqlstore.Open(ctx, db, Dialect())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{Store: inner, path: path}, nil
}

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
