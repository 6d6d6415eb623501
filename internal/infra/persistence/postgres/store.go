// Package postgres provides the PostgreSQL backend. It registers pgx as a
// database/sql driver and shares its query layer with the sqlite backend.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"protocoldesk/internal/infra/persistence/sqlstore"
)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/protocoldesk?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Dialect returns the postgres flavour of the shared SQL store.
func Dialect() sqlstore.Dialect {
	return sqlstore.Dialect{
		Name:        "postgres",
		Placeholder: sqlstore.Dollars,
		Schema: []string{
			`CREATE TABLE IF NOT EXISTS protocols (
				id BIGINT PRIMARY KEY,
				date TEXT NOT NULL,
				name TEXT NOT NULL,
				number INTEGER NOT NULL,
				secretary TEXT NOT NULL,
				rows_json JSONB NOT NULL DEFAULT '[]'::jsonb
			)`,
			`CREATE TABLE IF NOT EXISTS regions (name TEXT PRIMARY KEY)`,
			`CREATE TABLE IF NOT EXISTS executors (name TEXT PRIMARY KEY)`,
		},
	}
}

// NewStore opens a Postgres-backed store using dsn (falls back to defaultDSN),
// applies the schema and loads the current contents.
func NewStore(ctx context.Context, dsn string) (*sqlstore.Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store, err := sqlstore.Open(ctx, db, Dialect())
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
