package core

import (
	"context"

	"protocoldesk/internal/infra/persistence/sqlite"
)

// NewSQLiteStore constructs a SQLite-backed store using the provided file path
// (may be empty for the default).
func NewSQLiteStore(ctx context.Context, path string) (*sqlite.Store, error) {
	return sqlite.NewStore(ctx, path)
}
