package core

import (
	"context"

	"protocoldesk/internal/infra/persistence/postgres"
	"protocoldesk/internal/infra/persistence/sqlstore"
)

// NewPostgresStore constructs a Postgres-backed store from the provided DSN.
func NewPostgresStore(ctx context.Context, dsn string) (*sqlstore.Store, error) {
	return postgres.NewStore(ctx, dsn)
}
