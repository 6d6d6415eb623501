package core

import (
	"context"
	"fmt"

	"protocoldesk/internal/config"
	"protocoldesk/internal/infra/persistence/memory"
	"protocoldesk/pkg/domain"
)

// PersistentStore aliases the storage surface the service runs on.
type PersistentStore = domain.PersistentStore

// OpenPersistentStore selects a backend from the storage configuration.
// Defaults to sqlite when the driver is unset.
//
//	memory:   in-memory only (tests / ephemeral)
//	sqlite:   embedded sqlite file at SQLitePath
//	postgres: PostgreSQL server at PostgresDSN
func OpenPersistentStore(ctx context.Context, cfg config.StorageConfig) (PersistentStore, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = config.StorageSQLite
	}
	switch driver {
	case config.StorageMemory:
		return memory.NewStore(), nil
	case config.StorageSQLite:
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	case config.StoragePostgres:
		return NewPostgresStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown storage driver %s", driver)
	}
}
