package storage

import (
	"context"
	"fmt"

	"quest-gateway/internal/config"
	"quest-gateway/internal/storage/postgres"
	"quest-gateway/internal/storage/sqlite"
)

// New creates the storage backend selected by the configuration.
func New(ctx context.Context, cfg *config.Config) (Storage, error) {
	switch cfg.DatabaseType {
	case "postgres", "postgresql":
		return postgres.NewAdapter(ctx, cfg.DatabaseURL)
	case "sqlite":
		return sqlite.NewAdapter(cfg.DatabasePath)
	default:
		return nil, fmt.Errorf("unsupported database type %q", cfg.DatabaseType)
	}
}
