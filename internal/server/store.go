package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sakif/jsonhost/internal/config"
	"github.com/sakif/jsonhost/internal/repository"
	"github.com/sakif/jsonhost/internal/repository/postgres"
	sqliteRepo "github.com/sakif/jsonhost/internal/repository/sqlite"
)

// MigratableStore is a store whose schema can be applied and inspected.
// Both backends satisfy it.
type MigratableStore interface {
	repository.Store
	Migrate(ctx context.Context) error
	MigrationStatus(ctx context.Context) error
}

// OpenStore opens the backend named by cfg.Driver. Opening applies any
// pending migrations.
func OpenStore(ctx context.Context, cfg config.DBConfig) (MigratableStore, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		if cfg.Path != ":memory:" {
			// like `mkdir -p`
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("creating database directory: %w", err)
			}
		}
		db, err := sqliteRepo.New(cfg.Path)
		if err != nil {
			return nil, err
		}
		return db, nil
	case config.DriverPostgres:
		db, err := postgres.New(ctx, cfg.URL)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
