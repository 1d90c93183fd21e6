package cmd

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/eduvision/attendance/internal/config"
	"github.com/eduvision/attendance/internal/store"
	"github.com/eduvision/attendance/internal/store/memory"
	"github.com/eduvision/attendance/internal/store/postgres"
	"github.com/eduvision/attendance/internal/store/sqlite"
)

// openStore opens the attendance store selected by DATABASE_DRIVER.
// log may be nil for CLI commands that print to stdout.
func openStore(cfg *config.Config, log *zap.Logger) (store.Store, error) {
	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.URL == "" {
			return nil, fmt.Errorf("DATABASE_URL environment variable is required for the postgres driver")
		}
		st, err := postgres.New(&cfg.Database, log)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
		}
		return st, nil
	case "sqlite":
		st, err := sqlite.New(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database: %w", err)
		}
		return st, nil
	case "memory":
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown database driver %q (expected postgres, sqlite or memory)", cfg.Database.Driver)
	}
}
