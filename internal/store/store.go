// Package store opens the record store selected by configuration.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/giftapi/internal/config"
	"github.com/JonMunkholm/giftapi/internal/core"
	"github.com/JonMunkholm/giftapi/internal/store/postgres"
	"github.com/JonMunkholm/giftapi/internal/store/sqlite"
)

// migrator is implemented by stores that can create their own schema.
type migrator interface {
	Migrate(ctx context.Context) error
}

// Open connects to the database named by cfg.Driver and, when
// cfg.AutoMigrate is set, creates the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig) (core.Store, error) {
	var (
		s   core.Store
		err error
	)
	switch cfg.Driver {
	case config.DriverPostgres:
		s, err = postgres.Open(ctx, cfg)
	case config.DriverSQLite:
		s, err = sqlite.Open(ctx, cfg.URL, sqlite.Options{
			LockTimeout: cfg.LockTimeout,
			MaxConns:    cfg.MaxConns,
		})
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := Migrate(ctx, s); err != nil {
			s.Close()
			return nil, err
		}
	}

	slog.Info("record store opened", "driver", cfg.Driver, "auto_migrate", cfg.AutoMigrate)
	return s, nil
}

// Migrate creates the kid and gift tables on s.
func Migrate(ctx context.Context, s core.Store) error {
	m, ok := s.(migrator)
	if !ok {
		return fmt.Errorf("store %T does not support migrations", s)
	}
	return m.Migrate(ctx)
}
