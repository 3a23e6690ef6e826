package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/authcore/pkg/config"
	"github.com/dmitrymomot/authcore/pkg/pg"
	"github.com/dmitrymomot/authcore/storage/postgres"
	"github.com/dmitrymomot/authcore/storage/sqlite"
	"github.com/dmitrymomot/authcore/svc/auth"
	"github.com/dmitrymomot/authcore/svc/integration"
)

type repository interface {
	auth.IdentityStorage
	auth.ChallengeStorage
	integration.CredentialStorage
	Healthcheck(ctx context.Context) error
}

// backend is an opened storage driver.
type backend struct {
	repo    repository
	migrate func(ctx context.Context) error
	close   func() error
}

func openBackend(ctx context.Context, driver string, log *slog.Logger) (*backend, error) {
	switch driver {
	case driverPostgres:
		var cfg pg.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return &backend{
			repo:    postgres.New(pool),
			migrate: func(ctx context.Context) error { return postgres.Migrate(ctx, pool, log) },
			close: func() error {
				pool.Close()
				return nil
			},
		}, nil

	case driverSQLite:
		var cfg sqlite.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		store, err := sqlite.Open(cfg.Path)
		if err != nil {
			return nil, err
		}
		return &backend{
			repo:    store,
			migrate: func(ctx context.Context) error { return store.Migrate(ctx, log) },
			close:   store.Close,
		}, nil
	}
	return nil, fmt.Errorf("unsupported storage driver %q", driver)
}
