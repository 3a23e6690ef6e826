package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/dmitrymomot/authcore/pkg/config"
	"github.com/dmitrymomot/authcore/pkg/logger"
)

func runMigrate(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	var app appConfig
	if err := config.Load(&app); err != nil {
		return err
	}
	log := newLogger(app)

	db, err := openBackend(ctx, app.StorageDriver, log)
	if err != nil {
		return err
	}
	defer db.close()

	if err := db.migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.InfoContext(ctx, "migrations applied", logger.Component("migrate"), slog.String("driver", app.StorageDriver))
	fmt.Fprintln(stdout, "migrations applied")
	return nil
}
