// Package pg connects to PostgreSQL through a pgx pool and applies embedded
// goose migrations.
//
//	pool, err := pg.Connect(ctx, cfg)
//	err = pg.Migrate(ctx, pool, migrationsFS, log)
package pg
