package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/authcore/pkg/pg"
	"github.com/dmitrymomot/authcore/storage/postgres/migrations"
	"github.com/dmitrymomot/authcore/svc/auth"
	"github.com/dmitrymomot/authcore/svc/integration"
)

var (
	_ auth.IdentityStorage          = (*Store)(nil)
	_ auth.ChallengeStorage         = (*Store)(nil)
	_ integration.CredentialStorage = (*Store)(nil)
)

// Store persists identities, challenges and integration credentials in
// Postgres.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, now: time.Now}
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, pool *pgxpool.Pool, log *slog.Logger) error {
	return pg.Migrate(ctx, pool, migrations.FS, log)
}

// Healthcheck pings the pool.
func (s *Store) Healthcheck(ctx context.Context) error {
	return pg.Healthcheck(s.pool)(ctx)
}
