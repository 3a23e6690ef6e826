package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrymomot/authcore/pkg/pg"
	"github.com/dmitrymomot/authcore/svc/auth"
)

// ReplaceChallenge upserts by email so at most one challenge exists per address.
func (s *Store) ReplaceChallenge(ctx context.Context, c auth.Challenge) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO otp_challenges (email, code, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (email) DO UPDATE SET
	code = excluded.code,
	created_at = excluded.created_at`,
		c.Email, c.Code, c.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("replace challenge: %w", err)
	}
	return nil
}

func (s *Store) GetChallenge(ctx context.Context, email string) (*auth.Challenge, error) {
	var c auth.Challenge
	err := s.pool.QueryRow(ctx,
		`SELECT email, code, created_at FROM otp_challenges WHERE email = $1`, email,
	).Scan(&c.Email, &c.Code, &c.CreatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, auth.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	return &c, nil
}

func (s *Store) DeleteChallenge(ctx context.Context, email string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM otp_challenges WHERE email = $1`, email); err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}

func (s *Store) DeleteChallengesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM otp_challenges WHERE created_at < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired challenges: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
