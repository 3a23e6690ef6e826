package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/authcore/svc/auth"
)

// ReplaceChallenge upserts by email so at most one challenge exists per address.
func (s *Store) ReplaceChallenge(ctx context.Context, c auth.Challenge) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO otp_challenges (email, code, created_at)
VALUES (?, ?, ?)
ON CONFLICT(email) DO UPDATE SET
	code = excluded.code,
	created_at = excluded.created_at`,
		c.Email, c.Code, toMillis(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("replace challenge: %w", err)
	}
	return nil
}

func (s *Store) GetChallenge(ctx context.Context, email string) (*auth.Challenge, error) {
	var (
		c         auth.Challenge
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT email, code, created_at FROM otp_challenges WHERE email = ?`, email,
	).Scan(&c.Email, &c.Code, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("get challenge: %w", err)
	}
	c.CreatedAt = fromMillis(createdAt)
	return &c, nil
}

func (s *Store) DeleteChallenge(ctx context.Context, email string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE email = ?`, email); err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}

func (s *Store) DeleteChallengesBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM otp_challenges WHERE created_at < ?`, toMillis(cutoff))
	if err != nil {
		return 0, fmt.Errorf("delete expired challenges: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired challenges: %w", err)
	}
	return int(n), nil
}
