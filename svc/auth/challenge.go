package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/dmitrymomot/authcore/pkg/logger"
	"github.com/dmitrymomot/authcore/pkg/sanitizer"
)

const (
	DefaultChallengeTTL        = 5 * time.Minute
	DefaultChallengeCodeLength = 6
)

// Challenge is a one-time code proving control of an email address.
type Challenge struct {
	Email     string
	Code      string
	CreatedAt time.Time
}

// ChallengeService issues and checks OTP challenges. At most one challenge
// exists per email; issuing a new one supersedes the old.
type ChallengeService struct {
	storage    ChallengeStorage
	ttl        time.Duration
	codeLength int
	now        func() time.Time
	logger     *slog.Logger
}

type ChallengeOption func(*ChallengeService)

// WithChallengeTTL sets how long a challenge is accepted after issue.
func WithChallengeTTL(ttl time.Duration) ChallengeOption {
	return func(s *ChallengeService) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithCodeLength sets the number of digits in generated codes.
func WithCodeLength(n int) ChallengeOption {
	return func(s *ChallengeService) {
		if n > 0 {
			s.codeLength = n
		}
	}
}

// WithChallengeClock overrides the time source.
func WithChallengeClock(now func() time.Time) ChallengeOption {
	return func(s *ChallengeService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithChallengeLogger sets the logger. Nil is ignored.
func WithChallengeLogger(l *slog.Logger) ChallengeOption {
	return func(s *ChallengeService) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewChallengeService returns a service with a five minute TTL and
// six-digit codes unless overridden.
func NewChallengeService(storage ChallengeStorage, opts ...ChallengeOption) *ChallengeService {
	s := &ChallengeService{
		storage:    storage,
		ttl:        DefaultChallengeTTL,
		codeLength: DefaultChallengeCodeLength,
		now:        time.Now,
		logger:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the validity window of issued challenges.
func (s *ChallengeService) TTL() time.Duration {
	return s.ttl
}

// Issue generates a fresh code for email, replacing any existing challenge.
func (s *ChallengeService) Issue(ctx context.Context, email string) (*Challenge, error) {
	code, err := generateCode(s.codeLength)
	if err != nil {
		return nil, fmt.Errorf("generate challenge code: %w", err)
	}

	c := Challenge{
		Email:     sanitizer.NormalizeEmail(email),
		Code:      code,
		CreatedAt: s.now().UTC(),
	}
	if err := s.storage.ReplaceChallenge(ctx, c); err != nil {
		return nil, fmt.Errorf("store challenge: %w", err)
	}
	return &c, nil
}

// Verify checks code against the live challenge for email. A stale challenge
// is deleted. A matching challenge is left in place; callers that need
// single use must call Discard.
func (s *ChallengeService) Verify(ctx context.Context, email, code string) error {
	email = sanitizer.NormalizeEmail(email)

	c, err := s.storage.GetChallenge(ctx, email)
	if err != nil {
		if errors.Is(err, ErrChallengeNotFound) {
			return ErrChallengeNotFound
		}
		return fmt.Errorf("load challenge: %w", err)
	}

	if s.now().Sub(c.CreatedAt) > s.ttl {
		if err := s.storage.DeleteChallenge(ctx, email); err != nil {
			s.logger.ErrorContext(ctx, "failed to delete expired challenge",
				logger.Component("challenge"),
				logger.Error(err),
			)
		}
		return ErrChallengeExpired
	}

	if subtle.ConstantTimeCompare([]byte(c.Code), []byte(code)) != 1 {
		return ErrChallengeMismatch
	}
	return nil
}

// Discard removes the challenge for email.
func (s *ChallengeService) Discard(ctx context.Context, email string) error {
	if err := s.storage.DeleteChallenge(ctx, sanitizer.NormalizeEmail(email)); err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	return nil
}

// PurgeExpired deletes every challenge older than the TTL.
func (s *ChallengeService) PurgeExpired(ctx context.Context) (int, error) {
	n, err := s.storage.DeleteChallengesBefore(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return 0, fmt.Errorf("purge challenges: %w", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "purged expired challenges",
			logger.Component("challenge"),
			logger.Count(n),
		)
	}
	return n, nil
}

var ten = big.NewInt(10)

func generateCode(length int) (string, error) {
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", err
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf), nil
}
