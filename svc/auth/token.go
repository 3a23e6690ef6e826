package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/authcore/pkg/jwt"
)

// TokenClass separates short-lived access tokens from refresh tokens.
type TokenClass string

const (
	AccessToken  TokenClass = "access"
	RefreshToken TokenClass = "refresh"
)

const (
	DefaultAccessTokenTTL  = 18 * time.Hour
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

type tokenClaims struct {
	jwt.RegisteredClaims
	SubjectID *int64     `json:"subjectId,omitempty"`
	Class     TokenClass `json:"class"`
}

// TokenPair is what login and refresh hand back to the client.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// TokenService issues and verifies stateless bearer tokens.
type TokenService struct {
	signer     *jwt.Service
	accessTTL  time.Duration
	refreshTTL time.Duration
}

type TokenOption func(*TokenService)

// WithAccessTTL overrides the default access token lifetime.
func WithAccessTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.accessTTL = ttl
		}
	}
}

// WithRefreshTTL overrides the default refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) TokenOption {
	return func(s *TokenService) {
		if ttl > 0 {
			s.refreshTTL = ttl
		}
	}
}

// NewTokenService returns a TokenService signing with signer.
func NewTokenService(signer *jwt.Service, opts ...TokenOption) *TokenService {
	s := &TokenService{
		signer:     signer,
		accessTTL:  DefaultAccessTokenTTL,
		refreshTTL: DefaultRefreshTokenTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured lifetime for class.
func (s *TokenService) TTL(class TokenClass) time.Duration {
	if class == RefreshToken {
		return s.refreshTTL
	}
	return s.accessTTL
}

// Issue signs a token for subjectID expiring ttl from now. A non-positive ttl
// uses the class default.
func (s *TokenService) Issue(subjectID int64, class TokenClass, ttl time.Duration) (string, error) {
	token, _, err := s.issue(subjectID, class, ttl)
	return token, err
}

func (s *TokenService) issue(subjectID int64, class TokenClass, ttl time.Duration) (string, time.Time, error) {
	if class != AccessToken && class != RefreshToken {
		return "", time.Time{}, fmt.Errorf("%w: %q", ErrUnknownTokenClass, class)
	}
	if ttl <= 0 {
		ttl = s.TTL(class)
	}

	now := s.signer.Now()
	expiresAt := now.Add(ttl)
	token, err := s.signer.Generate(tokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		SubjectID: &subjectID,
		Class:     class,
	})
	if err != nil {
		return "", time.Time{}, fmt.Errorf("issue %s token: %w", class, err)
	}
	return token, expiresAt, nil
}

// IssuePair signs a fresh access and refresh token for subjectID.
func (s *TokenService) IssuePair(subjectID int64) (*TokenPair, error) {
	access, accessExp, err := s.issue(subjectID, AccessToken, 0)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.issue(subjectID, RefreshToken, 0)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Verify checks the signature, expiry, and class of token and returns its
// subject.
func (s *TokenService) Verify(token string, expected TokenClass) (int64, error) {
	var claims tokenClaims
	if err := s.signer.Parse(token, &claims); err != nil {
		if errors.Is(err, jwt.ErrExpiredToken) {
			return 0, errors.Join(ErrTokenExpired, err)
		}
		return 0, errors.Join(ErrTokenMalformed, err)
	}
	if claims.Class != expected {
		return 0, fmt.Errorf("%w: expected %s, got %q", ErrTokenClassMismatch, expected, claims.Class)
	}
	if claims.SubjectID == nil {
		return 0, ErrTokenMissingSubject
	}
	return *claims.SubjectID, nil
}
