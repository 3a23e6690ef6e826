package jwt

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// DefaultAlgorithm is used when no algorithm is configured.
const DefaultAlgorithm = "HS256"

// Re-exported so callers can declare claims without importing the underlying library.
type (
	Claims           = gojwt.Claims
	RegisteredClaims = gojwt.RegisteredClaims
	NumericDate      = gojwt.NumericDate
)

// NewNumericDate converts t into a claim timestamp with second precision.
func NewNumericDate(t time.Time) *NumericDate {
	return gojwt.NewNumericDate(t)
}

// Service signs and verifies HMAC tokens with a single process-wide key.
// Only the configured algorithm is accepted on verification.
type Service struct {
	signingKey []byte
	method     gojwt.SigningMethod
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service) error

// WithAlgorithm selects HS256, HS384 or HS512.
func WithAlgorithm(alg string) Option {
	return func(s *Service) error {
		switch alg {
		case "", gojwt.SigningMethodHS256.Alg():
			s.method = gojwt.SigningMethodHS256
		case gojwt.SigningMethodHS384.Alg():
			s.method = gojwt.SigningMethodHS384
		case gojwt.SigningMethodHS512.Alg():
			s.method = gojwt.SigningMethodHS512
		default:
			return fmt.Errorf("%w: %q", ErrInvalidSigningMethod, alg)
		}
		return nil
	}
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) error {
		if now != nil {
			s.now = now
		}
		return nil
	}
}

// New creates a token service. An empty key is a configuration error.
func New(signingKey []byte, opts ...Option) (*Service, error) {
	if len(signingKey) == 0 {
		return nil, ErrMissingSigningKey
	}

	s := &Service{
		signingKey: signingKey,
		method:     gojwt.SigningMethodHS256,
		now:        time.Now,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewFromString is New for string-based configuration.
func NewFromString(signingKey string, opts ...Option) (*Service, error) {
	return New([]byte(signingKey), opts...)
}

// Algorithm returns the configured algorithm identifier.
func (s *Service) Algorithm() string {
	return s.method.Alg()
}

// Now returns the current time according to the service clock.
func (s *Service) Now() time.Time {
	return s.now()
}

// Generate signs claims and returns the compact token string.
func (s *Service) Generate(claims Claims) (string, error) {
	if claims == nil {
		return "", ErrMissingClaims
	}
	token, err := gojwt.NewWithClaims(s.method, claims).SignedString(s.signingKey)
	if err != nil {
		return "", fmt.Errorf("jwt: sign token: %w", err)
	}
	return token, nil
}

// Parse verifies the signature, algorithm and expiry of token and decodes it
// into claims. Tokens without an exp claim are rejected.
func (s *Service) Parse(token string, claims Claims) error {
	if claims == nil {
		return ErrMissingClaims
	}

	_, err := gojwt.ParseWithClaims(token, claims, func(*gojwt.Token) (any, error) {
		return s.signingKey, nil
	},
		gojwt.WithValidMethods([]string{s.method.Alg()}),
		gojwt.WithExpirationRequired(),
		gojwt.WithTimeFunc(s.now),
	)
	if err == nil {
		return nil
	}
	if errors.Is(err, gojwt.ErrTokenExpired) {
		return errors.Join(ErrExpiredToken, err)
	}
	return errors.Join(ErrInvalidToken, err)
}
