package password

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/dmitrymomot/authcore/pkg/async"
)

// Hasher produces and checks bcrypt digests. Every call is dispatched onto a
// bounded pool so concurrent logins cannot saturate the CPU.
type Hasher struct {
	cost int
	pool *async.Pool
}

// Option configures a Hasher.
type Option func(*Hasher)

// WithCost sets the bcrypt cost. Values outside bcrypt's range are ignored.
func WithCost(cost int) Option {
	return func(h *Hasher) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			h.cost = cost
		}
	}
}

// WithPool shares an existing pool with the hasher.
func WithPool(p *async.Pool) Option {
	return func(h *Hasher) {
		if p != nil {
			h.pool = p
		}
	}
}

// NewHasher returns a Hasher with bcrypt.DefaultCost and a GOMAXPROCS-sized pool.
func NewHasher(opts ...Option) *Hasher {
	h := &Hasher{cost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(h)
	}
	if h.pool == nil {
		h.pool = async.NewPool(0)
	}
	return h
}

// Cost returns the configured bcrypt cost.
func (h *Hasher) Cost() int {
	return h.cost
}

// Hash returns a salted bcrypt digest of plaintext.
func (h *Hasher) Hash(ctx context.Context, plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}

	digest, err := async.Run(ctx, h.pool, func(context.Context) ([]byte, error) {
		return bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	})
	switch {
	case err == nil:
		return string(digest), nil
	case errors.Is(err, bcrypt.ErrPasswordTooLong):
		return "", ErrPasswordTooLong
	case ctx.Err() != nil:
		return "", err
	default:
		return "", errors.Join(ErrHashFailed, err)
	}
}

// Verify reports whether plaintext matches digest. A mismatch is not an
// error; a digest that is not a bcrypt hash is.
func (h *Hasher) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	_, err := async.Run(ctx, h.pool, func(context.Context) (struct{}, error) {
		return struct{}{}, bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	case ctx.Err() != nil:
		return false, err
	default:
		return false, errors.Join(ErrInvalidDigest, err)
	}
}
