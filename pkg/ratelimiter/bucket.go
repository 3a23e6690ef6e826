package ratelimiter

import (
	"context"
	"fmt"
	"time"
)

// Config defines a token bucket. Capacity is the burst size; RefillRate
// tokens are added every RefillInterval.
type Config struct {
	Capacity       int           `env:"RATE_LIMIT_CAPACITY" envDefault:"10"`
	RefillRate     int           `env:"RATE_LIMIT_REFILL_RATE" envDefault:"1"`
	RefillInterval time.Duration `env:"RATE_LIMIT_REFILL_INTERVAL" envDefault:"6s"`
	KeyPrefix      string        `env:"RATE_LIMIT_PREFIX" envDefault:"authcore:ratelimit:"`
}

// Validate reports whether the bucket can ever refill.
func (c Config) Validate() error {
	switch {
	case c.Capacity <= 0:
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, c.Capacity)
	case c.RefillRate <= 0:
		return fmt.Errorf("%w: refill rate must be positive, got %d", ErrInvalidConfig, c.RefillRate)
	case c.RefillInterval <= 0:
		return fmt.Errorf("%w: refill interval must be positive, got %v", ErrInvalidConfig, c.RefillInterval)
	}
	return nil
}

// idleTTL is how long an untouched bucket takes to refill completely. After
// that its state is indistinguishable from a fresh one and may be dropped.
func (c Config) idleTTL() time.Duration {
	intervals := (c.Capacity + c.RefillRate - 1) / c.RefillRate
	return time.Duration(intervals+1) * c.RefillInterval
}

// Result is the outcome of a single check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	// ResetAt is when the next refill lands.
	ResetAt time.Time
}

// RetryAfter is zero for allowed requests.
func (r *Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed || !r.ResetAt.After(now) {
		return 0
	}
	return r.ResetAt.Sub(now)
}

// Store persists bucket state. Take must be atomic per key.
type Store interface {
	Take(ctx context.Context, key string, n int, cfg Config, now time.Time) (*Result, error)
	Reset(ctx context.Context, key string) error
}

// Limiter is what the middleware depends on.
type Limiter interface {
	Allow(ctx context.Context, key string) (*Result, error)
}

// Bucket applies one Config to many keys.
type Bucket struct {
	store Store
	cfg   Config
	now   func() time.Time
}

var _ Limiter = (*Bucket)(nil)

// BucketOption configures a Bucket.
type BucketOption func(*Bucket)

// WithBucketClock overrides time.Now.
func WithBucketClock(now func() time.Time) BucketOption {
	return func(b *Bucket) {
		if now != nil {
			b.now = now
		}
	}
}

// NewBucket validates cfg and returns a limiter over store.
func NewBucket(store Store, cfg Config, opts ...BucketOption) (*Bucket, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	b := &Bucket{store: store, cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Allow takes one token for key.
func (b *Bucket) Allow(ctx context.Context, key string) (*Result, error) {
	return b.AllowN(ctx, key, 1)
}

// AllowN takes n tokens for key, or none if fewer than n remain.
func (b *Bucket) AllowN(ctx context.Context, key string, n int) (*Result, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: must be positive, got %d", ErrInvalidTokenCount, n)
	}
	return b.store.Take(ctx, key, n, b.cfg, b.now())
}

// Reset forgets key's state.
func (b *Bucket) Reset(ctx context.Context, key string) error {
	return b.store.Reset(ctx, key)
}

// Now returns the limiter's clock reading.
func (b *Bucket) Now() time.Time {
	return b.now()
}
