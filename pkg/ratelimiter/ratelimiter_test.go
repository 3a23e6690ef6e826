package ratelimiter_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authcore/pkg/ratelimiter"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var testConfig = ratelimiter.Config{
	Capacity:       3,
	RefillRate:     1,
	RefillInterval: time.Second,
}

func stores(t *testing.T) map[string]func(t *testing.T) ratelimiter.Store {
	t.Helper()
	return map[string]func(t *testing.T) ratelimiter.Store{
		"memory": func(t *testing.T) ratelimiter.Store {
			s := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
			t.Cleanup(s.Close)
			return s
		},
		"redis": func(t *testing.T) ratelimiter.Store {
			mr := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
			t.Cleanup(func() { _ = client.Close() })
			return ratelimiter.NewRedisStore(client, "test:rl:")
		},
	}
}

func TestBucket_Stores(t *testing.T) {
	t.Parallel()

	for name, newStore := range stores(t) {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			t.Run("burst then deny", func(t *testing.T) {
				clk := newClock()
				b, err := ratelimiter.NewBucket(newStore(t), testConfig, ratelimiter.WithBucketClock(clk.Now))
				require.NoError(t, err)

				for i := range 3 {
					res, err := b.Allow(ctx, "k")
					require.NoError(t, err)
					assert.True(t, res.Allowed)
					assert.Equal(t, 2-i, res.Remaining)
					assert.Equal(t, 3, res.Limit)
				}

				res, err := b.Allow(ctx, "k")
				require.NoError(t, err)
				assert.False(t, res.Allowed)
				assert.Equal(t, 0, res.Remaining)
				assert.Equal(t, time.Second, res.RetryAfter(clk.Now()))

				other, err := b.Allow(ctx, "other")
				require.NoError(t, err)
				assert.True(t, other.Allowed)
			})

			t.Run("denial does not consume", func(t *testing.T) {
				clk := newClock()
				b, err := ratelimiter.NewBucket(newStore(t), testConfig, ratelimiter.WithBucketClock(clk.Now))
				require.NoError(t, err)

				for range 10 {
					_, err := b.Allow(ctx, "k")
					require.NoError(t, err)
				}
				clk.Advance(time.Second)

				res, err := b.Allow(ctx, "k")
				require.NoError(t, err)
				assert.True(t, res.Allowed)
				assert.Equal(t, 0, res.Remaining)
			})

			t.Run("refill caps at capacity", func(t *testing.T) {
				clk := newClock()
				b, err := ratelimiter.NewBucket(newStore(t), testConfig, ratelimiter.WithBucketClock(clk.Now))
				require.NoError(t, err)

				_, err = b.AllowN(ctx, "k", 3)
				require.NoError(t, err)
				clk.Advance(time.Hour)

				res, err := b.Allow(ctx, "k")
				require.NoError(t, err)
				assert.True(t, res.Allowed)
				assert.Equal(t, 2, res.Remaining)
			})

			t.Run("partial interval does not refill", func(t *testing.T) {
				clk := newClock()
				b, err := ratelimiter.NewBucket(newStore(t), testConfig, ratelimiter.WithBucketClock(clk.Now))
				require.NoError(t, err)

				_, err = b.AllowN(ctx, "k", 3)
				require.NoError(t, err)
				clk.Advance(900 * time.Millisecond)

				res, err := b.Allow(ctx, "k")
				require.NoError(t, err)
				assert.False(t, res.Allowed)
			})

			t.Run("reset", func(t *testing.T) {
				clk := newClock()
				b, err := ratelimiter.NewBucket(newStore(t), testConfig, ratelimiter.WithBucketClock(clk.Now))
				require.NoError(t, err)

				_, err = b.AllowN(ctx, "k", 3)
				require.NoError(t, err)
				require.NoError(t, b.Reset(ctx, "k"))

				res, err := b.Allow(ctx, "k")
				require.NoError(t, err)
				assert.Equal(t, 2, res.Remaining)
			})

			t.Run("concurrent takes never overdraw", func(t *testing.T) {
				clk := newClock()
				b, err := ratelimiter.NewBucket(newStore(t), testConfig, ratelimiter.WithBucketClock(clk.Now))
				require.NoError(t, err)

				var allowed atomic.Int32
				var wg sync.WaitGroup
				for range 20 {
					wg.Add(1)
					go func() {
						defer wg.Done()
						res, err := b.Allow(ctx, "shared")
						if err == nil && res.Allowed {
							allowed.Add(1)
						}
					}()
				}
				wg.Wait()
				assert.Equal(t, int32(3), allowed.Load())
			})
		})
	}
}

func TestRedisStore_ExpiresIdleBuckets(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	b, err := ratelimiter.NewBucket(ratelimiter.NewRedisStore(client, "rl:"), testConfig)
	require.NoError(t, err)
	_, err = b.Allow(context.Background(), "k")
	require.NoError(t, err)

	require.True(t, mr.Exists("rl:k"))
	assert.Positive(t, mr.TTL("rl:k"))
	mr.FastForward(time.Minute)
	assert.False(t, mr.Exists("rl:k"))
}

func TestMemoryStore_RemoveIdle(t *testing.T) {
	t.Parallel()

	s := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	defer s.Close()
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	_, err := s.Take(context.Background(), "old", 1, testConfig, now)
	require.NoError(t, err)
	_, err = s.Take(context.Background(), "fresh", 1, testConfig, now.Add(59*time.Minute))
	require.NoError(t, err)

	assert.Equal(t, 1, s.RemoveIdle(now.Add(61*time.Minute)))
	assert.Equal(t, 1, s.Len())
	s.Close()
}

func TestNewBucket_InvalidConfig(t *testing.T) {
	t.Parallel()

	for _, cfg := range []ratelimiter.Config{
		{Capacity: 0, RefillRate: 1, RefillInterval: time.Second},
		{Capacity: 1, RefillRate: 0, RefillInterval: time.Second},
		{Capacity: 1, RefillRate: 1},
	} {
		_, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0)), cfg)
		assert.ErrorIs(t, err, ratelimiter.ErrInvalidConfig)
	}

	b, err := ratelimiter.NewBucket(ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0)), testConfig)
	require.NoError(t, err)
	_, err = b.AllowN(context.Background(), "k", 0)
	assert.ErrorIs(t, err, ratelimiter.ErrInvalidTokenCount)
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	clk := newClock()
	store := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	defer store.Close()
	b, err := ratelimiter.NewBucket(store, ratelimiter.Config{Capacity: 2, RefillRate: 1, RefillInterval: time.Minute},
		ratelimiter.WithBucketClock(clk.Now))
	require.NoError(t, err)

	h := ratelimiter.Middleware(b, ratelimiter.ByClientIP, ratelimiter.WithScope("auth"))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }),
	)

	call := func(remote string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		r.RemoteAddr = remote
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, call("192.0.2.1:1000").Code)
	rec := call("192.0.2.1:1001")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = call("192.0.2.1:1002")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"too many requests"}`, rec.Body.String())

	assert.Equal(t, http.StatusNoContent, call("192.0.2.2:1000").Code)
}

func TestMiddleware_StoreFailureLetsRequestsThrough(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	b, err := ratelimiter.NewBucket(ratelimiter.NewRedisStore(client, "rl:"), testConfig)
	require.NoError(t, err)

	h := ratelimiter.Middleware(b, ratelimiter.ByClientIP)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }),
	)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
