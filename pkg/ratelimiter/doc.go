// Package ratelimiter implements a token bucket limiter with in-memory and
// Redis stores, plus HTTP middleware that answers 429 when a key runs dry.
//
//	store := ratelimiter.NewMemoryStore()
//	defer store.Close()
//
//	limiter, err := ratelimiter.NewBucket(store, ratelimiter.Config{
//		Capacity:       10,
//		RefillRate:     1,
//		RefillInterval: 6 * time.Second,
//	})
//	if err != nil {
//		return err
//	}
//	r.With(ratelimiter.Middleware(limiter, ratelimiter.ByClientIP)).Post("/auth/login", login)
//
// A denied request does not consume tokens, so a client that backs off for
// one refill interval is always let through again.
package ratelimiter
