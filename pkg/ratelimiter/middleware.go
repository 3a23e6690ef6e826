package ratelimiter

import (
	"encoding/json"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/dmitrymomot/authcore/pkg/clientip"
	"github.com/dmitrymomot/authcore/pkg/logger"
)

// KeyFunc picks the bucket for a request. An empty key skips limiting.
type KeyFunc func(r *http.Request) string

// ByClientIP keys on the address resolved by clientip.Middleware, falling
// back to the socket address.
func ByClientIP(r *http.Request) string {
	if ip := clientip.FromContext(r.Context()); ip != "" {
		return "ip:" + ip
	}
	if ip := clientip.GetIP(r, false); ip != "" {
		return "ip:" + ip
	}
	return ""
}

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middlewareConfig)

type middlewareConfig struct {
	log   *slog.Logger
	scope string
}

// WithMiddlewareLogger logs store failures and rejections.
func WithMiddlewareLogger(log *slog.Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		if log != nil {
			c.log = log
		}
	}
}

// WithScope prefixes keys so separate route groups do not share buckets.
func WithScope(scope string) MiddlewareOption {
	return func(c *middlewareConfig) { c.scope = scope }
}

// Middleware rejects requests with 429 once their key's bucket is empty.
// Store failures let the request through.
func Middleware(l *Bucket, key KeyFunc, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{log: logger.Discard()}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k == "" {
				next.ServeHTTP(w, r)
				return
			}
			if cfg.scope != "" {
				k = cfg.scope + ":" + k
			}

			res, err := l.Allow(r.Context(), k)
			if err != nil {
				cfg.log.WarnContext(r.Context(), "rate limit check failed",
					logger.Component("ratelimiter"),
					logger.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				retry := int(math.Ceil(res.RetryAfter(l.Now()).Seconds()))
				h.Set("Retry-After", strconv.Itoa(max(retry, 1)))
				cfg.log.InfoContext(r.Context(), "rate limit exceeded",
					logger.Component("ratelimiter"),
					slog.String("key", k),
				)
				h.Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "too many requests"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
