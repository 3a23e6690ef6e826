package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/authcore/pkg/jwt"
	"github.com/dmitrymomot/authcore/pkg/logger"
)

// ErrorHandler writes the response for a rejected request.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

type middlewareConfig struct {
	extractor    jwt.TokenExtractorFunc
	errorHandler ErrorHandler
	logger       *slog.Logger
}

type MiddlewareOption func(*middlewareConfig)

// WithTokenExtractor replaces the default Authorization header extractor.
func WithTokenExtractor(fn jwt.TokenExtractorFunc) MiddlewareOption {
	return func(c *middlewareConfig) {
		if fn != nil {
			c.extractor = fn
		}
	}
}

// WithErrorHandler replaces DefaultErrorHandler.
func WithErrorHandler(h ErrorHandler) MiddlewareOption {
	return func(c *middlewareConfig) {
		if h != nil {
			c.errorHandler = h
		}
	}
}

// WithMiddlewareLogger sets the logger used for rejected requests.
func WithMiddlewareLogger(l *slog.Logger) MiddlewareOption {
	return func(c *middlewareConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

func newMiddlewareConfig(opts []MiddlewareOption) *middlewareConfig {
	cfg := &middlewareConfig{
		extractor:    jwt.BearerTokenExtractor,
		errorHandler: DefaultErrorHandler,
		logger:       logger.Discard(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Authenticate resolves the bearer token on every request and stores the
// identity in the request context.
func Authenticate(gate *Gate, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	cfg := newMiddlewareConfig(opts)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := cfg.extractor(r)
			if err != nil {
				cfg.errorHandler(w, r, errors.Join(ErrTokenMalformed, err))
				return
			}

			identity, err := gate.Resolve(r.Context(), token)
			if err != nil {
				if HTTPStatus(err) == http.StatusInternalServerError {
					cfg.logger.ErrorContext(r.Context(), "failed to resolve identity",
						logger.Component("auth_middleware"),
						logger.Error(err),
					)
				}
				cfg.errorHandler(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireRoles rejects requests whose identity holds none of roles. It must
// run after Authenticate.
func RequireRoles(roles ...Role) func(http.Handler) http.Handler {
	cfg := newMiddlewareConfig(nil)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				cfg.errorHandler(w, r, ErrTokenMalformed)
				return
			}
			if !identity.HasRole(roles...) {
				cfg.errorHandler(w, r, ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// DefaultErrorHandler never reveals which token check failed.
func DefaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	switch status := HTTPStatus(err); status {
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
		http.Error(w, "invalid or expired token", status)
	case http.StatusForbidden:
		http.Error(w, "forbidden", status)
	default:
		http.Error(w, http.StatusText(status), status)
	}
}
