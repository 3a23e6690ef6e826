package auth

import (
	"context"
	"log/slog"
)

type identityContextKey struct{}

// WithIdentity stores the authenticated identity for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext returns the identity stored by WithIdentity.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey{}).(*Identity)
	return identity, ok && identity != nil
}

// IdentityLogExtractor adds identity_id to log records emitted with a
// request context that carries an identity.
func IdentityLogExtractor() func(ctx context.Context) (slog.Attr, bool) {
	return func(ctx context.Context) (slog.Attr, bool) {
		if identity, ok := IdentityFromContext(ctx); ok {
			return slog.Int64("identity_id", identity.ID), true
		}
		return slog.Attr{}, false
	}
}
