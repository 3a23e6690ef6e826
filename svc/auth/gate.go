package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/authcore/pkg/logger"
)

// Gate turns a bearer token into an identity and enforces role checks.
type Gate struct {
	tokens     *TokenService
	identities IdentityStorage
	logger     *slog.Logger
}

type GateOption func(*Gate)

// WithGateLogger sets the logger. Nil is ignored.
func WithGateLogger(l *slog.Logger) GateOption {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// NewGate resolves access tokens against identities.
func NewGate(tokens *TokenService, identities IdentityStorage, opts ...GateOption) *Gate {
	g := &Gate{
		tokens:     tokens,
		identities: identities,
		logger:     logger.Discard(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Resolve verifies an access token and loads its identity. Deleted
// identities resolve as ErrIdentityNotFound.
func (g *Gate) Resolve(ctx context.Context, bearer string) (*Identity, error) {
	subjectID, err := g.tokens.Verify(bearer, AccessToken)
	if err != nil {
		g.logger.DebugContext(ctx, "access token rejected",
			logger.Component("gate"),
			logger.Error(err),
		)
		return nil, err
	}

	identity, err := g.identities.GetIdentityByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, ErrIdentityNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("load identity: %w", err)
	}
	if identity.IsDeleted {
		return nil, ErrIdentityNotFound
	}
	if !identity.IsActive {
		return nil, ErrAccountInactive
	}
	return identity, nil
}

// RequireRole returns ErrForbidden unless identity holds one of allowed.
func (g *Gate) RequireRole(identity *Identity, allowed ...Role) error {
	if identity == nil || !identity.HasRole(allowed...) {
		return ErrForbidden
	}
	return nil
}
