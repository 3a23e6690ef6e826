package integration

import (
	"context"
	"time"
)

// StateStore maps handshake state tokens to the identity that started the
// handshake. Consume must be atomic: a state can be consumed at most once.
type StateStore interface {
	Save(ctx context.Context, state string, identityID int64, ttl time.Duration) error
	// Consume removes state and returns its identity, or ErrStateNotFound if
	// the state is unknown, expired, or already consumed.
	Consume(ctx context.Context, state string) (int64, error)
}
