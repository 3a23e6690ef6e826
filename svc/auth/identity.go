package auth

import (
	"context"
	"slices"
	"time"
)

// Role is the coarse authorization level of an identity.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleUser
}

// Identity is a registered account. Identities are soft-deleted, never removed.
type Identity struct {
	ID           int64
	Email        string
	PasswordHash string
	FirstName    string
	LastName     string
	Role         Role
	IsActive     bool
	IsSuperuser  bool
	IsDeleted    bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CanAuthenticate reports whether the identity may obtain or use tokens.
func (i *Identity) CanAuthenticate() bool {
	return i.IsActive && !i.IsDeleted
}

// HasRole reports whether the identity holds one of roles. Superusers hold
// RoleAdmin implicitly.
func (i *Identity) HasRole(roles ...Role) bool {
	if slices.Contains(roles, i.Role) {
		return true
	}
	return i.IsSuperuser && slices.Contains(roles, RoleAdmin)
}

// IdentityStorage persists identities. Lookups return ErrIdentityNotFound
// when nothing matches.
type IdentityStorage interface {
	GetIdentityByID(ctx context.Context, id int64) (*Identity, error)
	GetIdentityByEmail(ctx context.Context, email string) (*Identity, error)
	// CreateIdentity inserts identity and returns it with ID and timestamps set.
	CreateIdentity(ctx context.Context, identity *Identity) (*Identity, error)
	UpdateIdentity(ctx context.Context, identity *Identity) error
}

// ChallengeStorage persists OTP challenges keyed by email.
type ChallengeStorage interface {
	// ReplaceChallenge atomically removes any challenge for the email and
	// stores c in its place.
	ReplaceChallenge(ctx context.Context, c Challenge) error
	// GetChallenge returns ErrChallengeNotFound when no challenge exists.
	GetChallenge(ctx context.Context, email string) (*Challenge, error)
	// DeleteChallenge is a no-op when no challenge exists.
	DeleteChallenge(ctx context.Context, email string) error
	// DeleteChallengesBefore removes challenges created before cutoff.
	DeleteChallengesBefore(ctx context.Context, cutoff time.Time) (int, error)
}
