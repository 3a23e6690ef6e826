package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ProviderGoogleKeep names credentials granted for the Google Keep API.
const ProviderGoogleKeep = "google_keep"

// Credentials are the plaintext secrets returned by a provider exchange or
// refresh. They live only in memory.
type Credentials struct {
	AccessToken  string
	RefreshToken string
	TokenURI     string
	ClientID     string
	ClientSecret string
	Scopes       []string
	// Expiry is what the provider reported. The vault does not persist it.
	Expiry time.Time
}

// Record is the persisted form of Credentials. Secret fields hold
// ciphertext.
type Record struct {
	ID                    uuid.UUID
	IdentityID            int64
	Provider              string
	EncryptedAccessToken  string
	EncryptedRefreshToken string
	EncryptedClientSecret string
	TokenURI              string
	ClientID              string
	Scopes                []string
	CreatedAt             time.Time
	UpdatedAt             time.Time
	ExpiresAt             time.Time
	IsActive              bool
}

// Expired reports whether the record's expiry is at or before now.
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// CredentialStorage persists credential records. At most one active record
// exists per (identity, provider).
type CredentialStorage interface {
	// UpsertActiveCredential overwrites the active record for the record's
	// identity and provider, or inserts it when none exists. ID and CreatedAt
	// of an existing record are preserved.
	UpsertActiveCredential(ctx context.Context, rec *Record) (*Record, error)
	// GetActiveCredential returns ErrCredentialsNotFound when there is no
	// active record.
	GetActiveCredential(ctx context.Context, identityID int64, provider string) (*Record, error)
	// DeactivateCredential reports whether an active record existed.
	DeactivateCredential(ctx context.Context, identityID int64, provider string, now time.Time) (bool, error)
	// DeactivateExpiredCredentials deactivates every active record whose
	// expiry is before now and returns how many changed.
	DeactivateExpiredCredentials(ctx context.Context, now time.Time) (int, error)
}
