package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/authcore/pkg/logger"
	"github.com/dmitrymomot/authcore/pkg/secrets"
)

// DefaultCredentialLead is how long a stored access token is treated as
// valid, regardless of the lifetime the provider reported.
const DefaultCredentialLead = time.Hour

// Vault stores provider credentials encrypted at rest, one active set per
// identity for a single provider.
type Vault struct {
	storage  CredentialStorage
	cipher   *secrets.Cipher
	provider Provider
	lead     time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

type VaultOption func(*Vault)

// WithCredentialLead overrides DefaultCredentialLead.
func WithCredentialLead(d time.Duration) VaultOption {
	return func(v *Vault) {
		if d > 0 {
			v.lead = d
		}
	}
}

// WithVaultClock overrides the time source.
func WithVaultClock(now func() time.Time) VaultOption {
	return func(v *Vault) {
		if now != nil {
			v.now = now
		}
	}
}

// WithVaultLogger sets the logger. Nil is ignored.
func WithVaultLogger(l *slog.Logger) VaultOption {
	return func(v *Vault) {
		if l != nil {
			v.logger = l
		}
	}
}

// NewVault stores credentials through storage, encrypted with cipher.
func NewVault(storage CredentialStorage, cipher *secrets.Cipher, provider Provider, opts ...VaultOption) *Vault {
	v := &Vault{
		storage:  storage,
		cipher:   cipher,
		provider: provider,
		lead:     DefaultCredentialLead,
		now:      time.Now,
		logger:   logger.Discard(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Store encrypts creds and saves them as the active record for identityID.
func (v *Vault) Store(ctx context.Context, identityID int64, creds Credentials) (*Record, error) {
	access, err := v.cipher.Encrypt(creds.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("encrypt access token: %w", err)
	}
	refresh, err := v.cipher.Encrypt(creds.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("encrypt refresh token: %w", err)
	}
	clientSecret, err := v.cipher.Encrypt(creds.ClientSecret)
	if err != nil {
		return nil, fmt.Errorf("encrypt client secret: %w", err)
	}

	now := v.now().UTC()
	rec, err := v.storage.UpsertActiveCredential(ctx, &Record{
		IdentityID:            identityID,
		Provider:              v.provider.Name(),
		EncryptedAccessToken:  access,
		EncryptedRefreshToken: refresh,
		EncryptedClientSecret: clientSecret,
		TokenURI:              creds.TokenURI,
		ClientID:              creds.ClientID,
		Scopes:                creds.Scopes,
		CreatedAt:             now,
		UpdatedAt:             now,
		ExpiresAt:             now.Add(v.lead),
		IsActive:              true,
	})
	if err != nil {
		return nil, fmt.Errorf("save credentials: %w", err)
	}
	return rec, nil
}

// Fetch returns the decrypted active credentials for identityID, or
// ErrCredentialsNotFound.
func (v *Vault) Fetch(ctx context.Context, identityID int64) (*Credentials, error) {
	rec, err := v.active(ctx, identityID)
	if err != nil {
		return nil, err
	}
	return v.decrypt(ctx, rec)
}

// RefreshIfExpired exchanges the stored refresh token when the active
// record has expired. It reports whether new credentials were stored and
// never returns an error.
func (v *Vault) RefreshIfExpired(ctx context.Context, identityID int64) bool {
	log := v.logger.With(logger.Component("vault"), logger.IdentityID(identityID), logger.Provider(v.provider.Name()))

	rec, err := v.active(ctx, identityID)
	if err != nil {
		if !errors.Is(err, ErrCredentialsNotFound) {
			log.WarnContext(ctx, "credential refresh skipped", logger.Error(err))
		}
		return false
	}
	if !rec.Expired(v.now()) {
		return false
	}

	creds, err := v.decrypt(ctx, rec)
	if err != nil {
		return false
	}
	if creds.RefreshToken == "" {
		log.DebugContext(ctx, "expired credentials have no refresh token")
		return false
	}

	refreshed, err := v.provider.Refresh(ctx, *creds)
	if err != nil {
		log.WarnContext(ctx, "credential refresh failed", logger.Error(err))
		return false
	}
	if refreshed.RefreshToken == "" {
		refreshed.RefreshToken = creds.RefreshToken
	}

	if _, err := v.Store(ctx, identityID, *refreshed); err != nil {
		log.ErrorContext(ctx, "failed to store refreshed credentials", logger.Error(err))
		return false
	}
	log.InfoContext(ctx, "credentials refreshed")
	return true
}

// Revoke deactivates the active record and reports whether one existed.
func (v *Vault) Revoke(ctx context.Context, identityID int64) (bool, error) {
	ok, err := v.storage.DeactivateCredential(ctx, identityID, v.provider.Name(), v.now().UTC())
	if err != nil {
		return false, fmt.Errorf("deactivate credentials: %w", err)
	}
	return ok, nil
}

// PurgeExpired deactivates every expired active record and returns the count.
func (v *Vault) PurgeExpired(ctx context.Context) (int, error) {
	n, err := v.storage.DeactivateExpiredCredentials(ctx, v.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("deactivate expired credentials: %w", err)
	}
	if n > 0 {
		v.logger.InfoContext(ctx, "expired credentials purged",
			logger.Component("vault"),
			logger.Count(n),
		)
	}
	return n, nil
}

// IsConnected reports whether identityID has an active, unexpired record.
func (v *Vault) IsConnected(ctx context.Context, identityID int64) (bool, error) {
	rec, err := v.active(ctx, identityID)
	if errors.Is(err, ErrCredentialsNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !rec.Expired(v.now()), nil
}

func (v *Vault) active(ctx context.Context, identityID int64) (*Record, error) {
	rec, err := v.storage.GetActiveCredential(ctx, identityID, v.provider.Name())
	if err != nil {
		if errors.Is(err, ErrCredentialsNotFound) {
			return nil, ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	return rec, nil
}

func (v *Vault) decrypt(ctx context.Context, rec *Record) (*Credentials, error) {
	fail := func(field string, err error) error {
		v.logger.ErrorContext(ctx, "stored credentials cannot be decrypted",
			logger.Component("vault"),
			logger.IdentityID(rec.IdentityID),
			logger.Provider(rec.Provider),
			slog.String("field", field),
			logger.Error(err),
		)
		return fmt.Errorf("decrypt %s: %w", field, err)
	}

	access, err := v.cipher.Decrypt(rec.EncryptedAccessToken)
	if err != nil {
		return nil, fail("access token", err)
	}
	refresh, err := v.cipher.Decrypt(rec.EncryptedRefreshToken)
	if err != nil {
		return nil, fail("refresh token", err)
	}
	clientSecret, err := v.cipher.Decrypt(rec.EncryptedClientSecret)
	if err != nil {
		return nil, fail("client secret", err)
	}

	return &Credentials{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenURI:     rec.TokenURI,
		ClientID:     rec.ClientID,
		ClientSecret: clientSecret,
		Scopes:       rec.Scopes,
		Expiry:       rec.ExpiresAt,
	}, nil
}
