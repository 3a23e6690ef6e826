package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/authcore/pkg/pg"
	"github.com/dmitrymomot/authcore/svc/integration"
)

const credentialColumns = `id, identity_id, provider,
	encrypted_access_token, encrypted_refresh_token, encrypted_client_secret,
	token_uri, client_id, scopes, created_at, updated_at, expires_at, is_active`

func scanCredential(row pgx.Row) (*integration.Record, error) {
	var rec integration.Record
	if err := row.Scan(
		&rec.ID,
		&rec.IdentityID,
		&rec.Provider,
		&rec.EncryptedAccessToken,
		&rec.EncryptedRefreshToken,
		&rec.EncryptedClientSecret,
		&rec.TokenURI,
		&rec.ClientID,
		&rec.Scopes,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&rec.ExpiresAt,
		&rec.IsActive,
	); err != nil {
		return nil, err
	}
	return &rec, nil
}

// UpsertActiveCredential relies on the partial unique index over active
// (identity_id, provider) rows, so concurrent writers converge on one row.
func (s *Store) UpsertActiveCredential(ctx context.Context, rec *integration.Record) (*integration.Record, error) {
	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	scopes := rec.Scopes
	if scopes == nil {
		scopes = []string{}
	}

	saved, err := scanCredential(s.pool.QueryRow(ctx, `
INSERT INTO integration_credentials (
	id, identity_id, provider,
	encrypted_access_token, encrypted_refresh_token, encrypted_client_secret,
	token_uri, client_id, scopes, created_at, updated_at, expires_at, is_active
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE)
ON CONFLICT (identity_id, provider) WHERE is_active DO UPDATE SET
	encrypted_access_token = excluded.encrypted_access_token,
	encrypted_refresh_token = excluded.encrypted_refresh_token,
	encrypted_client_secret = excluded.encrypted_client_secret,
	token_uri = excluded.token_uri,
	client_id = excluded.client_id,
	scopes = excluded.scopes,
	updated_at = excluded.updated_at,
	expires_at = excluded.expires_at
RETURNING `+credentialColumns,
		id,
		rec.IdentityID,
		rec.Provider,
		rec.EncryptedAccessToken,
		rec.EncryptedRefreshToken,
		rec.EncryptedClientSecret,
		rec.TokenURI,
		rec.ClientID,
		scopes,
		rec.CreatedAt.UTC(),
		rec.UpdatedAt.UTC(),
		rec.ExpiresAt.UTC(),
	))
	if err != nil {
		return nil, fmt.Errorf("upsert credential: %w", err)
	}
	return saved, nil
}

func (s *Store) GetActiveCredential(ctx context.Context, identityID int64, provider string) (*integration.Record, error) {
	rec, err := scanCredential(s.pool.QueryRow(ctx, `
SELECT `+credentialColumns+`
FROM integration_credentials
WHERE identity_id = $1 AND provider = $2 AND is_active`,
		identityID, provider,
	))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, integration.ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return rec, nil
}

func (s *Store) DeactivateCredential(ctx context.Context, identityID int64, provider string, now time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
UPDATE integration_credentials
SET is_active = FALSE, updated_at = $3
WHERE identity_id = $1 AND provider = $2 AND is_active`,
		identityID, provider, now.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("deactivate credential: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) DeactivateExpiredCredentials(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
UPDATE integration_credentials
SET is_active = FALSE, updated_at = $1
WHERE is_active AND expires_at <= $1`,
		now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired credentials: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
