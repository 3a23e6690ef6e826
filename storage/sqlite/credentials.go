package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/authcore/svc/integration"
)

const credentialColumns = `id, identity_id, provider,
	encrypted_access_token, encrypted_refresh_token, encrypted_client_secret,
	token_uri, client_id, scopes, created_at, updated_at, expires_at, is_active`

func scanCredential(row *sql.Row) (*integration.Record, error) {
	var (
		rec                             integration.Record
		id, scopes                      string
		createdAt, updatedAt, expiresAt int64
	)
	if err := row.Scan(
		&id,
		&rec.IdentityID,
		&rec.Provider,
		&rec.EncryptedAccessToken,
		&rec.EncryptedRefreshToken,
		&rec.EncryptedClientSecret,
		&rec.TokenURI,
		&rec.ClientID,
		&scopes,
		&createdAt,
		&updatedAt,
		&expiresAt,
		&rec.IsActive,
	); err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("parse credential id: %w", err)
	}
	rec.ID = parsed
	if rec.Scopes, err = decodeScopes(scopes); err != nil {
		return nil, err
	}
	rec.CreatedAt = fromMillis(createdAt)
	rec.UpdatedAt = fromMillis(updatedAt)
	rec.ExpiresAt = fromMillis(expiresAt)
	return &rec, nil
}

// UpsertActiveCredential relies on the partial unique index over active
// (identity_id, provider) rows, so concurrent writers converge on one row.
func (s *Store) UpsertActiveCredential(ctx context.Context, rec *integration.Record) (*integration.Record, error) {
	id := rec.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	scopes, err := encodeScopes(rec.Scopes)
	if err != nil {
		return nil, err
	}

	saved, err := scanCredential(s.db.QueryRowContext(ctx, `
INSERT INTO integration_credentials (
	id, identity_id, provider,
	encrypted_access_token, encrypted_refresh_token, encrypted_client_secret,
	token_uri, client_id, scopes, created_at, updated_at, expires_at, is_active
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
ON CONFLICT(identity_id, provider) WHERE is_active = 1 DO UPDATE SET
	encrypted_access_token = excluded.encrypted_access_token,
	encrypted_refresh_token = excluded.encrypted_refresh_token,
	encrypted_client_secret = excluded.encrypted_client_secret,
	token_uri = excluded.token_uri,
	client_id = excluded.client_id,
	scopes = excluded.scopes,
	updated_at = excluded.updated_at,
	expires_at = excluded.expires_at
RETURNING `+credentialColumns,
		id.String(),
		rec.IdentityID,
		rec.Provider,
		rec.EncryptedAccessToken,
		rec.EncryptedRefreshToken,
		rec.EncryptedClientSecret,
		rec.TokenURI,
		rec.ClientID,
		scopes,
		toMillis(rec.CreatedAt),
		toMillis(rec.UpdatedAt),
		toMillis(rec.ExpiresAt),
	))
	if err != nil {
		return nil, fmt.Errorf("upsert credential: %w", err)
	}
	return saved, nil
}

func (s *Store) GetActiveCredential(ctx context.Context, identityID int64, provider string) (*integration.Record, error) {
	rec, err := scanCredential(s.db.QueryRowContext(ctx, `
SELECT `+credentialColumns+`
FROM integration_credentials
WHERE identity_id = ? AND provider = ? AND is_active = 1`,
		identityID, provider,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, integration.ErrCredentialsNotFound
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return rec, nil
}

func (s *Store) DeactivateCredential(ctx context.Context, identityID int64, provider string, now time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
UPDATE integration_credentials
SET is_active = 0, updated_at = ?
WHERE identity_id = ? AND provider = ? AND is_active = 1`,
		toMillis(now), identityID, provider,
	)
	if err != nil {
		return false, fmt.Errorf("deactivate credential: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deactivate credential: %w", err)
	}
	return n > 0, nil
}

func (s *Store) DeactivateExpiredCredentials(ctx context.Context, now time.Time) (int, error) {
	at := toMillis(now)
	res, err := s.db.ExecContext(ctx, `
UPDATE integration_credentials
SET is_active = 0, updated_at = ?
WHERE is_active = 1 AND expires_at <= ?`,
		at, at,
	)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired credentials: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deactivate expired credentials: %w", err)
	}
	return int(n), nil
}
