package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/authcore/pkg/pg"
	"github.com/dmitrymomot/authcore/svc/auth"
)

const identityColumns = `id, email, password_hash, first_name, last_name, role,
	is_active, is_superuser, is_deleted, created_at, updated_at`

func scanIdentity(row pgx.Row) (*auth.Identity, error) {
	var (
		identity auth.Identity
		role     string
	)
	if err := row.Scan(
		&identity.ID,
		&identity.Email,
		&identity.PasswordHash,
		&identity.FirstName,
		&identity.LastName,
		&role,
		&identity.IsActive,
		&identity.IsSuperuser,
		&identity.IsDeleted,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	); err != nil {
		return nil, err
	}
	identity.Role = auth.Role(role)
	return &identity, nil
}

func (s *Store) GetIdentityByID(ctx context.Context, id int64) (*auth.Identity, error) {
	identity, err := scanIdentity(s.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = $1`, id))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, auth.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return identity, nil
}

func (s *Store) GetIdentityByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	identity, err := scanIdentity(s.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE email = $1`, email))
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, auth.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("get identity by email: %w", err)
	}
	return identity, nil
}

// CreateIdentity returns auth.ErrAccountAlreadyExists when the email is taken.
func (s *Store) CreateIdentity(ctx context.Context, identity *auth.Identity) (*auth.Identity, error) {
	now := s.now().UTC()
	createdAt, updatedAt := identity.CreatedAt, identity.UpdatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	created, err := scanIdentity(s.pool.QueryRow(ctx, `
INSERT INTO identities (
	email, password_hash, first_name, last_name, role,
	is_active, is_superuser, is_deleted, created_at, updated_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING `+identityColumns,
		identity.Email,
		identity.PasswordHash,
		identity.FirstName,
		identity.LastName,
		string(identity.Role),
		identity.IsActive,
		identity.IsSuperuser,
		identity.IsDeleted,
		createdAt,
		updatedAt,
	))
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return nil, auth.ErrAccountAlreadyExists
		}
		return nil, fmt.Errorf("create identity: %w", err)
	}
	return created, nil
}

// UpdateIdentity overwrites every mutable column. The email is immutable.
func (s *Store) UpdateIdentity(ctx context.Context, identity *auth.Identity) error {
	updatedAt := identity.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = s.now().UTC()
	}

	tag, err := s.pool.Exec(ctx, `
UPDATE identities SET
	password_hash = $2,
	first_name = $3,
	last_name = $4,
	role = $5,
	is_active = $6,
	is_superuser = $7,
	is_deleted = $8,
	updated_at = $9
WHERE id = $1`,
		identity.ID,
		identity.PasswordHash,
		identity.FirstName,
		identity.LastName,
		string(identity.Role),
		identity.IsActive,
		identity.IsSuperuser,
		identity.IsDeleted,
		updatedAt,
	)
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrIdentityNotFound
	}
	return nil
}
