package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrymomot/authcore/svc/auth"
)

const identityColumns = `id, email, password_hash, first_name, last_name, role,
	is_active, is_superuser, is_deleted, created_at, updated_at`

func scanIdentity(row *sql.Row) (*auth.Identity, error) {
	var (
		identity             auth.Identity
		role                 string
		createdAt, updatedAt int64
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
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}
	identity.Role = auth.Role(role)
	identity.CreatedAt = fromMillis(createdAt)
	identity.UpdatedAt = fromMillis(updatedAt)
	return &identity, nil
}

func (s *Store) GetIdentityByID(ctx context.Context, id int64) (*auth.Identity, error) {
	identity, err := scanIdentity(s.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}
	return identity, nil
}

func (s *Store) GetIdentityByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	identity, err := scanIdentity(s.db.QueryRowContext(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE email = ?`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, auth.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("get identity by email: %w", err)
	}
	return identity, nil
}

// CreateIdentity returns auth.ErrAccountAlreadyExists when the email is taken.
func (s *Store) CreateIdentity(ctx context.Context, identity *auth.Identity) (*auth.Identity, error) {
	createdAt, updatedAt := identity.CreatedAt, identity.UpdatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	created, err := scanIdentity(s.db.QueryRowContext(ctx, `
INSERT INTO identities (
	email, password_hash, first_name, last_name, role,
	is_active, is_superuser, is_deleted, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
RETURNING `+identityColumns,
		identity.Email,
		identity.PasswordHash,
		identity.FirstName,
		identity.LastName,
		string(identity.Role),
		identity.IsActive,
		identity.IsSuperuser,
		identity.IsDeleted,
		toMillis(createdAt),
		toMillis(updatedAt),
	))
	if err != nil {
		if isUniqueViolation(err) {
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
		updatedAt = s.now()
	}

	res, err := s.db.ExecContext(ctx, `
UPDATE identities SET
	password_hash = ?,
	first_name = ?,
	last_name = ?,
	role = ?,
	is_active = ?,
	is_superuser = ?,
	is_deleted = ?,
	updated_at = ?
WHERE id = ?`,
		identity.PasswordHash,
		identity.FirstName,
		identity.LastName,
		string(identity.Role),
		identity.IsActive,
		identity.IsSuperuser,
		identity.IsDeleted,
		toMillis(updatedAt),
		identity.ID,
	)
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	if n == 0 {
		return auth.ErrIdentityNotFound
	}
	return nil
}
