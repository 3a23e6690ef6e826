package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authcore/svc/auth"
)

func TestGate_Resolve(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	tokens := auth.NewTokenService(newSigner(t, newTestClock()))

	access, err := tokens.Issue(5, auth.AccessToken, 0)
	require.NoError(t, err)

	t.Run("active identity", func(t *testing.T) {
		t.Parallel()
		store := &mockIdentityStorage{}
		want := &auth.Identity{ID: 5, Email: "a@x.com", Role: auth.RoleUser, IsActive: true}
		store.On("GetIdentityByID", mock.Anything, int64(5)).Return(want, nil).Once()

		got, err := auth.NewGate(tokens, store).Resolve(ctx, access)
		require.NoError(t, err)
		assert.Equal(t, want, got)
		store.AssertExpectations(t)
	})

	t.Run("missing identity", func(t *testing.T) {
		t.Parallel()
		store := &mockIdentityStorage{}
		store.On("GetIdentityByID", mock.Anything, int64(5)).Return(nil, auth.ErrIdentityNotFound).Once()

		_, err := auth.NewGate(tokens, store).Resolve(ctx, access)
		assert.ErrorIs(t, err, auth.ErrIdentityNotFound)
	})

	t.Run("soft deleted identity", func(t *testing.T) {
		t.Parallel()
		store := &mockIdentityStorage{}
		store.On("GetIdentityByID", mock.Anything, int64(5)).
			Return(&auth.Identity{ID: 5, IsActive: true, IsDeleted: true}, nil).Once()

		_, err := auth.NewGate(tokens, store).Resolve(ctx, access)
		assert.ErrorIs(t, err, auth.ErrIdentityNotFound)
	})

	t.Run("inactive identity", func(t *testing.T) {
		t.Parallel()
		store := &mockIdentityStorage{}
		store.On("GetIdentityByID", mock.Anything, int64(5)).
			Return(&auth.Identity{ID: 5}, nil).Once()

		_, err := auth.NewGate(tokens, store).Resolve(ctx, access)
		assert.ErrorIs(t, err, auth.ErrAccountInactive)
	})

	t.Run("refresh token rejected before storage", func(t *testing.T) {
		t.Parallel()
		store := &mockIdentityStorage{}
		refresh, err := tokens.Issue(5, auth.RefreshToken, 0)
		require.NoError(t, err)

		_, err = auth.NewGate(tokens, store).Resolve(ctx, refresh)
		assert.ErrorIs(t, err, auth.ErrTokenClassMismatch)
		store.AssertNotCalled(t, "GetIdentityByID", mock.Anything, mock.Anything)
	})

	t.Run("storage failure is wrapped", func(t *testing.T) {
		t.Parallel()
		store := &mockIdentityStorage{}
		boom := errors.New("connection reset")
		store.On("GetIdentityByID", mock.Anything, int64(5)).Return(nil, boom).Once()

		_, err := auth.NewGate(tokens, store).Resolve(ctx, access)
		assert.ErrorIs(t, err, boom)
		assert.False(t, auth.IsUnauthorized(err))
	})
}

func TestGate_RequireRole(t *testing.T) {
	t.Parallel()
	gate := auth.NewGate(nil, nil)

	user := &auth.Identity{ID: 1, Role: auth.RoleUser}
	admin := &auth.Identity{ID: 2, Role: auth.RoleAdmin}
	superuser := &auth.Identity{ID: 3, Role: auth.RoleUser, IsSuperuser: true}

	assert.ErrorIs(t, gate.RequireRole(user, auth.RoleAdmin), auth.ErrForbidden)
	assert.NoError(t, gate.RequireRole(admin, auth.RoleAdmin))
	assert.NoError(t, gate.RequireRole(superuser, auth.RoleAdmin))
	assert.NoError(t, gate.RequireRole(user, auth.RoleAdmin, auth.RoleUser))
	assert.ErrorIs(t, gate.RequireRole(admin, auth.RoleUser), auth.ErrForbidden)
	assert.ErrorIs(t, gate.RequireRole(nil, auth.RoleUser), auth.ErrForbidden)
	assert.ErrorIs(t, gate.RequireRole(admin), auth.ErrForbidden)
}
