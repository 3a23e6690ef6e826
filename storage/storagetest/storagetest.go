// Package storagetest holds behavioural tests shared by every storage backend.
package storagetest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authcore/svc/auth"
	"github.com/dmitrymomot/authcore/svc/integration"
)

// Store is the full set of storage interfaces a backend provides.
type Store interface {
	auth.IdentityStorage
	auth.ChallengeStorage
	integration.CredentialStorage
}

var seq atomic.Int64

// uniqueEmail keeps tests independent when they share a database.
func uniqueEmail(prefix string) string {
	return fmt.Sprintf("%s-%d-%d@example.com", prefix, time.Now().UnixNano(), seq.Add(1))
}

// Run executes the whole suite against s.
func Run(t *testing.T, s Store) {
	t.Run("identities", func(t *testing.T) { testIdentities(t, s) })
	t.Run("challenges", func(t *testing.T) { testChallenges(t, s) })
	t.Run("credentials", func(t *testing.T) { testCredentials(t, s) })
	t.Run("concurrent credential upsert", func(t *testing.T) { testConcurrentUpsert(t, s) })
}

func createIdentity(t *testing.T, s Store, email string) *auth.Identity {
	t.Helper()
	identity, err := s.CreateIdentity(context.Background(), &auth.Identity{
		Email:        email,
		PasswordHash: "$2a$04$hash",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Role:         auth.RoleUser,
		IsActive:     true,
	})
	require.NoError(t, err)
	return identity
}

func testIdentities(t *testing.T, s Store) {
	ctx := context.Background()
	email := uniqueEmail("identity")

	created := createIdentity(t, s, email)
	assert.Positive(t, created.ID)
	assert.Equal(t, email, created.Email)
	assert.Equal(t, auth.RoleUser, created.Role)
	assert.True(t, created.IsActive)
	assert.False(t, created.CreatedAt.IsZero())

	byID, err := s.GetIdentityByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, email, byID.Email)
	assert.Equal(t, "Ada", byID.FirstName)

	byEmail, err := s.GetIdentityByEmail(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, created.ID, byEmail.ID)

	_, err = s.CreateIdentity(ctx, &auth.Identity{Email: email, PasswordHash: "x", Role: auth.RoleUser})
	assert.ErrorIs(t, err, auth.ErrAccountAlreadyExists)

	byID.IsActive = false
	byID.IsSuperuser = true
	byID.Role = auth.RoleAdmin
	byID.LastName = "Byron"
	require.NoError(t, s.UpdateIdentity(ctx, byID))

	updated, err := s.GetIdentityByID(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.True(t, updated.IsSuperuser)
	assert.Equal(t, auth.RoleAdmin, updated.Role)
	assert.Equal(t, "Byron", updated.LastName)

	_, err = s.GetIdentityByID(ctx, -1)
	assert.ErrorIs(t, err, auth.ErrIdentityNotFound)
	_, err = s.GetIdentityByEmail(ctx, uniqueEmail("missing"))
	assert.ErrorIs(t, err, auth.ErrIdentityNotFound)
	assert.ErrorIs(t, s.UpdateIdentity(ctx, &auth.Identity{ID: -1, Role: auth.RoleUser}), auth.ErrIdentityNotFound)
}

func testChallenges(t *testing.T, s Store) {
	ctx := context.Background()
	email := uniqueEmail("challenge")
	first := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	_, err := s.GetChallenge(ctx, email)
	assert.ErrorIs(t, err, auth.ErrChallengeNotFound)

	require.NoError(t, s.ReplaceChallenge(ctx, auth.Challenge{Email: email, Code: "111111", CreatedAt: first}))
	require.NoError(t, s.ReplaceChallenge(ctx, auth.Challenge{Email: email, Code: "222222", CreatedAt: first.Add(time.Minute)}))

	got, err := s.GetChallenge(ctx, email)
	require.NoError(t, err)
	assert.Equal(t, "222222", got.Code)
	assert.True(t, first.Add(time.Minute).Equal(got.CreatedAt))

	require.NoError(t, s.DeleteChallenge(ctx, email))
	require.NoError(t, s.DeleteChallenge(ctx, email))
	_, err = s.GetChallenge(ctx, email)
	assert.ErrorIs(t, err, auth.ErrChallengeNotFound)

	stale, fresh := uniqueEmail("stale"), uniqueEmail("fresh")
	ancient := time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.ReplaceChallenge(ctx, auth.Challenge{Email: stale, Code: "333333", CreatedAt: ancient}))
	require.NoError(t, s.ReplaceChallenge(ctx, auth.Challenge{Email: fresh, Code: "444444", CreatedAt: first}))

	n, err := s.DeleteChallengesBefore(ctx, ancient.Add(time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)
	_, err = s.GetChallenge(ctx, stale)
	assert.ErrorIs(t, err, auth.ErrChallengeNotFound)
	_, err = s.GetChallenge(ctx, fresh)
	assert.NoError(t, err)
}

func credentialRecord(identityID int64, at time.Time, access string) *integration.Record {
	return &integration.Record{
		IdentityID:            identityID,
		Provider:              integration.ProviderGoogleKeep,
		EncryptedAccessToken:  access,
		EncryptedRefreshToken: "enc-refresh",
		EncryptedClientSecret: "enc-secret",
		TokenURI:              "https://oauth2.googleapis.com/token",
		ClientID:              "client-id",
		Scopes:                []string{integration.KeepScope},
		CreatedAt:             at,
		UpdatedAt:             at,
		ExpiresAt:             at.Add(time.Hour),
		IsActive:              true,
	}
}

func testCredentials(t *testing.T, s Store) {
	ctx := context.Background()
	identity := createIdentity(t, s, uniqueEmail("credentials"))
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	_, err := s.GetActiveCredential(ctx, identity.ID, integration.ProviderGoogleKeep)
	assert.ErrorIs(t, err, integration.ErrCredentialsNotFound)

	first, err := s.UpsertActiveCredential(ctx, credentialRecord(identity.ID, at, "enc-access-1"))
	require.NoError(t, err)
	assert.True(t, first.IsActive)
	assert.Equal(t, []string{integration.KeepScope}, first.Scopes)

	second, err := s.UpsertActiveCredential(ctx, credentialRecord(identity.ID, at.Add(time.Hour), "enc-access-2"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.True(t, at.Equal(second.CreatedAt))
	assert.True(t, at.Add(2*time.Hour).Equal(second.ExpiresAt))

	active, err := s.GetActiveCredential(ctx, identity.ID, integration.ProviderGoogleKeep)
	require.NoError(t, err)
	assert.Equal(t, "enc-access-2", active.EncryptedAccessToken)
	assert.Equal(t, "enc-secret", active.EncryptedClientSecret)

	ok, err := s.DeactivateCredential(ctx, identity.ID, integration.ProviderGoogleKeep, at)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.DeactivateCredential(ctx, identity.ID, integration.ProviderGoogleKeep, at)
	require.NoError(t, err)
	assert.False(t, ok)

	third, err := s.UpsertActiveCredential(ctx, credentialRecord(identity.ID, at, "enc-access-3"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)

	// Expiry sweep only touches records already past their expiry.
	other := createIdentity(t, s, uniqueEmail("credentials-fresh"))
	_, err = s.UpsertActiveCredential(ctx, credentialRecord(other.ID, at.Add(10*time.Hour), "enc-fresh"))
	require.NoError(t, err)

	n, err := s.DeactivateExpiredCredentials(ctx, at.Add(5*time.Hour))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 1)

	_, err = s.GetActiveCredential(ctx, identity.ID, integration.ProviderGoogleKeep)
	assert.ErrorIs(t, err, integration.ErrCredentialsNotFound)
	_, err = s.GetActiveCredential(ctx, other.ID, integration.ProviderGoogleKeep)
	assert.NoError(t, err)

	// A record whose expiry equals the sweep instant counts as expired.
	edge := createIdentity(t, s, uniqueEmail("credentials-edge"))
	edgeRec, err := s.UpsertActiveCredential(ctx, credentialRecord(edge.ID, at.Add(20*time.Hour), "enc-edge"))
	require.NoError(t, err)
	require.True(t, edgeRec.Expired(edgeRec.ExpiresAt))

	_, err = s.DeactivateExpiredCredentials(ctx, edgeRec.ExpiresAt)
	require.NoError(t, err)
	_, err = s.GetActiveCredential(ctx, edge.ID, integration.ProviderGoogleKeep)
	assert.ErrorIs(t, err, integration.ErrCredentialsNotFound)
}

func testConcurrentUpsert(t *testing.T, s Store) {
	ctx := context.Background()
	identity := createIdentity(t, s, uniqueEmail("concurrent"))
	at := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.UpsertActiveCredential(ctx, credentialRecord(identity.ID, at, fmt.Sprintf("enc-%d", i)))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	_, err := s.GetActiveCredential(ctx, identity.ID, integration.ProviderGoogleKeep)
	require.NoError(t, err)
	ok, err := s.DeactivateCredential(ctx, identity.ID, integration.ProviderGoogleKeep, at)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = s.GetActiveCredential(ctx, identity.ID, integration.ProviderGoogleKeep)
	assert.ErrorIs(t, err, integration.ErrCredentialsNotFound)
}
