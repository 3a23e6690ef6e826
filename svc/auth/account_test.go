package auth_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authcore/pkg/logger"
	"github.com/dmitrymomot/authcore/pkg/password"
	"github.com/dmitrymomot/authcore/pkg/validator"
	"github.com/dmitrymomot/authcore/svc/auth"
)

type accountFixture struct {
	accounts   *auth.AccountService
	identities *memoryIdentityStorage
	challenges *memoryChallengeStorage
	notifier   *recordingNotifier
	tokens     *auth.TokenService
	clock      *testClock
}

func newAccountFixture(t *testing.T, opts ...auth.AccountOption) *accountFixture {
	t.Helper()
	f := &accountFixture{
		identities: newMemoryIdentityStorage(),
		challenges: newMemoryChallengeStorage(),
		notifier:   &recordingNotifier{},
		clock:      newTestClock(),
	}
	f.tokens = auth.NewTokenService(newSigner(t, f.clock))
	challenges := auth.NewChallengeService(f.challenges, auth.WithChallengeClock(f.clock.Now))
	hasher := password.NewHasher(password.WithCost(4))
	opts = append([]auth.AccountOption{auth.WithAccountClock(f.clock.Now)}, opts...)
	f.accounts = auth.NewAccountService(f.identities, challenges, hasher, f.tokens, f.notifier, opts...)
	return f
}

func (f *accountFixture) seedChallenge(t *testing.T, email, code string) {
	t.Helper()
	require.NoError(t, f.challenges.ReplaceChallenge(context.Background(), auth.Challenge{
		Email:     email,
		Code:      code,
		CreatedAt: f.clock.Now(),
	}))
}

func registerInput(email, code string) auth.RegisterInput {
	return auth.RegisterInput{
		Email:     email,
		Password:  "correct horse battery",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Code:      code,
	}
}

func TestAccountService_Register(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAccountFixture(t)

	f.seedChallenge(t, "a@x.com", "123456")
	identity, err := f.accounts.Register(ctx, registerInput("a@x.com", "123456"))
	require.NoError(t, err)
	assert.Positive(t, identity.ID)
	assert.Equal(t, "a@x.com", identity.Email)
	assert.Equal(t, auth.RoleUser, identity.Role)
	assert.True(t, identity.IsActive)
	assert.NotEqual(t, "correct horse battery", identity.PasswordHash)
	assert.Zero(t, f.challenges.len(), "challenge is single use")

	f.seedChallenge(t, "a@x.com", "123456")
	_, err = f.accounts.Register(ctx, registerInput("a@x.com", "123456"))
	assert.ErrorIs(t, err, auth.ErrAccountAlreadyExists)
}

func TestAccountService_RegisterReactivatesInactive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAccountFixture(t)

	existing, err := f.identities.CreateIdentity(ctx, &auth.Identity{Email: "b@x.com", Role: auth.RoleUser})
	require.NoError(t, err)

	f.seedChallenge(t, "b@x.com", "654321")
	identity, err := f.accounts.Register(ctx, registerInput("B@x.com", "654321"))
	require.NoError(t, err)
	assert.Equal(t, existing.ID, identity.ID)
	assert.True(t, identity.IsActive)

	stored, err := f.identities.GetIdentityByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsActive)
	assert.NotEmpty(t, stored.PasswordHash)
}

func TestAccountService_RegisterChallengeFailures(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("no challenge", func(t *testing.T) {
		t.Parallel()
		f := newAccountFixture(t)
		_, err := f.accounts.Register(ctx, registerInput("a@x.com", "123456"))
		assert.ErrorIs(t, err, auth.ErrChallengeNotFound)
	})

	t.Run("wrong code", func(t *testing.T) {
		t.Parallel()
		f := newAccountFixture(t)
		f.seedChallenge(t, "a@x.com", "123456")
		_, err := f.accounts.Register(ctx, registerInput("a@x.com", "654321"))
		assert.ErrorIs(t, err, auth.ErrChallengeMismatch)
		assert.Equal(t, 1, f.challenges.len())
	})

	t.Run("expired code", func(t *testing.T) {
		t.Parallel()
		f := newAccountFixture(t)
		f.seedChallenge(t, "a@x.com", "123456")
		f.clock.Advance(5*time.Minute + time.Second)
		_, err := f.accounts.Register(ctx, registerInput("a@x.com", "123456"))
		assert.ErrorIs(t, err, auth.ErrChallengeExpired)
	})
}

func TestAccountService_RegisterValidation(t *testing.T) {
	t.Parallel()
	f := newAccountFixture(t)

	in := registerInput("not-an-email", "12")
	in.Password = "short"
	_, err := f.accounts.Register(context.Background(), in)
	require.ErrorIs(t, err, validator.ErrValidationFailed)

	errs := validator.ExtractValidationErrors(err)
	assert.True(t, errs.Has("email"))
	assert.True(t, errs.Has("password"))
	assert.True(t, errs.Has("code"))
}

func TestAccountService_Login(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAccountFixture(t)

	f.seedChallenge(t, "a@x.com", "123456")
	identity, err := f.accounts.Register(ctx, registerInput("a@x.com", "123456"))
	require.NoError(t, err)

	for range 3 {
		_, err := f.accounts.Login(ctx, "a@x.com", "wrong password")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	}

	pair, err := f.accounts.Login(ctx, " A@X.com ", "correct horse battery")
	require.NoError(t, err)
	subject, err := f.tokens.Verify(pair.AccessToken, auth.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, identity.ID, subject)

	_, err = f.accounts.Login(ctx, "unknown@x.com", "correct horse battery")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
}

type countingHasher struct {
	*password.Hasher
	verifies atomic.Int32
	digests  chan string
}

func newCountingHasher() *countingHasher {
	return &countingHasher{Hasher: password.NewHasher(password.WithCost(4)), digests: make(chan string, 8)}
}

func (h *countingHasher) Verify(ctx context.Context, plaintext, digest string) (bool, error) {
	h.verifies.Add(1)
	select {
	case h.digests <- digest:
	default:
	}
	return h.Hasher.Verify(ctx, plaintext, digest)
}

func TestAccountService_LoginUnknownEmailRunsBcrypt(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clock := newTestClock()
	hasher := newCountingHasher()
	tokens := auth.NewTokenService(newSigner(t, clock))
	challenges := auth.NewChallengeService(newMemoryChallengeStorage(), auth.WithChallengeClock(clock.Now))
	accounts := auth.NewAccountService(newMemoryIdentityStorage(), challenges, hasher, tokens, &recordingNotifier{})

	for range 2 {
		_, err := accounts.Login(ctx, "nobody@x.com", "correct horse battery")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	}
	assert.Equal(t, int32(2), hasher.verifies.Load())

	first, second := <-hasher.digests, <-hasher.digests
	assert.True(t, strings.HasPrefix(first, "$2"), "decoy is a bcrypt digest")
	assert.Equal(t, first, second, "decoy digest is computed once")
}

func TestAccountService_LoginOversizedPassword(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	var logs bytes.Buffer
	f := newAccountFixture(t, auth.WithAccountLogger(logger.New(logger.WithOutput(&logs))))

	f.seedChallenge(t, "a@x.com", "123456")
	_, err := f.accounts.Register(ctx, registerInput("a@x.com", "123456"))
	require.NoError(t, err)

	for _, email := range []string{"a@x.com", "nobody@x.com"} {
		_, err := f.accounts.Login(ctx, email, strings.Repeat("p", 73))
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	}
	assert.NotContains(t, logs.String(), "password verification failed")
}

func TestAccountService_LoginInactive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAccountFixture(t)

	f.seedChallenge(t, "a@x.com", "123456")
	identity, err := f.accounts.Register(ctx, registerInput("a@x.com", "123456"))
	require.NoError(t, err)

	identity.IsDeleted = true
	require.NoError(t, f.identities.UpdateIdentity(ctx, identity))

	_, err = f.accounts.Login(ctx, "a@x.com", "correct horse battery")
	assert.ErrorIs(t, err, auth.ErrAccountInactive)
}

func TestAccountService_Refresh(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAccountFixture(t)

	f.seedChallenge(t, "a@x.com", "123456")
	identity, err := f.accounts.Register(ctx, registerInput("a@x.com", "123456"))
	require.NoError(t, err)

	pair, err := f.accounts.Login(ctx, "a@x.com", "correct horse battery")
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	rotated, err := f.accounts.Refresh(ctx, pair.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)
	assert.True(t, rotated.AccessExpiresAt.After(pair.AccessExpiresAt))

	_, err = f.accounts.Refresh(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, auth.ErrTokenClassMismatch)

	identity.IsActive = false
	require.NoError(t, f.identities.UpdateIdentity(ctx, identity))
	_, err = f.accounts.Refresh(ctx, rotated.RefreshToken)
	assert.ErrorIs(t, err, auth.ErrAccountInactive)
}

func TestAccountService_RequestEmailVerification(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("notifies new address", func(t *testing.T) {
		t.Parallel()
		f := newAccountFixture(t)

		require.NoError(t, f.accounts.RequestEmailVerification(ctx, "New@X.com", "  Ada  "))
		notice := f.notifier.last()
		assert.Equal(t, "new@x.com", notice.Email)
		assert.Equal(t, "Ada", notice.FirstName)
		assert.Len(t, notice.Code, 6)
		assert.Equal(t, 5*time.Minute, notice.ExpiresIn)

		require.NoError(t, f.accounts.ConfirmEmail(ctx, "new@x.com", notice.Code))
		assert.Equal(t, 1, f.challenges.len(), "confirmation does not consume")
	})

	t.Run("rejects active account", func(t *testing.T) {
		t.Parallel()
		f := newAccountFixture(t)
		_, err := f.identities.CreateIdentity(ctx, &auth.Identity{Email: "taken@x.com", IsActive: true})
		require.NoError(t, err)

		err = f.accounts.RequestEmailVerification(ctx, "taken@x.com", "")
		assert.ErrorIs(t, err, auth.ErrAccountAlreadyExists)
		assert.Empty(t, f.notifier.notices)
	})

	t.Run("delivery failure", func(t *testing.T) {
		t.Parallel()
		f := newAccountFixture(t)
		f.notifier.err = errors.New("smtp down")

		err := f.accounts.RequestEmailVerification(ctx, "a@x.com", "")
		assert.ErrorIs(t, err, f.notifier.err)
	})
}

func TestAccountService_CreateSuperuser(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newAccountFixture(t)

	identity, err := f.accounts.CreateSuperuser(ctx, auth.SuperuserInput{
		Email:    "root@x.com",
		Password: "super secret password",
	})
	require.NoError(t, err)
	assert.True(t, identity.IsSuperuser)
	assert.Equal(t, auth.RoleAdmin, identity.Role)
	assert.True(t, identity.IsActive)

	_, err = f.accounts.Login(ctx, "root@x.com", "super secret password")
	require.NoError(t, err)

	_, err = f.accounts.CreateSuperuser(ctx, auth.SuperuserInput{
		Email:    "root@x.com",
		Password: "another password",
	})
	assert.ErrorIs(t, err, auth.ErrAccountAlreadyExists)
}

func TestAccountService_AfterRegisterHook(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	var calls atomic.Int32
	done := make(chan struct{})
	f := newAccountFixture(t, auth.WithAfterRegister(func(_ context.Context, identity *auth.Identity) error {
		calls.Add(1)
		close(done)
		return nil
	}))

	f.seedChallenge(t, "a@x.com", "123456")
	_, err := f.accounts.Register(ctx, registerInput("a@x.com", "123456"))
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("afterRegister hook did not run")
	}
	assert.Equal(t, int32(1), calls.Load())
}
