package account_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authcore/modules/account"
	"github.com/dmitrymomot/authcore/pkg/jwt"
	"github.com/dmitrymomot/authcore/pkg/logger"
	"github.com/dmitrymomot/authcore/pkg/password"
	"github.com/dmitrymomot/authcore/pkg/ratelimiter"
	"github.com/dmitrymomot/authcore/pkg/secrets"
	"github.com/dmitrymomot/authcore/storage/sqlite"
	"github.com/dmitrymomot/authcore/svc/auth"
	"github.com/dmitrymomot/authcore/svc/integration"
)

type codeInbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (b *codeInbox) NotifyChallenge(_ context.Context, n auth.ChallengeNotice) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.codes[n.Email] = n.Code
	return nil
}

func (b *codeInbox) code(email string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.codes[email]
}

type fakeProvider struct{}

func (fakeProvider) Name() string { return integration.ProviderGoogleKeep }

func (fakeProvider) AuthURL(state string) string {
	return "https://accounts.example.com/auth?state=" + url.QueryEscape(state)
}

func (fakeProvider) Exchange(_ context.Context, code string) (*integration.Credentials, error) {
	if code != "good-code" {
		return nil, errors.Join(integration.ErrProviderExchangeFailed, errors.New("invalid_grant"))
	}
	return &integration.Credentials{
		AccessToken:  "ya29.access",
		RefreshToken: "1//refresh",
		TokenURI:     "https://oauth2.example.com/token",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Scopes:       []string{integration.KeepScope},
	}, nil
}

func (fakeProvider) Refresh(context.Context, integration.Credentials) (*integration.Credentials, error) {
	return nil, integration.ErrProviderRefreshFailed
}

type apiFixture struct {
	server   *httptest.Server
	inbox    *codeInbox
	accounts *auth.AccountService
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(ctx, logger.Discard()))

	signer, err := jwt.New([]byte("router-test-signing-secret-0123456789"))
	require.NoError(t, err)
	tokens := auth.NewTokenService(signer)

	key, err := secrets.GenerateKey()
	require.NoError(t, err)
	cipher, err := secrets.New(key)
	require.NoError(t, err)

	keepAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer ya29.access" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		var in map[string]any
		_ = json.NewDecoder(r.Body).Decode(&in)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"name":       "notes/1",
			"title":      in["title"],
			"createTime": "2025-03-01T09:00:00Z",
			"body":       in["body"],
		})
	}))
	t.Cleanup(keepAPI.Close)

	inbox := &codeInbox{codes: map[string]string{}}
	challenges := auth.NewChallengeService(store)
	accounts := auth.NewAccountService(store, challenges, password.NewHasher(password.WithCost(4)), tokens, inbox)

	states := integration.NewMemoryStateStore(time.Minute)
	t.Cleanup(func() { _ = states.Close() })
	vault := integration.NewVault(store, cipher, fakeProvider{})

	srv := httptest.NewServer(account.Router(account.RouterOptions{
		Accounts:    accounts,
		Gate:        auth.NewGate(tokens, store),
		Coordinator: integration.NewCoordinator(states, fakeProvider{}, vault),
		Vault:       vault,
		Keep:        integration.NewKeepClient(vault, integration.WithKeepBaseURL(keepAPI.URL)),
	}))
	t.Cleanup(srv.Close)

	return &apiFixture{server: srv, inbox: inbox, accounts: accounts}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, f.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

// signUp registers and logs in an account, returning its access token.
func (f *apiFixture) signUp(t *testing.T, email string) string {
	t.Helper()
	resp, _ := f.do(t, http.MethodPost, "/auth/verify-email", "", map[string]string{"email": email, "first_name": "Ada"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	code := f.inbox.code(email)
	require.Len(t, code, 6)

	resp, _ = f.do(t, http.MethodPost, "/auth/verify-email-otp", "", map[string]string{"email": email, "otp": code})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": email, "password": "correct horse", "first_name": "Ada", "last_name": "Lovelace", "otp": code,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	resp, body = f.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": email, "password": "correct horse"})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	data := body["data"].(map[string]any)
	return data["access_token"].(string)
}

func TestRouter_AccountLifecycle(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	access := f.signUp(t, "a@x.com")

	resp, body := f.do(t, http.MethodGet, "/users/me", access, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := body["data"].(map[string]any)
	assert.Equal(t, "a@x.com", me["email"])
	assert.Equal(t, "user", me["role"])

	resp, body = f.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email": "a@x.com", "password": "correct horse", "first_name": "Ada", "otp": "123456",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, auth.ErrAccountAlreadyExists.Error(), body["error"])

	for range 3 {
		resp, body = f.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@x.com", "password": "wrong password"})
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Equal(t, auth.ErrInvalidCredentials.Error(), body["error"])
	}

	resp, body = f.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@x.com", "password": "correct horse"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	refresh := body["data"].(map[string]any)["refresh_token"].(string)

	resp, body = f.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": refresh})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, body["data"].(map[string]any)["access_token"])

	resp, _ = f.do(t, http.MethodPost, "/auth/refresh", "", map[string]string{"refresh_token": access})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_RequestErrors(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)

	t.Run("missing token", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodGet, "/users/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.NotEmpty(t, resp.Header.Get("WWW-Authenticate"))
	})

	t.Run("unknown field", func(t *testing.T) {
		resp, body := f.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "a@x.com", "role": "admin"})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, account.ErrInvalidJSON.Error(), body["error"])
	})

	t.Run("wrong content type", func(t *testing.T) {
		resp, err := f.server.Client().Post(f.server.URL+"/auth/login", "text/plain", strings.NewReader("{}"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
	})

	t.Run("validation fields", func(t *testing.T) {
		resp, _ := f.do(t, http.MethodPost, "/auth/verify-email", "", map[string]string{"email": "bad@x.com"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, body := f.do(t, http.MethodPost, "/auth/register", "", map[string]string{
			"email": "bad@x.com", "password": "short", "first_name": "", "otp": "12",
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		fields := body["fields"].(map[string]any)
		assert.Contains(t, fields, "password")
		assert.Contains(t, fields, "first_name")
		assert.Contains(t, fields, "code")
	})

	t.Run("admin route", func(t *testing.T) {
		access := f.signUp(t, "plain@x.com")
		resp, _ := f.do(t, http.MethodGet, "/admin/ping", access, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}

func TestRouter_PasswordGrant(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	f.signUp(t, "grant@x.com")

	form := url.Values{"grant_type": {"password"}, "username": {"grant@x.com"}, "password": {"correct horse"}}
	resp, err := f.server.Client().PostForm(f.server.URL+"/auth/token", form)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var pair auth.TokenPair
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pair))
	assert.Equal(t, "Bearer", pair.TokenType)
	assert.NotEmpty(t, pair.AccessToken)
}

func TestRouter_GoogleKeepFlow(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	access := f.signUp(t, "keep@x.com")

	resp, body := f.do(t, http.MethodGet, "/google-keep/auth/status", access, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["authenticated"])

	resp, body = f.do(t, http.MethodPost, "/google-keep/notes", access, map[string]string{"title": "t", "body": "b"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, integration.ErrNotConnected.Error(), body["error"])

	resp, body = f.do(t, http.MethodPost, "/google-keep/auth/google-keep", access, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	state := body["state"].(string)
	assert.Contains(t, body["authorization_url"], url.QueryEscape(state))

	resp, body = f.do(t, http.MethodPost, "/google-keep/auth/callback", "", map[string]string{"code": "good-code", "state": state})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["success"])

	resp, _ = f.do(t, http.MethodPost, "/google-keep/auth/callback", "", map[string]string{"code": "good-code", "state": state})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/google-keep/auth/status", access, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["authenticated"])

	resp, body = f.do(t, http.MethodPost, "/google-keep/notes", access, map[string]string{"title": "Groceries", "body": "milk"})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "notes/1", body["name"])
	assert.Equal(t, "Groceries", body["title"])

	resp, _ = f.do(t, http.MethodDelete, "/google-keep/auth", access, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = f.do(t, http.MethodDelete, "/google-keep/auth", access, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestRouter_GoogleKeepCallbackFailures(t *testing.T) {
	t.Parallel()
	f := newAPIFixture(t)
	access := f.signUp(t, "deny@x.com")

	begin := func() string {
		resp, body := f.do(t, http.MethodPost, "/google-keep/auth/google-keep", access, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		return body["state"].(string)
	}

	resp, body := f.do(t, http.MethodPost, "/google-keep/auth/callback", "", map[string]string{"code": "", "state": begin(), "error": "access_denied"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Authorization failed: access_denied", body["message"])

	resp, body = f.do(t, http.MethodPost, "/google-keep/auth/callback", "", map[string]string{"code": "bad-code", "state": begin()})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "provider code exchange failed", body["error"])

	resp, _ = f.do(t, http.MethodPost, "/google-keep/auth/callback", "", map[string]string{"code": "good-code", "state": "forged"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_AuthLimiter(t *testing.T) {
	t.Parallel()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "limit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate(context.Background(), logger.Discard()))

	signer, err := jwt.New([]byte("router-test-signing-secret-0123456789"))
	require.NoError(t, err)
	tokens := auth.NewTokenService(signer)
	accounts := auth.NewAccountService(store, auth.NewChallengeService(store),
		password.NewHasher(password.WithCost(4)), tokens, &codeInbox{codes: map[string]string{}})

	limits := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	t.Cleanup(limits.Close)
	bucket, err := ratelimiter.NewBucket(limits, ratelimiter.Config{Capacity: 2, RefillRate: 1, RefillInterval: time.Hour})
	require.NoError(t, err)

	srv := httptest.NewServer(account.Router(account.RouterOptions{
		Accounts:    accounts,
		Gate:        auth.NewGate(tokens, store),
		AuthLimiter: ratelimiter.Middleware(bucket, ratelimiter.ByClientIP, ratelimiter.WithScope("auth")),
	}))
	t.Cleanup(srv.Close)

	login := func() int {
		resp, err := srv.Client().Post(srv.URL+"/auth/login", "application/json",
			strings.NewReader(`{"email":"nobody@x.com","password":"whatever1"}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusUnauthorized, login())
	assert.Equal(t, http.StatusUnauthorized, login())
	assert.Equal(t, http.StatusTooManyRequests, login())

	resp, err := srv.Client().Get(srv.URL + "/users/me")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "authenticated routes are not limited")
}
