package integration_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/authcore/svc/integration"
)

type mockProvider struct {
	mock.Mock
}

func (m *mockProvider) Name() string {
	return integration.ProviderGoogleKeep
}

func (m *mockProvider) AuthURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (m *mockProvider) Exchange(ctx context.Context, code string) (*integration.Credentials, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Credentials), args.Error(1)
}

func (m *mockProvider) Refresh(ctx context.Context, creds integration.Credentials) (*integration.Credentials, error) {
	args := m.Called(ctx, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Credentials), args.Error(1)
}

type credentialKey struct {
	identityID int64
	provider   string
}

// memoryCredentialStorage keeps active records only, plus a count of
// deactivated ones.
type memoryCredentialStorage struct {
	mu          sync.Mutex
	active      map[credentialKey]integration.Record
	deactivated int
}

func newMemoryCredentialStorage() *memoryCredentialStorage {
	return &memoryCredentialStorage{active: map[credentialKey]integration.Record{}}
}

func (s *memoryCredentialStorage) UpsertActiveCredential(_ context.Context, rec *integration.Record) (*integration.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := credentialKey{rec.IdentityID, rec.Provider}
	saved := *rec
	if existing, ok := s.active[key]; ok {
		saved.ID = existing.ID
		saved.CreatedAt = existing.CreatedAt
	} else {
		saved.ID = uuid.New()
	}
	s.active[key] = saved
	return &saved, nil
}

func (s *memoryCredentialStorage) GetActiveCredential(_ context.Context, identityID int64, provider string) (*integration.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.active[credentialKey{identityID, provider}]
	if !ok {
		return nil, integration.ErrCredentialsNotFound
	}
	return &rec, nil
}

func (s *memoryCredentialStorage) DeactivateCredential(_ context.Context, identityID int64, provider string, _ time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := credentialKey{identityID, provider}
	if _, ok := s.active[key]; !ok {
		return false, nil
	}
	delete(s.active, key)
	s.deactivated++
	return true, nil
}

func (s *memoryCredentialStorage) DeactivateExpiredCredentials(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for key, rec := range s.active {
		if rec.Expired(now) {
			delete(s.active, key)
			n++
		}
	}
	s.deactivated += n
	return n, nil
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
