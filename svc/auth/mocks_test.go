package auth_test

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/dmitrymomot/authcore/svc/auth"
)

type mockIdentityStorage struct {
	mock.Mock
}

func (m *mockIdentityStorage) GetIdentityByID(ctx context.Context, id int64) (*auth.Identity, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Identity), args.Error(1)
}

func (m *mockIdentityStorage) GetIdentityByEmail(ctx context.Context, email string) (*auth.Identity, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Identity), args.Error(1)
}

func (m *mockIdentityStorage) CreateIdentity(ctx context.Context, identity *auth.Identity) (*auth.Identity, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Identity), args.Error(1)
}

func (m *mockIdentityStorage) UpdateIdentity(ctx context.Context, identity *auth.Identity) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

// memoryIdentityStorage is a stateful fake for multi-step account flows.
type memoryIdentityStorage struct {
	mu     sync.Mutex
	nextID int64
	byID   map[int64]auth.Identity
}

func newMemoryIdentityStorage() *memoryIdentityStorage {
	return &memoryIdentityStorage{byID: map[int64]auth.Identity{}}
}

func (s *memoryIdentityStorage) GetIdentityByID(_ context.Context, id int64) (*auth.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.byID[id]
	if !ok {
		return nil, auth.ErrIdentityNotFound
	}
	return &identity, nil
}

func (s *memoryIdentityStorage) GetIdentityByEmail(_ context.Context, email string) (*auth.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, identity := range s.byID {
		if identity.Email == email {
			return &identity, nil
		}
	}
	return nil, auth.ErrIdentityNotFound
}

func (s *memoryIdentityStorage) CreateIdentity(_ context.Context, identity *auth.Identity) (*auth.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	created := *identity
	created.ID = s.nextID
	created.CreatedAt = time.Now().UTC()
	created.UpdatedAt = created.CreatedAt
	s.byID[created.ID] = created
	return &created, nil
}

func (s *memoryIdentityStorage) UpdateIdentity(_ context.Context, identity *auth.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[identity.ID]; !ok {
		return auth.ErrIdentityNotFound
	}
	s.byID[identity.ID] = *identity
	return nil
}

type memoryChallengeStorage struct {
	mu         sync.Mutex
	challenges map[string]auth.Challenge
}

func newMemoryChallengeStorage() *memoryChallengeStorage {
	return &memoryChallengeStorage{challenges: map[string]auth.Challenge{}}
}

func (s *memoryChallengeStorage) ReplaceChallenge(_ context.Context, c auth.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[c.Email] = c
	return nil
}

func (s *memoryChallengeStorage) GetChallenge(_ context.Context, email string) (*auth.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.challenges[email]
	if !ok {
		return nil, auth.ErrChallengeNotFound
	}
	return &c, nil
}

func (s *memoryChallengeStorage) DeleteChallenge(_ context.Context, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, email)
	return nil
}

func (s *memoryChallengeStorage) DeleteChallengesBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for email, c := range s.challenges {
		if c.CreatedAt.Before(cutoff) {
			delete(s.challenges, email)
			n++
		}
	}
	return n, nil
}

func (s *memoryChallengeStorage) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}

// testClock is a settable time source.
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

type recordingNotifier struct {
	mu      sync.Mutex
	notices []auth.ChallengeNotice
	err     error
}

func (n *recordingNotifier) NotifyChallenge(_ context.Context, notice auth.ChallengeNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notices = append(n.notices, notice)
	return n.err
}

func (n *recordingNotifier) last() auth.ChallengeNotice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.notices[len(n.notices)-1]
}
