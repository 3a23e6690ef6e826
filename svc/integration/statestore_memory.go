package integration

import (
	"context"
	"sync"
	"time"
)

type stateEntry struct {
	identityID int64
	expiresAt  time.Time
}

// MemoryStateStore keeps states in process memory. States are lost on
// restart and are not shared between instances.
type MemoryStateStore struct {
	mu     sync.Mutex
	states map[string]stateEntry
	now    func() time.Time
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewMemoryStateStore starts a store that sweeps expired states every
// cleanupInterval. A non-positive interval defaults to one minute.
func NewMemoryStateStore(cleanupInterval time.Duration) *MemoryStateStore {
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}
	s := &MemoryStateStore{
		states: make(map[string]stateEntry),
		now:    time.Now,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.cleanup(cleanupInterval)
	return s
}

// Save maps state to identityID until ttl elapses.
func (s *MemoryStateStore) Save(_ context.Context, state string, identityID int64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[state] = stateEntry{identityID: identityID, expiresAt: s.now().Add(ttl)}
	return nil
}

// Consume removes state and returns its identity. Expired or unknown
// states return ErrStateNotFound.
func (s *MemoryStateStore) Consume(_ context.Context, state string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.states[state]
	if !ok {
		return 0, ErrStateNotFound
	}
	delete(s.states, state)
	if !s.now().Before(entry.expiresAt) {
		return 0, ErrStateNotFound
	}
	return entry.identityID, nil
}

// Len returns the number of stored states, expired ones included.
func (s *MemoryStateStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.states)
}

// Close stops the cleanup goroutine.
func (s *MemoryStateStore) Close() error {
	s.once.Do(func() {
		close(s.stop)
		<-s.done
	})
	return nil
}

func (s *MemoryStateStore) cleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(s.done)

	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.stop:
			return
		}
	}
}

func (s *MemoryStateStore) removeExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for state, entry := range s.states {
		if !now.Before(entry.expiresAt) {
			delete(s.states, state)
		}
	}
}

var _ StateStore = (*MemoryStateStore)(nil)
