package integration_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/authcore/svc/integration"
)

func newRedisStateStore(t *testing.T) (*integration.RedisStateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return integration.NewRedisStateStore(client, "test:state:"), mr
}

func newMemoryStateStore(t *testing.T) *integration.MemoryStateStore {
	t.Helper()
	s := integration.NewMemoryStateStore(time.Minute)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStateStores_ConsumeOnce(t *testing.T) {
	t.Parallel()

	redisStore, _ := newRedisStateStore(t)
	stores := map[string]integration.StateStore{
		"memory": newMemoryStateStore(t),
		"redis":  redisStore,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()

			require.NoError(t, store.Save(ctx, "state-"+name, 42, time.Minute))

			id, err := store.Consume(ctx, "state-"+name)
			require.NoError(t, err)
			assert.Equal(t, int64(42), id)

			_, err = store.Consume(ctx, "state-"+name)
			assert.ErrorIs(t, err, integration.ErrStateNotFound)

			_, err = store.Consume(ctx, "never-saved")
			assert.ErrorIs(t, err, integration.ErrStateNotFound)
		})
	}
}

func TestStateStores_ConcurrentConsume(t *testing.T) {
	t.Parallel()

	redisStore, _ := newRedisStateStore(t)
	stores := map[string]integration.StateStore{
		"memory": newMemoryStateStore(t),
		"redis":  redisStore,
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			require.NoError(t, store.Save(ctx, "contended", 9, time.Minute))

			var wins atomic.Int32
			var wg sync.WaitGroup
			for range 16 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := store.Consume(ctx, "contended"); err == nil {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()
			assert.Equal(t, int32(1), wins.Load())
		})
	}
}

func TestMemoryStateStore_Expiry(t *testing.T) {
	t.Parallel()
	store := newMemoryStateStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "short", 1, 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, err := store.Consume(ctx, "short")
	assert.ErrorIs(t, err, integration.ErrStateNotFound)
	assert.Zero(t, store.Len())
}

func TestMemoryStateStore_Cleanup(t *testing.T) {
	t.Parallel()
	store := integration.NewMemoryStateStore(10 * time.Millisecond)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "stale", 1, time.Millisecond))
	require.NoError(t, store.Save(ctx, "fresh", 2, time.Minute))

	assert.Eventually(t, func() bool { return store.Len() == 1 }, time.Second, 10*time.Millisecond)

	id, err := store.Consume(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, int64(2), id)
}

func TestMemoryStateStore_CloseIsIdempotent(t *testing.T) {
	t.Parallel()
	store := integration.NewMemoryStateStore(0)
	assert.NoError(t, store.Close())
	assert.NoError(t, store.Close())
}

func TestRedisStateStore_Expiry(t *testing.T) {
	t.Parallel()
	store, mr := newRedisStateStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "short", 1, time.Minute))
	assert.True(t, mr.Exists("test:state:short"))

	mr.FastForward(2 * time.Minute)

	_, err := store.Consume(ctx, "short")
	assert.ErrorIs(t, err, integration.ErrStateNotFound)
}

func TestRedisStateStore_RejectsCollision(t *testing.T) {
	t.Parallel()
	store, _ := newRedisStateStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "dup", 1, time.Minute))
	assert.Error(t, store.Save(ctx, "dup", 2, time.Minute))

	id, err := store.Consume(ctx, "dup")
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)
}
