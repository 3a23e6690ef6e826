package integration

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStateStore keeps states in Redis so handshakes survive restarts and
// work across instances. Expiry is enforced by the key TTL.
type RedisStateStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStateStore keys states under prefix.
func NewRedisStateStore(client redis.UniversalClient, prefix string) *RedisStateStore {
	return &RedisStateStore{client: client, prefix: prefix}
}

// Save refuses to overwrite an existing state.
func (s *RedisStateStore) Save(ctx context.Context, state string, identityID int64, ttl time.Duration) error {
	ok, err := s.client.SetNX(ctx, s.prefix+state, identityID, ttl).Result()
	if err != nil {
		return fmt.Errorf("persist state: %w", err)
	}
	if !ok {
		return fmt.Errorf("persist state: state token collision")
	}
	return nil
}

// Consume relies on GETDEL so concurrent callers cannot both read the value.
func (s *RedisStateStore) Consume(ctx context.Context, state string) (int64, error) {
	raw, err := s.client.GetDel(ctx, s.prefix+state).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrStateNotFound
		}
		return 0, fmt.Errorf("consume state: %w", err)
	}

	identityID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode state: %w", err)
	}
	return identityID, nil
}

var _ StateStore = (*RedisStateStore)(nil)
