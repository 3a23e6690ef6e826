package ratelimiter

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// takeScript refills and takes atomically. Times are unix milliseconds.
var takeScript = redis.NewScript(`
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local interval = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local n = tonumber(ARGV[5])
local ttl = tonumber(ARGV[6])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'refill')
local tokens = tonumber(state[1])
local refill = tonumber(state[2])
if tokens == nil or refill == nil then
	tokens = capacity
	refill = now
end

local intervals = math.floor((now - refill) / interval)
if intervals > 0 then
	tokens = math.min(capacity, tokens + intervals * rate)
	refill = refill + intervals * interval
end

local allowed = 0
if tokens >= n then
	tokens = tokens - n
	allowed = 1
end

redis.call('HSET', KEYS[1], 'tokens', tokens, 'refill', refill)
redis.call('PEXPIRE', KEYS[1], ttl)
return {allowed, tokens, refill}
`)

// RedisStore shares buckets between processes.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore namespaces keys under prefix.
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) Take(ctx context.Context, key string, n int, cfg Config, now time.Time) (*Result, error) {
	vals, err := takeScript.Run(ctx, s.client, []string{s.prefix + key},
		cfg.Capacity,
		cfg.RefillRate,
		cfg.RefillInterval.Milliseconds(),
		now.UnixMilli(),
		n,
		cfg.idleTTL().Milliseconds(),
	).Int64Slice()
	if err != nil {
		return nil, errors.Join(ErrStoreUnavailable, err)
	}
	if len(vals) != 3 {
		return nil, errors.Join(ErrStoreUnavailable, errors.New("unexpected script reply"))
	}
	return &Result{
		Allowed:   vals[0] == 1,
		Limit:     cfg.Capacity,
		Remaining: int(vals[1]),
		ResetAt:   time.UnixMilli(vals[2]).Add(cfg.RefillInterval),
	}, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
