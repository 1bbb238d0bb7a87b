package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/financeai/bff/pkg/helpers"
)

// RedisStore backs the result cache with Redis. TTL expiry is handled by
// Redis itself; prefix invalidation walks keys with SCAN.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string, dest any) (bool, error) {
	return helpers.RedisGetJSON(ctx, s.rdb, key, dest)
}

func (s *RedisStore) Set(ctx context.Context, key string, value any) error {
	return helpers.RedisSetJSON(ctx, s.rdb, key, value, s.ttl)
}

func (s *RedisStore) Invalidate(ctx context.Context, key string) error {
	return helpers.RedisDel(ctx, s.rdb, key)
}

func (s *RedisStore) InvalidatePrefix(ctx context.Context, prefix string) (int, error) {
	return helpers.RedisDelPrefix(ctx, s.rdb, prefix)
}

func (s *RedisStore) Len(ctx context.Context) (int, error) {
	return helpers.RedisCountPrefix(ctx, s.rdb, AggregatePrefix)
}
