package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisPrefix namespaces replay keys in a shared Redis database.
const DefaultRedisPrefix = "rewards:replay:"

// redisClient is the subset of go-redis used by RedisStore.
// *redis.Client, *redis.ClusterClient and redis.UniversalClient satisfy it.
type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore implements Store on Redis so multiple service instances share
// one replay window. Expiry is delegated to Redis key TTLs.
type RedisStore struct {
	client redisClient
	prefix string
}

// NewRedisStore wraps an existing go-redis client.
func NewRedisStore(client redisClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisStore{client: client, prefix: prefix}
}

// NewRedisStoreFromURL parses a redis:// URL and connects lazily.
func NewRedisStoreFromURL(url string) (*RedisStore, *redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("replay: invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	return NewRedisStore(client, DefaultRedisPrefix), client, nil
}

// MarkIfAbsent uses SET NX with an expiry, which is atomic across instances.
func (s *RedisStore) MarkIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, s.prefix+key, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("replay: redis setnx: %w", err)
	}
	return ok, nil
}

// Contains reports whether the key is present. Redis never returns expired keys.
func (s *RedisStore) Contains(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, s.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("replay: redis exists: %w", err)
	}
	return n > 0, nil
}

// Sweep is a no-op; Redis evicts expired keys itself.
func (s *RedisStore) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}

// Ensure RedisStore implements Store
var _ Store = (*RedisStore)(nil)
