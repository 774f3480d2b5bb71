// Package cache keeps tenant owner lookups so activations do not call the
// Discord API every time: Redis for deployments and an in-memory map for
// local runs and tests.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces cached owners: premium:owner:{tenant_id}.
const DefaultKeyPrefix = "premium:owner:"

// RedisStore stores owner ids as plain strings with a TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store on client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: DefaultKeyPrefix}
}

// NewRedisClient parses a redis:// URL and pings the server.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

func (s *RedisStore) key(tenantID string) string {
	return s.prefix + tenantID
}

// Get returns the cached owner, or false on a miss.
func (s *RedisStore) Get(ctx context.Context, tenantID string) (string, bool, error) {
	owner, err := s.client.Get(ctx, s.key(tenantID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return owner, true, nil
}

// Set caches owner for ttl.
func (s *RedisStore) Set(ctx context.Context, tenantID, owner string, ttl time.Duration) error {
	if err := s.client.Set(ctx, s.key(tenantID), owner, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete drops the tenant's cached owner.
func (s *RedisStore) Delete(ctx context.Context, tenantID string) error {
	if err := s.client.Del(ctx, s.key(tenantID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
