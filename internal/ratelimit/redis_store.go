package ratelimit

import (
	"context"
	"time"

	"quest-gateway/internal/redis"
)

// RedisStore shares fixed windows across gateway instances. It is the
// substitution point for deployments past one instance; the in-memory store
// stays the default.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a store over an established Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		prefix: "rate_limit:",
	}
}

// Incr counts one attempt against key in the shared window.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	return s.client.FixedWindowIncr(ctx, s.prefix+key, window)
}

// Sweep is a no-op: Redis expires window keys on its own.
func (s *RedisStore) Sweep(context.Context) (int, error) {
	return 0, nil
}
