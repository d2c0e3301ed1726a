// Package redis wraps the go-redis client with the small surface the gateway
// needs: fixed-window counters for the shared rate limiter and pub/sub for
// the cross-instance event relay.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb    *redis.Client
	config *Config
}

type Config struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	if config.Address == "" {
		config.Address = "localhost:6379"
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{
		rdb:    rdb,
		config: config,
	}, nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// FixedWindowIncr counts one attempt against key within a fixed window. The
// first attempt on a fresh key starts the window; every window ends exactly
// window after it started, keeping the semantics aligned with the in-memory
// store.
func (c *Client) FixedWindowIncr(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	pipe := c.rdb.TxPipeline()

	incrCmd := pipe.Incr(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, time.Time{}, fmt.Errorf("failed to increment rate limit window: %w", err)
	}

	count := int(incrCmd.Val())
	ttl := ttlCmd.Val()
	if count == 1 || ttl < 0 {
		// First attempt on a fresh key starts the window. The ttl < 0 arm
		// heals keys that somehow lost their expiry.
		if err := c.rdb.PExpire(ctx, key, window).Err(); err != nil {
			return 0, time.Time{}, fmt.Errorf("failed to start rate limit window: %w", err)
		}
		ttl = window
	}

	return count, time.Now().Add(ttl), nil
}

// Publish JSON-encodes message and publishes it on channel.
func (c *Client) Publish(ctx context.Context, channel string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return c.rdb.Publish(ctx, channel, data).Err()
}

// Subscribe returns a subscription for the given channels. The caller owns
// the returned PubSub and must close it.
func (c *Client) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	return c.rdb.Subscribe(ctx, channels...)
}
