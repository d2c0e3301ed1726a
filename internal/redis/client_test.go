package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&Config{
		Address:  mr.Addr(),
		Password: "",
		DB:       0,
		PoolSize: 10,
	})
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func TestNewClient(t *testing.T) {
	t.Run("nil config", func(t *testing.T) {
		client, err := NewClient(nil)
		assert.Error(t, err)
		assert.Nil(t, client)
	})

	t.Run("unreachable server", func(t *testing.T) {
		client, err := NewClient(&Config{Address: "localhost:1"})
		assert.Error(t, err)
		assert.Nil(t, client)
	})

	t.Run("connects and reports healthy", func(t *testing.T) {
		client, _ := setupTestRedis(t)
		assert.NoError(t, client.Health())
	})
}

func TestFixedWindowIncr(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	t.Run("counts attempts within a window", func(t *testing.T) {
		for want := 1; want <= 4; want++ {
			count, resetAt, err := client.FixedWindowIncr(ctx, "rate:chat:u1", time.Minute)
			require.NoError(t, err)
			assert.Equal(t, want, count)
			assert.True(t, resetAt.After(time.Now()))
		}
	})

	t.Run("keys are isolated", func(t *testing.T) {
		count, _, err := client.FixedWindowIncr(ctx, "rate:chat:u2", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("window expiry resets the count", func(t *testing.T) {
		count, _, err := client.FixedWindowIncr(ctx, "rate:voice:u1", time.Second)
		require.NoError(t, err)
		require.Equal(t, 1, count)

		mr.FastForward(2 * time.Second)

		count, _, err = client.FixedWindowIncr(ctx, "rate:voice:u1", time.Second)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})
}

func TestPublishSubscribe(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	pubsub := client.Subscribe(ctx, "events:test")
	defer pubsub.Close()

	// Wait for the subscription to be established before publishing.
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	type envelope struct {
		UserID string `json:"user_id"`
		Frame  string `json:"frame"`
	}

	err = client.Publish(ctx, "events:test", envelope{UserID: "u1", Frame: "event: connected\n\n"})
	require.NoError(t, err)

	select {
	case msg := <-pubsub.Channel():
		assert.Contains(t, msg.Payload, `"user_id":"u1"`)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for published message")
	}
}
