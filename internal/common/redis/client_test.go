package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/galia-project/iiifcore/internal/config"
)

func TestNewClient_NilConfig(t *testing.T) {
	client, err := NewClient(nil, zap.NewNop())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "redis config is required")
	assert.Nil(t, client)
}

func TestNewClient_NilLogger(t *testing.T) {
	cfg := &config.RedisConfig{Addr: "localhost:6379"}
	client, err := NewClient(cfg, nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "logger is required")
	assert.Nil(t, client)
}

func TestNewClient_UnreachableAddr(t *testing.T) {
	cfg := &config.RedisConfig{Addr: "127.0.0.1:1"}
	client, err := NewClient(cfg, zap.NewNop())
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
	assert.Nil(t, client)
}

func setupTestClient(t *testing.T) *Client {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&config.RedisConfig{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestClient_BasicOperations(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	t.Run("ping and health check", func(t *testing.T) {
		assert.NoError(t, client.Ping(ctx))
		assert.NoError(t, client.HealthCheck(ctx))
	})

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "test:key", "test_value", time.Minute))
		v, err := client.Get(ctx, "test:key")
		require.NoError(t, err)
		assert.Equal(t, "test_value", v)
	})

	t.Run("get non-existent key returns empty, no error", func(t *testing.T) {
		v, err := client.Get(ctx, "missing:key")
		assert.NoError(t, err)
		assert.Empty(t, v)
	})

	t.Run("get bytes round-trips binary payload", func(t *testing.T) {
		payload := []byte{0x00, 0xFF, 0x10, 0x20}
		require.NoError(t, client.Set(ctx, "test:bin", payload, time.Minute))
		v, err := client.GetBytes(ctx, "test:bin")
		require.NoError(t, err)
		assert.Equal(t, payload, v)
	})

	t.Run("exists", func(t *testing.T) {
		ok, err := client.Exists(ctx, "test:absent")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, client.Set(ctx, "test:present", "v", time.Minute))
		ok, err = client.Exists(ctx, "test:present")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("keys pattern matching", func(t *testing.T) {
		for _, k := range []string{"variant:a:1", "variant:a:2", "variant:b:1"} {
			require.NoError(t, client.Set(ctx, k, "v", time.Minute))
		}
		keys, err := client.Keys(ctx, "variant:a:*")
		require.NoError(t, err)
		assert.Len(t, keys, 2)
	})

	t.Run("del multiple and del none", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "test:del:1", "v", time.Minute))
		require.NoError(t, client.Set(ctx, "test:del:2", "v", time.Minute))

		require.NoError(t, client.Del(ctx, "test:del:1", "test:del:2"))
		ok, _ := client.Exists(ctx, "test:del:1")
		assert.False(t, ok)

		assert.NoError(t, client.Del(ctx))
	})

	t.Run("ttl reflects expiration", func(t *testing.T) {
		require.NoError(t, client.Set(ctx, "test:ttl", "v", time.Minute))
		ttl, err := client.TTL(ctx, "test:ttl")
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
		assert.LessOrEqual(t, ttl, time.Minute)
	})
}
