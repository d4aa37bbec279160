package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emadnahed/flakeid/internal/config"
)

func skipIfNoRedis(t *testing.T) {
	t.Helper()
	if os.Getenv("TEST_REDIS") != "true" {
		t.Skip("Skipping: TEST_REDIS not set. Run with docker-compose up -d")
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func testRedisConfig() *config.RedisConfig {
	return &config.RedisConfig{
		Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
		Port:     6379,
		Password: getEnvOrDefault("REDIS_PASSWORD", ""),
		DB:       0,
		PoolSize: 10,
	}
}

func setupTestRedis(t *testing.T) *RedisCache {
	t.Helper()
	skipIfNoRedis(t)

	ctx := context.Background()
	cache, err := NewRedisCache(ctx, testRedisConfig())
	require.NoError(t, err)

	t.Cleanup(func() {
		client := cache.Client()
		iter := client.Scan(ctx, 0, "test:*", 0).Iterator()
		for iter.Next(ctx) {
			_ = client.Del(ctx, iter.Val())
		}
		_ = cache.Close()
	})
	return cache
}

func TestNewRedisCache_InvalidHost(t *testing.T) {
	cfg := &config.RedisConfig{
		Host: "invalid-host-that-does-not-exist",
		Port: 6379,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := NewRedisCache(ctx, cfg)
	assert.Error(t, err)
}

func TestRedisCache(t *testing.T) {
	cache := setupTestRedis(t)
	ctx := context.Background()

	t.Run("set and get", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "test:key", []byte("value"), time.Minute))

		got, err := cache.Get(ctx, "test:key")
		require.NoError(t, err)
		assert.Equal(t, []byte("value"), got)
	})

	t.Run("miss", func(t *testing.T) {
		_, err := cache.Get(ctx, "test:missing")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("delete and exists", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "test:a", []byte("1"), time.Minute))
		require.NoError(t, cache.Set(ctx, "test:b", []byte("2"), time.Minute))

		exists, err := cache.Exists(ctx, "test:a")
		require.NoError(t, err)
		assert.True(t, exists)

		require.NoError(t, cache.Delete(ctx, "test:a", "test:b"))

		exists, err = cache.Exists(ctx, "test:b")
		require.NoError(t, err)
		assert.False(t, exists)

		assert.NoError(t, cache.Delete(ctx))
	})

	t.Run("ttl expires", func(t *testing.T) {
		require.NoError(t, cache.Set(ctx, "test:ttl", []byte("x"), 50*time.Millisecond))
		time.Sleep(150 * time.Millisecond)

		_, err := cache.Get(ctx, "test:ttl")
		assert.ErrorIs(t, err, ErrCacheMiss)
	})

	t.Run("ping", func(t *testing.T) {
		assert.NoError(t, cache.Ping(ctx))
	})
}
