package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/cache"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/config"
	"github.com/GeorgiaTech-DDI/makerspace-dashboard/pkg/logger"
)

func TestRedisStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration tests in short mode")
	}

	ctx := context.Background()

	redisContainer, err := redis.Run(ctx, "redis:7-alpine")
	require.NoError(t, err)

	defer func() {
		if err = redisContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	}()

	connectionString, err := redisContainer.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.RedisConfig{
		URL:          connectionString,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConn:  2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  300 * time.Second,
	}

	log := logger.New("info", "json", "stdout")
	rdb, err := cache.NewRedisClient(cfg, log)
	require.NoError(t, err)

	store := cache.NewRedisStore(rdb, "makerspace:test:", log)
	defer store.Close()

	require.NoError(t, store.Ping(ctx))

	t.Run("GetSetDelete", func(t *testing.T) {
		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, cache.ErrCacheMiss)

		require.NoError(t, store.Set(ctx, "k", []byte("v"), time.Minute))
		got, err := store.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), got)

		require.NoError(t, store.Delete(ctx, "k"))
		_, err = store.Get(ctx, "k")
		assert.ErrorIs(t, err, cache.ErrCacheMiss)
	})

	t.Run("Expiry", func(t *testing.T) {
		require.NoError(t, store.Set(ctx, "short", []byte("v"), time.Second))
		time.Sleep(1500 * time.Millisecond)
		_, err := store.Get(ctx, "short")
		assert.ErrorIs(t, err, cache.ErrCacheMiss)
	})

	t.Run("ClearOnlyTouchesPrefix", func(t *testing.T) {
		require.NoError(t, rdb.Set(ctx, "other:key", "keep", 0).Err())
		for _, k := range []string{"a", "b", "c"} {
			require.NoError(t, store.Set(ctx, k, []byte(k), time.Minute))
		}

		n, err := store.Clear(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		kept, err := rdb.Get(ctx, "other:key").Result()
		require.NoError(t, err)
		assert.Equal(t, "keep", kept)
	})

	t.Run("LoaderSharesEntries", func(t *testing.T) {
		loader := cache.NewLoader(store, time.Minute, log, nil)
		calls := 0
		load := func(context.Context) ([]string, error) {
			calls++
			return []string{"x"}, nil
		}

		for range 2 {
			v, err := cache.Fetch(ctx, loader, cache.Key("individual-usage", "d1", "d2"), load)
			require.NoError(t, err)
			assert.Equal(t, []string{"x"}, v)
		}
		assert.Equal(t, 1, calls)
	})
}
