package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/config"
)

// ScanBatchSize is the SCAN count hint and DEL batch size used by Clear.
const ScanBatchSize = 100

// RedisStore is a Store backed by Redis. Keys are namespaced with a prefix so
// Clear only touches this service's entries.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	logger *logrus.Logger
}

// NewRedisClient connects to Redis using the pool settings from cfg and
// verifies connectivity with a PING.
func NewRedisClient(cfg *config.RedisConfig, logger *logrus.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password // pragma: allowlist secret
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}

	opts.MaxRetries = cfg.MaxRetries
	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConn
	opts.DialTimeout = cfg.DialTimeout
	opts.ReadTimeout = cfg.ReadTimeout
	opts.WriteTimeout = cfg.WriteTimeout
	opts.PoolTimeout = cfg.PoolTimeout
	opts.ConnMaxIdleTime = cfg.IdleTimeout

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis successfully")
	return rdb, nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb *redis.Client, prefix string, logger *logrus.Logger) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefix, logger: logger}
}

func (r *RedisStore) key(k string) string {
	return r.prefix + k
}

// Get returns the value for key or ErrCacheMiss.
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Set writes value with an expiry of ttl.
func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.rdb.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	r.logger.WithFields(logrus.Fields{"key": key, "ttl": ttl.String()}).Debug("Cached upstream response")
	return nil
}

// Delete removes key.
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// Clear scans for every prefixed key and deletes them in batches.
func (r *RedisStore) Clear(ctx context.Context) (int, error) {
	var allKeys []string
	var cursor uint64

	for {
		keys, nextCursor, err := r.rdb.Scan(ctx, cursor, r.prefix+"*", ScanBatchSize).Result()
		if err != nil {
			return 0, err
		}

		allKeys = append(allKeys, keys...)
		cursor = nextCursor

		if cursor == 0 {
			break
		}
	}

	deleted := 0
	for i := 0; i < len(allKeys); i += ScanBatchSize {
		end := min(i+ScanBatchSize, len(allKeys))

		result, err := r.rdb.Del(ctx, allKeys[i:end]...).Result()
		if err != nil {
			return deleted, err
		}
		deleted += int(result)
	}

	return deleted, nil
}

// Ping tests connectivity to the Redis server.
func (r *RedisStore) Ping(ctx context.Context) error {
	if err := r.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close shuts down the connection pool.
func (r *RedisStore) Close() error {
	if err := r.rdb.Close(); err != nil {
		r.logger.WithError(err).Error("Failed to close Redis connection")
		return err
	}
	r.logger.Info("Redis connection closed")
	return nil
}

// Client returns the underlying go-redis client, shared with the rate limiter.
func (r *RedisStore) Client() *redis.Client {
	return r.rdb
}
