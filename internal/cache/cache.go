// Package cache provides the time-boxed response cache used to avoid redundant
// upstream calls for identical date-range queries. Two Store backends share one
// contract: an in-memory store for single-instance deployments and a Redis store
// shared between replicas.
//
// Entries are immutable once written. A Get never returns an entry older than the
// TTL it was written with; an expired entry is replaced wholesale by the next Set.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrCacheMiss is returned when a key does not exist or has expired.
// Callers check it to distinguish a miss (expected) from a backend failure.
var ErrCacheMiss = errors.New("cache miss")

// Store is a byte-oriented cache with per-entry TTL.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set writes value under key for ttl, replacing any existing entry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Clear removes every entry and returns how many were removed.
	Clear(ctx context.Context) (int, error)
	// Ping verifies the backend is reachable.
	Ping(ctx context.Context) error
	// Close releases the backend.
	Close() error
}

// Key builds a cache key from a query shape and its parameters. Distinct shapes
// never collide because the shape is always the first segment.
func Key(shape string, parts ...string) string {
	return shape + ":" + strings.Join(parts, ":")
}
