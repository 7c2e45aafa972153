package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultCleanupInterval is the interval between expired entry sweeps.
	DefaultCleanupInterval = 5 * time.Minute
	// DefaultMaxEntries bounds the store when no limit is configured.
	DefaultMaxEntries = 512
)

// expiringItem wraps data with expiration time for TTL support.
type expiringItem[T any] struct {
	Data      T
	ExpiresAt time.Time
}

func (e *expiringItem[T]) isExpiredAt(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// MemoryStore is a bounded in-memory Store. When full, expired entries are
// evicted first and then the entry closest to expiry.
type MemoryStore struct {
	items         map[string]*expiringItem[[]byte]
	maxEntries    int
	now           func() time.Time
	logger        *logrus.Logger
	mu            sync.RWMutex
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

// MemoryOption customises a MemoryStore.
type MemoryOption func(*MemoryStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *MemoryStore) { m.now = now }
}

// NewMemoryStore creates an in-memory store with a background sweep. A
// cleanupInterval of zero disables the sweep; Sweep can still be called directly.
func NewMemoryStore(maxEntries int, cleanupInterval time.Duration, logger *logrus.Logger, opts ...MemoryOption) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	store := &MemoryStore{
		items:       make(map[string]*expiringItem[[]byte]),
		maxEntries:  maxEntries,
		now:         time.Now,
		logger:      logger,
		stopCleanup: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(store)
	}

	if cleanupInterval > 0 {
		store.cleanupTicker = time.NewTicker(cleanupInterval)
		go store.cleanupExpiredItems()
	}

	logger.WithField("max_entries", maxEntries).Info("In-memory cache initialized")
	return store
}

func (m *MemoryStore) cleanupExpiredItems() {
	defer m.cleanupTicker.Stop()

	for {
		select {
		case <-m.cleanupTicker.C:
			m.Sweep()
		case <-m.stopCleanup:
			return
		}
	}
}

// Sweep removes expired entries and returns how many were removed.
func (m *MemoryStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	expired := 0
	for key, item := range m.items {
		if item.isExpiredAt(now) {
			delete(m.items, key)
			expired++
		}
	}

	if expired > 0 {
		m.logger.WithField("expired_items", expired).Debug("Cleaned up expired items from memory cache")
	}
	return expired
}

// Get returns a copy of the cached value.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[key]
	if !ok || item.isExpiredAt(m.now()) {
		return nil, ErrCacheMiss
	}
	out := make([]byte, len(item.Data))
	copy(out, item.Data)
	return out, nil
}

// Set stores a copy of value.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	data := make([]byte, len(value))
	copy(data, value)

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if _, exists := m.items[key]; !exists && len(m.items) >= m.maxEntries {
		m.evictLocked(now)
	}
	m.items[key] = &expiringItem[[]byte]{Data: data, ExpiresAt: now.Add(ttl)}
	return nil
}

// evictLocked makes room for one entry. Caller holds the write lock.
func (m *MemoryStore) evictLocked(now time.Time) {
	var (
		victim   string
		earliest time.Time
	)
	for key, item := range m.items {
		if item.isExpiredAt(now) {
			delete(m.items, key)
			continue
		}
		if victim == "" || item.ExpiresAt.Before(earliest) {
			victim = key
			earliest = item.ExpiresAt
		}
	}
	if len(m.items) >= m.maxEntries && victim != "" {
		delete(m.items, victim)
	}
}

// Delete removes key.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Clear removes every entry.
func (m *MemoryStore) Clear(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.items)
	m.items = make(map[string]*expiringItem[[]byte])
	return n, nil
}

// Len returns the number of stored entries, expired or not.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// Ping always succeeds.
func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

// Close stops the background sweep.
func (m *MemoryStore) Close() error {
	m.stopOnce.Do(func() {
		close(m.stopCleanup)
	})
	return nil
}
