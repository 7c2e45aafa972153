package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// sharedLoadTimeout bounds a load once it no longer follows the caller that
// started it.
const sharedLoadTimeout = 2 * time.Minute

// Observer is notified of every lookup made through a Loader.
type Observer interface {
	ObserveCacheLookup(shape string, hit bool)
}

// Loader adds insert-if-absent-or-expired semantics on top of a Store.
// Concurrent misses for the same key share one load.
type Loader struct {
	store    Store
	ttl      time.Duration
	group    singleflight.Group
	logger   *logrus.Logger
	observer Observer
}

// NewLoader creates a Loader. A ttl of zero or less disables caching and every
// Fetch calls its load function. observer may be nil.
func NewLoader(store Store, ttl time.Duration, logger *logrus.Logger, observer Observer) *Loader {
	return &Loader{store: store, ttl: ttl, logger: logger, observer: observer}
}

// Store returns the underlying store.
func (l *Loader) Store() Store {
	return l.store
}

// TTL returns the entry lifetime.
func (l *Loader) TTL() time.Duration {
	return l.ttl
}

// Fetch returns the cached value under key, or calls load, caches its result and
// returns it. Errors from load are returned and never cached. Backend failures
// are logged and treated as misses. A shared load outlives the cancellation of
// the caller that started it, so other waiters for the key still get the value.
func Fetch[T any](ctx context.Context, l *Loader, key string, load func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if l == nil || l.ttl <= 0 {
		return load(ctx)
	}

	shape := key
	if i := strings.IndexByte(key, ':'); i >= 0 {
		shape = key[:i]
	}

	if v, ok := lookup[T](ctx, l, key); ok {
		l.observe(shape, true)
		return v, nil
	}
	l.observe(shape, false)

	ch := l.group.DoChan(key, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedLoadTimeout)
		defer cancel()

		v, loadErr := load(loadCtx)
		if loadErr != nil {
			return nil, loadErr
		}

		data, marshalErr := json.Marshal(v)
		if marshalErr != nil {
			l.logger.WithError(marshalErr).WithField("key", key).Warn("Failed to encode value for cache")
			return v, nil
		}
		if setErr := l.store.Set(loadCtx, key, data, l.ttl); setErr != nil {
			l.logger.WithError(setErr).WithField("key", key).Warn("Failed to write cache entry")
		}
		return v, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	if res.Err != nil {
		return zero, res.Err
	}

	v, ok := res.Val.(T)
	if !ok {
		return zero, errors.New("cache: shared load returned an unexpected type")
	}
	return v, nil
}

func lookup[T any](ctx context.Context, l *Loader, key string) (T, bool) {
	var v T
	data, err := l.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			l.logger.WithError(err).WithField("key", key).Warn("Cache lookup failed, loading from upstream")
		}
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		l.logger.WithError(err).WithField("key", key).Warn("Discarding undecodable cache entry")
		_ = l.store.Delete(ctx, key)
		return v, false
	}
	return v, true
}

func (l *Loader) observe(shape string, hit bool) {
	if l.observer != nil {
		l.observer.ObserveCacheLookup(shape, hit)
	}
}
