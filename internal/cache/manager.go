package cache

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrNoFetcher is returned by Fetch on a Manager built without a FetchFunc.
var ErrNoFetcher = errors.New("cache manager has no fetcher")

// FetchFunc retrieves an entity from the remote API.
type FetchFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Config is the per-manager cache configuration.
type Config struct {
	// Caching controls whether Fetch may consult and populate the cache and
	// whether Set stores anything at all.
	Caching bool
	// MaxCache is the capacity ceiling; zero means unbounded.
	MaxCache int
	Policy   Policy
	// FetchTimeout bounds a coalesced fetch, which outlives any single
	// caller's context. Zero leaves it to the fetcher.
	FetchTimeout time.Duration
}

// DefaultConfig enables caching with no size limit.
func DefaultConfig() Config {
	return Config{Caching: true, Policy: EvictLRU}
}

// Manager composes a Cache with a FetchFunc. Each entity kind gets its own
// Manager so unrelated kinds never share mutable state.
type Manager[K comparable, V any] struct {
	name  string
	cfg   Config
	cache *Cache[K, V]
	fetch FetchFunc[K, V]

	group   singleflight.Group
	fetches atomic.Uint64
}

// NewManager creates a Manager named after the entity kind it stores.
func NewManager[K comparable, V any](name string, cfg Config, fetch FetchFunc[K, V]) *Manager[K, V] {
	return &Manager[K, V]{
		name:  name,
		cfg:   cfg,
		cache: New[K, V](Options{MaxSize: cfg.MaxCache, Policy: cfg.Policy}),
		fetch: fetch,
	}
}

// Name returns the entity kind.
func (m *Manager[K, V]) Name() string {
	return m.name
}

// Caching reports whether the manager stores entities.
func (m *Manager[K, V]) Caching() bool {
	return m.cfg.Caching
}

// Get returns the cached entity without any network access.
func (m *Manager[K, V]) Get(key K) (V, bool) {
	if !m.cfg.Caching {
		var zero V
		return zero, false
	}
	return m.cache.Get(key)
}

// Set stores an entity observed from an event or a REST response. It is a
// no-op when caching is disabled.
func (m *Manager[K, V]) Set(key K, value V) error {
	if !m.cfg.Caching {
		return nil
	}
	return m.cache.Set(key, value)
}

// Has reports whether key is cached.
func (m *Manager[K, V]) Has(key K) bool {
	return m.cfg.Caching && m.cache.Has(key)
}

// Len returns the number of cached entities.
func (m *Manager[K, V]) Len() int {
	return m.cache.Len()
}

// Delete drops the entity if cached.
func (m *Manager[K, V]) Delete(key K) bool {
	return m.cache.Delete(key)
}

// Fetch returns the cached entity when useCache is set and caching is
// enabled; otherwise it calls the fetcher and caches the result.
// Concurrent cache misses for the same key share one remote call. That call
// keeps the first caller's context values but not its cancellation, so a
// caller giving up only abandons its own wait. With useCache false every
// call reaches the fetcher.
func (m *Manager[K, V]) Fetch(ctx context.Context, key K, useCache bool) (V, error) {
	var zero V
	if m.fetch == nil {
		return zero, ErrNoFetcher
	}

	if !useCache || !m.cfg.Caching {
		return m.load(ctx, key)
	}

	if v, ok := m.cache.Get(key); ok {
		return v, nil
	}

	ch := m.group.DoChan(fmt.Sprintf("%#v", key), func() (any, error) {
		loadCtx := context.WithoutCancel(ctx)
		if m.cfg.FetchTimeout > 0 {
			var cancel context.CancelFunc
			loadCtx, cancel = context.WithTimeout(loadCtx, m.cfg.FetchTimeout)
			defer cancel()
		}
		return m.load(loadCtx, key)
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(V), nil
	}
}

// Fetches returns how many times the fetcher has been called.
func (m *Manager[K, V]) Fetches() uint64 {
	return m.fetches.Load()
}

// Cache exposes the underlying store.
func (m *Manager[K, V]) Cache() *Cache[K, V] {
	return m.cache
}

// Stats returns the underlying cache counters.
func (m *Manager[K, V]) Stats() Stats {
	return m.cache.Stats()
}

func (m *Manager[K, V]) load(ctx context.Context, key K) (V, error) {
	m.fetches.Add(1)

	v, err := m.fetch(ctx, key)
	if err != nil {
		var zero V
		return zero, fmt.Errorf("fetching %s %v: %w", m.name, key, err)
	}

	// A full RejectNew cache still hands the fresh entity to the caller.
	if m.cfg.Caching {
		_ = m.cache.Set(key, v)
	}
	return v, nil
}
