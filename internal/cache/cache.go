// Package cache provides the in-memory entity store used by the SDK's
// per-kind managers: a generic bounded key/value cache with a configurable
// eviction policy, and a Manager that composes it with a remote fetcher.
package cache

import (
	"container/list"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrFull is returned by Set when the cache is at capacity, the key is new,
// and the policy is RejectNew.
var ErrFull = errors.New("cache is full")

// Policy decides what happens when a new key is inserted into a full cache.
type Policy int

const (
	// EvictLRU drops the least recently read or written entry.
	EvictLRU Policy = iota
	// EvictOldest drops the entry inserted first, ignoring reads.
	EvictOldest
	// RejectNew refuses the insert and keeps the existing entries.
	RejectNew
)

var policyNames = map[Policy]string{
	EvictLRU:    "lru",
	EvictOldest: "oldest",
	RejectNew:   "reject",
}

func (p Policy) String() string {
	if name, ok := policyNames[p]; ok {
		return name
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy converts a config string ("lru", "oldest", "reject") to a Policy.
// An empty string selects EvictLRU.
func ParsePolicy(s string) (Policy, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return EvictLRU, nil
	}
	for p, name := range policyNames {
		if name == s {
			return p, nil
		}
	}
	return EvictLRU, fmt.Errorf("unknown cache policy %q", s)
}

// Options configures a Cache. A MaxSize of zero or less means unbounded.
type Options struct {
	MaxSize int
	Policy  Policy
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Size       int    `json:"size"`
	MaxSize    int    `json:"max_size"`
	Policy     string `json:"policy"`
	Hits       uint64 `json:"hits"`
	Misses     uint64 `json:"misses"`
	Evictions  uint64 `json:"evictions"`
	Rejections uint64 `json:"rejections"`
}

type entry[K comparable, V any] struct {
	key   K
	value V
}

// Cache is a bounded map from K to V. The zero value is not usable; call New.
// It is safe for concurrent use.
type Cache[K comparable, V any] struct {
	mu    sync.Mutex
	opts  Options
	items map[K]*list.Element
	// front holds the most recently used entry for EvictLRU and the most
	// recently inserted entry otherwise.
	order *list.List

	hits, misses, evictions, rejections uint64
}

// New creates an empty Cache.
func New[K comparable, V any](opts Options) *Cache[K, V] {
	return &Cache[K, V]{
		opts:  opts,
		items: make(map[K]*list.Element),
		order: list.New(),
	}
}

// Get returns the cached value for key. It never blocks on I/O.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	if c.opts.Policy == EvictLRU {
		c.order.MoveToFront(el)
	}
	return el.Value.(*entry[K, V]).value, true
}

// Has reports whether key is cached without touching recency or counters.
func (c *Cache[K, V]) Has(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.items[key]
	return ok
}

// Set inserts or overwrites key. Overwrites always succeed. Inserting a new
// key into a full cache evicts per the policy, or returns ErrFull for RejectNew.
func (c *Cache[K, V]) Set(key K, value V) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		el.Value.(*entry[K, V]).value = value
		if c.opts.Policy == EvictLRU {
			c.order.MoveToFront(el)
		}
		return nil
	}

	if c.opts.MaxSize > 0 && len(c.items) >= c.opts.MaxSize {
		if c.opts.Policy == RejectNew {
			c.rejections++
			return ErrFull
		}
		if back := c.order.Back(); back != nil {
			c.removeElement(back)
			c.evictions++
		}
	}

	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, value: value})
	return nil
}

// Delete removes key and reports whether it was present.
func (c *Cache[K, V]) Delete(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(el)
	return true
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Keys returns a snapshot of the cached keys, most recent first.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, len(c.items))
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*entry[K, V]).key)
	}
	return keys
}

// Values returns a snapshot of the cached values, most recent first.
func (c *Cache[K, V]) Values() []V {
	c.mu.Lock()
	defer c.mu.Unlock()

	values := make([]V, 0, len(c.items))
	for el := c.order.Front(); el != nil; el = el.Next() {
		values = append(values, el.Value.(*entry[K, V]).value)
	}
	return values
}

// DeleteFunc removes every entry for which fn returns true and returns the
// number removed. fn runs with the cache locked and must not call back into it.
func (c *Cache[K, V]) DeleteFunc(fn func(K, V) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		e := el.Value.(*entry[K, V])
		if fn(e.key, e.value) {
			c.removeElement(el)
			removed++
		}
		el = next
	}
	return removed
}

// Clear drops every entry. Counters are kept.
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*list.Element)
	c.order.Init()
}

// Stats returns the current counters.
func (c *Cache[K, V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:       len(c.items),
		MaxSize:    c.opts.MaxSize,
		Policy:     c.opts.Policy.String(),
		Hits:       c.hits,
		Misses:     c.misses,
		Evictions:  c.evictions,
		Rejections: c.rejections,
	}
}

func (c *Cache[K, V]) removeElement(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry[K, V]).key)
}
