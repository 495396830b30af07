// Package cache provides the single time-bounded cache used for provider
// lists, templates, fee rules and budget snapshots. Each artifact class
// owns one Cache instance with its own TTL; explicit writes invalidate the
// key instead of waiting for expiry.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value    V
	loadedAt time.Time
}

// Cache is a TTL-bounded read-through cache keyed by string.
type Cache[V any] struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]entry[V]
}

func New[V any](ttl time.Duration) *Cache[V] {
	return newCache[V](ttl, time.Now)
}

func newCache[V any](ttl time.Duration, nowFn func() time.Time) *Cache[V] {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Cache[V]{
		ttl:     ttl,
		now:     nowFn,
		entries: make(map[string]entry[V]),
	}
}

// Get returns the cached value if present and fresh. An expired entry is
// treated as a miss and removed.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return zero, false
	}

	if c.ttl <= 0 || c.now().Sub(e.loadedAt) >= c.ttl {
		c.Invalidate(key)
		return zero, false
	}

	return e.value, true
}

func (c *Cache[V]) Set(key string, value V) {
	if c == nil {
		return
	}

	c.mu.Lock()
	c.entries[key] = entry[V]{value: value, loadedAt: c.now()}
	c.mu.Unlock()
}

func (c *Cache[V]) Invalidate(key string) {
	if c == nil {
		return
	}

	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// GetOrLoad returns a fresh cached value or loads, stores and returns a new
// one. A load error is returned as-is and nothing is cached.
func (c *Cache[V]) GetOrLoad(key string, load func() (V, error)) (V, error) {
	if value, ok := c.Get(key); ok {
		return value, nil
	}

	value, err := load()
	if err != nil {
		var zero V
		return zero, err
	}

	c.Set(key, value)
	return value, nil
}
