// Package cache provides a bounded, TTL-aware LRU built on top of
// hashicorp/golang-lru/v2. It generalizes the teacher's hand-rolled
// map+mutex QueryCache (internal/rpc/cache.go in the teacher repo) to a
// reusable generic type backing both the intent cache (spec §4.2) and
// the feedback aggregate cache (spec §4.12): same hit/miss accounting and
// expiry-on-read semantics, backed by a library instead of a bespoke map.
package cache

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry[V any] struct {
	value     V
	createdAt time.Time
}

// TTLCache is a bounded LRU map from K to V where entries expire after a
// fixed TTL. Expiry is checked on read (Get); an expired entry found on
// read is evicted and counted as a miss, but does not retroactively
// un-count an earlier hit against it (spec §4.1 "Cache discipline").
type TTLCache[K comparable, V any] struct {
	mu    sync.RWMutex
	inner *lru.Cache[K, entry[V]]
	ttl   time.Duration

	hits   int64
	misses int64
}

// New builds a TTLCache with the given capacity and TTL. size <= 0 falls
// back to golang-lru's own minimum of 1.
func New[K comparable, V any](size int, ttl time.Duration) *TTLCache[K, V] {
	if size <= 0 {
		size = 1
	}
	inner, _ := lru.New[K, entry[V]](size)
	return &TTLCache[K, V]{inner: inner, ttl: ttl}
}

// Get returns the cached value for key if present and not expired.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.inner.Get(key)
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		var zero V
		return zero, false
	}
	if c.ttl > 0 && time.Since(e.createdAt) > c.ttl {
		c.inner.Remove(key)
		atomic.AddInt64(&c.misses, 1)
		var zero V
		return zero, false
	}
	atomic.AddInt64(&c.hits, 1)
	return e.value, true
}

// Set inserts value under key with a fresh creation timestamp, and also
// under every key in aliases — used by the intent normalizer to point
// synonym-expanded query variants at the same stored Intent (spec §4.1).
func (c *TTLCache[K, V]) Set(key K, value V, aliases ...K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := entry[V]{value: value, createdAt: time.Now()}
	c.inner.Add(key, e)
	for _, alias := range aliases {
		c.inner.Add(alias, e)
	}
}

// Invalidate removes a single key.
func (c *TTLCache[K, V]) Invalidate(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Remove(key)
}

// Clear removes every entry and resets hit/miss counters.
func (c *TTLCache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inner.Purge()
	atomic.StoreInt64(&c.hits, 0)
	atomic.StoreInt64(&c.misses, 0)
}

// Stats is a point-in-time view of cache performance.
type Stats struct {
	Entries int
	Hits    int64
	Misses  int64
}

// HitRate returns hits/(hits+misses), or 0 if no lookups have occurred.
func (c *TTLCache[K, V]) HitRate() float64 {
	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

// Stats returns the current entry count and hit/miss counters.
func (c *TTLCache[K, V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Entries: c.inner.Len(),
		Hits:    atomic.LoadInt64(&c.hits),
		Misses:  atomic.LoadInt64(&c.misses),
	}
}
