// Package quality implements the QualityCache and its sync scheduler
// (spec §4.10): a process-wide cache of table quality metrics kept warm
// by a daily incremental sync against an external quality source.
package quality

import (
	"sync"
	"time"
)

const defaultScore = 0.5

// CachedMetric is one entry in the QualityCache (spec §3 "QualityMetric").
type CachedMetric struct {
	QualityScore    float64
	SourceUpdatedAt time.Time
	CachedAt        time.Time
}

// Cache stores table_name -> CachedMetric. Unlike the generic
// internal/cache.TTLCache, Get never evicts on staleness: callers are
// expected to consult CacheAge themselves (spec §4.10: "Get returns the
// entry even if stale").
type Cache struct {
	mu      sync.RWMutex
	entries map[string]CachedMetric

	lastFullSync        time.Time
	lastIncrementalSync time.Time
}

// New builds an empty Cache.
func New() *Cache {
	return &Cache{entries: make(map[string]CachedMetric)}
}

// Get returns the cached metric for name, even if stale.
func (c *Cache) Get(name string) (CachedMetric, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.entries[name]
	return m, ok
}

// GetScore returns stored/100, or def if the table is uncached.
func (c *Cache) GetScore(name string, def float64) float64 {
	m, ok := c.Get(name)
	if !ok {
		return def
	}
	return m.QualityScore / 100.0
}

// Set upserts a single entry, stamping CachedAt with now.
func (c *Cache) Set(name string, qualityScore float64, sourceUpdatedAt, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[name] = CachedMetric{QualityScore: qualityScore, SourceUpdatedAt: sourceUpdatedAt, CachedAt: now}
}

// CacheAge reports how long ago name was last refreshed in the cache.
func (c *Cache) CacheAge(name string, now time.Time) (time.Duration, bool) {
	m, ok := c.Get(name)
	if !ok {
		return 0, false
	}
	return now.Sub(m.CachedAt), true
}

// LastSyncAge reports how long ago the most recent sync (full or
// incremental) completed, used by the health checker's 48h rule (§7).
func (c *Cache) LastSyncAge(now time.Time) (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	last := c.lastFullSync
	if c.lastIncrementalSync.After(last) {
		last = c.lastIncrementalSync
	}
	if last.IsZero() {
		return 0, false
	}
	return now.Sub(last), true
}

func (c *Cache) markFullSync(now time.Time)        { c.mu.Lock(); c.lastFullSync = now; c.mu.Unlock() }
func (c *Cache) markIncrementalSync(now time.Time) { c.mu.Lock(); c.lastIncrementalSync = now; c.mu.Unlock() }
