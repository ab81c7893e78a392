package schema

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Cache wraps a Store with a TTL snapshot cache keyed by schema id.
// Snapshots may be stale within the TTL; callers that need the latest
// state pass bypass=true. Every mutation path must call Invalidate
// synchronously. Hit/miss counters are observational only.
type Cache struct {
	store Store
	ttl   time.Duration

	mu      sync.RWMutex
	entries map[string]*cacheEntry

	hits   atomic.Int64
	misses atomic.Int64
}

type cacheEntry struct {
	value     *GlobalSchema
	expiresAt time.Time
}

func (e *cacheEntry) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// CacheConfig configures the schema cache.
type CacheConfig struct {
	TTL time.Duration
}

// NewCache creates a caching wrapper around a store.
func NewCache(store Store, cfg CacheConfig) *Cache {
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{
		store:   store,
		ttl:     ttl,
		entries: make(map[string]*cacheEntry),
	}
}

// Get returns the schema, serving a cached snapshot when one is fresh
// and bypass is false.
func (c *Cache) Get(ctx context.Context, id string, bypass bool) (*GlobalSchema, error) {
	if !bypass {
		c.mu.RLock()
		entry, ok := c.entries[id]
		c.mu.RUnlock()
		if ok && !entry.isExpired() {
			c.hits.Add(1)
			return entry.value, nil
		}
	}
	c.misses.Add(1)

	s, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.entries[id] = &cacheEntry{value: s, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()

	return s, nil
}

// Invalidate drops the cached snapshot for a schema. Mutators call this
// before returning so readers never observe a snapshot older than their
// own write.
func (c *Cache) Invalidate(id string) {
	c.mu.Lock()
	delete(c.entries, id)
	c.mu.Unlock()
}

// CacheStats reports cache effectiveness counters.
type CacheStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// Stats returns the current hit/miss counts.
func (c *Cache) Stats() CacheStats {
	return CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
}
