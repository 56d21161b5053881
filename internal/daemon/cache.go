package daemon

import (
	"sync"
	"time"
)

const (
	defaultCacheTTL  = 15 * time.Minute
	defaultCacheSize = 4096
)

type cacheEntry struct {
	vec       []float32
	expiresAt time.Time
}

// embedCache memoizes vectors by content hash with a TTL. When full it
// sheds expired entries first, then evicts the entry closest to
// expiry. Vector recomputation is cheap enough that precision here
// does not matter.
type embedCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	max     int
}

func newEmbedCache(ttl time.Duration, max int) *embedCache {
	return &embedCache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		max:     max,
	}
}

func (c *embedCache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.vec, true
}

func (c *embedCache) Set(key string, vec []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.max {
		c.evictLocked()
	}
	c.entries[key] = cacheEntry{vec: vec, expiresAt: time.Now().Add(c.ttl)}
}

func (c *embedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *embedCache) evictLocked() {
	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
	if len(c.entries) < c.max {
		return
	}

	var (
		oldestKey string
		oldest    time.Time
	)
	for key, entry := range c.entries {
		if oldestKey == "" || entry.expiresAt.Before(oldest) {
			oldestKey = key
			oldest = entry.expiresAt
		}
	}
	if oldestKey != "" {
		delete(c.entries, oldestKey)
	}
}
