package detect

import (
	"sync"
	"time"
)

// DefaultCacheTTL bounds scan staleness. The cache is in-process only;
// when multiple service instances run, each carries its own and cross-
// instance staleness is bounded by this TTL.
const DefaultCacheTTL = 30 * time.Second

// ScanCache memoizes the most recent scan result per key. Single writer
// (the detection engine), last-write-wins.
type ScanCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	result   *Result
	storedAt time.Time
}

// NewScanCache returns a cache with the given TTL (DefaultCacheTTL when
// zero).
func NewScanCache(ttl time.Duration) *ScanCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &ScanCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the memoized result when present and fresh.
func (c *ScanCache) Get(key string) (*Result, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok || time.Since(e.storedAt) > c.ttl {
		return nil, false
	}
	return e.result, true
}

// Set stores a result under key.
func (c *ScanCache) Set(key string, r *Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{result: r, storedAt: time.Now()}
}

// Invalidate drops every entry. Called after any successful executor
// action and after each drift tick.
func (c *ScanCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}
