package guard

import (
	"strconv"
	"sync"
	"time"

	"candela-hq/guardian/pkg/canonical"
)

// CacheKey identifies a verdict by everything that can change it.
func CacheKey(text, rulesetHash string, mode Mode, semanticEnabled bool, threshold float64) string {
	return canonical.HashString(text) +
		"::" + rulesetHash +
		"::" + string(mode) +
		"::" + strconv.FormatBool(semanticEnabled) +
		"::" + strconv.FormatFloat(threshold, 'f', 4, 64)
}

type cacheEntry struct {
	verdict   *Verdict
	expiresAt time.Time
}

// Cache is a TTL map of verdicts. Entries are replaced only by Set or an
// explicit Overwrite.
type Cache struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
}

// NewCache creates a cache. A zero ttl disables caching.
func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the verdict for key if it has not expired.
func (c *Cache) Get(key string) (*Verdict, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !c.now().Before(e.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.entries[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}
	return e.verdict, true
}

// Set stores v under key with a fresh TTL.
func (c *Cache) Set(key string, v *Verdict) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{verdict: v, expiresAt: c.now().Add(c.ttl)}
}

// Overwrite replaces the verdict for key and keeps its expiry. A missing
// or expired entry is stored with a fresh TTL.
func (c *Cache) Overwrite(key string, v *Verdict) {
	if c.ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	expires := now.Add(c.ttl)
	if e, ok := c.entries[key]; ok && now.Before(e.expiresAt) {
		expires = e.expiresAt
	}
	c.entries[key] = cacheEntry{verdict: v, expiresAt: expires}
}

// Len returns the number of stored entries, including expired ones not yet
// swept.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep removes expired entries and returns how many were removed.
func (c *Cache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}
