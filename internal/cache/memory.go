package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryCache holds provider responses in process memory. It is the hot
// layer: hits here skip both disk and the news APIs.
type MemoryCache struct {
	store *gocache.Cache
}

// NewMemoryCache creates a memory cache with the given default TTL and
// expired-entry cleanup interval.
func NewMemoryCache(defaultTTL, cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		store: gocache.New(defaultTTL, cleanupInterval),
	}
}

// Get returns the cached response body for key, if present and unexpired.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	if val, found := c.store.Get(key); found {
		return val.([]byte), true
	}
	return nil, false
}

// Set stores a response body under key. A zero ttl uses the default.
func (c *MemoryCache) Set(key string, value []byte, ttl time.Duration) error {
	c.store.Set(key, value, ttl)
	return nil
}

// Delete removes key from the cache.
func (c *MemoryCache) Delete(key string) error {
	c.store.Delete(key)
	return nil
}

// Clear drops every cached response.
func (c *MemoryCache) Clear() error {
	c.store.Flush()
	return nil
}
