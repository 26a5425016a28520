package cache

import "time"

// LayeredCache fronts the disk cache with a memory cache. The news
// providers read through it: a fresh process starts cold in memory but
// warm on disk, and disk hits are promoted back into memory.
type LayeredCache struct {
	memory Cache
	disk   Cache
}

// NewLayeredCache creates a memory+disk cache. memoryTTL bounds the hot
// layer; diskTTL bounds how long a provider response survives on disk.
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory: NewMemoryCache(memoryTTL, 10*time.Minute),
		disk:   NewDiskCache(diskDir, diskTTL),
	}
}

// Get checks memory first, then disk. A disk hit is promoted into memory
// under the default memory TTL.
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	if val, found := c.memory.Get(key); found {
		return val, true
	}

	if val, found := c.disk.Get(key); found {
		_ = c.memory.Set(key, val, 0)
		return val, true
	}

	return nil, false
}

// Set writes through to both layers.
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.memory.Set(key, value, ttl); err != nil {
		return err
	}
	return c.disk.Set(key, value, ttl)
}

// Delete removes key from both layers.
func (c *LayeredCache) Delete(key string) error {
	_ = c.memory.Delete(key)
	_ = c.disk.Delete(key)
	return nil
}

// Clear drops both layers.
func (c *LayeredCache) Clear() error {
	_ = c.memory.Clear()
	_ = c.disk.Clear()
	return nil
}
