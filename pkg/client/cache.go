package client

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/example/handlefs/pkg/api"
)

// AttrCache caches file attributes by handle. Entries expire after the
// configured TTL and the least recently used entry goes first once the
// cache is full.
type AttrCache struct {
	mu      sync.RWMutex
	maxSize int
	entries *expirable.LRU[string, *api.FileAttributes]
}

// NewAttrCache creates a new attribute cache
func NewAttrCache(maxSize int, ttl time.Duration) *AttrCache {
	return &AttrCache{
		maxSize: maxSize,
		entries: expirable.NewLRU[string, *api.FileAttributes](maxSize, nil, ttl),
	}
}

// Store records attrs for handle. A nil attrs is ignored.
func (c *AttrCache) Store(handle []byte, attrs *api.FileAttributes) {
	if attrs == nil || len(handle) == 0 {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.entries.Add(string(handle), attrs)
}

// Get retrieves the attributes cached for handle.
func (c *AttrCache) Get(handle []byte) (*api.FileAttributes, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Get(string(handle))
}

// Invalidate drops the entry of handle.
func (c *AttrCache) Invalidate(handle []byte) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.entries.Remove(string(handle))
}

// Len returns the number of live entries.
func (c *AttrCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries.Len()
}

// Purge drops every entry.
func (c *AttrCache) Purge() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	c.entries.Purge()
}

// SetTTL replaces the cache with an empty one using ttl.
func (c *AttrCache) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = expirable.NewLRU[string, *api.FileAttributes](c.maxSize, nil, ttl)
}
