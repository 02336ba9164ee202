package client

import (
	"bytes"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// HandleCache maps absolute export paths to file handles and back.
type HandleCache struct {
	mu      sync.Mutex
	maxSize int

	handles *expirable.LRU[string, []byte] // path -> handle
	paths   *expirable.LRU[string, string] // handle -> path
}

// NewHandleCache creates a new file handle cache
func NewHandleCache(maxSize int, ttl time.Duration) *HandleCache {
	c := &HandleCache{maxSize: maxSize}
	c.reset(ttl)
	return c
}

func (c *HandleCache) reset(ttl time.Duration) {
	c.handles = expirable.NewLRU[string, []byte](c.maxSize, nil, ttl)
	c.paths = expirable.NewLRU[string, string](c.maxSize, nil, ttl)
}

// StorePathHandle records that path resolves to handle.
func (c *HandleCache) StorePathHandle(path string, handle []byte) {
	if len(handle) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.handles.Peek(path); ok && !bytes.Equal(old, handle) {
		c.paths.Remove(string(old))
	}
	c.handles.Add(path, bytes.Clone(handle))
	c.paths.Add(string(handle), path)
}

// GetHandle retrieves the file handle cached for path.
func (c *HandleCache) GetHandle(path string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handles.Get(path)
}

// GetPath retrieves the path a handle was last resolved from.
func (c *HandleCache) GetPath(handle []byte) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paths.Get(string(handle))
}

// InvalidatePath drops path and everything cached below it and returns
// the handles that were dropped.
func (c *HandleCache) InvalidatePath(path string) [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := strings.TrimSuffix(path, "/") + "/"
	var dropped [][]byte
	for _, p := range c.handles.Keys() {
		if p != path && !strings.HasPrefix(p, prefix) {
			continue
		}
		if h, ok := c.handles.Peek(p); ok {
			c.paths.Remove(string(h))
			dropped = append(dropped, h)
		}
		c.handles.Remove(p)
	}
	return dropped
}

// Len returns the number of cached paths.
func (c *HandleCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handles.Len()
}

// Purge drops every entry.
func (c *HandleCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handles.Purge()
	c.paths.Purge()
}

// SetTTL replaces the cache contents with empty caches using ttl.
func (c *HandleCache) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset(ttl)
}
