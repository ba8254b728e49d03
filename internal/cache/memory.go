package cache

import (
	"context"
	"sync"
	"time"
)

// sweepInterval bounds how often Set scans for expired entries.
const sweepInterval = time.Minute

// MemoryProvider is an in-process Provider with per-entry TTLs. It serves
// single-replica deployments and tests. Expired entries are removed on read
// and by a periodic sweep during Set.
type MemoryProvider struct {
	mu        sync.RWMutex
	data      map[string]item
	now       func() time.Time
	lastSweep time.Time
}

type item struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryProvider creates an empty in-memory cache.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{data: make(map[string]item), now: time.Now}
}

// Get retrieves a copy of a cached value if present and not expired.
func (c *MemoryProvider) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	it, ok := c.data[key]
	c.mu.RUnlock()
	if !ok {
		return nil, ErrCacheMiss
	}
	if !it.expiresAt.IsZero() && c.now().After(it.expiresAt) {
		c.mu.Lock()
		if cur, ok := c.data[key]; ok && cur.expiresAt.Equal(it.expiresAt) {
			delete(c.data, key)
		}
		c.mu.Unlock()
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), it.value...), nil
}

// Set stores a value with optional TTL.
func (c *MemoryProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := c.now()
	var expires time.Time
	if ttl > 0 {
		expires = now.Add(ttl)
	}
	c.mu.Lock()
	if now.Sub(c.lastSweep) >= sweepInterval {
		c.sweepLocked(now)
	}
	c.data[key] = item{value: append([]byte(nil), value...), expiresAt: expires}
	c.mu.Unlock()
	return nil
}

func (c *MemoryProvider) sweepLocked(now time.Time) {
	for key, it := range c.data {
		if !it.expiresAt.IsZero() && now.After(it.expiresAt) {
			delete(c.data, key)
		}
	}
	c.lastSweep = now
}

// Del removes an entry.
func (c *MemoryProvider) Del(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
	return nil
}

// Close drops every entry.
func (c *MemoryProvider) Close() error {
	c.mu.Lock()
	c.data = make(map[string]item)
	c.mu.Unlock()
	return nil
}
