// Package memcache provides an in-process implementation of ports.Cache.
package memcache

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"tradeJournal/internal/ports"
)

// Ensure Cache implements the ports.Cache interface.
var _ ports.Cache = (*Cache)(nil)

// Cache keeps byte values in a go-cache store with per-key expiry. Expired
// entries are invisible to reads and dropped by Sweep.
type Cache struct {
	items *gocache.Cache
}

// New creates an empty cache. Expired entries are only removed by Sweep or
// RunJanitor, so the caller controls the janitor's lifetime.
func New() *Cache {
	return &Cache{items: gocache.New(gocache.NoExpiration, 0)}
}

// Get implements ports.Cache.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.items.Get(key)
	if !ok {
		return nil, false, nil
	}
	value, ok := v.([]byte)
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// Set implements ports.Cache. A non-positive ttl stores the value without expiry.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	c.items.Set(key, stored, ttl)
	return nil
}

// Delete implements ports.Cache.
func (c *Cache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		c.items.Delete(k)
	}
	return nil
}

// FlushPrefix implements ports.Cache.
func (c *Cache) FlushPrefix(_ context.Context, prefix string) error {
	for k := range c.items.Items() {
		if strings.HasPrefix(k, prefix) {
			c.items.Delete(k)
		}
	}
	return nil
}

// Sweep removes every expired entry and returns how many were dropped.
// Under concurrent writes the count is approximate.
func (c *Cache) Sweep() int {
	before := c.items.ItemCount()
	c.items.DeleteExpired()
	if n := before - c.items.ItemCount(); n > 0 {
		return n
	}
	return 0
}

// RunJanitor calls Sweep every interval until ctx is cancelled.
func (c *Cache) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	return c.items.ItemCount()
}
