package source

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/okian/epidash/internal/domain/model"
	"github.com/okian/epidash/pkg/metrics"
)

type cacheEntry struct {
	table     *model.Table
	fetchedAt time.Time
}

// Cache memoizes fetched tables per URL. Concurrent misses for one URL share
// a single fetch and failures are never stored. A zero TTL keeps entries for
// the life of the process.
type Cache struct {
	fetcher Fetcher
	ttl     time.Duration
	now     func() time.Time

	mu      sync.RWMutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithTTL sets the entry lifetime. Zero or negative means no expiry.
func WithTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) { c.ttl = ttl }
}

// WithNow replaces the clock used for expiry.
func WithNow(now func() time.Time) CacheOption {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCache wraps fetcher with a cache.
func NewCache(fetcher Fetcher, opts ...CacheOption) *Cache {
	c := &Cache{
		fetcher: fetcher,
		now:     time.Now,
		entries: make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached table for url, fetching it on a miss. Repeated
// calls within the TTL return the same pointer.
func (c *Cache) Get(ctx context.Context, url string) (*model.Table, error) {
	if t, ok := c.lookup(url); ok {
		metrics.RecordCacheHit()
		return t, nil
	}
	metrics.RecordCacheMiss()

	v, err, _ := c.group.Do(url, func() (any, error) {
		if t, ok := c.lookup(url); ok {
			return t, nil
		}
		t, err := c.fetcher.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[url] = cacheEntry{table: t, fetchedAt: c.now()}
		n := len(c.entries)
		c.mu.Unlock()
		metrics.UpdateCacheEntries(n)
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Table), nil //nolint:forcetypeassert // only *model.Table is stored
}

func (c *Cache) lookup(url string) (*model.Table, bool) {
	c.mu.RLock()
	e, ok := c.entries[url]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(e.fetchedAt) >= c.ttl {
		return nil, false
	}
	return e.table, true
}

// Invalidate drops the entry for url.
func (c *Cache) Invalidate(url string) {
	c.mu.Lock()
	delete(c.entries, url)
	n := len(c.entries)
	c.mu.Unlock()
	c.group.Forget(url)
	metrics.UpdateCacheEntries(n)
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
	metrics.UpdateCacheEntries(0)
}

// Len returns the number of cached URLs, expired ones included.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
