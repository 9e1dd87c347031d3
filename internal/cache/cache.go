// Package cache is the bounded result cache shared by concurrent analysis
// runs. A ResultCache wraps a backing Store with a count bound: the store
// owns TTL expiry, the wrapper owns the entry limit. Every operation
// degrades to a miss or no-op when the store misbehaves, so a cache outage
// means recomputation, never a failed run.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Store is the backing key/value layer. Implementations enforce TTL on
// their own entries and must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

type trackedKey struct {
	key   string
	setAt time.Time
}

// ResultCache bounds a Store to maxEntries keys. Each Set stamps the key in
// an insertion-ordered log and then trims the oldest keys beyond the limit
// from both the store and the log. Get deliberately does not refresh a
// key's position; this is a write-recency cap, not a read-through LRU.
type ResultCache struct {
	mu    sync.Mutex
	store Store
	max   int
	ttl   time.Duration
	order []trackedKey
}

func New(store Store, maxEntries int, defaultTTL time.Duration) *ResultCache {
	if maxEntries <= 0 {
		maxEntries = 10
	}
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &ResultCache{store: store, max: maxEntries, ttl: defaultTTL}
}

// Get returns the cached value, or absent on miss, expiry, or store
// failure.
func (c *ResultCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.store == nil {
		return nil, false
	}
	value, ok, err := c.store.Get(ctx, key)
	if err != nil {
		logrus.Warnf("cache: get %q degraded to miss: %v", key, err)
		return nil, false
	}
	return value, ok
}

// Set stores the value under key with the given TTL (<=0 means the cache
// default) and trims the tracked key set back under the bound. Failures
// are logged and swallowed.
func (c *ResultCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if c == nil || c.store == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.ttl
	}
	if err := c.store.Set(ctx, key, value, ttl); err != nil {
		logrus.Warnf("cache: set %q failed, continuing uncached: %v", key, err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeTrackedLocked(key)
	c.order = append(c.order, trackedKey{key: key, setAt: time.Now()})
	c.trimLocked(ctx)
}

// Delete drops the key from the store and the access log.
func (c *ResultCache) Delete(ctx context.Context, key string) {
	if c == nil || c.store == nil {
		return
	}
	if err := c.store.Delete(ctx, key); err != nil {
		logrus.Warnf("cache: delete %q failed: %v", key, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeTrackedLocked(key)
}

// Clear empties both the store and the access log.
func (c *ResultCache) Clear(ctx context.Context) {
	if c == nil || c.store == nil {
		return
	}
	if err := c.store.Clear(ctx); err != nil {
		logrus.Warnf("cache: clear failed: %v", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = nil
}

// Len is the number of tracked keys.
func (c *ResultCache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}

// trimLocked deletes the oldest-inserted keys beyond the bound, removing
// store entry and log entry together.
func (c *ResultCache) trimLocked(ctx context.Context) {
	for len(c.order) > c.max {
		victim := c.order[0]
		c.order = c.order[1:]
		if err := c.store.Delete(ctx, victim.key); err != nil {
			logrus.Warnf("cache: evict %q failed: %v", victim.key, err)
		}
	}
}

func (c *ResultCache) removeTrackedLocked(key string) {
	for i, tk := range c.order {
		if tk.key == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
