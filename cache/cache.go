// Package cache keeps recent successful scan results in memory so repeated
// scans of the same page can be answered without hitting the site.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/use-agent/tabscan/models"
)

// entry holds a cached result with its creation timestamp.
type entry struct {
	result    models.ScanResult
	createdAt time.Time
}

// Cache is a simple in-memory cache for scan results.
// It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	ttl        time.Duration
}

// New creates a Cache holding at most maxEntries results. A background
// goroutine evicts entries older than ttl every 5 minutes until ctx is done.
func New(ctx context.Context, maxEntries int, ttl time.Duration) *Cache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}

	go c.cleanupLoop(ctx)
	return c
}

// Key generates a cache key from the target URL, scan mode and engine.
// Empty mode and engine are keyed as their defaults.
func Key(target, mode, engine string) string {
	if mode == "" {
		mode = models.ModeListing
	}
	if engine == "" {
		engine = models.EngineHTTP
	}
	h := sha256.New()
	h.Write([]byte(target))
	h.Write([]byte("|"))
	h.Write([]byte(mode))
	h.Write([]byte("|"))
	h.Write([]byte(engine))
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a deep copy of the cached result if it exists and is younger than
// maxAge. If maxAge <= 0, no lookup is performed.
func (c *Cache) Get(key string, maxAge time.Duration) (*models.ScanResult, bool) {
	if maxAge <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()

	if !ok || time.Since(e.createdAt) > maxAge {
		return nil, false
	}

	return clone(&e.result), true
}

// Set stores a copy of a successful result. Failures are never cached. If
// the cache is at capacity, a random entry is evicted to make room.
func (c *Cache) Set(key string, r *models.ScanResult) {
	if r == nil || !r.Success {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Map iteration order is random.
	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		for k := range c.store {
			delete(c.store, k)
			break
		}
	}

	c.store[key] = &entry{
		result:    *clone(r),
		createdAt: time.Now(),
	}
}

// clone copies r including its song list, so neither the caller nor the
// cache can change the other's records.
func clone(r *models.ScanResult) *models.ScanResult {
	out := *r
	if r.Results != nil {
		results := *r.Results
		if r.Results.Songs != nil {
			results.Songs = append([]models.SongRecord(nil), r.Results.Songs...)
		}
		out.Results = &results
	}
	if r.Error != nil {
		detail := *r.Error
		out.Error = &detail
	}
	return &out
}

// Len reports the number of cached results.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

func (c *Cache) evictBefore(cutoff time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
}

func (c *Cache) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.evictBefore(time.Now().Add(-c.ttl))
		}
	}
}
