package cache

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"
)

// accessHistoryWindow bounds how far back access tracking looks.
const accessHistoryWindow = 24 * time.Hour

type entry struct {
	value       string
	storedAt    time.Time
	ttl         time.Duration
	accessCount int
}

// MemoryCache is an in-process cache with TTL expiry, least-used
// eviction, and access pattern tracking.
type MemoryCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	access  map[string][]time.Time
	maxSize int
	hits    int
	misses  int
	now     func() time.Time
}

// NewMemoryCache creates an in-process cache holding at most maxSize
// entries. maxSize <= 0 means 1000.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = 1000
	}
	return &MemoryCache{
		entries: make(map[string]*entry),
		access:  make(map[string][]time.Time),
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Get returns the cached value if present and fresh. Expired entries
// are removed on access.
func (c *MemoryCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if ok {
		c.hits++
		c.trackAccess(key)
		if c.now().Sub(e.storedAt) < e.ttl {
			e.accessCount++
			return e.value, true, nil
		}
		delete(c.entries, key)
	}

	c.misses++
	return "", false, nil
}

// Set stores a value, evicting the least used entry when full.
func (c *MemoryCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictLeastUsed()
	}

	c.entries[key] = &entry{
		value:       value,
		storedAt:    c.now(),
		ttl:         ttl,
		accessCount: 1,
	}
	c.trackAccess(key)
	return nil
}

// Stats reports hit/miss counts and the current hit rate percentage.
func (c *MemoryCache) Stats(_ context.Context) (Stats, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	var hitRate float64
	if total > 0 {
		hitRate = math.Round(float64(c.hits)/float64(total)*10000) / 100
	}
	return Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		TotalRequests: total,
		TotalEntries:  len(c.entries),
		HitRate:       hitRate,
	}, nil
}

// Close is a no-op for the in-process backend.
func (c *MemoryCache) Close() error { return nil }

// PredictNextAccess returns keys that are likely to be requested soon,
// based on their historical access intervals. A key qualifies when it
// has at least three recent accesses and the time since its last access
// exceeds 80% of its average access interval.
func (c *MemoryCache) PredictNextAccess() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	var predictions []string
	for key, accesses := range c.access {
		if len(accesses) < 3 {
			continue
		}
		var sum time.Duration
		for i := 1; i < len(accesses); i++ {
			sum += accesses[i].Sub(accesses[i-1])
		}
		avgInterval := sum / time.Duration(len(accesses)-1)
		sinceLast := now.Sub(accesses[len(accesses)-1])
		if float64(sinceLast) > float64(avgInterval)*0.8 {
			predictions = append(predictions, key)
		}
	}

	sort.Strings(predictions)
	if len(predictions) > 5 {
		predictions = predictions[:5]
	}
	return predictions
}

// trackAccess records an access and prunes history older than the
// tracking window. Caller holds the lock.
func (c *MemoryCache) trackAccess(key string) {
	now := c.now()
	cutoff := now.Add(-accessHistoryWindow)

	recent := c.access[key][:0]
	for _, t := range c.access[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}
	c.access[key] = append(recent, now)
}

// evictLeastUsed removes the entry with the lowest access count.
// Caller holds the lock.
func (c *MemoryCache) evictLeastUsed() {
	var victim string
	lowest := -1
	for key, e := range c.entries {
		if lowest == -1 || e.accessCount < lowest {
			victim = key
			lowest = e.accessCount
		}
	}
	if victim != "" {
		delete(c.entries, victim)
	}
}
