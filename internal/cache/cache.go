// Package cache stores recent agent responses keyed by normalized
// query so repeated questions are answered without re-running the
// pipeline. Two backends exist: an in-process store and redis.
package cache

import (
	"context"
	"time"
)

// TTLs per query kind. Financial answers go stale faster than general
// web answers.
const (
	DefaultTTL   = 30 * time.Minute
	FinancialTTL = 15 * time.Minute
)

// Stats summarizes cache performance.
type Stats struct {
	Hits          int     `json:"hits"`
	Misses        int     `json:"misses"`
	TotalRequests int     `json:"total_requests"`
	TotalEntries  int     `json:"total_entries"`
	HitRate       float64 `json:"hit_rate"`
}

// Cache is the response cache interface. Get returns ok=false on a
// miss or when the entry has expired.
type Cache interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}
