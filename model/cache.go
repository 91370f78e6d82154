// model/cache.go
package model

import "time"

// RetentionMode selects which tiers a permission cache writes through to.
type RetentionMode string

const (
	RetentionMemory        RetentionMode = "memory"
	RetentionSessionBacked RetentionMode = "sessionBacked"
	RetentionBoth          RetentionMode = "both"
)

// CacheEntry is one cached permission decision. An entry whose ExpiresAt has
// passed must be treated as absent, never as a value.
type CacheEntry struct {
	PermissionCode string    `json:"permission_code"`
	Granted        bool      `json:"granted"`
	ExpiresAt      time.Time `json:"expires_at"`
	FetchedAt      time.Time `json:"fetched_at"`
}

// CacheConfig is immutable per cache instance.
type CacheConfig struct {
	TTL        time.Duration
	MaxEntries int
	Retention  RetentionMode
}

// CacheStats is a point-in-time, read-only view of a cache instance.
type CacheStats struct {
	Size        int           `json:"size"`
	MaxSize     int           `json:"max_size"`
	HitRate     float64       `json:"hit_rate"`
	TTL         time.Duration `json:"ttl"`
	OldestEntry *time.Time    `json:"oldest_entry,omitempty"`
}
