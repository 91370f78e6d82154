// cache/cache.go
package cache

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	logger "github.com/clinicore/authcore/logging"
	"github.com/clinicore/authcore/model"
)

// SessionStore is the secondary retention tier: a per-session key-value
// interface holding the serialized entry list. Failures here are non-fatal;
// the cache degrades to memory-only operation.
type SessionStore interface {
	SaveEntries(ctx context.Context, entries []model.CacheEntry) error
	LoadEntries(ctx context.Context) ([]model.CacheEntry, error)
	ClearEntries(ctx context.Context) error
}

type record struct {
	entry model.CacheEntry
	seq   uint64
}

// PermissionCache maps permission code to a cached boolean decision, bounded
// by TTL and capacity. One instance per authenticated identity.
//
// Every public method runs inside a fault boundary: an internal panic is
// absorbed, logged and counted, and the method degrades to its fail-closed
// outcome (lookup reports absent, mutation is dropped). A fault must never
// surface in a way a caller could mistake for "granted".
type PermissionCache struct {
	mu      sync.Mutex
	config  model.CacheConfig
	entries map[string]*record
	nextSeq uint64

	lookups int64
	hits    int64

	store   SessionStore
	onFault func()

	now func() time.Time
}

// New builds a cache and hydrates it from the session store when the
// retention mode calls for one. Entries already expired at load time are
// discarded. onFault may be nil.
func New(ctx context.Context, config model.CacheConfig, store SessionStore, onFault func()) *PermissionCache {
	c := &PermissionCache{
		config:  config,
		entries: make(map[string]*record),
		onFault: onFault,
		now:     time.Now,
	}
	if config.Retention != model.RetentionMemory && store != nil {
		c.store = store
		c.hydrate(ctx)
	}
	return c
}

func (c *PermissionCache) hydrate(ctx context.Context) {
	entries, err := c.store.LoadEntries(ctx)
	if err != nil {
		logger.Warn("Failed to hydrate permission cache, starting empty", zap.Error(err))
		return
	}

	now := c.now()
	loaded := 0
	for _, entry := range entries {
		if !now.Before(entry.ExpiresAt) {
			continue
		}
		entry := entry
		c.entries[entry.PermissionCode] = &record{entry: entry, seq: c.nextSeq}
		c.nextSeq++
		loaded++
	}
	if loaded > 0 {
		logger.Debug("Permission cache hydrated", zap.Int("entries", loaded))
	}
}

func (c *PermissionCache) fault(op string) {
	if r := recover(); r != nil {
		logger.Error("Permission cache fault",
			zap.String("operation", op),
			zap.Any("panic", r))
		if c.onFault != nil {
			c.onFault()
		}
	}
}

// Get returns the cached decision only when an entry exists and is
// unexpired. The second return value distinguishes a cached denial from an
// absent entry; callers treat both as "do not grant", but only absence means
// "ask the authority". Expired entries are pruned on every access.
func (c *PermissionCache) Get(code string) (granted bool, ok bool) {
	defer c.fault("get")

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pruneLocked()
	c.lookups++

	rec, present := c.entries[code]
	if !present {
		return false, false
	}

	c.hits++
	return rec.entry.Granted, true
}

// Set inserts or overwrites an entry with expiresAt = now + ttl, prunes
// expired entries, then evicts the least-recently-fetched entries until the
// cache is at or under capacity. The updated entry set is persisted to the
// session store when one is configured.
func (c *PermissionCache) Set(ctx context.Context, code string, granted bool) {
	defer c.fault("set")

	var snapshot []model.CacheEntry
	func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		now := c.now()
		c.entries[code] = &record{
			entry: model.CacheEntry{
				PermissionCode: code,
				Granted:        granted,
				FetchedAt:      now,
				ExpiresAt:      now.Add(c.config.TTL),
			},
			seq: c.nextSeq,
		}
		c.nextSeq++

		c.pruneLocked()
		c.evictLocked()
		snapshot = c.snapshotLocked()
	}()

	c.persist(ctx, snapshot)
}

// Invalidate clears all entries from both retention tiers. Used on logout or
// bulk role change.
func (c *PermissionCache) Invalidate(ctx context.Context) {
	defer c.fault("invalidate")

	c.mu.Lock()
	c.entries = make(map[string]*record)
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.ClearEntries(ctx); err != nil {
			logger.Warn("Failed to clear session cache tier", zap.Error(err))
		}
	}
}

// InvalidateMany removes a specific subset of codes; a no-op for codes not
// present.
func (c *PermissionCache) InvalidateMany(ctx context.Context, codes []string) {
	defer c.fault("invalidateMany")

	var snapshot []model.CacheEntry
	func() {
		c.mu.Lock()
		defer c.mu.Unlock()

		for _, code := range codes {
			delete(c.entries, code)
		}
		snapshot = c.snapshotLocked()
	}()

	c.persist(ctx, snapshot)
}

// Stats returns a point-in-time view of the cache.
func (c *PermissionCache) Stats() model.CacheStats {
	defer c.fault("stats")

	c.mu.Lock()
	defer c.mu.Unlock()

	stats := model.CacheStats{
		Size:    len(c.entries),
		MaxSize: c.config.MaxEntries,
		TTL:     c.config.TTL,
	}
	if c.lookups > 0 {
		stats.HitRate = float64(c.hits) / float64(c.lookups)
	}
	for _, rec := range c.entries {
		fetchedAt := rec.entry.FetchedAt
		if stats.OldestEntry == nil || fetchedAt.Before(*stats.OldestEntry) {
			stats.OldestEntry = &fetchedAt
		}
	}
	return stats
}

// pruneLocked drops every expired entry. Caller holds the mutex.
func (c *PermissionCache) pruneLocked() {
	now := c.now()
	for code, rec := range c.entries {
		if !now.Before(rec.entry.ExpiresAt) {
			delete(c.entries, code)
		}
	}
}

// evictLocked enforces MaxEntries by removing the entries with the oldest
// FetchedAt first, insertion order breaking ties. Caller holds the mutex.
func (c *PermissionCache) evictLocked() {
	if c.config.MaxEntries <= 0 || len(c.entries) <= c.config.MaxEntries {
		return
	}

	recs := make([]*record, 0, len(c.entries))
	for _, rec := range c.entries {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].entry.FetchedAt.Equal(recs[j].entry.FetchedAt) {
			return recs[i].seq < recs[j].seq
		}
		return recs[i].entry.FetchedAt.Before(recs[j].entry.FetchedAt)
	})

	excess := len(c.entries) - c.config.MaxEntries
	for _, rec := range recs[:excess] {
		delete(c.entries, rec.entry.PermissionCode)
	}
}

func (c *PermissionCache) snapshotLocked() []model.CacheEntry {
	entries := make([]model.CacheEntry, 0, len(c.entries))
	for _, rec := range c.entries {
		entries = append(entries, rec.entry)
	}
	return entries
}

func (c *PermissionCache) persist(ctx context.Context, entries []model.CacheEntry) {
	if c.store == nil {
		return
	}
	if err := c.store.SaveEntries(ctx, entries); err != nil {
		logger.Warn("Failed to persist cache entries, continuing memory-only", zap.Error(err))
	}
}
