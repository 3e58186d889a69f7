package schedlib

import (
	"encoding/json"
	"time"

	"github.com/unitime/unitime/pkg/logger"
)

// envelopeVersion is bumped when the CacheEntry encoding changes.
// Entries with a different version decode as a cache miss.
const envelopeVersion = "1"

// Default TTLs per resource class. Callers pass these to Set; the cache
// itself has no resource-specific knowledge.
const (
	TTLNews      = 30 * time.Minute
	TTLGroups    = 24 * time.Hour
	TTLSchedule  = time.Hour
	TTLTimeSlots = 7 * 24 * time.Hour
)

// CacheEntry is the stored envelope around a cached value. expiry is
// always cachedAt + ttl. An entry past its expiry is "expired" but is
// kept around as the stale fallback until overwritten or deleted.
type CacheEntry struct {
	Value    json.RawMessage `json:"value"`
	CachedAt time.Time       `json:"cachedAt"`
	Expiry   time.Time       `json:"expiry"`
	Version  string          `json:"version"`
}

// Expired reports whether the entry's TTL has elapsed at now.
func (e *CacheEntry) Expired(now time.Time) bool {
	return now.After(e.Expiry)
}

// Age returns how long ago the entry was cached.
func (e *CacheEntry) Age(now time.Time) time.Duration {
	return now.Sub(e.CachedAt)
}

// ExpiringCache layers TTL semantics over a Store. Persistence failures
// and corrupt payloads are swallowed and treated as miss/no-op; they are
// logged but never propagated, so callers need no error handling around
// logically infallible cache operations.
type ExpiringCache struct {
	store Store
	log   logger.Logger
	now   func() time.Time
}

// NewExpiringCache creates a cache over the given store. A nil log
// disables logging; a nil now uses time.Now.
func NewExpiringCache(store Store, log logger.Logger) *ExpiringCache {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &ExpiringCache{store: store, log: log, now: time.Now}
}

// SetClock overrides the cache's clock. Tests only.
func (c *ExpiringCache) SetClock(now func() time.Time) {
	c.now = now
}

// Get returns the cached value for key, or nil if absent or expired.
// An expired entry is hidden from Get but not deleted: it stays in the
// store as the stale fallback until overwritten or explicitly removed.
func (c *ExpiringCache) Get(key string) json.RawMessage {
	entry := c.load(key)
	if entry == nil || entry.Expired(c.now()) {
		return nil
	}
	return entry.Value
}

// GetWithMetadata returns the full entry for key regardless of expiry,
// or nil if absent. It never evicts: this is the stale-fallback read.
func (c *ExpiringCache) GetWithMetadata(key string) *CacheEntry {
	return c.load(key)
}

// Set stores value under key with the given ttl, overwriting
// unconditionally. value must be JSON-serializable.
func (c *ExpiringCache) Set(key string, value interface{}, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Error("cache: cannot serialize value for %q: %v", key, err)
		return
	}
	now := c.now()
	entry := CacheEntry{
		Value:    raw,
		CachedAt: now,
		Expiry:   now.Add(ttl),
		Version:  envelopeVersion,
	}
	buf, err := json.Marshal(&entry)
	if err != nil {
		c.log.Error("cache: cannot serialize entry for %q: %v", key, err)
		return
	}
	if err := c.store.Write(key, buf); err != nil {
		c.log.Warning("cache: write %q failed: %v", key, err)
	}
}

// Delete removes key from the cache.
func (c *ExpiringCache) Delete(key string) {
	if err := c.store.Remove(key); err != nil {
		c.log.Warning("cache: delete %q failed: %v", key, err)
	}
}

// ClearAll removes every cached entry.
func (c *ExpiringCache) ClearAll() {
	c.ClearAllExcept(nil)
}

// ClearAllExcept removes every cached entry whose key is not in
// protected. Used when switching groups: the long-lived time-slot table
// survives while per-group data is purged.
func (c *ExpiringCache) ClearAllExcept(protected []string) {
	keys, err := c.store.Keys()
	if err != nil {
		c.log.Warning("cache: listing keys for clear failed: %v", err)
		return
	}
	keep := make(map[string]bool, len(protected))
	for _, k := range protected {
		keep[k] = true
	}
	for _, key := range keys {
		if keep[key] {
			continue
		}
		if err := c.store.Remove(key); err != nil {
			c.log.Warning("cache: clearing %q failed: %v", key, err)
		}
	}
}

// load reads and decodes the entry for key. Any failure is a miss.
func (c *ExpiringCache) load(key string) *CacheEntry {
	buf, err := c.store.Read(key)
	if err != nil || buf == nil {
		return nil
	}
	var entry CacheEntry
	if err := json.Unmarshal(buf, &entry); err != nil {
		c.log.Warning("cache: corrupt entry for %q treated as miss: %v", key, err)
		return nil
	}
	if entry.Version != envelopeVersion {
		c.log.Warning("cache: entry for %q has version %q, treated as miss", key, entry.Version)
		return nil
	}
	return &entry
}
