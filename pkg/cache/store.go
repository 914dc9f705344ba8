// Package cache provides the tiered cache stores used by the data-source
// adapter: a volatile in-process store and a capacity-bounded Redis store.
package cache

import (
	"context"
	"sync"
	"time"
)

// Store is the contract shared by all cache variants. Implementations never
// return errors: a store that loses its backend degrades to no-op behavior
// instead of failing its callers.
//
// Counter semantics: Get records a hit or a miss on every call. Has is a
// presence probe and does not touch the hit/miss counters. Lazy expiry
// (an expired entry purged during Get, Has or Keys) does not count as a
// delete; only explicit Delete calls do.
type Store interface {
	// Get returns the value for key, or false on miss or expiry.
	// An expired entry is removed as a side effect.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores value under key, replacing any existing entry.
	// ttl <= 0 means the entry never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration)

	// Has reports whether an unexpired entry exists for key.
	Has(ctx context.Context, key string) bool

	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) bool

	// Clear removes all entries and resets the hit/miss/set/delete
	// counters. The clears counter is incremented and never reset.
	Clear(ctx context.Context)

	// Keys returns all unexpired keys. Expired entries found during
	// enumeration are purged.
	Keys(ctx context.Context) []string

	// Stats returns a snapshot of the store's counters and size.
	Stats(ctx context.Context) Stats
}

// Stats is a point-in-time snapshot of a store's counters.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Sets    int64 `json:"sets"`
	Deletes int64 `json:"deletes"`
	Clears  int64 `json:"clears"`

	// HitRate is hits/(hits+misses), 0 before the first Get.
	HitRate float64 `json:"hitRate"`

	// Entries is the number of unexpired entries.
	Entries int `json:"entries"`

	// SizeKB is the approximate payload size in kilobytes.
	SizeKB float64 `json:"sizeKB"`

	// Type identifies the variant ("memory" or "redis").
	Type string `json:"type"`

	// Available is false when the backing storage failed its
	// capability probe and the store runs in no-op mode.
	Available bool `json:"available"`
}

// counters holds the mutable counter state shared by both store variants.
type counters struct {
	mu      sync.Mutex
	hits    int64
	misses  int64
	sets    int64
	deletes int64
	clears  int64
}

func (c *counters) recordHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *counters) recordMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

func (c *counters) recordSet() {
	c.mu.Lock()
	c.sets++
	c.mu.Unlock()
}

func (c *counters) recordDelete() {
	c.mu.Lock()
	c.deletes++
	c.mu.Unlock()
}

// recordClear resets all counters except clears, which is incremented.
func (c *counters) recordClear() {
	c.mu.Lock()
	c.hits = 0
	c.misses = 0
	c.sets = 0
	c.deletes = 0
	c.clears++
	c.mu.Unlock()
}

// snapshot fills the counter fields of a Stats value.
func (c *counters) snapshot(s *Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s.Hits = c.hits
	s.Misses = c.misses
	s.Sets = c.sets
	s.Deletes = c.deletes
	s.Clears = c.clears
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
}
