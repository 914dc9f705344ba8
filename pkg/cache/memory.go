package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the volatile cache variant: an unbounded in-process map.
// It never fails and is always available. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
	counters
}

var _ Store = (*MemoryStore)(nil)

// NewMemory creates an empty in-process store.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
	}
}

// Get returns the value for key, or false on miss or expiry.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool) {
	s.mu.Lock()
	entry, ok := s.entries[key]
	if ok && entry.Expired() {
		delete(s.entries, key)
		ok = false
	}
	s.mu.Unlock()

	if !ok {
		s.recordMiss()
		CacheMisses.WithLabelValues("memory").Inc()
		return nil, false
	}
	s.recordHit()
	CacheHits.WithLabelValues("memory").Inc()
	return entry.Value, true
}

// Set stores value under key, replacing any existing entry.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	entry := NewEntry(value, ttl)
	s.mu.Lock()
	s.entries[key] = entry
	s.mu.Unlock()
	s.recordSet()
}

// Has reports whether an unexpired entry exists for key.
func (s *MemoryStore) Has(_ context.Context, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return false
	}
	if entry.Expired() {
		delete(s.entries, key)
		return false
	}
	return true
}

// Delete removes key and reports whether it existed.
func (s *MemoryStore) Delete(_ context.Context, key string) bool {
	s.mu.Lock()
	_, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
	}
	s.mu.Unlock()

	if ok {
		s.recordDelete()
	}
	return ok
}

// Clear removes all entries and resets the counters.
func (s *MemoryStore) Clear(_ context.Context) {
	s.mu.Lock()
	s.entries = make(map[string]Entry)
	s.mu.Unlock()
	s.recordClear()
}

// Keys returns all unexpired keys, purging expired ones on the way.
func (s *MemoryStore) Keys(_ context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.entries))
	for key, entry := range s.entries {
		if entry.Expired() {
			delete(s.entries, key)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

// Stats returns a snapshot of the store's counters and size.
func (s *MemoryStore) Stats(_ context.Context) Stats {
	stats := Stats{
		Type:      "memory",
		Available: true,
	}
	s.counters.snapshot(&stats)

	s.mu.Lock()
	var size int
	for key, entry := range s.entries {
		if entry.Expired() {
			delete(s.entries, key)
			continue
		}
		size += len(entry.Value)
	}
	stats.Entries = len(s.entries)
	s.mu.Unlock()

	stats.SizeKB = float64(size) / 1024.0
	return stats
}
