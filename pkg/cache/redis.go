package cache

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultPrefix namespaces this store's keys inside a shared Redis.
const DefaultPrefix = "dsa:cache:"

// RedisConfig holds the configuration of the persistent store variant.
type RedisConfig struct {
	// Prefix is prepended to every key. Defaults to DefaultPrefix.
	Prefix string

	// MaxEntries bounds the number of live entries; 0 means unbounded.
	// A Set that would exceed the bound triggers oldest-first eviction.
	MaxEntries int
}

// RedisStore is the persistent, capacity-bounded cache variant.
//
// Availability is probed once at construction with a write+delete. If the
// probe fails the store is permanently marked unavailable and every
// operation becomes a no-op: Get returns a miss, Set drops the write, and
// callers never see a storage error.
type RedisStore struct {
	redis      *redis.Client
	prefix     string
	maxEntries int
	available  bool
	logger     zerolog.Logger
	counters
}

var _ Store = (*RedisStore)(nil)

// NewRedis creates a Redis-backed store and probes its availability.
func NewRedis(ctx context.Context, redisClient *redis.Client, cfg RedisConfig) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}

	s := &RedisStore{
		redis:      redisClient,
		prefix:     cfg.Prefix,
		maxEntries: cfg.MaxEntries,
		logger:     log.With().Str("component", "redis-cache").Logger(),
	}
	s.available = s.probe(ctx)
	if !s.available {
		CacheErrors.WithLabelValues("probe").Inc()
		s.logger.Warn().Msg("Redis cache unavailable, store degraded to no-op")
	}
	return s
}

// probe verifies the backend accepts writes.
func (s *RedisStore) probe(ctx context.Context) bool {
	probeKey := s.prefix + "__probe__"
	if err := s.redis.Set(ctx, probeKey, "1", time.Minute).Err(); err != nil {
		return false
	}
	if err := s.redis.Del(ctx, probeKey).Err(); err != nil {
		return false
	}
	return true
}

// Available reports whether the construction-time probe succeeded.
func (s *RedisStore) Available() bool {
	return s.available
}

// Get returns the value for key, or false on miss, expiry, corruption
// or unavailability.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool) {
	if !s.available {
		return nil, false
	}

	data, err := s.redis.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			CacheErrors.WithLabelValues("get").Inc()
			s.logger.Warn().Err(err).Str("key", key).Msg("Cache get error")
		}
		s.recordMiss()
		CacheMisses.WithLabelValues("redis").Inc()
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Corrupt entries are treated as absent.
		s.redis.Del(ctx, s.prefix+key)
		s.logger.Warn().Err(err).Str("key", key).Msg("Removed corrupt cache entry")
		s.recordMiss()
		CacheMisses.WithLabelValues("redis").Inc()
		return nil, false
	}

	if entry.Expired() {
		s.redis.Del(ctx, s.prefix+key)
		s.recordMiss()
		CacheMisses.WithLabelValues("redis").Inc()
		return nil, false
	}

	s.recordHit()
	CacheHits.WithLabelValues("redis").Inc()
	return entry.Value, true
}

// Set stores value under key. When the store is over its entry budget the
// oldest quarter of the live entries is evicted and the write retried
// once; if it still does not fit, the write is logged and dropped.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if !s.available {
		return
	}

	entry := NewEntry(value, ttl)
	data, err := json.Marshal(entry)
	if err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Failed to marshal cache entry")
		return
	}

	if s.trySet(ctx, key, data, ttl) {
		s.recordSet()
		return
	}

	s.evictOldest(ctx)

	if s.trySet(ctx, key, data, ttl) {
		s.recordSet()
		return
	}

	CacheDroppedWrites.Inc()
	s.logger.Warn().Str("key", key).Msg("Cache write dropped after eviction")
}

// trySet writes the serialized entry unless the store is over capacity.
func (s *RedisStore) trySet(ctx context.Context, key string, data []byte, ttl time.Duration) bool {
	if s.overCapacity(ctx, key) {
		return false
	}
	if ttl < 0 {
		ttl = 0
	}
	if err := s.redis.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		CacheErrors.WithLabelValues("set").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache set error")
		return false
	}
	return true
}

// overCapacity reports whether writing key would exceed MaxEntries.
// Overwriting an existing key never counts against the budget.
func (s *RedisStore) overCapacity(ctx context.Context, key string) bool {
	if s.maxEntries <= 0 {
		return false
	}
	exists, err := s.redis.Exists(ctx, s.prefix+key).Result()
	if err == nil && exists > 0 {
		return false
	}
	return len(s.liveEntries(ctx)) >= s.maxEntries
}

// keyedEntry pairs a key with the metadata needed for eviction ordering.
type keyedEntry struct {
	key       string
	createdAt time.Time
	size      int
}

// liveEntries enumerates all unexpired entries. Corrupt and expired
// entries found along the way are purged.
func (s *RedisStore) liveEntries(ctx context.Context) []keyedEntry {
	var entries []keyedEntry

	iter := s.redis.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		fullKey := iter.Val()
		data, err := s.redis.Get(ctx, fullKey).Bytes()
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			s.redis.Del(ctx, fullKey)
			continue
		}
		if entry.Expired() {
			s.redis.Del(ctx, fullKey)
			continue
		}
		entries = append(entries, keyedEntry{
			key:       strings.TrimPrefix(fullKey, s.prefix),
			createdAt: entry.CreatedAt,
			size:      len(data),
		})
	}
	if err := iter.Err(); err != nil {
		CacheErrors.WithLabelValues("scan").Inc()
		s.logger.Warn().Err(err).Msg("Cache scan error")
	}

	return entries
}

// evictOldest removes the oldest ceil(25%) of the live entries.
func (s *RedisStore) evictOldest(ctx context.Context) {
	entries := s.liveEntries(ctx)
	if len(entries) == 0 {
		return
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].createdAt.Before(entries[j].createdAt)
	})

	count := (len(entries) + 3) / 4
	for _, entry := range entries[:count] {
		s.Delete(ctx, entry.key)
	}

	CacheEvictions.Add(float64(count))
	s.logger.Debug().
		Int("evicted", count).
		Int("remaining", len(entries)-count).
		Msg("Evicted oldest cache entries")
}

// Has reports whether an unexpired entry exists for key.
func (s *RedisStore) Has(ctx context.Context, key string) bool {
	if !s.available {
		return false
	}

	data, err := s.redis.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		return false
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		s.redis.Del(ctx, s.prefix+key)
		return false
	}
	if entry.Expired() {
		s.redis.Del(ctx, s.prefix+key)
		return false
	}
	return true
}

// Delete removes key and reports whether it existed.
func (s *RedisStore) Delete(ctx context.Context, key string) bool {
	if !s.available {
		return false
	}

	deleted, err := s.redis.Del(ctx, s.prefix+key).Result()
	if err != nil {
		CacheErrors.WithLabelValues("delete").Inc()
		s.logger.Warn().Err(err).Str("key", key).Msg("Cache delete error")
		return false
	}
	if deleted == 0 {
		return false
	}
	s.recordDelete()
	return true
}

// Clear removes all entries under the store's prefix and resets the
// counters.
func (s *RedisStore) Clear(ctx context.Context) {
	if !s.available {
		return
	}

	iter := s.redis.Scan(ctx, 0, s.prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		s.redis.Del(ctx, iter.Val())
	}
	if err := iter.Err(); err != nil {
		CacheErrors.WithLabelValues("scan").Inc()
		s.logger.Warn().Err(err).Msg("Cache clear scan error")
	}
	s.recordClear()
}

// Keys returns all unexpired keys, purging expired ones on the way.
func (s *RedisStore) Keys(ctx context.Context) []string {
	if !s.available {
		return nil
	}

	entries := s.liveEntries(ctx)
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		keys = append(keys, entry.key)
	}
	return keys
}

// Stats returns a snapshot of the store's counters and size.
func (s *RedisStore) Stats(ctx context.Context) Stats {
	stats := Stats{
		Type:      "redis",
		Available: s.available,
	}
	s.counters.snapshot(&stats)

	if s.available {
		var size int
		entries := s.liveEntries(ctx)
		for _, entry := range entries {
			size += entry.size
		}
		stats.Entries = len(entries)
		stats.SizeKB = float64(size) / 1024.0
	}
	return stats
}
