// Package cache provides the tiered cache stores for the data-source
// adapter.
//
// Two variants implement the Store interface:
//
//   - MemoryStore: volatile, unbounded, in-process. Never fails.
//   - RedisStore: persistent, capacity-bounded, backed by Redis. Probes
//     its backend once at construction; an unavailable backend turns the
//     store into a harmless no-op rather than an error source.
//
// Both variants use lazy expiry: an expired entry is removed when a later
// Get, Has or Keys call finds it, and a TTL is additionally set on the
// Redis side so entries self-expire.
//
// # Basic Usage
//
//	store := cache.NewMemory()
//	store.Set(ctx, cache.QueryKey("hana", "SELECT 1"), payload, 5*time.Minute)
//
//	if data, ok := store.Get(ctx, cache.QueryKey("hana", "SELECT 1")); ok {
//		// cache hit
//	}
//
// # Bounded Redis Store
//
//	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	store := cache.NewRedis(ctx, redisClient, cache.RedisConfig{
//		MaxEntries: 1000,
//	})
//
// When a Set would exceed MaxEntries, the oldest quarter of the live
// entries (by creation time) is evicted and the write retried once. A
// write that still does not fit is logged and dropped; no error reaches
// the caller.
//
// # Metrics
//
// The package exports Prometheus metrics:
//
//   - datasource_cache_hits_total{store}
//   - datasource_cache_misses_total{store}
//   - datasource_cache_evictions_total
//   - datasource_cache_dropped_writes_total
//   - datasource_cache_errors_total{operation}
package cache
