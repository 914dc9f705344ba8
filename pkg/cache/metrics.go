package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by store variant.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasource_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"store"}, // "memory", "redis"
	)

	// CacheMisses tracks cache misses by store variant.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasource_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"store"},
	)

	// CacheEvictions tracks entries removed by capacity eviction.
	CacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "datasource_cache_evictions_total",
			Help: "Total number of cache entries evicted under capacity pressure",
		},
	)

	// CacheDroppedWrites tracks writes dropped after eviction failed to
	// free enough capacity.
	CacheDroppedWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "datasource_cache_dropped_writes_total",
			Help: "Total number of cache writes dropped after eviction",
		},
	)

	// CacheErrors tracks cache backend operation errors.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datasource_cache_errors_total",
			Help: "Total number of cache backend errors",
		},
		[]string{"operation"}, // "probe", "get", "set", "delete", "scan"
	)
)
