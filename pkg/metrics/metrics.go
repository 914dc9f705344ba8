// Package metrics documents the Prometheus metrics exported by this
// module. Metrics are defined in their owning packages (client, cache)
// to keep the dependency graph acyclic; this package holds the registry
// reference and the catalog.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the Prometheus registry used by the module. All metrics
// register themselves via promauto in their owning packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - datasource_requests_total{path, status} (Counter): backend attempts by path and HTTP status
//   - datasource_request_duration_seconds{path} (Histogram): logical request duration
//   - datasource_errors_total{class} (Counter): errors by class (client, server, network, timeout)
//
// Retry Metrics (pkg/client):
//   - datasource_retries_total{error_class} (Counter): retried attempts by error class
//   - datasource_retry_backoff_seconds{error_class} (Histogram): backoff durations
//   - datasource_retry_exhausted_total{error_class} (Counter): requests that exhausted the retry budget
//
// Cache Metrics (pkg/cache):
//   - datasource_cache_hits_total{store} (Counter): hits by store variant (memory, redis)
//   - datasource_cache_misses_total{store} (Counter): misses by store variant
//   - datasource_cache_evictions_total (Counter): entries evicted under capacity pressure
//   - datasource_cache_dropped_writes_total (Counter): writes dropped after eviction
//   - datasource_cache_errors_total{operation} (Counter): backend errors by operation
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(datasource_cache_hits_total[5m])) /
//   (sum(rate(datasource_cache_hits_total[5m])) + sum(rate(datasource_cache_misses_total[5m])))
//
//   # Request Error Rate
//   rate(datasource_errors_total[5m])
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(datasource_request_duration_seconds_bucket[5m]))
