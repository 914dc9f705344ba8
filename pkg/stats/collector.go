// Package stats provides the running operation counters shared by the
// fetch client and the data-source adapter.
package stats

import (
	"sync"
	"time"
)

// Stats is a point-in-time snapshot of the collector.
type Stats struct {
	// Requests counts individual fetch attempts, including retries.
	Requests int64 `json:"requests"`

	// Successes and Failures count logical requests, once per terminal
	// outcome regardless of how many attempts it took.
	Successes int64 `json:"successes"`
	Failures  int64 `json:"failures"`

	// Retries counts retried attempts.
	Retries int64 `json:"retries"`

	// CacheHits and CacheMisses count the adapter's cache-aside
	// decisions, not store-level traffic.
	CacheHits   int64 `json:"cacheHits"`
	CacheMisses int64 `json:"cacheMisses"`

	// TotalTimeMs accumulates whole-operation durations, cache lookup
	// included.
	TotalTimeMs int64 `json:"totalTimeMs"`

	// Derived rates; 0 when the denominator is 0.
	SuccessRate       float64 `json:"successRate"`
	AvgResponseTimeMs float64 `json:"avgResponseTime"`
	CacheHitRate      float64 `json:"cacheHitRate"`
}

// Collector accumulates counters for one adapter instance. Safe for
// concurrent use. The zero value is not usable; create with NewCollector.
type Collector struct {
	mu          sync.Mutex
	requests    int64
	successes   int64
	failures    int64
	retries     int64
	cacheHits   int64
	cacheMisses int64
	totalTime   time.Duration
}

// NewCollector creates a collector with all counters at zero.
func NewCollector() *Collector {
	return &Collector{}
}

// RecordAttempt counts one fetch attempt.
func (c *Collector) RecordAttempt() {
	c.mu.Lock()
	c.requests++
	c.mu.Unlock()
}

// RecordRetry counts one retried attempt.
func (c *Collector) RecordRetry() {
	c.mu.Lock()
	c.retries++
	c.mu.Unlock()
}

// RecordSuccess counts one logical request that ended in success.
func (c *Collector) RecordSuccess() {
	c.mu.Lock()
	c.successes++
	c.mu.Unlock()
}

// RecordFailure counts one logical request that ended in failure.
func (c *Collector) RecordFailure() {
	c.mu.Lock()
	c.failures++
	c.mu.Unlock()
}

// RecordCacheHit counts one adapter-level cache hit.
func (c *Collector) RecordCacheHit() {
	c.mu.Lock()
	c.cacheHits++
	c.mu.Unlock()
}

// RecordCacheMiss counts one adapter-level cache miss.
func (c *Collector) RecordCacheMiss() {
	c.mu.Lock()
	c.cacheMisses++
	c.mu.Unlock()
}

// RecordDuration accumulates the duration of one whole operation.
func (c *Collector) RecordDuration(d time.Duration) {
	c.mu.Lock()
	c.totalTime += d
	c.mu.Unlock()
}

// Snapshot returns the current counters with derived rates.
func (c *Collector) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Requests:    c.requests,
		Successes:   c.successes,
		Failures:    c.failures,
		Retries:     c.retries,
		CacheHits:   c.cacheHits,
		CacheMisses: c.cacheMisses,
		TotalTimeMs: c.totalTime.Milliseconds(),
	}
	if c.requests > 0 {
		s.SuccessRate = float64(c.successes) / float64(c.requests)
		s.AvgResponseTimeMs = float64(c.totalTime.Milliseconds()) / float64(c.requests)
	}
	if total := c.cacheHits + c.cacheMisses; total > 0 {
		s.CacheHitRate = float64(c.cacheHits) / float64(total)
	}
	return s
}

// Reset sets all counters back to zero. It does not touch any cache
// contents; the owning adapter clears its store separately.
func (c *Collector) Reset() {
	c.mu.Lock()
	c.requests = 0
	c.successes = 0
	c.failures = 0
	c.retries = 0
	c.cacheHits = 0
	c.cacheMisses = 0
	c.totalTime = 0
	c.mu.Unlock()
}
