package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for retry operations.
var (
	retriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datasource_retries_total",
		Help: "Total number of retry attempts by error class",
	}, []string{"error_class"})

	retryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "datasource_retry_backoff_seconds",
		Help:    "Backoff duration for retries by error class",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"error_class"})

	retryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datasource_retry_exhausted_total",
		Help: "Total number of times retry attempts were exhausted by error class",
	}, []string{"error_class"})
)

// do runs the bounded retry state machine for one logical request.
//
// Each attempt counts against the request counter. A retryable failure
// with budget remaining waits backoff(n) = base * 2^n (n = completed
// attempts, capped at MaxBackoff) and tries again; terminal failures and
// exhausted budgets end the request immediately.
func (c *Client) do(ctx context.Context, req Request, maxRetries int) (*Response, error) {
	startTime := time.Now()
	defer func() {
		requestDuration.WithLabelValues(req.Path).Observe(time.Since(startTime).Seconds())
	}()

	for attempt := 0; ; attempt++ {
		c.stats.RecordAttempt()

		resp, err := c.attempt(ctx, req)
		if err == nil {
			if attempt > 0 {
				c.logger.Info().
					Str("path", req.Path).
					Int("attempt", attempt+1).
					Msg("Request succeeded after retry")
			}
			c.stats.RecordSuccess()
			return resp, nil
		}

		var reqErr *RequestError
		class := ErrorClassNetwork
		if errors.As(err, &reqErr) {
			class = reqErr.Class
		}
		errorsTotal.WithLabelValues(string(class)).Inc()

		if !shouldRetry(class) {
			c.stats.RecordFailure()
			c.logger.Warn().
				Err(err).
				Str("path", req.Path).
				Str("error_class", string(class)).
				Msg("Terminal request error")
			return nil, err
		}

		if attempt >= maxRetries {
			c.stats.RecordFailure()
			retryExhaustedTotal.WithLabelValues(string(class)).Inc()
			c.logger.Warn().
				Str("path", req.Path).
				Str("error_class", string(class)).
				Int("attempts", attempt+1).
				Msg("Retry attempts exhausted")
			return nil, fmt.Errorf("%w after %d attempts: %v", ErrRetryExhausted, attempt+1, err)
		}

		c.stats.RecordRetry()
		retriesTotal.WithLabelValues(string(class)).Inc()

		backoff := backoffDelay(c.config.BackoffBase, c.config.MaxBackoff, attempt+1)
		retryBackoffSeconds.WithLabelValues(string(class)).Observe(backoff.Seconds())

		c.logger.Debug().
			Str("path", req.Path).
			Str("error_class", string(class)).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("Retrying request after backoff")

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.stats.RecordFailure()
			c.logger.Warn().
				Str("path", req.Path).
				Int("attempt", attempt+1).
				Msg("Context cancelled during retry backoff")
			return nil, fmt.Errorf("%w: %v", ErrContextCancelled, ctx.Err())
		case <-timer.C:
		}
	}
}

// backoffDelay returns base * 2^n, capped at max.
func backoffDelay(base, max time.Duration, n int) time.Duration {
	delay := base
	for i := 0; i < n; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	return delay
}
