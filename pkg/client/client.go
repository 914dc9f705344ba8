// Package client provides the resilient fetch client that executes one
// logical backend request as a bounded sequence of attempts with
// per-attempt timeout, exponential backoff, and error classification.
package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/d031182/steel-thread-on-sap-sub014/pkg/stats"
)

// Prometheus metrics for backend request operations.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datasource_requests_total",
		Help: "Total backend requests by path and status",
	}, []string{"path", "status"})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "datasource_request_duration_seconds",
		Help:    "Backend request duration in seconds by path",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
	}, []string{"path"})

	errorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "datasource_errors_total",
		Help: "Total backend errors by class",
	}, []string{"class"})
)

// Request describes one logical backend request.
type Request struct {
	// Method is the HTTP method; defaults to GET.
	Method string

	// Path is resolved against the client's BaseURL.
	Path string

	// Headers are merged over the client-level headers.
	Headers map[string]string

	// Body is sent as-is; a JSON content type is assumed when present.
	Body []byte
}

// Response is a fully read backend response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Config holds the fetch client configuration.
type Config struct {
	// BaseURL of the backend service.
	BaseURL string

	// MaxRetries bounds the retries after the initial attempt.
	MaxRetries int

	// Timeout applies per attempt, not per logical request.
	Timeout time.Duration

	// BackoffBase and MaxBackoff shape the wait between attempts:
	// base doubled per attempt, capped at MaxBackoff.
	BackoffBase time.Duration
	MaxBackoff  time.Duration

	// Headers are sent with every request.
	Headers map[string]string

	// HTTPClient overrides the transport (for testing).
	HTTPClient *http.Client

	// Stats receives the request/retry counters. A fresh collector is
	// created when nil.
	Stats *stats.Collector
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:     baseURL,
		MaxRetries:  3,
		Timeout:     30 * time.Second,
		BackoffBase: 1 * time.Second,
		MaxBackoff:  30 * time.Second,
	}
}

// Client executes backend requests with retry and error classification.
type Client struct {
	httpClient *http.Client
	config     Config
	stats      *stats.Collector
	logger     zerolog.Logger
}

// New creates a fetch client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.MaxRetries < 0 {
		return nil, fmt.Errorf("max_retries must be >= 0 (got %d)", cfg.MaxRetries)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = 1 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Stats == nil {
		cfg.Stats = stats.NewCollector()
	}

	return &Client{
		httpClient: cfg.HTTPClient,
		config:     cfg,
		stats:      cfg.Stats,
		logger:     log.With().Str("component", "fetch-client").Logger(),
	}, nil
}

// Stats returns the client's counter collector.
func (c *Client) Stats() *stats.Collector {
	return c.stats
}

// Do executes one logical request with the configured retry budget.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	return c.do(ctx, req, c.config.MaxRetries)
}

// DoWithMaxRetries executes one logical request with an explicit retry
// budget, overriding the configured one. Health checks pass 1.
func (c *Client) DoWithMaxRetries(ctx context.Context, req Request, maxRetries int) (*Response, error) {
	return c.do(ctx, req, maxRetries)
}

// attempt performs a single HTTP attempt under the per-attempt timeout
// and classifies its failure.
func (c *Client) attempt(ctx context.Context, req Request) (*Response, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, method, c.config.BaseURL+req.Path, body)
	if err != nil {
		return nil, &RequestError{
			Class:   ErrorClassClient,
			Message: "invalid request",
			Err:     err,
		}
	}

	for key, value := range c.config.Headers {
		httpReq.Header.Set(key, value)
	}
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}
	httpReq.Header.Set("Accept", "application/json")
	if len(req.Body) > 0 && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if isTimeout(err, attemptCtx, ctx) {
			requestsTotal.WithLabelValues(req.Path, "timeout").Inc()
			return nil, &RequestError{
				Class:   ErrorClassTimeout,
				Message: fmt.Sprintf("Request timeout after %dms", c.config.Timeout.Milliseconds()),
				Err:     err,
			}
		}
		requestsTotal.WithLabelValues(req.Path, "network_error").Inc()
		return nil, &RequestError{
			Class:   ErrorClassNetwork,
			Message: "request failed",
			Err:     err,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		// The per-attempt deadline can also fire mid-body, after headers
		// arrived. That is still a timeout, not a network failure.
		if isTimeout(err, attemptCtx, ctx) {
			requestsTotal.WithLabelValues(req.Path, "timeout").Inc()
			return nil, &RequestError{
				Class:   ErrorClassTimeout,
				Message: fmt.Sprintf("Request timeout after %dms", c.config.Timeout.Milliseconds()),
				Err:     err,
			}
		}
		requestsTotal.WithLabelValues(req.Path, "network_error").Inc()
		return nil, &RequestError{
			Class:   ErrorClassNetwork,
			Message: "read response body",
			Err:     err,
		}
	}

	requestsTotal.WithLabelValues(req.Path, fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode >= 400 {
		return nil, &RequestError{
			StatusCode: resp.StatusCode,
			Class:      classifyStatus(resp.StatusCode),
			Message:    resp.Status,
		}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// isTimeout distinguishes the per-attempt deadline from other transport
// failures. A caller-cancelled parent context is not a timeout.
func isTimeout(err error, attemptCtx, parentCtx context.Context) bool {
	if parentCtx.Err() != nil {
		return false
	}
	if attemptCtx.Err() == context.DeadlineExceeded {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
