// Package datasource exposes the domain operations of the remote data
// service behind cache-aside semantics: query, list tables, resolve a
// table schema, and a connection health probe.
package datasource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/d031182/steel-thread-on-sap-sub014/pkg/cache"
	"github.com/d031182/steel-thread-on-sap-sub014/pkg/client"
	"github.com/d031182/steel-thread-on-sap-sub014/pkg/stats"
)

// Config holds the adapter configuration.
type Config struct {
	// BaseURL of the backend query service.
	BaseURL string

	// Source names the data source; it scopes every cache key.
	Source string

	// SchemaSearchPath is the ordered list of namespaces tried when
	// resolving a table schema.
	SchemaSearchPath []string

	// Cache is the store for cache-aside reads. Defaults to the
	// in-process memory store.
	Cache cache.Store

	// MaxRetries and Timeout configure the fetch client.
	MaxRetries int
	Timeout    time.Duration

	// BackoffBase and MaxBackoff shape the retry wait between attempts.
	BackoffBase time.Duration
	MaxBackoff  time.Duration

	// QueryTTL, TablesTTL and SchemaTTL bound the cache lifetime per
	// operation family.
	QueryTTL  time.Duration
	TablesTTL time.Duration
	SchemaTTL time.Duration

	// Headers are sent with every backend request.
	Headers map[string]string
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:          baseURL,
		Source:           "hana",
		SchemaSearchPath: []string{"P2P_SCHEMA", "PUBLIC"},
		MaxRetries:       3,
		Timeout:          30 * time.Second,
		QueryTTL:         300 * time.Second,
		TablesTTL:        600 * time.Second,
		SchemaTTL:        600 * time.Second,
	}
}

// Adapter composes a cache store and the resilient fetch client into the
// data-source operations. Safe for concurrent use; concurrent identical
// cache misses are not deduplicated and each issues its own request.
type Adapter struct {
	config Config
	cache  cache.Store
	client *client.Client
	stats  *stats.Collector
	logger zerolog.Logger
}

// New creates a data-source adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if cfg.Source == "" {
		cfg.Source = "hana"
	}
	if len(cfg.SchemaSearchPath) == 0 {
		cfg.SchemaSearchPath = []string{"P2P_SCHEMA", "PUBLIC"}
	}
	if cfg.Cache == nil {
		cfg.Cache = cache.NewMemory()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.QueryTTL <= 0 {
		cfg.QueryTTL = 300 * time.Second
	}
	if cfg.TablesTTL <= 0 {
		cfg.TablesTTL = 600 * time.Second
	}
	if cfg.SchemaTTL <= 0 {
		cfg.SchemaTTL = 600 * time.Second
	}

	collector := stats.NewCollector()

	fetchCfg := client.DefaultConfig(cfg.BaseURL)
	fetchCfg.Timeout = cfg.Timeout
	fetchCfg.Headers = cfg.Headers
	fetchCfg.Stats = collector
	fetchCfg.MaxRetries = cfg.MaxRetries
	fetchCfg.BackoffBase = cfg.BackoffBase
	fetchCfg.MaxBackoff = cfg.MaxBackoff

	fetchClient, err := client.New(fetchCfg)
	if err != nil {
		return nil, fmt.Errorf("create fetch client: %w", err)
	}

	return &Adapter{
		config: cfg,
		cache:  cfg.Cache,
		client: fetchClient,
		stats:  collector,
		logger: log.With().Str("component", "datasource").Str("source", cfg.Source).Logger(),
	}, nil
}

// Query executes a SQL statement against the backend, serving repeated
// statements from the cache. Only non-empty result sets are cached.
func (a *Adapter) Query(ctx context.Context, sql string, params ...any) ([]Row, error) {
	if strings.TrimSpace(sql) == "" {
		return nil, &ValidationError{Message: "sql statement must not be empty"}
	}

	start := time.Now()
	defer func() {
		a.stats.RecordDuration(time.Since(start))
	}()

	key := cache.QueryKey(a.config.Source, sql)
	if rows, ok := a.cachedRows(ctx, key); ok {
		a.stats.RecordCacheHit()
		a.logger.Debug().Str("cache_key", key).Msg("Query served from cache")
		return rows, nil
	}
	a.stats.RecordCacheMiss()

	body, err := json.Marshal(queryRequest{SQL: sql, Params: params})
	if err != nil {
		return nil, fmt.Errorf("Query failed: %v", err)
	}

	env, err := a.fetch(ctx, client.Request{
		Method: "POST",
		Path:   "/query",
		Body:   body,
	}, a.config.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("Query failed: %v", err)
	}

	rows := env.Rows
	if rows == nil {
		rows = []Row{}
	}

	// Empty result sets are not cached: they are cheap to recompute and
	// often transient (table being filled).
	if len(rows) > 0 {
		if data, err := json.Marshal(rows); err == nil {
			a.cache.Set(ctx, key, data, a.config.QueryTTL)
		}
	}

	a.logger.Debug().
		Str("cache_key", key).
		Int("rows", len(rows)).
		Msg("Query executed")
	return rows, nil
}

// cachedRows returns previously cached query rows for key, if any.
func (a *Adapter) cachedRows(ctx context.Context, key string) ([]Row, bool) {
	data, ok := a.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}
	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		a.cache.Delete(ctx, key)
		return nil, false
	}
	return rows, true
}

// GetTables lists all table names known to the backend, flattening any
// schema grouping. The listing is always cached, even when empty.
func (a *Adapter) GetTables(ctx context.Context) ([]string, error) {
	start := time.Now()
	defer func() {
		a.stats.RecordDuration(time.Since(start))
	}()

	key := cache.TablesKey(a.config.Source)
	if data, ok := a.cache.Get(ctx, key); ok {
		var names []string
		if err := json.Unmarshal(data, &names); err == nil {
			a.stats.RecordCacheHit()
			return names, nil
		}
		a.cache.Delete(ctx, key)
	}
	a.stats.RecordCacheMiss()

	env, err := a.fetch(ctx, client.Request{Path: "/tables"}, a.config.MaxRetries)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	names := flattenTables(env.Tables)
	if data, err := json.Marshal(names); err == nil {
		a.cache.Set(ctx, key, data, a.config.TablesTTL)
	}

	a.logger.Debug().Int("tables", len(names)).Msg("Table listing fetched")
	return names, nil
}

// GetTableSchema resolves the schema of tableName by trying each
// namespace of the search path in order. The first namespace that
// answers successfully wins and is cached.
func (a *Adapter) GetTableSchema(ctx context.Context, tableName string) (*TableSchema, error) {
	if strings.TrimSpace(tableName) == "" {
		return nil, &ValidationError{Message: "table name must not be empty"}
	}

	start := time.Now()
	defer func() {
		a.stats.RecordDuration(time.Since(start))
	}()

	key := cache.SchemaKey(a.config.Source, tableName)
	if data, ok := a.cache.Get(ctx, key); ok {
		var schema TableSchema
		if err := json.Unmarshal(data, &schema); err == nil {
			a.stats.RecordCacheHit()
			return &schema, nil
		}
		a.cache.Delete(ctx, key)
	}
	a.stats.RecordCacheMiss()

	for _, namespace := range a.config.SchemaSearchPath {
		path := "/schema/" + url.PathEscape(namespace) + "/" + url.PathEscape(tableName)
		env, err := a.fetch(ctx, client.Request{Path: path}, a.config.MaxRetries)
		if err != nil {
			a.logger.Debug().
				Err(err).
				Str("namespace", namespace).
				Str("table", tableName).
				Msg("Schema lookup failed, trying next namespace")
			continue
		}

		schema := &TableSchema{
			TableName: tableName,
			Columns:   make([]string, 0, len(env.Columns)),
			Types:     make([]string, 0, len(env.Columns)),
		}
		for _, column := range env.Columns {
			schema.Columns = append(schema.Columns, column.Name)
			schema.Types = append(schema.Types, column.Type)
		}

		if data, err := json.Marshal(schema); err == nil {
			a.cache.Set(ctx, key, data, a.config.SchemaTTL)
		}

		a.logger.Debug().
			Str("namespace", namespace).
			Str("table", tableName).
			Int("columns", len(schema.Columns)).
			Msg("Schema resolved")
		return schema, nil
	}

	return nil, &NotFoundError{
		Message: fmt.Sprintf("schema for table %q not found in any namespace", tableName),
	}
}

// TestConnection probes the backend with the cheapest available read
// (the table listing) and a single retry. It never returns an error:
// any failure reports false. The cache is bypassed so the probe always
// reflects live connectivity.
func (a *Adapter) TestConnection(ctx context.Context) bool {
	start := time.Now()
	defer func() {
		a.stats.RecordDuration(time.Since(start))
	}()

	if _, err := a.fetch(ctx, client.Request{Path: "/tables"}, 1); err != nil {
		a.logger.Warn().Err(err).Msg("Connection test failed")
		return false
	}
	return true
}

// fetch executes a request and unwraps the backend envelope. A
// success=false envelope on HTTP 200 is a terminal application error.
func (a *Adapter) fetch(ctx context.Context, req client.Request, maxRetries int) (*envelope, error) {
	resp, err := a.client.DoWithMaxRetries(ctx, req, maxRetries)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, fmt.Errorf("decode backend response: %w", err)
	}
	if !env.Success {
		message := "backend reported failure"
		if env.Error != nil && env.Error.Message != "" {
			message = env.Error.Message
		}
		return nil, errors.New(message)
	}
	return &env, nil
}

// Source returns the configured data source name.
func (a *Adapter) Source() string {
	return a.config.Source
}

// Stats returns a snapshot of the request and cache-aside counters.
func (a *Adapter) Stats() stats.Stats {
	return a.stats.Snapshot()
}

// ClearStats resets all request counters. Cache contents are untouched.
func (a *Adapter) ClearStats() {
	a.stats.Reset()
}

// CacheStats returns a snapshot of the underlying store's counters.
func (a *Adapter) CacheStats(ctx context.Context) cache.Stats {
	return a.cache.Stats(ctx)
}

// ClearCache removes all cached entries for this adapter's store.
func (a *Adapter) ClearCache(ctx context.Context) {
	a.cache.Clear(ctx)
}
