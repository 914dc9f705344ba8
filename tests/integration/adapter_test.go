package integration

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/d031182/steel-thread-on-sap-sub014/internal/testutil"
	"github.com/d031182/steel-thread-on-sap-sub014/pkg/cache"
	"github.com/d031182/steel-thread-on-sap-sub014/pkg/datasource"
)

// setupRedis creates a Redis container for integration testing.
func setupRedis(t *testing.T) (*redis.Client, func()) {
	t.Helper()

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := container.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		container.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newRedisAdapter(t *testing.T, redisClient *redis.Client, backendURL string) *datasource.Adapter {
	t.Helper()

	store := cache.NewRedis(context.Background(), redisClient, cache.RedisConfig{
		Prefix:     "integration:cache:",
		MaxEntries: 100,
	})

	cfg := datasource.DefaultConfig(backendURL)
	cfg.Cache = store
	cfg.BackoffBase = 10 * time.Millisecond
	cfg.MaxBackoff = 50 * time.Millisecond

	adapter, err := datasource.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create adapter: %v", err)
	}
	return adapter
}

// TestFullQueryFlow tests the complete flow: cache miss → backend → cache write → cache hit.
func TestFullQueryFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	backend := testutil.NewMockBackend()
	defer backend.Close()

	backend.SetEnvelope("/query", `{"success": true, "rows": [
		{"PO_ID": "4500001", "STATUS": "OPEN"},
		{"PO_ID": "4500002", "STATUS": "CLOSED"}
	]}`)

	adapter := newRedisAdapter(t, redisClient, backend.URL())
	ctx := context.Background()

	// Request 1: cache miss, goes to the backend.
	rows1, err := adapter.Query(ctx, "SELECT * FROM PurchaseOrders")
	if err != nil {
		t.Fatalf("Query 1 failed: %v", err)
	}
	if len(rows1) != 2 {
		t.Errorf("Query 1 rows = %d, want 2", len(rows1))
	}
	if backend.RequestCount() != 1 {
		t.Errorf("After query 1: backend requests = %d, want 1", backend.RequestCount())
	}

	// Request 2: served from Redis without touching the backend.
	rows2, err := adapter.Query(ctx, "SELECT * FROM PurchaseOrders")
	if err != nil {
		t.Fatalf("Query 2 failed: %v", err)
	}
	if len(rows2) != 2 {
		t.Errorf("Query 2 rows = %d, want 2", len(rows2))
	}
	if backend.RequestCount() != 1 {
		t.Errorf("After query 2: backend requests = %d, want 1 (cache hit)", backend.RequestCount())
	}

	reqStats := adapter.Stats()
	if reqStats.CacheHits != 1 || reqStats.CacheMisses != 1 {
		t.Errorf("Cache accounting = %d hits / %d misses, want 1/1",
			reqStats.CacheHits, reqStats.CacheMisses)
	}

	cacheStats := adapter.CacheStats(ctx)
	if cacheStats.Type != "redis" {
		t.Errorf("Cache type = %q, want %q", cacheStats.Type, "redis")
	}
	if !cacheStats.Available {
		t.Error("Redis cache should be available")
	}
}

// TestCachePersistsAcrossAdapters tests that a second adapter sharing the
// same Redis instance reads entries written by the first.
func TestCachePersistsAcrossAdapters(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	backend := testutil.NewMockBackend()
	defer backend.Close()

	backend.SetEnvelope("/tables", `{"success": true, "tables": [
		{"name": "PurchaseOrders"},
		{"name": "Suppliers"}
	]}`)

	ctx := context.Background()

	first := newRedisAdapter(t, redisClient, backend.URL())
	tables, err := first.GetTables(ctx)
	if err != nil {
		t.Fatalf("GetTables failed: %v", err)
	}
	if len(tables) != 2 {
		t.Fatalf("Tables = %v, want 2 entries", tables)
	}
	if backend.RequestCount() != 1 {
		t.Errorf("Backend requests = %d, want 1", backend.RequestCount())
	}

	// A fresh adapter with an empty stats slate still finds the entry.
	second := newRedisAdapter(t, redisClient, backend.URL())
	tables2, err := second.GetTables(ctx)
	if err != nil {
		t.Fatalf("GetTables on second adapter failed: %v", err)
	}
	if len(tables2) != 2 {
		t.Errorf("Tables from cache = %v, want 2 entries", tables2)
	}
	if backend.RequestCount() != 1 {
		t.Errorf("Backend requests = %d, want 1 (served from shared Redis)", backend.RequestCount())
	}
	if second.Stats().CacheHits != 1 {
		t.Errorf("Second adapter cache hits = %d, want 1", second.Stats().CacheHits)
	}
}

// TestRetryAgainstRedisBackedAdapter tests transient 5xx errors recover
// through the retry loop and the result still lands in the cache.
func TestRetryAgainstRedisBackedAdapter(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	backend := testutil.NewMockBackend()
	defer backend.Close()

	backend.SetSequence("/query",
		testutil.MockResponse{StatusCode: http.StatusInternalServerError, Body: `{"error": "unavailable"}`},
		testutil.MockResponse{StatusCode: http.StatusInternalServerError, Body: `{"error": "unavailable"}`},
		testutil.MockResponse{StatusCode: http.StatusOK, Body: `{"success": true, "rows": [{"x": 1}]}`},
	)

	adapter := newRedisAdapter(t, redisClient, backend.URL())
	ctx := context.Background()

	rows, err := adapter.Query(ctx, "SELECT 1 FROM DUMMY")
	if err != nil {
		t.Fatalf("Query failed after retries: %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("Rows = %d, want 1", len(rows))
	}
	if backend.RequestCount() != 3 {
		t.Errorf("Backend requests = %d, want 3 (2 retries + 1 success)", backend.RequestCount())
	}

	reqStats := adapter.Stats()
	if reqStats.Requests != 3 || reqStats.Retries != 2 {
		t.Errorf("Stats = %d requests / %d retries, want 3/2", reqStats.Requests, reqStats.Retries)
	}

	// The recovered result went into Redis: repeat is a pure cache hit.
	if _, err := adapter.Query(ctx, "SELECT 1 FROM DUMMY"); err != nil {
		t.Fatalf("Cached query failed: %v", err)
	}
	if backend.RequestCount() != 3 {
		t.Errorf("Backend requests = %d, want 3 (cache hit)", backend.RequestCount())
	}
}

// TestCacheExpirationEndToEnd tests that expired entries trigger a backend refetch.
func TestCacheExpirationEndToEnd(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	backend := testutil.NewMockBackend()
	defer backend.Close()

	backend.SetEnvelope("/query", `{"success": true, "rows": [{"x": 1}]}`)

	store := cache.NewRedis(context.Background(), redisClient, cache.RedisConfig{
		Prefix:     "integration:cache:",
		MaxEntries: 100,
	})

	cfg := datasource.DefaultConfig(backend.URL())
	cfg.Cache = store
	cfg.QueryTTL = 200 * time.Millisecond
	cfg.BackoffBase = 10 * time.Millisecond

	adapter, err := datasource.New(cfg)
	if err != nil {
		t.Fatalf("Failed to create adapter: %v", err)
	}

	ctx := context.Background()

	if _, err := adapter.Query(ctx, "SELECT 1 FROM DUMMY"); err != nil {
		t.Fatalf("Query 1 failed: %v", err)
	}
	if _, err := adapter.Query(ctx, "SELECT 1 FROM DUMMY"); err != nil {
		t.Fatalf("Query 2 failed: %v", err)
	}
	if backend.RequestCount() != 1 {
		t.Errorf("Backend requests = %d, want 1 before expiry", backend.RequestCount())
	}

	time.Sleep(300 * time.Millisecond)

	if _, err := adapter.Query(ctx, "SELECT 1 FROM DUMMY"); err != nil {
		t.Fatalf("Query 3 failed: %v", err)
	}
	if backend.RequestCount() != 2 {
		t.Errorf("Backend requests = %d, want 2 after expiry", backend.RequestCount())
	}
}

// TestHealthCheckFlow tests TestConnection against a live backend and Redis cache.
func TestHealthCheckFlow(t *testing.T) {
	redisClient, cleanup := setupRedis(t)
	defer cleanup()

	backend := testutil.NewMockBackend()
	defer backend.Close()

	backend.SetEnvelope("/tables", `{"success": true, "tables": [{"name": "PurchaseOrders"}]}`)

	adapter := newRedisAdapter(t, redisClient, backend.URL())
	ctx := context.Background()

	if !adapter.TestConnection(ctx) {
		t.Error("TestConnection = false, want true with healthy backend")
	}

	// Health probes bypass the cache, so each probe reaches the backend.
	adapter.TestConnection(ctx)
	if backend.RequestCount() != 2 {
		t.Errorf("Backend requests = %d, want 2 (no caching for health checks)", backend.RequestCount())
	}
}
