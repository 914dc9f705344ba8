package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/d031182/steel-thread-on-sap-sub014/pkg/cache"
	"github.com/d031182/steel-thread-on-sap-sub014/pkg/datasource"
	"github.com/d031182/steel-thread-on-sap-sub014/pkg/logging"
)

func main() {
	// Configuration from environment
	backendURL := getEnv("BACKEND_URL", "http://localhost:3000")
	port := getEnv("PORT", "8080")
	redisURL := getEnv("REDIS_URL", "")
	source := getEnv("SOURCE", "hana")
	logLevel := getEnv("LOG_LEVEL", "info")

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(logLevel),
		Output: os.Stderr,
	})

	// Cache store: Redis when configured, in-process memory otherwise.
	var store cache.Store = cache.NewMemory()
	if redisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: redisURL})
		redisStore := cache.NewRedis(context.Background(), redisClient, cache.RedisConfig{})
		if redisStore.Available() {
			store = redisStore
			logger.Info().Str("addr", redisURL).Msg("Using Redis cache")
		} else {
			logger.Warn().Str("addr", redisURL).Msg("Redis unreachable, falling back to memory cache")
		}
	}

	cfg := datasource.DefaultConfig(backendURL)
	cfg.Source = source
	cfg.Cache = store

	adapter, err := datasource.New(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create data-source adapter")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler(adapter))
	mux.HandleFunc("/stats", statsHandler(adapter))
	mux.HandleFunc("/query", queryHandler(adapter))
	mux.HandleFunc("/tables", tablesHandler(adapter))
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":" + port
	logger.Info().
		Str("addr", addr).
		Str("backend", backendURL).
		Str("source", source).
		Msg("Starting data proxy")

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

// healthHandler answers 200 when the backend is reachable, 503 otherwise.
func healthHandler(adapter *datasource.Adapter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		if !adapter.TestConnection(ctx) {
			http.Error(w, "UNAVAILABLE", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}

// statsHandler reports the adapter's request and cache counters as JSON.
func statsHandler(adapter *datasource.Adapter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{
			"requests": adapter.Stats(),
			"cache":    adapter.CacheStats(r.Context()),
		}
		writeJSON(w, http.StatusOK, payload)
	}
}

// queryHandler executes a SQL statement posted as {"sql": ..., "params": [...]}.
func queryHandler(adapter *datasource.Adapter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var body struct {
			SQL    string `json:"sql"`
			Params []any  `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		rows, err := adapter.Query(r.Context(), body.SQL, body.Params...)
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "rows": rows})
	}
}

// tablesHandler lists the backend's table names.
func tablesHandler(adapter *datasource.Adapter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		names, err := adapter.GetTables(r.Context())
		if err != nil {
			writeError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "tables": names})
	}
}

// statusForError maps adapter errors to proxy status codes.
func statusForError(err error) int {
	var validationErr *datasource.ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest
	}
	var notFoundErr *datasource.NotFoundError
	if errors.As(err, &notFoundErr) {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   map[string]string{"message": message},
	})
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
