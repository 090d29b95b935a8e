// Command cache-admin serves the transform result cache: an image route that
// resolves requests through the two-tier cache with origin fill on miss, and
// an admin surface for stats, listing, and purges.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/erfianugrah/image-resizer-2-sub011/pkg/cachekey"
	"github.com/erfianugrah/image-resizer-2-sub011/pkg/kvstore"
	"github.com/erfianugrah/image-resizer-2-sub011/pkg/logging"
	"github.com/erfianugrah/image-resizer-2-sub011/pkg/origin"
	"github.com/erfianugrah/image-resizer-2-sub011/pkg/transformcache"
)

func main() {
	// Configuration from environment
	redisURL := getEnv("REDIS_URL", "localhost:6379")
	port := getEnv("PORT", "8080")
	originURL := getEnv("ORIGIN_URL", "")
	logLevel := getEnv("LOG_LEVEL", "info")
	cachePrefix := getEnv("CACHE_PREFIX", cachekey.DefaultPrefix)
	quotaLimit := getEnvInt64("KV_WRITE_QUOTA", kvstore.DefaultWriteQuotaLimit)
	cacheTTL := getEnvDuration("CACHE_TTL", 24*time.Hour)

	logger := logging.Setup(logging.Config{
		Level:  logging.LogLevel(logLevel),
		Output: os.Stderr,
	})

	if originURL == "" {
		logger.Fatal().Msg("ORIGIN_URL is required")
	}

	// Setup Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: redisURL,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Str("addr", redisURL).Msg("Failed to connect to Redis")
	}
	logger.Info().Str("addr", redisURL).Msg("Connected to Redis")

	// Wire the cache engine
	store := kvstore.NewStore(redisClient, cachePrefix, logger)
	quota := kvstore.NewWriteQuota(redisClient, cachePrefix, quotaLimit, logger)

	cacheCfg := transformcache.DefaultConfig()
	cacheCfg.KeyPrefix = cachePrefix
	cacheCfg.DefaultTTL = cacheTTL
	cacheCfg.Quota = quota
	cache := transformcache.New(store, cacheCfg, logger)

	originClient, err := origin.NewClient(origin.DefaultConfig(originURL), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create origin client")
	}

	srv := &server{
		redis:  redisClient,
		store:  store,
		cache:  cache,
		origin: originClient,
		quota:  quota,
		logger: logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler)
	mux.HandleFunc("/ready", readyHandler(redisClient))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/admin/cache/stats", srv.statsHandler)
	mux.HandleFunc("/admin/cache/list", srv.listHandler)
	mux.HandleFunc("/admin/cache/purge", srv.purgeHandler)
	mux.HandleFunc("/image/", srv.imageHandler)

	addr := ":" + port
	logger.Info().Str("addr", addr).Str("origin", originURL).Msg("Starting transform cache server")

	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Fatal().Err(err).Msg("Server failed")
	}
}

type server struct {
	redis  *redis.Client
	store  *kvstore.Store
	cache  *transformcache.Cache
	origin origin.Transformer
	quota  *kvstore.WriteQuota
	logger zerolog.Logger
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}

// readyHandler reports readiness based on Redis connectivity.
func readyHandler(redisClient *redis.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			http.Error(w, "redis unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	}
}

// imageHandler resolves a transformation request through the cache, filling
// from the origin on miss. The request path below /image/ is the source path;
// query parameters are the transform parameters.
func (s *server) imageHandler(w http.ResponseWriter, r *http.Request) {
	sourcePath := strings.TrimPrefix(r.URL.Path, "/image")
	if sourcePath == "" || sourcePath == "/" {
		http.Error(w, "missing source path", http.StatusBadRequest)
		return
	}

	// The requested format steers the candidate scan through the key's
	// format field; it must never feed the hash, or requests for the same
	// resource with and without an explicit format would key apart.
	query := r.URL.Query()
	requestedFormat := query.Get("format")
	query.Del("format")

	params := make(map[string]any, len(query))
	for name, values := range query {
		if len(values) > 0 {
			params[name] = values[0]
		}
	}

	req := cachekey.Request{
		Path:            sourcePath,
		Query:           query,
		Params:          params,
		RequestedFormat: requestedFormat,
	}

	ctx := transformcache.WithDeduplicator(r.Context())

	if entry, err := s.cache.Get(ctx, req); err == nil {
		w.Header().Set("Content-Type", entry.Metadata.ContentType)
		w.Header().Set("X-Cache", "HIT")
		w.Write(entry.Payload)
		return
	}

	originParams := params
	if requestedFormat != "" {
		originParams = make(map[string]any, len(params)+1)
		for name, value := range params {
			originParams[name] = value
		}
		originParams["format"] = requestedFormat
	}

	result, err := s.origin.Transform(ctx, sourcePath, originParams)
	if err != nil {
		var te *origin.TransformError
		status := http.StatusBadGateway
		if errors.As(err, &te) && te.ErrorClass == origin.ErrorClassClient && te.StatusCode > 0 {
			status = te.StatusCode
		}
		s.logger.Error().Err(err).Str("path", sourcePath).Msg("Origin transformation failed")
		http.Error(w, "transformation failed", status)
		return
	}

	s.cache.Store(ctx, req, result.Payload, result.ContentType, nil)

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("X-Cache", "MISS")
	w.Write(result.Payload)
}

// statsHandler serves the engine counters and quota state as JSON.
func (s *server) statsHandler(w http.ResponseWriter, r *http.Request) {
	type statsResponse struct {
		Cache transformcache.StatsReport `json:"cache"`
		Quota kvstore.QuotaState         `json:"quota"`
	}

	quotaState, err := s.quota.State(r.Context())
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to read quota state")
	}

	writeJSON(w, http.StatusOK, statsResponse{
		Cache: s.cache.Stats(),
		Quota: quotaState,
	})
}

// listHandler pages through stored entries. Query parameters: limit (default
// 100), cursor (opaque, from the previous response).
func (s *server) listHandler(w http.ResponseWriter, r *http.Request) {
	limit := int64(100)
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	var cursor uint64
	if v := r.URL.Query().Get("cursor"); v != "" {
		parsed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "invalid cursor", http.StatusBadRequest)
			return
		}
		cursor = parsed
	}

	items, next, complete, err := s.store.List(r.Context(), limit, cursor)
	if err != nil {
		s.logger.Error().Err(err).Msg("Cache listing failed")
		http.Error(w, "listing failed", http.StatusInternalServerError)
		return
	}

	type listResponse struct {
		Items    []kvstore.ListItem `json:"items"`
		Cursor   string             `json:"cursor,omitempty"`
		Complete bool               `json:"complete"`
	}
	resp := listResponse{Items: items, Complete: complete}
	if !complete {
		resp.Cursor = strconv.FormatUint(next, 10)
	}
	writeJSON(w, http.StatusOK, resp)
}

// purgeHandler removes entries by tag or source path pattern. POST only;
// exactly one of the tag and path query parameters must be given.
func (s *server) purgeHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	tag := r.URL.Query().Get("tag")
	pattern := r.URL.Query().Get("path")
	if (tag == "") == (pattern == "") {
		http.Error(w, "exactly one of tag or path is required", http.StatusBadRequest)
		return
	}

	var purged int
	var err error
	if tag != "" {
		purged, err = s.cache.PurgeByTag(r.Context(), tag)
	} else {
		purged, err = s.cache.PurgeByPathPattern(r.Context(), pattern)
	}
	if err != nil {
		s.logger.Error().Err(err).Str("tag", tag).Str("pattern", pattern).Msg("Purge failed")
		http.Error(w, "purge failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"purged": purged})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
