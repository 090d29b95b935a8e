package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/erfianugrah/image-resizer-2-sub011/internal/testutil"
	"github.com/erfianugrah/image-resizer-2-sub011/pkg/kvstore"
	"github.com/erfianugrah/image-resizer-2-sub011/pkg/origin"
	"github.com/erfianugrah/image-resizer-2-sub011/pkg/transformcache"
)

func setupTestRedis(t *testing.T) (*redis.Client, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections"),
	}

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("Failed to start Redis container: %v", err)
	}

	host, err := redisC.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}

	port, err := redisC.MappedPort(ctx, "6379")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr: host + ":" + port.Port(),
	})

	cleanup := func() {
		redisClient.Close()
		redisC.Terminate(ctx)
	}

	return redisClient, cleanup
}

func newTestServer(t *testing.T, redisClient *redis.Client, originURL string) *server {
	t.Helper()
	logger := zerolog.Nop()

	store := kvstore.NewStore(redisClient, "admintest", logger)
	quota := kvstore.NewWriteQuota(redisClient, "admintest", 1000, logger)

	cfg := transformcache.DefaultConfig()
	cfg.KeyPrefix = "admintest"
	cfg.Quota = quota
	cache := transformcache.New(store, cfg, logger)

	originClient, err := origin.NewClient(origin.DefaultConfig(originURL), logger)
	if err != nil {
		t.Fatalf("Failed to create origin client: %v", err)
	}

	return &server{
		redis:  redisClient,
		store:  store,
		cache:  cache,
		origin: originClient,
		quota:  quota,
		logger: logger,
	}
}

func TestHealthEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()

	healthHandler(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %s", string(body))
	}
}

func TestReadyEndpoint(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	handler := readyHandler(redisClient)

	t.Run("ready", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/ready", nil)
		w := httptest.NewRecorder()

		handler(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Result().StatusCode)
		}
	})

	t.Run("not_ready_redis_down", func(t *testing.T) {
		redisClient.Close()

		req := httptest.NewRequest("GET", "/ready", nil)
		w := httptest.NewRecorder()

		handler(w, req)

		if w.Result().StatusCode != http.StatusServiceUnavailable {
			t.Errorf("Expected status 503, got %d", w.Result().StatusCode)
		}
	})
}

func TestMetricsEndpoint(t *testing.T) {
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	promhttp.Handler().ServeHTTP(w, req)

	resp := w.Result()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}

	bodyStr := string(body)
	if !strings.Contains(bodyStr, "# HELP") || !strings.Contains(bodyStr, "# TYPE") {
		t.Error("Expected Prometheus format metrics output")
	}
}

func TestImageHandler(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	mockOrigin := testutil.NewMockOrigin()
	defer mockOrigin.Close()
	mockOrigin.SetResponse("/photos/cat.jpg", testutil.NewImageResponse("image/webp", []byte("webp-bytes")))

	srv := newTestServer(t, redisClient, mockOrigin.URL())

	get := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("GET", "/image/photos/cat.jpg?width=800", nil)
		w := httptest.NewRecorder()
		srv.imageHandler(w, req)
		return w
	}

	t.Run("miss_fills_from_origin", func(t *testing.T) {
		w := get()
		resp := w.Result()
		body, _ := io.ReadAll(resp.Body)

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", resp.StatusCode)
		}
		if string(body) != "webp-bytes" {
			t.Errorf("Expected origin payload, got %s", body)
		}
		if resp.Header.Get("X-Cache") != "MISS" {
			t.Errorf("Expected X-Cache MISS, got %s", resp.Header.Get("X-Cache"))
		}
		if mockOrigin.GetRequestCount() != 1 {
			t.Errorf("Expected 1 origin request, got %d", mockOrigin.GetRequestCount())
		}
	})

	t.Run("second_request_is_a_hit", func(t *testing.T) {
		w := get()
		resp := w.Result()

		if resp.Header.Get("X-Cache") != "HIT" {
			t.Errorf("Expected X-Cache HIT, got %s", resp.Header.Get("X-Cache"))
		}
		if resp.Header.Get("Content-Type") != "image/webp" {
			t.Errorf("Expected image/webp, got %s", resp.Header.Get("Content-Type"))
		}
		if mockOrigin.GetRequestCount() != 1 {
			t.Errorf("Origin should not be hit again, got %d requests", mockOrigin.GetRequestCount())
		}
	})

	t.Run("format_param_does_not_split_the_key", func(t *testing.T) {
		mockOrigin.SetResponse("/photos/dog.jpg", testutil.NewImageResponse("image/webp", []byte("dog-webp")))

		// Fill with an explicit format parameter.
		req := httptest.NewRequest("GET", "/image/photos/dog.jpg?width=640&format=auto", nil)
		w := httptest.NewRecorder()
		srv.imageHandler(w, req)
		if w.Result().Header.Get("X-Cache") != "MISS" {
			t.Fatalf("Expected first request to be a MISS, got %s", w.Result().Header.Get("X-Cache"))
		}
		filled := mockOrigin.GetRequestCount()

		// The same resource without a format parameter must resolve to the
		// stored entry; format never feeds the key hash.
		req = httptest.NewRequest("GET", "/image/photos/dog.jpg?width=640", nil)
		w = httptest.NewRecorder()
		srv.imageHandler(w, req)

		resp := w.Result()
		body, _ := io.ReadAll(resp.Body)
		if resp.Header.Get("X-Cache") != "HIT" {
			t.Errorf("Expected X-Cache HIT without format param, got %s", resp.Header.Get("X-Cache"))
		}
		if string(body) != "dog-webp" {
			t.Errorf("Expected stored payload, got %s", body)
		}
		if mockOrigin.GetRequestCount() != filled {
			t.Errorf("Origin hit again for a format-less re-request: %d -> %d",
				filled, mockOrigin.GetRequestCount())
		}

		// An explicit different format still finds the webp variant through
		// the candidate scan.
		req = httptest.NewRequest("GET", "/image/photos/dog.jpg?width=640&format=avif", nil)
		w = httptest.NewRecorder()
		srv.imageHandler(w, req)
		if w.Result().Header.Get("X-Cache") != "HIT" {
			t.Errorf("Expected X-Cache HIT with format=avif, got %s", w.Result().Header.Get("X-Cache"))
		}
	})

	t.Run("client_error_passes_through", func(t *testing.T) {
		mockOrigin.SetResponse("/photos/missing.jpg", testutil.NewNotFoundResponse())

		req := httptest.NewRequest("GET", "/image/photos/missing.jpg", nil)
		w := httptest.NewRecorder()
		srv.imageHandler(w, req)

		if w.Result().StatusCode != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Result().StatusCode)
		}
	})

	t.Run("missing_path", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/image/", nil)
		w := httptest.NewRecorder()
		srv.imageHandler(w, req)

		if w.Result().StatusCode != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Result().StatusCode)
		}
	})
}

func TestStatsHandler(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	srv := newTestServer(t, redisClient, "http://origin.invalid")

	req := httptest.NewRequest("GET", "/admin/cache/stats", nil)
	w := httptest.NewRecorder()
	srv.statsHandler(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Result().StatusCode)
	}

	var resp struct {
		Cache transformcache.StatsReport `json:"cache"`
		Quota kvstore.QuotaState         `json:"quota"`
	}
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode stats response: %v", err)
	}
	if resp.Quota.Limit != 1000 {
		t.Errorf("Expected quota limit 1000, got %d", resp.Quota.Limit)
	}
}

func TestPurgeHandler(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	mockOrigin := testutil.NewMockOrigin()
	defer mockOrigin.Close()

	srv := newTestServer(t, redisClient, mockOrigin.URL())

	// Fill the cache through the image route.
	req := httptest.NewRequest("GET", "/image/gallery/a.jpg?width=100", nil)
	srv.imageHandler(httptest.NewRecorder(), req)

	t.Run("requires_post", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/admin/cache/purge?path=.*", nil)
		w := httptest.NewRecorder()
		srv.purgeHandler(w, req)

		if w.Result().StatusCode != http.StatusMethodNotAllowed {
			t.Errorf("Expected status 405, got %d", w.Result().StatusCode)
		}
	})

	t.Run("requires_exactly_one_selector", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/admin/cache/purge", nil)
		w := httptest.NewRecorder()
		srv.purgeHandler(w, req)

		if w.Result().StatusCode != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Result().StatusCode)
		}
	})

	t.Run("purge_by_path", func(t *testing.T) {
		req := httptest.NewRequest("POST", "/admin/cache/purge?path=^/gallery/", nil)
		w := httptest.NewRecorder()
		srv.purgeHandler(w, req)

		if w.Result().StatusCode != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Result().StatusCode)
		}

		var resp map[string]int
		if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode purge response: %v", err)
		}
		if resp["purged"] != 1 {
			t.Errorf("Expected 1 purged entry, got %d", resp["purged"])
		}
	})
}

func TestListHandler(t *testing.T) {
	redisClient, cleanup := setupTestRedis(t)
	defer cleanup()

	mockOrigin := testutil.NewMockOrigin()
	defer mockOrigin.Close()

	srv := newTestServer(t, redisClient, mockOrigin.URL())

	srv.imageHandler(httptest.NewRecorder(), httptest.NewRequest("GET", "/image/list/a.jpg?width=10", nil))
	srv.imageHandler(httptest.NewRecorder(), httptest.NewRequest("GET", "/image/list/b.jpg?width=20", nil))

	req := httptest.NewRequest("GET", "/admin/cache/list?limit=50", nil)
	w := httptest.NewRecorder()
	srv.listHandler(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Result().StatusCode)
	}

	var resp struct {
		Items    []kvstore.ListItem `json:"items"`
		Complete bool               `json:"complete"`
	}
	if err := json.NewDecoder(w.Result().Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode list response: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Errorf("Expected 2 entries, got %d", len(resp.Items))
	}

	t.Run("invalid_limit", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/admin/cache/list?limit=abc", nil)
		w := httptest.NewRecorder()
		srv.listHandler(w, req)

		if w.Result().StatusCode != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Result().StatusCode)
		}
	})
}
