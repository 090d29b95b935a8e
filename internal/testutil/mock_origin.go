// Package testutil provides testing utilities for the transform cache.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// MockOriginResponse defines the behavior for a mock origin endpoint response.
type MockOriginResponse struct {
	StatusCode  int
	Body        []byte
	ContentType string
	Headers     map[string]string
	Delay       time.Duration
}

// MockOrigin is a configurable mock transformation origin for testing.
type MockOrigin struct {
	server   *httptest.Server
	mu       sync.RWMutex
	handlers map[string]func(w http.ResponseWriter, r *http.Request)

	// Tracking
	RequestCount     int
	LastRequestQuery map[string][]string
}

// NewMockOrigin creates a new mock origin server.
func NewMockOrigin() *MockOrigin {
	mock := &MockOrigin{
		handlers: make(map[string]func(w http.ResponseWriter, r *http.Request)),
	}

	mock.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.RequestCount++
		mock.LastRequestQuery = r.URL.Query()
		mock.mu.Unlock()

		mock.mu.RLock()
		handler, exists := mock.handlers[r.URL.Path]
		mock.mu.RUnlock()

		if exists {
			handler(w, r)
			return
		}

		mock.defaultHandler(w, r)
	}))

	return mock
}

// URL returns the mock server URL.
func (m *MockOrigin) URL() string {
	return m.server.URL
}

// Close shuts down the mock server.
func (m *MockOrigin) Close() {
	m.server.Close()
}

// Reset clears all tracking counters.
func (m *MockOrigin) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestCount = 0
	m.LastRequestQuery = nil
}

// SetHandler sets a custom handler for a specific path.
func (m *MockOrigin) SetHandler(path string, handler func(w http.ResponseWriter, r *http.Request)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[path] = handler
}

// SetResponse configures a simple response for a path.
func (m *MockOrigin) SetResponse(path string, resp MockOriginResponse) {
	m.SetHandler(path, func(w http.ResponseWriter, r *http.Request) {
		if resp.Delay > 0 {
			time.Sleep(resp.Delay)
		}

		if resp.ContentType != "" {
			w.Header().Set("Content-Type", resp.ContentType)
		}
		for key, value := range resp.Headers {
			w.Header().Set(key, value)
		}

		w.WriteHeader(resp.StatusCode)
		if len(resp.Body) > 0 {
			w.Write(resp.Body)
		}
	})
}

// GetRequestCount returns the number of requests made to the server.
func (m *MockOrigin) GetRequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.RequestCount
}

// defaultHandler serves a small fixed WebP-tagged payload.
func (m *MockOrigin) defaultHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "image/webp")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("mock-webp-payload"))
}

// NewImageResponse creates a 200 OK response carrying image bytes.
func NewImageResponse(contentType string, body []byte) MockOriginResponse {
	return MockOriginResponse{
		StatusCode:  http.StatusOK,
		Body:        body,
		ContentType: contentType,
	}
}

// NewNotFoundResponse creates a 404 response.
func NewNotFoundResponse() MockOriginResponse {
	return MockOriginResponse{
		StatusCode:  http.StatusNotFound,
		Body:        []byte(`{"error": "source image not found"}`),
		ContentType: "application/json",
	}
}

// NewServerErrorResponse creates a 500 Internal Server Error response.
func NewServerErrorResponse() MockOriginResponse {
	return MockOriginResponse{
		StatusCode:  http.StatusInternalServerError,
		Body:        []byte(`{"error": "transformation failed"}`),
		ContentType: "application/json",
	}
}

// NewFlakyHandler fails with 503 for the first failures requests to a path,
// then serves the image. Useful for retry tests.
func NewFlakyHandler(failures int, contentType string, body []byte) func(w http.ResponseWriter, r *http.Request) {
	var mu sync.Mutex
	remaining := failures
	return func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		fail := remaining > 0
		if fail {
			remaining--
		}
		mu.Unlock()

		if fail {
			http.Error(w, "temporarily unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}
}
