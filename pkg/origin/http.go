package origin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for origin requests.
var (
	originRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transform_origin_requests_total",
		Help: "Total origin requests by status",
	}, []string{"status"})

	originRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "transform_origin_request_duration_seconds",
		Help:    "Origin request duration in seconds",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	originErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "transform_origin_errors_total",
		Help: "Total origin errors by class",
	}, []string{"class"})
)

// maxPayloadBytes caps a single origin response body.
const maxPayloadBytes = 64 << 20

// Config holds the origin client configuration.
type Config struct {
	// BaseURL is the transformation service root, e.g. "https://images.internal".
	BaseURL string

	// UserAgent identifies this cache to the origin.
	UserAgent string

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// Retry controls backoff for retriable failures.
	Retry RetryConfig
}

// DefaultConfig returns a safe default configuration.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:   baseURL,
		UserAgent: "transform-cache/1.0",
		Timeout:   30 * time.Second,
		Retry:     DefaultRetryConfig(),
	}
}

// Client fetches transformation results over HTTP.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

var _ Transformer = (*Client)(nil)

// NewClient creates an origin client.
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("origin base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid origin base URL %q: %w", cfg.BaseURL, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		logger:     logger.With().Str("component", "origin-client").Logger(),
	}, nil
}

// Transform requests the transformed rendition of path with the given
// parameters. Server and network failures are retried with backoff; client
// errors are returned immediately.
func (c *Client) Transform(ctx context.Context, path string, params map[string]any) (*Result, error) {
	requestURL := c.buildURL(path, params)

	startTime := time.Now()
	defer func() {
		originRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	var result *Result
	err := retryWithBackoff(ctx, c.logger, c.config.Retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return &TransformError{ErrorClass: ErrorClassClient, Message: "build request", Err: err}
		}
		req.Header.Set("User-Agent", c.config.UserAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			originErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			originRequestsTotal.WithLabelValues("network_error").Inc()
			return &TransformError{ErrorClass: ErrorClassNetwork, Message: "request failed", Err: err}
		}
		defer resp.Body.Close()

		originRequestsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()

		if resp.StatusCode >= 400 {
			errorClass := classifyStatus(resp.StatusCode)
			originErrorsTotal.WithLabelValues(string(errorClass)).Inc()
			c.logger.Warn().
				Str("path", path).
				Int("status", resp.StatusCode).
				Str("error_class", string(errorClass)).
				Msg("Origin request error")
			return &TransformError{
				StatusCode: resp.StatusCode,
				ErrorClass: errorClass,
				Message:    resp.Status,
			}
		}

		payload, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes+1))
		if err != nil {
			originErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
			return &TransformError{ErrorClass: ErrorClassNetwork, Message: "read body", Err: err}
		}
		if len(payload) > maxPayloadBytes {
			return &TransformError{ErrorClass: ErrorClassClient, Message: "response exceeds payload limit"}
		}

		result = &Result{
			Payload:     payload,
			ContentType: resp.Header.Get("Content-Type"),
			SizeBytes:   int64(len(payload)),
		}
		return nil
	}, classifyError)
	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("path", path).
		Str("content_type", result.ContentType).
		Int64("size_bytes", result.SizeBytes).
		Msg("Origin transformation fetched")
	return result, nil
}

// buildURL joins the base URL, resource path, and transform parameters.
func (c *Client) buildURL(path string, params map[string]any) string {
	base := strings.TrimRight(c.config.BaseURL, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	query := url.Values{}
	for name, value := range params {
		query.Set(name, fmt.Sprint(value))
	}
	if len(query) == 0 {
		return base + path
	}
	return base + path + "?" + query.Encode()
}

// classifyStatus categorizes an HTTP status for retry handling.
func classifyStatus(statusCode int) ErrorClass {
	switch {
	case statusCode >= 400 && statusCode < 500:
		return ErrorClassClient
	case statusCode >= 500:
		return ErrorClassServer
	default:
		return ""
	}
}

// classifyError extracts the ErrorClass from a TransformError, treating
// anything else as a network fault.
func classifyError(err error) ErrorClass {
	var te *TransformError
	if errors.As(err, &te) {
		return te.ErrorClass
	}
	return ErrorClassNetwork
}
