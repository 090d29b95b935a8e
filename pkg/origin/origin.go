// Package origin fetches freshly transformed results from the upstream
// transformation service on cache misses.
package origin

import "context"

// Result is one transformed image as produced by the origin.
type Result struct {
	Payload     []byte
	ContentType string
	SizeBytes   int64
}

// Transformer produces a transformation result for a request. *Client is the
// production implementation; tests substitute fakes.
type Transformer interface {
	Transform(ctx context.Context, path string, params map[string]any) (*Result, error)
}
