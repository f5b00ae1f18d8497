// Package reason defines the seam to the external reasoning service. Every
// pipeline stage that consults the service treats a failed call as a normal
// code path: the stage falls back to its deterministic heuristic and records
// a Fallback value instead of propagating the error.
package reason

import (
	"context"
	"time"
)

// Client is implemented by chat-completion backends (contrib/reason/...).
type Client interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
}

// Request bundles inputs for a single non-streaming generation.
type Request struct {
	System      string
	User        string
	MaxTokens   int64
	Temperature float64
}

// Response carries the raw model output.
type Response struct {
	Content string
	Model   string
}

// Source records whether a stage result came from the reasoning service or
// from the stage's deterministic heuristic.
type Source string

const (
	SourceModel     Source = "model"
	SourceHeuristic Source = "heuristic"
)

// Fallback explains why a stage used its heuristic instead of the model.
// A zero Fallback means the model path was used.
type Fallback struct {
	Reason string
	Err    error
}

// Fell reports whether a fallback actually happened.
func (f Fallback) Fell() bool {
	return f.Reason != "" || f.Err != nil
}

// DefaultTimeout bounds every reasoning-service call. Timeouts and transport
// errors trigger the heuristic fallback; the pipeline never retries the
// network call itself.
const DefaultTimeout = 8 * time.Second

// WithTimeout derives a bounded context for a reasoning-service call.
func WithTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
