// Package embeddings provides pluggable embedding backends behind a single
// Provider interface, plus a cache-through wrapper. Callers never know
// which backend is active; selection happens once at construction from
// configuration.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrDimensionMismatch indicates a provider returned a vector whose length
// does not match its declared dimensionality. This is a configuration bug
// and is surfaced, never coerced.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Provider generates embedding vectors for text.
type Provider interface {
	// Embed returns the vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per input text, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions is the fixed length of every vector this provider returns.
	Dimensions() int
	// ModelName identifies the underlying model, used as the cache key's
	// model version component.
	ModelName() string
}

// Config selects and configures a backend.
type Config struct {
	Backend    string        // "local", "openai", or "mock"
	LocalURL   string        // local sidecar base URL
	OpenAIKey  string        // API key for the openai backend
	Model      string        // optional model override
	Timeout    time.Duration // per-attempt timeout for HTTP backends
	MaxRetries int           // bounded retry count for HTTP backends
}

// New constructs the configured Provider.
func New(cfg Config) (Provider, error) {
	switch cfg.Backend {
	case "local", "":
		return NewLocalProvider(cfg), nil
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, fmt.Errorf("openai embedding backend requires an API key")
		}
		return NewOpenAIProvider(cfg), nil
	case "mock":
		return NewMockProvider(8), nil
	default:
		return nil, fmt.Errorf("unknown embedding backend %q (valid: local, openai, mock)", cfg.Backend)
	}
}

// checkDims validates a returned vector against the provider's declared
// dimensionality.
func checkDims(p Provider, vec []float32) error {
	if len(vec) != p.Dimensions() {
		return fmt.Errorf("%w: %s returned %d dims, declared %d",
			ErrDimensionMismatch, p.ModelName(), len(vec), p.Dimensions())
	}
	return nil
}
