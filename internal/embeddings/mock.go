package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync/atomic"
)

// MockProvider produces deterministic hash-derived vectors. Used in tests
// and as a no-dependency backend for local development.
type MockProvider struct {
	dims  int
	calls atomic.Int64
}

// NewMockProvider builds a mock with the given dimensionality.
func NewMockProvider(dims int) *MockProvider {
	if dims <= 0 {
		dims = 8
	}
	return &MockProvider{dims: dims}
}

func (p *MockProvider) Dimensions() int   { return p.dims }
func (p *MockProvider) ModelName() string { return "mock-embedding" }

// Calls reports how many provider invocations have happened, counting a
// batch as one call. Tests use this to verify cache hit behavior.
func (p *MockProvider) Calls() int64 { return p.calls.Load() }

// Embed derives a deterministic vector from the text's SHA-256.
func (p *MockProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.calls.Add(1)
	return p.vectorFor(text), nil
}

// EmbedBatch derives one deterministic vector per text.
func (p *MockProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.calls.Add(1)
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = p.vectorFor(text)
	}
	return vectors, nil
}

func (p *MockProvider) vectorFor(text string) []float32 {
	sum := sha256.Sum256([]byte(text))
	vec := make([]float32, p.dims)
	for i := range vec {
		// Map 4 digest bytes (cycled) onto [-1, 1).
		off := (i * 4) % (len(sum) - 3)
		bits := binary.LittleEndian.Uint32(sum[off:])
		vec[i] = float32(int32(bits)) / float32(1<<31)
	}
	return vec
}
