package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
)

const (
	localDefaultURL   = "http://localhost:8000"
	localModelName    = "all-MiniLM-L6-v2"
	localDimensions   = 384
	localDefaultRetry = 3
)

// LocalProvider talks to a local sentence-transformers sidecar over HTTP.
// Free and offline; the default backend.
type LocalProvider struct {
	baseURL    string
	client     *http.Client
	maxRetries int
}

// NewLocalProvider builds a provider for the sidecar at cfg.LocalURL.
func NewLocalProvider(cfg Config) *LocalProvider {
	url := cfg.LocalURL
	if url == "" {
		url = localDefaultURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := cfg.MaxRetries
	if retries <= 0 {
		retries = localDefaultRetry
	}
	return &LocalProvider{
		baseURL:    url,
		client:     &http.Client{Timeout: timeout},
		maxRetries: retries,
	}
}

func (p *LocalProvider) Dimensions() int   { return localDimensions }
func (p *LocalProvider) ModelName() string { return localModelName }

// Embed requests a single vector from the sidecar's /embed endpoint,
// retrying transient failures with exponential backoff.
func (p *LocalProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	var result struct {
		Embedding []float32 `json:"embedding"`
	}
	err := retry.Do(
		func() error {
			return p.post(ctx, "/embed", map[string]any{"text": text}, &result)
		},
		retry.Context(ctx),
		retry.Attempts(uint(p.maxRetries)),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("local embedding: %w", err)
	}
	if err := checkDims(p, result.Embedding); err != nil {
		return nil, err
	}
	return result.Embedding, nil
}

// EmbedBatch requests vectors from /embed/batch, falling back to
// sequential single-text calls if the batch endpoint fails.
func (p *LocalProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var result struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	err := p.post(ctx, "/embed/batch", map[string]any{"texts": texts}, &result)
	if err == nil && len(result.Embeddings) == len(texts) {
		for _, vec := range result.Embeddings {
			if err := checkDims(p, vec); err != nil {
				return nil, err
			}
		}
		return result.Embeddings, nil
	}

	// Batch endpoint unavailable or short response: degrade to sequential.
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := p.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

func (p *LocalProvider) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, snippet)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
