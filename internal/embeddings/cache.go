package embeddings

import (
	"context"
	"errors"
	"log/slog"

	"github.com/folio-labs/folio/internal/fingerprint"
	"github.com/folio-labs/folio/internal/storage"
)

// CachedProvider wraps a Provider with the persistent embedding cache.
// Every call is check-cache, on miss call through and store. Cache
// failures are logged and ignored: the cache changes cost, not
// correctness.
type CachedProvider struct {
	provider Provider
	cache    *storage.CacheStore
	logger   *slog.Logger
}

// NewCachedProvider wraps provider with cache. logger may be nil.
func NewCachedProvider(provider Provider, cache *storage.CacheStore, logger *slog.Logger) *CachedProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProvider{
		provider: provider,
		cache:    cache,
		logger:   logger.With("component", "embedding_cache"),
	}
}

func (c *CachedProvider) Dimensions() int   { return c.provider.Dimensions() }
func (c *CachedProvider) ModelName() string { return c.provider.ModelName() }

// Embed returns the cached vector for text when present, otherwise calls
// the wrapped provider and stores the result.
func (c *CachedProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	hash := fingerprint.Content(text)
	model := c.provider.ModelName()

	vec, err := c.cache.Get(ctx, hash, model)
	if err == nil {
		return vec, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		c.logger.Warn("cache read failed", "error", err)
	}

	vec, err = c.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Put(ctx, hash, model, vec); err != nil {
		c.logger.Warn("cache write failed", "error", err)
	}
	return vec, nil
}

// EmbedBatch resolves each text through the cache and calls the provider
// once for the remaining misses.
func (c *CachedProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	model := c.provider.ModelName()

	vectors := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		hash := fingerprint.Content(text)
		vec, err := c.cache.Get(ctx, hash, model)
		if err == nil {
			vectors[i] = vec
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			c.logger.Warn("cache read failed", "error", err)
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) > 0 {
		fresh, err := c.provider.EmbedBatch(ctx, missTexts)
		if err != nil {
			return nil, err
		}
		for j, vec := range fresh {
			vectors[missIdx[j]] = vec
			if err := c.cache.Put(ctx, fingerprint.Content(missTexts[j]), model, vec); err != nil {
				c.logger.Warn("cache write failed", "error", err)
			}
		}
	}
	return vectors, nil
}

// Invalidate removes cached vectors for the given content fingerprints.
func (c *CachedProvider) Invalidate(ctx context.Context, hashes []string) (int, error) {
	return c.cache.Invalidate(ctx, hashes)
}

// Prune removes cache entries not accessed within the window.
func (c *CachedProvider) Prune(ctx context.Context, olderThanDays int) (int, error) {
	return c.cache.Prune(ctx, olderThanDays)
}
