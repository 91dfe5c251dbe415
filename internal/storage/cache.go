package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// CacheStore persists cached embedding vectors keyed by
// (content fingerprint, model version). The cache is a pure optimization:
// losing it changes cost, never correctness.
type CacheStore struct {
	store *Store
}

// CacheStats summarizes cache contents.
type CacheStats struct {
	TotalEntries   int            `json:"total_entries"`
	EntriesByModel map[string]int `json:"entries_by_model"`
	OldestAccess   time.Time      `json:"oldest_access,omitzero"`
}

// Get returns a cached vector, refreshing its last-access time on hit.
// A miss returns ErrNotFound.
func (c *CacheStore) Get(ctx context.Context, contentHash, modelVersion string) ([]float32, error) {
	var blob []byte
	err := c.store.db.QueryRowContext(ctx, `
		SELECT embedding FROM embedding_cache WHERE content_hash = ? AND model_version = ?
	`, contentHash, modelVersion).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading embedding cache: %w", err)
	}

	// Access-time refresh is informational, used only by Prune.
	_, _ = c.store.db.ExecContext(ctx, `
		UPDATE embedding_cache SET last_accessed_at = ? WHERE content_hash = ? AND model_version = ?
	`, timeArg(time.Now().UTC()), contentHash, modelVersion)

	return bytesToFloat32Slice(blob), nil
}

// Put upserts a vector under (contentHash, modelVersion).
func (c *CacheStore) Put(ctx context.Context, contentHash, modelVersion string, vec []float32) error {
	now := timeArg(time.Now().UTC())
	_, err := c.store.db.ExecContext(ctx, `
		INSERT INTO embedding_cache (content_hash, model_version, embedding, created_at, last_accessed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(content_hash, model_version) DO UPDATE SET
			embedding = excluded.embedding,
			last_accessed_at = excluded.last_accessed_at
	`, contentHash, modelVersion, float32SliceToBytes(vec), now, now)
	if err != nil {
		return fmt.Errorf("writing embedding cache: %w", err)
	}
	return nil
}

// Invalidate removes all cached vectors for the given fingerprints across
// every model version, returning the number of entries removed.
func (c *CacheStore) Invalidate(ctx context.Context, contentHashes []string) (int, error) {
	if len(contentHashes) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(contentHashes)), ",")
	args := make([]any, len(contentHashes))
	for i, h := range contentHashes {
		args[i] = h
	}

	res, err := c.store.db.ExecContext(ctx,
		`DELETE FROM embedding_cache WHERE content_hash IN (`+placeholders+`)`, args...)
	if err != nil {
		return 0, fmt.Errorf("invalidating embedding cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Prune deletes entries not accessed within the given number of days,
// returning the number removed.
func (c *CacheStore) Prune(ctx context.Context, olderThanDays int) (int, error) {
	if olderThanDays <= 0 {
		olderThanDays = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	res, err := c.store.db.ExecContext(ctx,
		`DELETE FROM embedding_cache WHERE last_accessed_at < ?`, timeArg(cutoff))
	if err != nil {
		return 0, fmt.Errorf("pruning embedding cache: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Stats reports entry counts overall and per model version.
func (c *CacheStore) Stats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{EntriesByModel: map[string]int{}}

	rows, err := c.store.db.QueryContext(ctx,
		`SELECT model_version, COUNT(*) FROM embedding_cache GROUP BY model_version`)
	if err != nil {
		return nil, fmt.Errorf("reading cache stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var model string
		var n int
		if err := rows.Scan(&model, &n); err != nil {
			return nil, fmt.Errorf("scanning cache stats: %w", err)
		}
		stats.EntriesByModel[model] = n
		stats.TotalEntries += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var oldest sql.NullString
	if err := c.store.db.QueryRowContext(ctx,
		`SELECT MIN(last_accessed_at) FROM embedding_cache`).Scan(&oldest); err == nil {
		stats.OldestAccess = parseTime(oldest)
	}
	return stats, nil
}
