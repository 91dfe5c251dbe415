package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/folio-labs/folio/internal/types"
)

// ChunkStore persists chapter chunks. Chunk sets are replaced wholesale,
// never merged, so chunk indices always refer to the current content.
type ChunkStore struct {
	store *Store
}

// Replace atomically swaps a chapter's chunk set: existing chunks are
// deleted and the new set inserted in one transaction. A failure rolls
// back the whole swap.
func (c *ChunkStore) Replace(ctx context.Context, chapterID string, chunks []types.ChapterChunk) error {
	tx, err := c.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning chunk replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chapter_chunks WHERE chapter_id = ?`, chapterID); err != nil {
		return fmt.Errorf("deleting old chunks: %w", err)
	}

	now := timeArg(time.Now().UTC())
	for _, chunk := range chunks {
		id := chunk.ID
		if id == "" {
			id = uuid.NewString()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO chapter_chunks (id, chapter_id, chunk_index, text, word_count, embedding, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, id, chapterID, chunk.ChunkIndex, chunk.Text, chunk.WordCount,
			float32SliceToBytes(chunk.Embedding), now)
		if err != nil {
			return fmt.Errorf("inserting chunk %d: %w", chunk.ChunkIndex, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing chunk replace: %w", err)
	}
	return nil
}

// List returns a chapter's chunks in index order.
func (c *ChunkStore) List(ctx context.Context, chapterID string) ([]types.ChapterChunk, error) {
	rows, err := c.store.db.QueryContext(ctx, `
		SELECT id, chapter_id, chunk_index, text, word_count, embedding, created_at
		FROM chapter_chunks WHERE chapter_id = ? ORDER BY chunk_index
	`, chapterID)
	if err != nil {
		return nil, fmt.Errorf("listing chunks: %w", err)
	}
	defer rows.Close()
	return collectChunks(rows)
}

// ListByChapters returns all chunks belonging to the given chapters,
// ordered by chapter then index.
func (c *ChunkStore) ListByChapters(ctx context.Context, chapterIDs []string) ([]types.ChapterChunk, error) {
	if len(chapterIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(chapterIDs)), ",")
	args := make([]any, len(chapterIDs))
	for i, id := range chapterIDs {
		args[i] = id
	}

	rows, err := c.store.db.QueryContext(ctx, `
		SELECT id, chapter_id, chunk_index, text, word_count, embedding, created_at
		FROM chapter_chunks WHERE chapter_id IN (`+placeholders+`)
		ORDER BY chapter_id, chunk_index
	`, args...)
	if err != nil {
		return nil, fmt.Errorf("listing chunks by chapters: %w", err)
	}
	defer rows.Close()
	return collectChunks(rows)
}

// Count returns the number of chunks stored for a chapter.
func (c *ChunkStore) Count(ctx context.Context, chapterID string) (int, error) {
	var n int
	err := c.store.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chapter_chunks WHERE chapter_id = ?`, chapterID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting chunks: %w", err)
	}
	return n, nil
}

func collectChunks(rows *sql.Rows) ([]types.ChapterChunk, error) {
	var chunks []types.ChapterChunk
	for rows.Next() {
		var chunk types.ChapterChunk
		var embedding []byte
		var createdAt sql.NullString
		err := rows.Scan(&chunk.ID, &chunk.ChapterID, &chunk.ChunkIndex, &chunk.Text,
			&chunk.WordCount, &embedding, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunk.Embedding = bytesToFloat32Slice(embedding)
		chunk.CreatedAt = parseTime(createdAt)
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}
