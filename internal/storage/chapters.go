package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/folio-labs/folio/internal/types"
)

// ChapterStore persists chapter rows. Chapters are unique per
// (book_id, chapter_number); re-ingesting a chapter number replaces its
// content while preserving the row identity.
type ChapterStore struct {
	store *Store
}

const chapterColumns = `id, book_id, chapter_number, title, content, word_count, fingerprint,
	summary, metadata, confidence, embedding, embedding_model, embedded_at, created_at, updated_at`

// Upsert inserts or updates a chapter keyed by (book_id, chapter_number)
// and returns the stored row. A conflicting upsert without a fingerprint
// keeps the stored one: the fingerprint records the last-processed
// content and is owned by SaveExtraction, so change detection can still
// compare it against re-ingested content.
func (c *ChapterStore) Upsert(ctx context.Context, ch types.Chapter) (*types.Chapter, error) {
	now := time.Now().UTC()
	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = now
	}
	ch.UpdatedAt = now

	_, err := c.store.db.ExecContext(ctx, `
		INSERT INTO recent_chapters (id, book_id, chapter_number, title, content, word_count, fingerprint, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(book_id, chapter_number) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			word_count = excluded.word_count,
			fingerprint = COALESCE(excluded.fingerprint, recent_chapters.fingerprint),
			updated_at = excluded.updated_at
	`, ch.ID, ch.BookID, ch.ChapterNumber, nullString(ch.Title), ch.Content, ch.WordCount,
		nullString(ch.Fingerprint), timeArg(ch.CreatedAt), timeArg(ch.UpdatedAt))
	if err != nil {
		return nil, fmt.Errorf("saving chapter: %w", err)
	}

	return c.GetByNumber(ctx, ch.BookID, ch.ChapterNumber)
}

// Get returns the chapter with the given id.
func (c *ChapterStore) Get(ctx context.Context, id string) (*types.Chapter, error) {
	row := c.store.db.QueryRowContext(ctx,
		`SELECT `+chapterColumns+` FROM recent_chapters WHERE id = ?`, id)
	return scanChapter(row.Scan)
}

// GetByNumber returns the chapter at a position within a book.
func (c *ChapterStore) GetByNumber(ctx context.Context, bookID string, number int) (*types.Chapter, error) {
	row := c.store.db.QueryRowContext(ctx,
		`SELECT `+chapterColumns+` FROM recent_chapters WHERE book_id = ? AND chapter_number = ?`,
		bookID, number)
	return scanChapter(row.Scan)
}

// List returns all chapters of a book in chapter order.
func (c *ChapterStore) List(ctx context.Context, bookID string) ([]types.Chapter, error) {
	rows, err := c.store.db.QueryContext(ctx,
		`SELECT `+chapterColumns+` FROM recent_chapters WHERE book_id = ? ORDER BY chapter_number`,
		bookID)
	if err != nil {
		return nil, fmt.Errorf("listing chapters: %w", err)
	}
	defer rows.Close()
	return collectChapters(rows)
}

// ListRecent returns the most recently updated chapters of a book,
// newest first.
func (c *ChapterStore) ListRecent(ctx context.Context, bookID string, limit int) ([]types.Chapter, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := c.store.db.QueryContext(ctx,
		`SELECT `+chapterColumns+` FROM recent_chapters WHERE book_id = ? ORDER BY updated_at DESC LIMIT ?`,
		bookID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent chapters: %w", err)
	}
	defer rows.Close()
	return collectChapters(rows)
}

// GetFingerprint returns the stored content fingerprint for a chapter
// position, or ErrNotFound if the chapter does not exist yet.
func (c *ChapterStore) GetFingerprint(ctx context.Context, bookID string, number int) (string, error) {
	var fp sql.NullString
	err := c.store.db.QueryRowContext(ctx,
		`SELECT fingerprint FROM recent_chapters WHERE book_id = ? AND chapter_number = ?`,
		bookID, number).Scan(&fp)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("reading chapter fingerprint: %w", err)
	}
	return fp.String, nil
}

// SaveExtraction records the extracted summary, metadata, confidence, and
// the fingerprint of the content the extraction was computed from.
func (c *ChapterStore) SaveExtraction(ctx context.Context, chapterID string, md *types.ChapterMetadata, confidence float64, fp string) error {
	metadata, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("marshalling chapter metadata: %w", err)
	}

	res, err := c.store.db.ExecContext(ctx, `
		UPDATE recent_chapters SET
			summary = ?, metadata = ?, confidence = ?, fingerprint = ?, updated_at = ?
		WHERE id = ?
	`, md.Summary, string(metadata), confidence, fp, timeArg(time.Now().UTC()), chapterID)
	if err != nil {
		return fmt.Errorf("saving chapter extraction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveEmbedding records the chapter-level vector and its model version.
func (c *ChapterStore) SaveEmbedding(ctx context.Context, chapterID string, vec []float32, modelVersion string) error {
	res, err := c.store.db.ExecContext(ctx, `
		UPDATE recent_chapters SET
			embedding = ?, embedding_model = ?, embedded_at = ?, updated_at = ?
		WHERE id = ?
	`, float32SliceToBytes(vec), modelVersion, timeArg(time.Now().UTC()), timeArg(time.Now().UTC()), chapterID)
	if err != nil {
		return fmt.Errorf("saving chapter embedding: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMissingDerived returns chapters whose extraction or embedding is
// absent, including the asymmetric partial states. Used by the recovery
// scanner to re-enqueue full reprocessing.
func (c *ChapterStore) ListMissingDerived(ctx context.Context) ([]types.Chapter, error) {
	rows, err := c.store.db.QueryContext(ctx,
		`SELECT `+chapterColumns+` FROM recent_chapters
		 WHERE summary IS NULL OR summary = '' OR embedding IS NULL
		 ORDER BY book_id, chapter_number`)
	if err != nil {
		return nil, fmt.Errorf("listing chapters missing derived data: %w", err)
	}
	defer rows.Close()
	return collectChapters(rows)
}

// ListEmbedded returns all chapters of a book that carry a chapter-level
// embedding, in chapter order. Used by the retrieval engine.
func (c *ChapterStore) ListEmbedded(ctx context.Context, bookID string) ([]types.Chapter, error) {
	rows, err := c.store.db.QueryContext(ctx,
		`SELECT `+chapterColumns+` FROM recent_chapters
		 WHERE book_id = ? AND embedding IS NOT NULL
		 ORDER BY chapter_number`, bookID)
	if err != nil {
		return nil, fmt.Errorf("listing embedded chapters: %w", err)
	}
	defer rows.Close()
	return collectChapters(rows)
}

func scanChapter(scan func(...any) error) (*types.Chapter, error) {
	var ch types.Chapter
	var title, fingerprint, summary, metadata, embeddingModel sql.NullString
	var confidence sql.NullFloat64
	var embedding []byte
	var embeddedAt, createdAt, updatedAt sql.NullString

	err := scan(&ch.ID, &ch.BookID, &ch.ChapterNumber, &title, &ch.Content, &ch.WordCount,
		&fingerprint, &summary, &metadata, &confidence, &embedding, &embeddingModel,
		&embeddedAt, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning chapter: %w", err)
	}

	ch.Title = title.String
	ch.Fingerprint = fingerprint.String
	ch.Summary = summary.String
	ch.Confidence = confidence.Float64
	ch.Embedding = bytesToFloat32Slice(embedding)
	ch.EmbeddingModel = embeddingModel.String
	ch.EmbeddedAt = parseTime(embeddedAt)
	ch.CreatedAt = parseTime(createdAt)
	ch.UpdatedAt = parseTime(updatedAt)

	if metadata.Valid && metadata.String != "" {
		var md types.ChapterMetadata
		if err := json.Unmarshal([]byte(metadata.String), &md); err != nil {
			return nil, fmt.Errorf("unmarshalling chapter metadata: %w", err)
		}
		ch.Metadata = &md
	}
	return &ch, nil
}

func collectChapters(rows *sql.Rows) ([]types.Chapter, error) {
	var chapters []types.Chapter
	for rows.Next() {
		ch, err := scanChapter(rows.Scan)
		if err != nil {
			return nil, err
		}
		chapters = append(chapters, *ch)
	}
	return chapters, rows.Err()
}
