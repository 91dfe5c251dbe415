package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/folio-labs/folio/internal/types"
)

// ContextStore persists extracted book contexts, one row per book.
// Structured fields are JSON-encoded only at this boundary.
type ContextStore struct {
	store *Store
}

// Upsert fully replaces the stored context for a book.
func (c *ContextStore) Upsert(ctx context.Context, bc types.BookContext) error {
	characters, err := json.Marshal(bc.Characters)
	if err != nil {
		return fmt.Errorf("marshalling characters: %w", err)
	}
	setting, err := json.Marshal(bc.WorldSetting)
	if err != nil {
		return fmt.Errorf("marshalling world setting: %w", err)
	}
	style, err := json.Marshal(bc.WritingStyle)
	if err != nil {
		return fmt.Errorf("marshalling writing style: %w", err)
	}
	arc, err := json.Marshal(bc.StoryArc)
	if err != nil {
		return fmt.Errorf("marshalling story arc: %w", err)
	}

	if bc.ExtractedAt.IsZero() {
		bc.ExtractedAt = time.Now().UTC()
	}

	_, err = c.store.db.ExecContext(ctx, `
		INSERT INTO book_contexts (book_id, summary, characters, world_setting, writing_style, story_arc, model_version, confidence, extracted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(book_id) DO UPDATE SET
			summary = excluded.summary,
			characters = excluded.characters,
			world_setting = excluded.world_setting,
			writing_style = excluded.writing_style,
			story_arc = excluded.story_arc,
			model_version = excluded.model_version,
			confidence = excluded.confidence,
			extracted_at = excluded.extracted_at
	`, bc.BookID, bc.Summary, string(characters), string(setting), string(style), string(arc),
		bc.ModelVersion, bc.Confidence, timeArg(bc.ExtractedAt))
	if err != nil {
		return fmt.Errorf("saving book context: %w", err)
	}
	return nil
}

// Get returns the stored context for a book.
func (c *ContextStore) Get(ctx context.Context, bookID string) (*types.BookContext, error) {
	row := c.store.db.QueryRowContext(ctx, `
		SELECT book_id, summary, characters, world_setting, writing_style, story_arc, model_version, confidence, extracted_at
		FROM book_contexts WHERE book_id = ?
	`, bookID)

	var bc types.BookContext
	var characters, setting, style, arc string
	var extractedAt sql.NullString

	err := row.Scan(&bc.BookID, &bc.Summary, &characters, &setting, &style, &arc,
		&bc.ModelVersion, &bc.Confidence, &extractedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning book context: %w", err)
	}

	if err := json.Unmarshal([]byte(characters), &bc.Characters); err != nil {
		return nil, fmt.Errorf("unmarshalling characters: %w", err)
	}
	if err := json.Unmarshal([]byte(setting), &bc.WorldSetting); err != nil {
		return nil, fmt.Errorf("unmarshalling world setting: %w", err)
	}
	if err := json.Unmarshal([]byte(style), &bc.WritingStyle); err != nil {
		return nil, fmt.Errorf("unmarshalling writing style: %w", err)
	}
	if err := json.Unmarshal([]byte(arc), &bc.StoryArc); err != nil {
		return nil, fmt.Errorf("unmarshalling story arc: %w", err)
	}
	bc.ExtractedAt = parseTime(extractedAt)
	return &bc, nil
}
