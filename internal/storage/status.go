package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/folio-labs/folio/internal/types"
)

// StatusStore persists one processing status row per entity. Rows are
// mutated in place; they are the system of record for pipeline progress.
type StatusStore struct {
	store *Store
}

// Upsert records the current status of an entity. started_at is set only
// the first time the entity enters processing, so restarts of the same run
// keep the original start time. Terminal states record completed_at.
func (s *StatusStore) Upsert(ctx context.Context, entityType types.EntityType, entityID string, status types.Status, progress int, errMsg string) error {
	now := time.Now().UTC()

	var startedAt, completedAt any
	if status == types.StatusProcessing {
		startedAt = timeArg(now)
	}
	if status.Terminal() {
		completedAt = timeArg(now)
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO processing_status (entity_type, entity_id, status, progress, error, started_at, completed_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(entity_type, entity_id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			error = excluded.error,
			started_at = COALESCE(processing_status.started_at, excluded.started_at),
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at
	`, string(entityType), entityID, string(status), progress, nullString(errMsg),
		startedAt, completedAt, timeArg(now))
	if err != nil {
		return fmt.Errorf("saving processing status: %w", err)
	}
	return nil
}

// Get returns the status row for an entity, or ErrNotFound.
func (s *StatusStore) Get(ctx context.Context, entityType types.EntityType, entityID string) (*types.ProcessingStatus, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT entity_type, entity_id, status, progress, error, started_at, completed_at, updated_at
		FROM processing_status WHERE entity_type = ? AND entity_id = ?
	`, string(entityType), entityID)
	return scanStatus(row.Scan)
}

// ListForBook returns the book's own status plus the statuses of all its
// chapters.
func (s *StatusStore) ListForBook(ctx context.Context, bookID string) ([]types.ProcessingStatus, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT entity_type, entity_id, status, progress, error, started_at, completed_at, updated_at
		FROM processing_status
		WHERE (entity_type = ? AND entity_id = ?)
		   OR (entity_type = ? AND entity_id IN (SELECT id FROM recent_chapters WHERE book_id = ?))
		ORDER BY entity_type, entity_id
	`, string(types.EntityBook), bookID, string(types.EntityChapter), bookID)
	if err != nil {
		return nil, fmt.Errorf("listing statuses for book: %w", err)
	}
	defer rows.Close()

	var statuses []types.ProcessingStatus
	for rows.Next() {
		st, err := scanStatus(rows.Scan)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, *st)
	}
	return statuses, rows.Err()
}

func scanStatus(scan func(...any) error) (*types.ProcessingStatus, error) {
	var st types.ProcessingStatus
	var entityType, status string
	var errMsg sql.NullString
	var startedAt, completedAt, updatedAt sql.NullString

	err := scan(&entityType, &st.EntityID, &status, &st.Progress, &errMsg,
		&startedAt, &completedAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning processing status: %w", err)
	}
	st.EntityType = types.EntityType(entityType)
	st.Status = types.Status(status)
	st.Error = errMsg.String
	st.StartedAt = parseTime(startedAt)
	st.CompletedAt = parseTime(completedAt)
	st.UpdatedAt = parseTime(updatedAt)
	return &st, nil
}
