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

// FlowLogStore persists append-only flow log entries.
type FlowLogStore struct {
	store *Store
}

// FlowLogFilter narrows flow log listings. Zero values match everything.
type FlowLogFilter struct {
	Stage string
	Level types.LogLevel
	Limit int
}

// FlowLogStats summarizes flow log activity for an entity.
type FlowLogStats struct {
	TotalEntries  int            `json:"total_entries"`
	ByStage       map[string]int `json:"by_stage"`
	ByLevel       map[string]int `json:"by_level"`
	ErrorCount    int            `json:"error_count"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
}

// Append stores a new entry. Missing id/timestamp are filled in.
func (f *FlowLogStore) Append(ctx context.Context, entry types.FlowLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var metadata any
	if len(entry.Metadata) > 0 {
		b, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling log metadata: %w", err)
		}
		metadata = string(b)
	}

	_, err := f.store.db.ExecContext(ctx, `
		INSERT INTO data_flow_logs (id, entity_type, entity_id, stage, level, message, metadata, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, string(entry.EntityType), entry.EntityID, entry.Stage, string(entry.Level),
		entry.Message, metadata, entry.DurationMS, timeArg(entry.CreatedAt))
	if err != nil {
		return fmt.Errorf("appending flow log: %w", err)
	}
	return nil
}

// ListForEntity returns an entity's entries, newest first.
func (f *FlowLogStore) ListForEntity(ctx context.Context, entityType types.EntityType, entityID string, filter FlowLogFilter) ([]types.FlowLogEntry, error) {
	query := `
		SELECT id, entity_type, entity_id, stage, level, message, metadata, duration_ms, created_at
		FROM data_flow_logs WHERE entity_type = ? AND entity_id = ?`
	args := []any{string(entityType), entityID}

	if filter.Stage != "" {
		query += ` AND stage = ?`
		args = append(args, filter.Stage)
	}
	if filter.Level != "" {
		query += ` AND level = ?`
		args = append(args, string(filter.Level))
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := f.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing flow logs: %w", err)
	}
	defer rows.Close()
	return collectFlowLogs(rows)
}

// ListForBook returns entries for the book and all of its chapters,
// merged newest first.
func (f *FlowLogStore) ListForBook(ctx context.Context, bookID string, limit int) ([]types.FlowLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := f.store.db.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, stage, level, message, metadata, duration_ms, created_at
		FROM data_flow_logs
		WHERE (entity_type = ? AND entity_id = ?)
		   OR (entity_type = ? AND entity_id IN (SELECT id FROM recent_chapters WHERE book_id = ?))
		ORDER BY created_at DESC LIMIT ?
	`, string(types.EntityBook), bookID, string(types.EntityChapter), bookID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing book flow logs: %w", err)
	}
	defer rows.Close()
	return collectFlowLogs(rows)
}

// ListSystem returns system-scoped entries, newest first.
func (f *FlowLogStore) ListSystem(ctx context.Context, limit int) ([]types.FlowLogEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := f.store.db.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, stage, level, message, metadata, duration_ms, created_at
		FROM data_flow_logs WHERE entity_type = ?
		ORDER BY created_at DESC LIMIT ?
	`, string(types.EntitySystem), limit)
	if err != nil {
		return nil, fmt.Errorf("listing system flow logs: %w", err)
	}
	defer rows.Close()
	return collectFlowLogs(rows)
}

// Prune deletes entries older than the given number of days, returning
// the number removed.
func (f *FlowLogStore) Prune(ctx context.Context, olderThanDays int) (int, error) {
	if olderThanDays <= 0 {
		olderThanDays = 30
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -olderThanDays)
	res, err := f.store.db.ExecContext(ctx,
		`DELETE FROM data_flow_logs WHERE created_at < ?`, timeArg(cutoff))
	if err != nil {
		return 0, fmt.Errorf("pruning flow logs: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Stats summarizes an entity's flow log activity.
func (f *FlowLogStore) Stats(ctx context.Context, entityType types.EntityType, entityID string) (*FlowLogStats, error) {
	stats := &FlowLogStats{ByStage: map[string]int{}, ByLevel: map[string]int{}}

	rows, err := f.store.db.QueryContext(ctx, `
		SELECT stage, level, COUNT(*) FROM data_flow_logs
		WHERE entity_type = ? AND entity_id = ?
		GROUP BY stage, level
	`, string(entityType), entityID)
	if err != nil {
		return nil, fmt.Errorf("reading flow log stats: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var stage, level string
		var n int
		if err := rows.Scan(&stage, &level, &n); err != nil {
			return nil, fmt.Errorf("scanning flow log stats: %w", err)
		}
		stats.ByStage[stage] += n
		stats.ByLevel[level] += n
		stats.TotalEntries += n
		if level == string(types.LevelError) {
			stats.ErrorCount += n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var avg sql.NullFloat64
	if err := f.store.db.QueryRowContext(ctx, `
		SELECT AVG(duration_ms) FROM data_flow_logs
		WHERE entity_type = ? AND entity_id = ? AND duration_ms > 0
	`, string(entityType), entityID).Scan(&avg); err == nil {
		stats.AvgDurationMS = avg.Float64
	}
	return stats, nil
}

func collectFlowLogs(rows *sql.Rows) ([]types.FlowLogEntry, error) {
	var entries []types.FlowLogEntry
	for rows.Next() {
		var entry types.FlowLogEntry
		var entityType, level string
		var metadata sql.NullString
		var durationMS sql.NullInt64
		var createdAt sql.NullString

		err := rows.Scan(&entry.ID, &entityType, &entry.EntityID, &entry.Stage, &level,
			&entry.Message, &metadata, &durationMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("scanning flow log: %w", err)
		}
		entry.EntityType = types.EntityType(entityType)
		entry.Level = types.LogLevel(level)
		entry.DurationMS = durationMS.Int64
		entry.CreatedAt = parseTime(createdAt)
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &entry.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshalling log metadata: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
