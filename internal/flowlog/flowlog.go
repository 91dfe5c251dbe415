// Package flowlog records pipeline activity as append-only entries.
// Logging is strictly best-effort: a failure to record never disturbs
// the operation being logged.
package flowlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/folio-labs/folio/internal/storage"
	"github.com/folio-labs/folio/internal/types"
)

// Logger writes flow log entries for pipeline stages. The zero value and
// a nil *Logger are both safe no-ops, so callers never guard their log
// calls.
type Logger struct {
	store  *storage.FlowLogStore
	logger *slog.Logger
}

// New wires a flow logger over the store. logger receives a warning when
// an append fails.
func New(store *storage.FlowLogStore, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{store: store, logger: logger.With("component", "flowlog")}
}

// Log appends one entry. Append failures are swallowed after a warning.
func (l *Logger) Log(ctx context.Context, entityType types.EntityType, entityID, stage string, level types.LogLevel, message string, metadata map[string]any) {
	if l == nil || l.store == nil {
		return
	}
	entry := types.FlowLogEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Stage:      stage,
		Level:      level,
		Message:    message,
		Metadata:   metadata,
	}
	if err := l.store.Append(ctx, entry); err != nil {
		l.logger.Warn("flow log append failed",
			"entity_type", entityType, "entity_id", entityID,
			"stage", stage, "error", err)
	}
}

// Info logs at the info level.
func (l *Logger) Info(ctx context.Context, entityType types.EntityType, entityID, stage, message string, metadata map[string]any) {
	l.Log(ctx, entityType, entityID, stage, types.LevelInfo, message, metadata)
}

// Warn logs at the warn level.
func (l *Logger) Warn(ctx context.Context, entityType types.EntityType, entityID, stage, message string, metadata map[string]any) {
	l.Log(ctx, entityType, entityID, stage, types.LevelWarn, message, metadata)
}

// Error logs at the error level.
func (l *Logger) Error(ctx context.Context, entityType types.EntityType, entityID, stage, message string, metadata map[string]any) {
	l.Log(ctx, entityType, entityID, stage, types.LevelError, message, metadata)
}

// Timed runs fn and logs its outcome with the measured duration. The
// entry level is info on success, error on failure. fn's error is
// returned unchanged.
func (l *Logger) Timed(ctx context.Context, entityType types.EntityType, entityID, stage, message string, fn func() error) error {
	start := time.Now()
	err := fn()
	if l == nil || l.store == nil {
		return err
	}

	entry := types.FlowLogEntry{
		EntityType: entityType,
		EntityID:   entityID,
		Stage:      stage,
		Level:      types.LevelInfo,
		Message:    message,
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err != nil {
		entry.Level = types.LevelError
		entry.Metadata = map[string]any{"error": err.Error()}
	}
	if aerr := l.store.Append(ctx, entry); aerr != nil {
		l.logger.Warn("flow log append failed",
			"entity_type", entityType, "entity_id", entityID,
			"stage", stage, "error", aerr)
	}
	return err
}
