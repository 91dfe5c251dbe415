package types

import "time"

// LogLevel classifies a flow log entry.
type LogLevel string

const (
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
)

// FlowLogEntry is one append-only record of pipeline activity for an
// entity. Entries are never mutated and are pruned only by age.
type FlowLogEntry struct {
	ID         string         `json:"id"`
	EntityType EntityType     `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Stage      string         `json:"stage"`
	Level      LogLevel       `json:"level"`
	Message    string         `json:"message"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	DurationMS int64          `json:"duration_ms,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
