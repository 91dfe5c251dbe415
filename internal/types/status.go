package types

import "time"

// EntityType identifies what kind of record a status or log row refers to.
type EntityType string

const (
	EntityBook    EntityType = "book"
	EntityChapter EntityType = "chapter"
	EntitySystem  EntityType = "system"
)

// Status is a processing lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether s is a final state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// FailedProgress is the progress value recorded on failure.
const FailedProgress = -1

// ProcessingStatus is the persistent per-entity processing record. It is
// the system of record for pipeline progress; in-memory jobs are not.
// There is at most one row per (entity type, entity id), mutated in place.
type ProcessingStatus struct {
	EntityType  EntityType `json:"entity_type"`
	EntityID    string     `json:"entity_id"`
	Status      Status     `json:"status"`
	Progress    int        `json:"progress"`
	Error       string     `json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at,omitzero"`
	CompletedAt time.Time  `json:"completed_at,omitzero"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// CombineStatuses folds a set of statuses into one rollup: completed only
// if every input is completed, failed if any input failed, pending if all
// are pending, otherwise processing.
func CombineStatuses(statuses []Status) Status {
	if len(statuses) == 0 {
		return StatusPending
	}
	allCompleted, allPending := true, true
	for _, s := range statuses {
		if s == StatusFailed {
			return StatusFailed
		}
		if s != StatusCompleted {
			allCompleted = false
		}
		if s != StatusPending {
			allPending = false
		}
	}
	if allCompleted {
		return StatusCompleted
	}
	if allPending {
		return StatusPending
	}
	return StatusProcessing
}
