// Package jobs provides an in-process job queue with bounded retry.
// Jobs are keyed by the entity they process, so at most one job per
// entity is queued or running at a time.
package jobs

import (
	"fmt"
	"time"
)

// Status represents the current state of a job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether a job in this status will run again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job types handled by the pipeline.
const (
	TypeProcessBook    = "process_book"
	TypeProcessChapter = "process_chapter"
)

// Job is one unit of queued work.
type Job struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`

	Status   Status `json:"status"`
	Progress int    `json:"progress"`

	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`
	Error       string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	NextRunAt   time.Time  `json:"next_run_at"`

	// Payload carries handler-specific parameters.
	Payload map[string]string `json:"payload,omitempty"`
}

// JobID derives the deterministic queue key for an entity. Enqueueing the
// same entity twice while a job is live is a no-op.
func JobID(entityType, entityID string) string {
	return fmt.Sprintf("%s-%s", entityType, entityID)
}

// clone returns a copy safe to hand outside the queue lock.
func (j *Job) clone() *Job {
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	if j.Payload != nil {
		c.Payload = make(map[string]string, len(j.Payload))
		for k, v := range j.Payload {
			c.Payload[k] = v
		}
	}
	return &c
}
