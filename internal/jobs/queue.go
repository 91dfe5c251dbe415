package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"
)

// Handler executes one job. A nil return completes the job; an error
// schedules a retry until MaxAttempts is exhausted.
type Handler func(ctx context.Context, job *Job) error

// Config tunes queue behavior. Zero values use the defaults.
type Config struct {
	TickInterval time.Duration // poll interval for due jobs (default 1s)
	Workers      int           // concurrent handler executions (default 4)
	MaxAttempts  int           // per-job execution bound (default 3)
	BackoffBase  time.Duration // unit doubled per attempt (default 1s)
	MaxBackoff   time.Duration // retry delay ceiling (default 60s)
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 60 * time.Second
	}
	return c
}

// Queue is an in-memory job queue. Jobs survive for the life of the
// process only; the recovery scanner rebuilds lost work from storage on
// startup.
type Queue struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.Mutex
	jobs     map[string]*Job
	handlers map[string]Handler

	wg sync.WaitGroup
}

// NewQueue builds a stopped queue; call Run to start draining it.
func NewQueue(cfg Config, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{
		cfg:      cfg.withDefaults(),
		logger:   logger.With("component", "jobs"),
		jobs:     make(map[string]*Job),
		handlers: make(map[string]Handler),
	}
}

// Register binds a handler to a job type. Adding a job with an
// unregistered type fails.
func (q *Queue) Register(jobType string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = h
}

// Add enqueues work for an entity. If a job for the same entity is
// already pending or processing, the existing job ID is returned and
// nothing changes. A terminal job for the entity is replaced.
func (q *Queue) Add(jobType, entityType, entityID string, payload map[string]string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.handlers[jobType]; !ok {
		return "", fmt.Errorf("no handler registered for job type %q", jobType)
	}

	id := JobID(entityType, entityID)
	if existing, ok := q.jobs[id]; ok && !existing.Status.Terminal() {
		return id, nil
	}

	now := time.Now().UTC()
	q.jobs[id] = &Job{
		ID:          id,
		Type:        jobType,
		EntityType:  entityType,
		EntityID:    entityID,
		Status:      StatusPending,
		MaxAttempts: q.cfg.MaxAttempts,
		CreatedAt:   now,
		NextRunAt:   now,
		Payload:     payload,
	}
	return id, nil
}

// Get returns a snapshot of a job.
func (q *Queue) Get(id string) (*Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return nil, false
	}
	return j.clone(), true
}

// List returns snapshots of all jobs, oldest first.
func (q *Queue) List() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Job, 0, len(q.jobs))
	for _, j := range q.jobs {
		out = append(out, j.clone())
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out
}

// UpdateProgress records handler progress on a running job.
func (q *Queue) UpdateProgress(id string, progress int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j, ok := q.jobs[id]; ok && j.Status == StatusProcessing {
		j.Progress = progress
	}
}

// Stats summarizes queue contents by status.
func (q *Queue) Stats() map[Status]int {
	q.mu.Lock()
	defer q.mu.Unlock()
	stats := map[Status]int{
		StatusPending:    0,
		StatusProcessing: 0,
		StatusCompleted:  0,
		StatusFailed:     0,
	}
	for _, j := range q.jobs {
		stats[j.Status]++
	}
	return stats
}

// Run drains the queue until ctx is canceled, then waits for in-flight
// handlers to finish.
func (q *Queue) Run(ctx context.Context) {
	q.logger.Info("job queue started",
		"workers", q.cfg.Workers,
		"tick", q.cfg.TickInterval,
		"max_attempts", q.cfg.MaxAttempts)

	sem := make(chan struct{}, q.cfg.Workers)
	ticker := time.NewTicker(q.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.wg.Wait()
			q.logger.Info("job queue stopped")
			return
		case <-ticker.C:
			for _, job := range q.claimDue() {
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					q.release(job)
					continue
				}
				q.wg.Add(1)
				go func(j *Job) {
					defer q.wg.Done()
					defer func() { <-sem }()
					q.execute(ctx, j)
				}(job)
			}
		}
	}
}

// claimDue atomically moves due pending jobs to processing and returns
// snapshots for execution.
func (q *Queue) claimDue() []*Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now().UTC()
	var claimed []*Job
	for _, j := range q.jobs {
		if j.Status != StatusPending || j.NextRunAt.After(now) {
			continue
		}
		j.Status = StatusProcessing
		j.Attempts++
		if j.StartedAt == nil {
			t := now
			j.StartedAt = &t
		}
		claimed = append(claimed, j.clone())
	}
	sort.Slice(claimed, func(i, k int) bool { return claimed[i].CreatedAt.Before(claimed[k].CreatedAt) })
	return claimed
}

// release returns a claimed job to pending without counting the attempt.
// Used when shutdown lands between claim and dispatch.
func (q *Queue) release(snapshot *Job) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if j, ok := q.jobs[snapshot.ID]; ok && j.Status == StatusProcessing {
		j.Status = StatusPending
		j.Attempts--
	}
}

func (q *Queue) execute(ctx context.Context, snapshot *Job) {
	q.mu.Lock()
	handler := q.handlers[snapshot.Type]
	q.mu.Unlock()

	log := q.logger.With("job_id", snapshot.ID, "job_type", snapshot.Type, "attempt", snapshot.Attempts)
	log.Debug("job started")

	err := handler(ctx, snapshot)

	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[snapshot.ID]
	if !ok || j.Status != StatusProcessing {
		return
	}

	now := time.Now().UTC()
	if err == nil {
		j.Status = StatusCompleted
		j.Progress = 100
		j.Error = ""
		j.CompletedAt = &now
		log.Info("job completed")
		return
	}

	j.Error = err.Error()
	if j.Attempts >= j.MaxAttempts {
		j.Status = StatusFailed
		j.CompletedAt = &now
		log.Error("job failed permanently", "error", err, "attempts", j.Attempts)
		return
	}

	delay := q.backoff(j.Attempts)
	j.Status = StatusPending
	j.NextRunAt = now.Add(delay)
	log.Warn("job failed, will retry", "error", err, "retry_in", delay)
}

// backoff doubles per attempt, capped by MaxBackoff.
func (q *Queue) backoff(attempts int) time.Duration {
	d := time.Duration(math.Pow(2, float64(attempts))) * q.cfg.BackoffBase
	if d > q.cfg.MaxBackoff || d <= 0 {
		return q.cfg.MaxBackoff
	}
	return d
}
