package queue

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStorage implements Storage in memory for tests and local
// development. Claim semantics mirror the durable implementation: jobs are
// locked for a duration, failed jobs are rescheduled with backoff, and
// exhausted jobs move to an in-memory dead-letter table.
type MemoryStorage struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]*Job
	dlq  map[uuid.UUID]*DeadLetter
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		jobs: make(map[uuid.UUID]*Job),
		dlq:  make(map[uuid.UUID]*DeadLetter),
	}
}

// CreateJob stores a job. Idempotent on job ID: re-creating an existing job
// is a no-op, matching at-least-once producer semantics.
func (ms *MemoryStorage) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.jobs[job.ID]; exists {
		return nil
	}

	jobCopy := *job
	ms.jobs[job.ID] = &jobCopy
	return nil
}

// ClaimJob locks and returns the oldest due pending job in the given queues.
func (ms *MemoryStorage) ClaimJob(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Job, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	now := time.Now()
	queueSet := make(map[string]struct{}, len(queues))
	for _, q := range queues {
		queueSet[q] = struct{}{}
	}

	var candidates []*Job
	for _, job := range ms.jobs {
		if _, ok := queueSet[job.Queue]; !ok {
			continue
		}
		if !ms.claimable(job, now) {
			continue
		}
		candidates = append(candidates, job)
	}

	if len(candidates) == 0 {
		return nil, ErrNoJobToClaim
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ScheduledAt.Before(candidates[j].ScheduledAt)
	})

	job := candidates[0]
	lockedUntil := now.Add(lockDuration)
	job.Status = JobStatusProcessing
	job.LockedUntil = &lockedUntil
	job.LockedBy = &workerID

	jobCopy := *job
	return &jobCopy, nil
}

// claimable reports whether a job is due and unlocked. Expired locks are
// reclaimed in place, which is what gives redelivery its at-least-once
// shape.
func (ms *MemoryStorage) claimable(job *Job, now time.Time) bool {
	switch job.Status {
	case JobStatusPending:
		return !job.ScheduledAt.After(now)
	case JobStatusProcessing:
		return job.LockedUntil != nil && job.LockedUntil.Before(now)
	default:
		return false
	}
}

// CompleteJob marks a job completed.
func (ms *MemoryStorage) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, ok := ms.jobs[jobID]
	if !ok {
		return errors.New("job not found")
	}

	job.Status = JobStatusCompleted
	job.LockedUntil = nil
	job.LockedBy = nil
	return nil
}

// FailJob records the error, increments the attempt count, and reschedules
// the job with exponential backoff while attempts remain.
func (ms *MemoryStorage) FailJob(ctx context.Context, jobID uuid.UUID, errorMsg string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, ok := ms.jobs[jobID]
	if !ok {
		return errors.New("job not found")
	}

	job.Attempts++
	job.LastError = &errorMsg
	job.LockedUntil = nil
	job.LockedBy = nil

	if job.Attempts >= job.MaxAttempts {
		job.Status = JobStatusFailed
		return nil
	}

	// Backoff doubles per attempt: 2s, 4s, 8s...
	job.Status = JobStatusPending
	job.ScheduledAt = time.Now().Add(time.Duration(1<<job.Attempts) * time.Second)
	return nil
}

// MoveToDLQ moves a job to the dead-letter table.
func (ms *MemoryStorage) MoveToDLQ(ctx context.Context, jobID uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, ok := ms.jobs[jobID]
	if !ok {
		return errors.New("job not found")
	}

	var lastError string
	if job.LastError != nil {
		lastError = *job.LastError
	}

	dl := &DeadLetter{
		ID:       uuid.New(),
		JobID:    job.ID,
		Queue:    job.Queue,
		Type:     job.Type,
		DomainID: job.DomainID,
		Payload:  job.Payload,
		Attempts: job.Attempts,
		Error:    lastError,
		FailedAt: time.Now(),
	}

	ms.dlq[dl.ID] = dl
	delete(ms.jobs, jobID)
	return nil
}

// ClaimDeadLetters returns up to limit unacknowledged dead letters.
func (ms *MemoryStorage) ClaimDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	if len(ms.dlq) == 0 {
		return nil, ErrNoDeadLetters
	}

	var out []DeadLetter
	for _, dl := range ms.dlq {
		out = append(out, *dl)
		if len(out) >= limit {
			break
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].FailedAt.Before(out[j].FailedAt)
	})
	return out, nil
}

// AckDeadLetter removes a dead letter permanently.
func (ms *MemoryStorage) AckDeadLetter(ctx context.Context, id uuid.UUID) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	delete(ms.dlq, id)
	return nil
}

// HasPendingJob reports whether a pending or processing job of the given
// type exists.
func (ms *MemoryStorage) HasPendingJob(ctx context.Context, jobType JobType) (bool, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	for _, job := range ms.jobs {
		if job.Type != jobType {
			continue
		}
		if job.Status == JobStatusPending || job.Status == JobStatusProcessing {
			return true, nil
		}
	}
	return false, nil
}

// Job returns a copy of a stored job, for tests.
func (ms *MemoryStorage) Job(id uuid.UUID) (Job, bool) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	job, ok := ms.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// Jobs returns copies of all stored jobs, for tests.
func (ms *MemoryStorage) Jobs() []Job {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	out := make([]Job, 0, len(ms.jobs))
	for _, job := range ms.jobs {
		out = append(out, *job)
	}
	return out
}

// DeadLetters returns copies of all parked dead letters, for tests.
func (ms *MemoryStorage) DeadLetters() []DeadLetter {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	out := make([]DeadLetter, 0, len(ms.dlq))
	for _, dl := range ms.dlq {
		out = append(out, *dl)
	}
	return out
}
