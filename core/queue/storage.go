package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EnqueuerRepository defines the interface for job creation.
//
// CreateJob must be idempotent on job ID: producers run under at-least-once
// semantics and may create the same logical job twice.
type EnqueuerRepository interface {
	CreateJob(ctx context.Context, job *Job) error
}

// WorkerRepository defines the interface for worker operations.
type WorkerRepository interface {
	// ClaimJob atomically claims the next due job from the given queues,
	// locking it for lockDuration. Returns ErrNoJobToClaim when nothing is
	// due.
	ClaimJob(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*Job, error)

	// CompleteJob marks a job as completed.
	CompleteJob(ctx context.Context, jobID uuid.UUID) error

	// FailJob records the error, increments the attempt count, and
	// reschedules the job with backoff if attempts remain.
	FailJob(ctx context.Context, jobID uuid.UUID, errorMsg string) error

	// MoveToDLQ parks a job on the dead-letter queue.
	MoveToDLQ(ctx context.Context, jobID uuid.UUID) error
}

// DLQRepository defines the interface for dead-letter consumption.
type DLQRepository interface {
	// ClaimDeadLetters returns up to limit unacknowledged dead letters.
	ClaimDeadLetters(ctx context.Context, limit int) ([]DeadLetter, error)

	// AckDeadLetter acknowledges a dead letter so it is never redelivered.
	AckDeadLetter(ctx context.Context, id uuid.UUID) error
}

// SchedulerRepository defines the interface for periodic job management.
type SchedulerRepository interface {
	CreateJob(ctx context.Context, job *Job) error

	// HasPendingJob reports whether a pending or processing job of the given
	// type already exists, so periodic scheduling never stacks duplicates.
	HasPendingJob(ctx context.Context, jobType JobType) (bool, error)
}

// Storage combines all repository interfaces required for queue operation.
// A single implementation of this interface can back the Enqueuer, Worker,
// DLQConsumer, and Scheduler at once.
type Storage interface {
	EnqueuerRepository
	WorkerRepository
	DLQRepository
	SchedulerRepository
}
