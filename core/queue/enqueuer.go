package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Enqueuer creates jobs with configurable defaults.
type Enqueuer struct {
	repo               EnqueuerRepository
	defaultQueue       string
	defaultMaxAttempts int
}

// EnqueuerOption configures an Enqueuer.
type EnqueuerOption func(*Enqueuer)

// WithDefaultQueue sets the queue jobs are created on by default.
func WithDefaultQueue(queue string) EnqueuerOption {
	return func(e *Enqueuer) {
		if queue != "" {
			e.defaultQueue = queue
		}
	}
}

// WithDefaultMaxAttempts sets the default retry budget for created jobs.
func WithDefaultMaxAttempts(n int) EnqueuerOption {
	return func(e *Enqueuer) {
		if n > 0 {
			e.defaultMaxAttempts = n
		}
	}
}

// NewEnqueuer creates an Enqueuer over the given repository.
func NewEnqueuer(repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrStorageNil
	}

	e := &Enqueuer{
		repo:               repo,
		defaultQueue:       DefaultQueueName,
		defaultMaxAttempts: 3,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// EnqueueOption configures a single Enqueue call.
type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	jobID       uuid.UUID
	queue       string
	maxAttempts int
	delay       time.Duration
	scheduledAt *time.Time
	payload     any
}

// WithJobID pins the job ID, making the enqueue idempotent for a logical
// job instance. Without it a random ID is generated.
func WithJobID(id uuid.UUID) EnqueueOption {
	return func(o *enqueueOptions) {
		o.jobID = id
	}
}

// WithQueue overrides the target queue for this job.
func WithQueue(queue string) EnqueueOption {
	return func(o *enqueueOptions) {
		if queue != "" {
			o.queue = queue
		}
	}
}

// WithMaxAttempts overrides the retry budget for this job.
func WithMaxAttempts(n int) EnqueueOption {
	return func(o *enqueueOptions) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithDelay schedules the job to become due after d.
func WithDelay(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if d > 0 {
			o.delay = d
		}
	}
}

// WithScheduledAt schedules the job for an absolute time.
func WithScheduledAt(at time.Time) EnqueueOption {
	return func(o *enqueueOptions) {
		o.scheduledAt = &at
	}
}

// WithPayload attaches a JSON-marshaled payload to the job.
func WithPayload(payload any) EnqueueOption {
	return func(o *enqueueOptions) {
		o.payload = payload
	}
}

// Enqueue creates a job of the given type for the given domain. DomainID may
// be uuid.Nil for jobs that do not reference a domain (e.g. operator
// notifications carrying their own payload).
func (e *Enqueuer) Enqueue(ctx context.Context, jobType JobType, domainID uuid.UUID, opts ...EnqueueOption) (*Job, error) {
	if !jobType.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidJobType, jobType)
	}

	options := &enqueueOptions{
		jobID:       uuid.New(),
		queue:       e.defaultQueue,
		maxAttempts: e.defaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(options)
	}

	var payload json.RawMessage
	if options.payload != nil {
		raw, err := json.Marshal(options.payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload for %s job: %w", jobType, err)
		}
		payload = raw
	}

	now := time.Now()
	scheduledAt := now
	if options.scheduledAt != nil {
		scheduledAt = *options.scheduledAt
	} else if options.delay > 0 {
		scheduledAt = now.Add(options.delay)
	}

	job := &Job{
		ID:          options.jobID,
		Queue:       options.queue,
		Type:        jobType,
		DomainID:    domainID,
		Payload:     payload,
		Status:      JobStatusPending,
		Attempts:    0,
		MaxAttempts: options.maxAttempts,
		ScheduledAt: scheduledAt,
		CreatedAt:   now,
	}

	if err := e.repo.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create %s job in queue %q: %w", jobType, job.Queue, err)
	}

	return job, nil
}
