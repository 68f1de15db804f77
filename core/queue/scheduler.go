package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Scheduler drives recurring pipeline work from a single loop: it creates
// periodic jobs on a fixed interval per job type, and runs registered
// scans such as the renewal scan.
type Scheduler struct {
	repo     SchedulerRepository
	periodic map[JobType]*periodicJob
	scans    []*periodicScan
	mu       sync.RWMutex

	checkInterval time.Duration
	logger        *slog.Logger

	cancel  context.CancelFunc
	running atomic.Bool

	jobsScheduled atomic.Int64
}

// periodicJob holds the recurrence configuration for one job type.
type periodicJob struct {
	jobType     JobType
	every       time.Duration
	queue       string
	maxAttempts int
	lastCreated time.Time
}

// periodicScan is a named recurring function. Unlike a periodic job it
// creates no job of its own; the function enqueues whatever work it
// discovers.
type periodicScan struct {
	name    string
	every   time.Duration
	fn      func(ctx context.Context) error
	lastRun time.Time
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithCheckInterval sets how often due periodic jobs are checked.
func WithCheckInterval(d time.Duration) SchedulerOption {
	return func(s *Scheduler) {
		if d > 0 {
			s.checkInterval = d
		}
	}
}

// WithSchedulerLogger sets the scheduler's logger.
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScheduler creates a scheduler over the given repository.
func NewScheduler(repo SchedulerRepository, opts ...SchedulerOption) (*Scheduler, error) {
	if repo == nil {
		return nil, ErrStorageNil
	}

	s := &Scheduler{
		repo:          repo,
		periodic:      make(map[JobType]*periodicJob),
		checkInterval: 30 * time.Second,
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)), // No-op logger by default
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewSchedulerFromConfig creates a Scheduler from configuration.
// Additional options override config values.
func NewSchedulerFromConfig(cfg Config, repo SchedulerRepository, opts ...SchedulerOption) (*Scheduler, error) {
	allOpts := append([]SchedulerOption{
		WithCheckInterval(cfg.CheckInterval),
	}, opts...)
	return NewScheduler(repo, allOpts...)
}

// AddPeriodic registers a job type to be created every interval. A new job
// is only created when no pending job of the type exists, so slow workers
// never accumulate a backlog of identical scans.
func (s *Scheduler) AddPeriodic(jobType JobType, every time.Duration, opts ...EnqueueOption) error {
	if !jobType.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidJobType, jobType)
	}
	if every <= 0 {
		return fmt.Errorf("periodic interval must be positive, got %s", every)
	}

	options := &enqueueOptions{queue: DefaultQueueName, maxAttempts: 3}
	for _, opt := range opts {
		opt(options)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.periodic[jobType]; exists {
		return ErrJobAlreadyRegistered
	}

	s.periodic[jobType] = &periodicJob{
		jobType:     jobType,
		every:       every,
		queue:       options.queue,
		maxAttempts: options.maxAttempts,
	}

	s.logger.InfoContext(context.Background(), "registered periodic job",
		slog.String("job_type", string(jobType)),
		slog.Duration("every", every))

	return nil
}

// AddScan registers a named function to run every interval on the
// scheduling loop. A failed scan is retried on the next tick.
func (s *Scheduler) AddScan(name string, every time.Duration, fn func(ctx context.Context) error) error {
	if name == "" {
		return fmt.Errorf("scan name must not be empty")
	}
	if every <= 0 {
		return fmt.Errorf("scan interval must be positive, got %s", every)
	}
	if fn == nil {
		return ErrHandlerNil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, scan := range s.scans {
		if scan.name == name {
			return ErrJobAlreadyRegistered
		}
	}
	s.scans = append(s.scans, &periodicScan{name: name, every: every, fn: fn})

	s.logger.InfoContext(context.Background(), "registered periodic scan",
		slog.String("scan", name),
		slog.Duration("every", every))

	return nil
}

// Start runs the scheduling loop until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("scheduler already started")
	}
	defer s.running.Store(false)

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.checkDue(ctx)
		}
	}
}

// Run provides errgroup compatibility.
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		err := s.Start(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
}

// checkDue creates jobs for every registered periodic type whose interval
// has elapsed and which has no job still pending.
func (s *Scheduler) checkDue(ctx context.Context) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.periodic {
		if !p.lastCreated.IsZero() && now.Sub(p.lastCreated) < p.every {
			continue
		}

		pending, err := s.repo.HasPendingJob(ctx, p.jobType)
		if err != nil {
			s.logger.ErrorContext(ctx, "pending job check failed",
				slog.String("job_type", string(p.jobType)),
				slog.String("error", err.Error()))
			continue
		}
		if pending {
			continue
		}

		job := &Job{
			ID:          uuid.New(),
			Queue:       p.queue,
			Type:        p.jobType,
			Status:      JobStatusPending,
			MaxAttempts: p.maxAttempts,
			ScheduledAt: now,
			CreatedAt:   now,
		}

		if err := s.repo.CreateJob(ctx, job); err != nil {
			s.logger.ErrorContext(ctx, "failed to create periodic job",
				slog.String("job_type", string(p.jobType)),
				slog.String("error", err.Error()))
			continue
		}

		p.lastCreated = now
		s.jobsScheduled.Add(1)

		s.logger.DebugContext(ctx, "created periodic job",
			slog.String("job_id", job.ID.String()),
			slog.String("job_type", string(p.jobType)))
	}

	for _, scan := range s.scans {
		if !scan.lastRun.IsZero() && now.Sub(scan.lastRun) < scan.every {
			continue
		}

		if err := scan.fn(ctx); err != nil {
			s.logger.ErrorContext(ctx, "periodic scan failed",
				slog.String("scan", scan.name),
				slog.String("error", err.Error()))
			continue
		}
		scan.lastRun = now
	}
}

// JobsScheduled returns the number of periodic jobs created so far.
func (s *Scheduler) JobsScheduled() int64 {
	return s.jobsScheduled.Load()
}
