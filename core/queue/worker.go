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

// Worker claims jobs from the queue and dispatches them to registered
// handlers by job type.
type Worker struct {
	repo     WorkerRepository
	handlers map[JobType]Handler
	queues   []string
	workerID uuid.UUID
	sem      chan struct{}
	wg       sync.WaitGroup
	mu       sync.RWMutex

	pullInterval    time.Duration
	lockTimeout     time.Duration
	shutdownTimeout time.Duration
	logger          *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	jobsProcessed atomic.Int64
	jobsFailed    atomic.Int64
	activeJobs    atomic.Int32
}

// WorkerStats provides observability metrics for monitoring and debugging.
type WorkerStats struct {
	JobsProcessed int64
	JobsFailed    int64
	ActiveJobs    int32
	IsRunning     bool
}

// NewWorker creates a worker over the given repository.
func NewWorker(repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	if repo == nil {
		return nil, ErrStorageNil
	}

	options := &workerOptions{
		queues:            []string{DefaultQueueName},
		pullInterval:      5 * time.Second,
		lockTimeout:       5 * time.Minute,
		shutdownTimeout:   30 * time.Second,
		maxConcurrentJobs: 1,
		logger:            slog.New(slog.NewTextHandler(io.Discard, nil)), // No-op logger by default
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Worker{
		repo:            repo,
		handlers:        make(map[JobType]Handler),
		queues:          options.queues,
		workerID:        uuid.New(),
		sem:             make(chan struct{}, options.maxConcurrentJobs),
		pullInterval:    options.pullInterval,
		lockTimeout:     options.lockTimeout,
		shutdownTimeout: options.shutdownTimeout,
		logger:          options.logger,
	}, nil
}

// NewWorkerFromConfig creates a Worker from configuration. Additional
// options override config values.
func NewWorkerFromConfig(cfg Config, repo WorkerRepository, opts ...WorkerOption) (*Worker, error) {
	allOpts := append([]WorkerOption{
		WithPullInterval(cfg.PollInterval),
		WithLockTimeout(cfg.LockTimeout),
		WithShutdownTimeout(cfg.ShutdownTimeout),
		WithMaxConcurrentJobs(cfg.MaxConcurrentJobs),
		WithQueues(cfg.Queues...),
	}, opts...)

	return NewWorker(repo, allOpts...)
}

// RegisterHandler registers a handler for its job type. Registering a second
// handler for the same type replaces the first.
func (w *Worker) RegisterHandler(handler Handler) error {
	if handler == nil {
		return ErrHandlerNil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[handler.Type()] = handler
	return nil
}

// RegisterHandlers registers multiple handlers.
func (w *Worker) RegisterHandlers(handlers ...Handler) error {
	for _, h := range handlers {
		if err := w.RegisterHandler(h); err != nil {
			return err
		}
	}
	return nil
}

// Start begins processing jobs. Blocking; runs until the context is
// cancelled. Use Run() for errgroup coordination.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.cancel != nil {
		w.mu.Unlock()
		return fmt.Errorf("worker already started")
	}
	if len(w.handlers) == 0 {
		w.mu.Unlock()
		return ErrNoHandlers
	}
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.mu.Unlock()

	w.logger.InfoContext(w.ctx, "worker started",
		slog.String("worker_id", w.workerID.String()),
		slog.Any("queues", w.queues),
		slog.Int("max_concurrent", cap(w.sem)))

	ticker := time.NewTicker(w.pullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.logger.InfoContext(context.Background(), "worker stopping")
			return w.ctx.Err()
		case <-ticker.C:
			select {
			case w.sem <- struct{}{}:
				// Must verify the worker is still running AND add to the
				// waitgroup under the lock, otherwise Stop() could wait on
				// an incomplete count.
				w.mu.RLock()
				if w.cancel == nil {
					w.mu.RUnlock()
					<-w.sem
					return nil
				}
				w.wg.Add(1)
				w.mu.RUnlock()

				go func() {
					defer w.wg.Done()
					defer func() { <-w.sem }()

					if err := w.pullAndProcess(); err != nil && !errors.Is(err, ErrHandlerNotFound) {
						w.logger.ErrorContext(w.ctx, "failed to process job",
							slog.String("worker_id", w.workerID.String()),
							slog.String("error", err.Error()))
					}
				}()
			default:
				w.logger.DebugContext(w.ctx, "all worker slots busy, skipping tick",
					slog.String("worker_id", w.workerID.String()))
			}
		}
	}
}

// Stop gracefully shuts down the worker, waiting up to the shutdown timeout
// for active jobs to finish.
func (w *Worker) Stop() error {
	w.mu.Lock()
	if w.cancel == nil {
		w.mu.Unlock()
		return fmt.Errorf("worker not started")
	}
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	cancel()

	ctx, ctxCancel := context.WithTimeout(context.Background(), w.shutdownTimeout)
	defer ctxCancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.InfoContext(context.Background(), "worker stopped cleanly",
			slog.String("worker_id", w.workerID.String()))
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(context.Background(), "worker shutdown timeout exceeded, some jobs may be abandoned",
			slog.String("worker_id", w.workerID.String()),
			slog.Duration("timeout", w.shutdownTimeout))
		return fmt.Errorf("shutdown timeout exceeded after %s", w.shutdownTimeout)
	}
}

// Run provides errgroup compatibility: it starts the worker, watches for
// context cancellation, and shuts down gracefully.
func (w *Worker) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- w.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = w.Stop()
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
	}
}

func (w *Worker) pullAndProcess() error {
	job, err := w.repo.ClaimJob(w.ctx, w.workerID, w.queues, w.lockTimeout)
	if err != nil {
		if errors.Is(err, ErrNoJobToClaim) {
			return nil
		}
		return fmt.Errorf("claim job: %w", err)
	}
	if job == nil {
		return nil
	}

	w.logger.DebugContext(w.ctx, "claimed job",
		slog.String("worker_id", w.workerID.String()),
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", string(job.Type)),
		slog.String("queue", job.Queue))

	return w.processJob(job)
}

func (w *Worker) processJob(job *Job) (retErr error) {
	start := time.Now()

	w.activeJobs.Add(1)
	defer w.activeJobs.Add(-1)

	// Panics are treated as job failures with retry eligibility, so one bad
	// handler cannot take the worker down.
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic in handler: %v", r)
			w.logger.ErrorContext(w.ctx, "handler panicked",
				slog.String("job_id", job.ID.String()),
				slog.String("job_type", string(job.Type)),
				slog.Any("panic", r))
			_ = w.handleJobFailure(job, retErr, time.Since(start))
		}
	}()

	w.mu.RLock()
	handler, ok := w.handlers[job.Type]
	w.mu.RUnlock()

	if !ok {
		return w.handleMissingHandler(job)
	}

	// Jobs run on an independent context with the full lock timeout: worker
	// shutdown must not interrupt a job mid-flight.
	ctx, cancel := context.WithTimeout(context.Background(), w.lockTimeout)
	defer cancel()

	err := handler.Handle(ctx, *job)
	duration := time.Since(start)

	if err != nil {
		return w.handleJobFailure(job, err, duration)
	}
	return w.handleJobSuccess(job, duration)
}

// handleMissingHandler sends jobs without a registered handler straight to
// the DLQ: retrying cannot help until the handler is deployed, and the DLQ
// path notifies operators.
func (w *Worker) handleMissingHandler(job *Job) error {
	w.jobsFailed.Add(1)

	w.logger.ErrorContext(w.ctx, "no handler registered for job type",
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", string(job.Type)))

	errorMsg := "no handler registered for job type: " + string(job.Type)
	if err := w.repo.FailJob(w.ctx, job.ID, errorMsg); err != nil {
		return fmt.Errorf("mark job %s failed: %w", job.ID, err)
	}
	if err := w.repo.MoveToDLQ(w.ctx, job.ID); err != nil {
		return fmt.Errorf("move job %s to DLQ: %w", job.ID, err)
	}
	return ErrHandlerNotFound
}

// handleJobFailure records the failure and, once the attempt budget is
// spent, parks the job on the DLQ. Storage owns the attempt count: FailJob
// increments it and reschedules with backoff while budget remains.
func (w *Worker) handleJobFailure(job *Job, execErr error, duration time.Duration) error {
	w.jobsFailed.Add(1)

	w.logger.ErrorContext(w.ctx, "job failed",
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", string(job.Type)),
		slog.Int("attempts", job.Attempts),
		slog.Int("max_attempts", job.MaxAttempts),
		slog.Duration("duration", duration),
		slog.String("error", execErr.Error()))

	if err := w.repo.FailJob(w.ctx, job.ID, execErr.Error()); err != nil {
		return fmt.Errorf("update job %s status to failed: %w", job.ID, err)
	}

	// Attempts on the claimed snapshot counts prior deliveries; this
	// failure makes Attempts+1.
	if job.Attempts+1 >= job.MaxAttempts {
		if err := w.repo.MoveToDLQ(w.ctx, job.ID); err != nil {
			return fmt.Errorf("move job %s to DLQ after max attempts: %w", job.ID, err)
		}
		w.logger.WarnContext(w.ctx, "job moved to dead letter queue",
			slog.String("job_id", job.ID.String()),
			slog.String("job_type", string(job.Type)))
	}

	return nil
}

func (w *Worker) handleJobSuccess(job *Job, duration time.Duration) error {
	if err := w.repo.CompleteJob(w.ctx, job.ID); err != nil {
		return fmt.Errorf("mark job %s completed: %w", job.ID, err)
	}

	w.jobsProcessed.Add(1)

	w.logger.InfoContext(w.ctx, "job completed",
		slog.String("job_id", job.ID.String()),
		slog.String("job_type", string(job.Type)),
		slog.String("queue", job.Queue),
		slog.Duration("duration", duration))

	return nil
}

// Stats returns current worker statistics.
func (w *Worker) Stats() WorkerStats {
	w.mu.RLock()
	isRunning := w.cancel != nil
	w.mu.RUnlock()

	return WorkerStats{
		JobsProcessed: w.jobsProcessed.Load(),
		JobsFailed:    w.jobsFailed.Load(),
		ActiveJobs:    w.activeJobs.Load(),
		IsRunning:     isRunning,
	}
}

// Healthcheck validates that the worker is running and not saturated.
func (w *Worker) Healthcheck(ctx context.Context) error {
	stats := w.Stats()

	if !stats.IsRunning {
		return errors.Join(ErrHealthcheckFailed, ErrWorkerNotRunning)
	}
	if stats.ActiveJobs >= int32(cap(w.sem)) {
		return errors.Join(ErrHealthcheckFailed, ErrWorkerOverloaded,
			fmt.Errorf("%d/%d slots busy", stats.ActiveJobs, cap(w.sem)))
	}
	return nil
}
