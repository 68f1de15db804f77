package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// DeadLetterHandler processes jobs that exhausted their retry budget.
// Implementations must never rely on being retried: the consumer
// acknowledges every dead letter exactly once, whether or not the handler
// succeeded, to prevent poison-message loops.
type DeadLetterHandler interface {
	ProcessDeadLetter(ctx context.Context, dl DeadLetter) error
}

// DLQConsumer drains the dead-letter queue in batches and hands each entry
// to a DeadLetterHandler.
type DLQConsumer struct {
	repo    DLQRepository
	handler DeadLetterHandler

	pollInterval time.Duration
	batchSize    int
	logger       *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// DLQOption configures a DLQConsumer.
type DLQOption func(*DLQConsumer)

// WithDLQPollInterval sets how often the DLQ is polled.
func WithDLQPollInterval(d time.Duration) DLQOption {
	return func(c *DLQConsumer) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithDLQBatchSize sets how many dead letters are claimed per poll.
func WithDLQBatchSize(n int) DLQOption {
	return func(c *DLQConsumer) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithDLQLogger sets the consumer's logger.
func WithDLQLogger(logger *slog.Logger) DLQOption {
	return func(c *DLQConsumer) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewDLQConsumer creates a consumer over the given repository and handler.
func NewDLQConsumer(repo DLQRepository, handler DeadLetterHandler, opts ...DLQOption) (*DLQConsumer, error) {
	if repo == nil {
		return nil, ErrStorageNil
	}
	if handler == nil {
		return nil, ErrHandlerNil
	}

	c := &DLQConsumer{
		repo:         repo,
		handler:      handler,
		pollInterval: 30 * time.Second,
		batchSize:    10,
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)), // No-op logger by default
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// NewDLQConsumerFromConfig creates a DLQConsumer from configuration.
func NewDLQConsumerFromConfig(cfg Config, repo DLQRepository, handler DeadLetterHandler, opts ...DLQOption) (*DLQConsumer, error) {
	allOpts := append([]DLQOption{
		WithDLQPollInterval(cfg.DLQPollInterval),
		WithDLQBatchSize(cfg.DLQBatchSize),
	}, opts...)
	return NewDLQConsumer(repo, handler, allOpts...)
}

// Start polls the DLQ until the context is cancelled. Blocking; use Run()
// for errgroup coordination.
func (c *DLQConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.mu.Unlock()
		return fmt.Errorf("dlq consumer already started")
	}
	ctx, c.cancel = context.WithCancel(ctx)
	c.mu.Unlock()

	c.logger.InfoContext(ctx, "dlq consumer started",
		slog.Duration("poll_interval", c.pollInterval),
		slog.Int("batch_size", c.batchSize))

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.drainBatch(ctx)
		}
	}
}

// Stop cancels the polling loop and waits for an in-flight batch to
// finish.
func (c *DLQConsumer) Stop() error {
	c.mu.Lock()
	if c.cancel == nil {
		c.mu.Unlock()
		return fmt.Errorf("dlq consumer not started")
	}
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()

	cancel()
	c.wg.Wait()

	c.logger.InfoContext(context.Background(), "dlq consumer stopped")
	return nil
}

// Run provides errgroup compatibility: it starts the consumer, watches
// for context cancellation, and shuts down gracefully.
func (c *DLQConsumer) Run(ctx context.Context) func() error {
	return func() error {
		errCh := make(chan error, 1)
		go func() {
			errCh <- c.Start(ctx)
		}()

		select {
		case <-ctx.Done():
			_ = c.Stop()
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

// ProcessBatch claims and processes one batch immediately. Exposed for the
// polling loop and for tests; safe to call concurrently with Start.
func (c *DLQConsumer) ProcessBatch(ctx context.Context) error {
	deadLetters, err := c.repo.ClaimDeadLetters(ctx, c.batchSize)
	if err != nil {
		if errors.Is(err, ErrNoDeadLetters) {
			return nil
		}
		return fmt.Errorf("claim dead letters: %w", err)
	}

	for _, dl := range deadLetters {
		c.processOne(ctx, dl)
	}
	return nil
}

// processOne runs the handler and unconditionally acknowledges the dead
// letter afterwards. Handler errors are logged, never propagated: a dead
// letter that cannot be escalated must still leave the queue.
func (c *DLQConsumer) processOne(ctx context.Context, dl DeadLetter) {
	if err := c.handler.ProcessDeadLetter(ctx, dl); err != nil {
		c.logger.ErrorContext(ctx, "dead letter escalation failed",
			slog.String("dead_letter_id", dl.ID.String()),
			slog.String("job_id", dl.JobID.String()),
			slog.String("job_type", string(dl.Type)),
			slog.String("error", err.Error()))
	}

	if err := c.repo.AckDeadLetter(ctx, dl.ID); err != nil {
		c.logger.ErrorContext(ctx, "failed to acknowledge dead letter",
			slog.String("dead_letter_id", dl.ID.String()),
			slog.String("error", err.Error()))
	}
}

func (c *DLQConsumer) drainBatch(ctx context.Context) {
	c.wg.Add(1)
	defer c.wg.Done()

	if err := c.ProcessBatch(ctx); err != nil {
		c.logger.ErrorContext(ctx, "dlq batch processing failed",
			slog.String("error", err.Error()))
	}
}
