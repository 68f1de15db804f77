package queue_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delegatedssl/platform/core/queue"
)

// recordingDeadLetterHandler captures processed dead letters and can be
// forced to fail.
type recordingDeadLetterHandler struct {
	processed []queue.DeadLetter
	err       error
}

func (h *recordingDeadLetterHandler) ProcessDeadLetter(ctx context.Context, dl queue.DeadLetter) error {
	h.processed = append(h.processed, dl)
	return h.err
}

func parkDeadLetter(t *testing.T, ms *queue.MemoryStorage, jobType queue.JobType) queue.Job {
	t.Helper()
	ctx := context.Background()

	job := pendingJob(jobType)
	job.Attempts = 2
	require.NoError(t, ms.CreateJob(ctx, job))
	require.NoError(t, ms.FailJob(ctx, job.ID, "exhausted"))
	require.NoError(t, ms.MoveToDLQ(ctx, job.ID))
	return *job
}

func TestDLQConsumer_ProcessBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("processes and acknowledges", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		job := parkDeadLetter(t, ms, queue.JobTypeRenewal)

		handler := &recordingDeadLetterHandler{}
		consumer, err := queue.NewDLQConsumer(ms, handler)
		require.NoError(t, err)

		require.NoError(t, consumer.ProcessBatch(ctx))

		require.Len(t, handler.processed, 1)
		assert.Equal(t, job.ID, handler.processed[0].JobID)
		assert.Empty(t, ms.DeadLetters())
	})

	t.Run("acknowledges even when handler fails", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		parkDeadLetter(t, ms, queue.JobTypeStartIssuance)

		handler := &recordingDeadLetterHandler{err: errors.New("email provider down")}
		consumer, err := queue.NewDLQConsumer(ms, handler)
		require.NoError(t, err)

		require.NoError(t, consumer.ProcessBatch(ctx))

		// The failed escalation must not leave the message behind.
		assert.Empty(t, ms.DeadLetters())
	})

	t.Run("empty dlq is a no-op", func(t *testing.T) {
		t.Parallel()

		handler := &recordingDeadLetterHandler{}
		consumer, err := queue.NewDLQConsumer(queue.NewMemoryStorage(), handler)
		require.NoError(t, err)

		require.NoError(t, consumer.ProcessBatch(ctx))
		assert.Empty(t, handler.processed)
	})

	t.Run("respects batch size", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		for range 5 {
			parkDeadLetter(t, ms, queue.JobTypeDNSCheck)
		}

		handler := &recordingDeadLetterHandler{}
		consumer, err := queue.NewDLQConsumer(ms, handler, queue.WithDLQBatchSize(2))
		require.NoError(t, err)

		require.NoError(t, consumer.ProcessBatch(ctx))
		assert.Len(t, handler.processed, 2)
		assert.Len(t, ms.DeadLetters(), 3)
	})
}

func TestDLQConsumer_Start(t *testing.T) {
	t.Parallel()

	ms := queue.NewMemoryStorage()
	parkDeadLetter(t, ms, queue.JobTypeRenewal)

	handler := &recordingDeadLetterHandler{}
	consumer, err := queue.NewDLQConsumer(ms, handler, queue.WithDLQPollInterval(10*time.Millisecond))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = consumer.Start(ctx) }()

	assert.Eventually(t, func() bool {
		return len(ms.DeadLetters()) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestDLQConsumer_Stop(t *testing.T) {
	t.Parallel()

	t.Run("stop before start fails", func(t *testing.T) {
		t.Parallel()

		consumer, err := queue.NewDLQConsumer(queue.NewMemoryStorage(), &recordingDeadLetterHandler{})
		require.NoError(t, err)
		assert.Error(t, consumer.Stop())
	})

	t.Run("run shuts down cleanly on context cancel", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		parkDeadLetter(t, ms, queue.JobTypeRenewal)

		handler := &recordingDeadLetterHandler{}
		consumer, err := queue.NewDLQConsumer(ms, handler, queue.WithDLQPollInterval(10*time.Millisecond))
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- consumer.Run(ctx)() }()

		assert.Eventually(t, func() bool {
			return len(ms.DeadLetters()) == 0
		}, time.Second, 10*time.Millisecond)

		cancel()
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("consumer did not shut down")
		}
	})
}

func TestNewDLQConsumer_Validation(t *testing.T) {
	t.Parallel()

	_, err := queue.NewDLQConsumer(nil, &recordingDeadLetterHandler{})
	assert.ErrorIs(t, err, queue.ErrStorageNil)

	_, err = queue.NewDLQConsumer(queue.NewMemoryStorage(), nil)
	assert.ErrorIs(t, err, queue.ErrHandlerNil)
}
