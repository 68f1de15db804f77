package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delegatedssl/platform/core/queue"
)

func pendingJob(jobType queue.JobType) *queue.Job {
	return &queue.Job{
		ID:          uuid.New(),
		Queue:       queue.DefaultQueueName,
		Type:        jobType,
		DomainID:    uuid.New(),
		Status:      queue.JobStatusPending,
		MaxAttempts: 3,
		ScheduledAt: time.Now().Add(-time.Second),
		CreatedAt:   time.Now(),
	}
}

func TestMemoryStorage_ClaimJob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("claims oldest due job", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()

		older := pendingJob(queue.JobTypeDNSCheck)
		older.ScheduledAt = time.Now().Add(-time.Minute)
		newer := pendingJob(queue.JobTypeDNSCheck)

		require.NoError(t, ms.CreateJob(ctx, newer))
		require.NoError(t, ms.CreateJob(ctx, older))

		claimed, err := ms.ClaimJob(ctx, uuid.New(), []string{queue.DefaultQueueName}, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, older.ID, claimed.ID)
		assert.Equal(t, queue.JobStatusProcessing, claimed.Status)
		require.NotNil(t, claimed.LockedUntil)
	})

	t.Run("locked job is not claimable twice", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		require.NoError(t, ms.CreateJob(ctx, pendingJob(queue.JobTypeRenewal)))

		_, err := ms.ClaimJob(ctx, uuid.New(), []string{queue.DefaultQueueName}, time.Minute)
		require.NoError(t, err)

		_, err = ms.ClaimJob(ctx, uuid.New(), []string{queue.DefaultQueueName}, time.Minute)
		assert.ErrorIs(t, err, queue.ErrNoJobToClaim)
	})

	t.Run("expired lock is reclaimed", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		require.NoError(t, ms.CreateJob(ctx, pendingJob(queue.JobTypeRenewal)))

		_, err := ms.ClaimJob(ctx, uuid.New(), []string{queue.DefaultQueueName}, time.Millisecond)
		require.NoError(t, err)

		time.Sleep(5 * time.Millisecond)

		reclaimed, err := ms.ClaimJob(ctx, uuid.New(), []string{queue.DefaultQueueName}, time.Minute)
		require.NoError(t, err)
		assert.NotNil(t, reclaimed)
	})

	t.Run("future jobs are not due", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		future := pendingJob(queue.JobTypeDNSCheck)
		future.ScheduledAt = time.Now().Add(time.Hour)
		require.NoError(t, ms.CreateJob(ctx, future))

		_, err := ms.ClaimJob(ctx, uuid.New(), []string{queue.DefaultQueueName}, time.Minute)
		assert.ErrorIs(t, err, queue.ErrNoJobToClaim)
	})
}

func TestMemoryStorage_CreateJobIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ms := queue.NewMemoryStorage()
	job := pendingJob(queue.JobTypeDNSCheck)

	require.NoError(t, ms.CreateJob(ctx, job))

	// Redelivered producer message: same logical job, same ID.
	require.NoError(t, ms.CreateJob(ctx, job))
	assert.Len(t, ms.Jobs(), 1)
}

func TestMemoryStorage_FailJob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("reschedules with backoff while budget remains", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		job := pendingJob(queue.JobTypeStartIssuance)
		require.NoError(t, ms.CreateJob(ctx, job))

		require.NoError(t, ms.FailJob(ctx, job.ID, "acme timeout"))

		stored, ok := ms.Job(job.ID)
		require.True(t, ok)
		assert.Equal(t, queue.JobStatusPending, stored.Status)
		assert.Equal(t, 1, stored.Attempts)
		require.NotNil(t, stored.LastError)
		assert.Equal(t, "acme timeout", *stored.LastError)
		assert.True(t, stored.ScheduledAt.After(time.Now()))
	})

	t.Run("marks failed once budget exhausted", func(t *testing.T) {
		t.Parallel()

		ms := queue.NewMemoryStorage()
		job := pendingJob(queue.JobTypeStartIssuance)
		job.Attempts = 2
		require.NoError(t, ms.CreateJob(ctx, job))

		require.NoError(t, ms.FailJob(ctx, job.ID, "still failing"))

		stored, ok := ms.Job(job.ID)
		require.True(t, ok)
		assert.Equal(t, queue.JobStatusFailed, stored.Status)
		assert.Equal(t, 3, stored.Attempts)
	})
}

func TestMemoryStorage_DLQ(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ms := queue.NewMemoryStorage()
	job := pendingJob(queue.JobTypeRenewal)
	job.Attempts = 2
	require.NoError(t, ms.CreateJob(ctx, job))
	require.NoError(t, ms.FailJob(ctx, job.ID, "provider down"))
	require.NoError(t, ms.MoveToDLQ(ctx, job.ID))

	// Job leaves the active table.
	_, ok := ms.Job(job.ID)
	assert.False(t, ok)

	deadLetters, err := ms.ClaimDeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, deadLetters, 1)
	assert.Equal(t, job.ID, deadLetters[0].JobID)
	assert.Equal(t, job.DomainID, deadLetters[0].DomainID)
	assert.Equal(t, "provider down", deadLetters[0].Error)

	require.NoError(t, ms.AckDeadLetter(ctx, deadLetters[0].ID))

	_, err = ms.ClaimDeadLetters(ctx, 10)
	assert.ErrorIs(t, err, queue.ErrNoDeadLetters)
}

func TestMemoryStorage_HasPendingJob(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	ms := queue.NewMemoryStorage()

	pending, err := ms.HasPendingJob(ctx, queue.JobTypeRenewal)
	require.NoError(t, err)
	assert.False(t, pending)

	require.NoError(t, ms.CreateJob(ctx, pendingJob(queue.JobTypeRenewal)))

	pending, err = ms.HasPendingJob(ctx, queue.JobTypeRenewal)
	require.NoError(t, err)
	assert.True(t, pending)

	pending, err = ms.HasPendingJob(ctx, queue.JobTypeSendEmail)
	require.NoError(t, err)
	assert.False(t, pending)
}
