package queue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delegatedssl/platform/core/queue"
)

func TestScheduler_AddPeriodic(t *testing.T) {
	t.Parallel()

	t.Run("duplicate registration rejected", func(t *testing.T) {
		t.Parallel()

		s, err := queue.NewScheduler(queue.NewMemoryStorage())
		require.NoError(t, err)

		require.NoError(t, s.AddPeriodic(queue.JobTypeRenewal, time.Hour))
		assert.ErrorIs(t, s.AddPeriodic(queue.JobTypeRenewal, time.Hour), queue.ErrJobAlreadyRegistered)
	})

	t.Run("invalid job type rejected", func(t *testing.T) {
		t.Parallel()

		s, err := queue.NewScheduler(queue.NewMemoryStorage())
		require.NoError(t, err)
		assert.ErrorIs(t, s.AddPeriodic(queue.JobType("vacuum"), time.Hour), queue.ErrInvalidJobType)
	})

	t.Run("non-positive interval rejected", func(t *testing.T) {
		t.Parallel()

		s, err := queue.NewScheduler(queue.NewMemoryStorage())
		require.NoError(t, err)
		assert.Error(t, s.AddPeriodic(queue.JobTypeRenewal, 0))
	})
}

func TestScheduler_CreatesDueJobs(t *testing.T) {
	t.Parallel()

	ms := queue.NewMemoryStorage()
	s, err := queue.NewScheduler(ms, queue.WithCheckInterval(10*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, s.AddPeriodic(queue.JobTypeRenewal, time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Start(ctx) }()

	assert.Eventually(t, func() bool {
		return s.JobsScheduled() == 1
	}, time.Second, 10*time.Millisecond)

	jobs := ms.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, queue.JobTypeRenewal, jobs[0].Type)

	// The pending job suppresses further scheduling even after the
	// interval math would allow one.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), s.JobsScheduled())
}

func TestScheduler_AddScan(t *testing.T) {
	t.Parallel()

	noopScan := func(ctx context.Context) error { return nil }

	t.Run("duplicate name rejected", func(t *testing.T) {
		t.Parallel()

		s, err := queue.NewScheduler(queue.NewMemoryStorage())
		require.NoError(t, err)

		require.NoError(t, s.AddScan("renewal_scan", time.Hour, noopScan))
		assert.ErrorIs(t, s.AddScan("renewal_scan", time.Hour, noopScan), queue.ErrJobAlreadyRegistered)
	})

	t.Run("empty name rejected", func(t *testing.T) {
		t.Parallel()

		s, err := queue.NewScheduler(queue.NewMemoryStorage())
		require.NoError(t, err)
		assert.Error(t, s.AddScan("", time.Hour, noopScan))
	})

	t.Run("non-positive interval rejected", func(t *testing.T) {
		t.Parallel()

		s, err := queue.NewScheduler(queue.NewMemoryStorage())
		require.NoError(t, err)
		assert.Error(t, s.AddScan("renewal_scan", 0, noopScan))
	})

	t.Run("nil function rejected", func(t *testing.T) {
		t.Parallel()

		s, err := queue.NewScheduler(queue.NewMemoryStorage())
		require.NoError(t, err)
		assert.ErrorIs(t, s.AddScan("renewal_scan", time.Hour, nil), queue.ErrHandlerNil)
	})
}

func TestScheduler_RunsScans(t *testing.T) {
	t.Parallel()

	s, err := queue.NewScheduler(queue.NewMemoryStorage(), queue.WithCheckInterval(10*time.Millisecond))
	require.NoError(t, err)

	var runs atomic.Int32
	require.NoError(t, s.AddScan("renewal_scan", time.Hour, func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Start(ctx) }()

	assert.Eventually(t, func() bool {
		return runs.Load() == 1
	}, time.Second, 10*time.Millisecond)

	// The hour-long interval suppresses further runs.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())
}

func TestScheduler_RetriesFailedScan(t *testing.T) {
	t.Parallel()

	s, err := queue.NewScheduler(queue.NewMemoryStorage(), queue.WithCheckInterval(10*time.Millisecond))
	require.NoError(t, err)

	// Fail once, then succeed. A failed scan must not consume its
	// interval, so the next tick retries it.
	var runs atomic.Int32
	require.NoError(t, s.AddScan("renewal_scan", time.Hour, func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			return errors.New("db down")
		}
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Start(ctx) }()

	assert.Eventually(t, func() bool {
		return runs.Load() >= 2
	}, time.Second, 10*time.Millisecond)
}
