package dcv_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delegatedssl/platform/core/dcv"
	"github.com/delegatedssl/platform/core/domain"
	"github.com/delegatedssl/platform/core/queue"
)

// fakeLister returns a canned set of expiring domains.
type fakeLister struct {
	domains []domain.Domain
	err     error
}

func (f *fakeLister) ListDomainsExpiringBefore(ctx context.Context, cutoff time.Time) ([]domain.Domain, error) {
	return f.domains, f.err
}

func TestRenewalScanner_Scan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("enqueues one renewal per expiring domain", func(t *testing.T) {
		t.Parallel()

		d1 := testDomain(domain.StatusActive)
		d1.ExpiresAt = time.Now().Add(10 * 24 * time.Hour)
		d2 := testDomain(domain.StatusActive)
		d2.ExpiresAt = time.Now().Add(20 * 24 * time.Hour)

		storage := queue.NewMemoryStorage()
		enq, err := queue.NewEnqueuer(storage)
		require.NoError(t, err)

		scanner, err := dcv.NewRenewalScanner(&fakeLister{domains: []domain.Domain{*d1, *d2}}, enq)
		require.NoError(t, err)

		require.NoError(t, scanner.Scan(ctx))

		jobs := storage.Jobs()
		require.Len(t, jobs, 2)
		for _, job := range jobs {
			assert.Equal(t, queue.JobTypeRenewal, job.Type)
		}
	})

	t.Run("repeated scans do not stack duplicates", func(t *testing.T) {
		t.Parallel()

		d := testDomain(domain.StatusActive)
		d.ExpiresAt = time.Now().Add(10 * 24 * time.Hour)

		storage := queue.NewMemoryStorage()
		enq, err := queue.NewEnqueuer(storage)
		require.NoError(t, err)

		scanner, err := dcv.NewRenewalScanner(&fakeLister{domains: []domain.Domain{*d}}, enq)
		require.NoError(t, err)

		require.NoError(t, scanner.Scan(ctx))
		require.NoError(t, scanner.Scan(ctx))

		assert.Len(t, storage.Jobs(), 1)
	})

	t.Run("lister failure propagates", func(t *testing.T) {
		t.Parallel()

		enq, err := queue.NewEnqueuer(queue.NewMemoryStorage())
		require.NoError(t, err)

		scanner, err := dcv.NewRenewalScanner(&fakeLister{err: errors.New("db down")}, enq)
		require.NoError(t, err)

		assert.Error(t, scanner.Scan(ctx))
	})
}

func TestNewRenewalScanner_Validation(t *testing.T) {
	t.Parallel()

	enq, err := queue.NewEnqueuer(queue.NewMemoryStorage())
	require.NoError(t, err)

	_, err = dcv.NewRenewalScanner(nil, enq)
	assert.ErrorIs(t, err, dcv.ErrStoreNil)

	_, err = dcv.NewRenewalScanner(&fakeLister{}, nil)
	assert.ErrorIs(t, err, dcv.ErrEnqueuerNil)
}
