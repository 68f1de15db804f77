package dcv

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/delegatedssl/platform/core/domain"
	"github.com/delegatedssl/platform/core/issuance"
	"github.com/delegatedssl/platform/core/logger"
	"github.com/delegatedssl/platform/core/queue"
)

// ExpiringDomainLister lists active domains whose certificates expire
// before a cutoff.
type ExpiringDomainLister interface {
	ListDomainsExpiringBefore(ctx context.Context, cutoff time.Time) ([]domain.Domain, error)
}

// RenewalScanner finds domains inside the renewal window and enqueues a
// renewal job for each. Job IDs are derived from the domain and its
// current expiry, so repeated scans over the same certificate generation
// cannot stack duplicate renewals. Register Scan with the queue
// scheduler to run it periodically.
type RenewalScanner struct {
	lister   ExpiringDomainLister
	enqueuer *queue.Enqueuer

	window time.Duration
	logger *slog.Logger
}

// ScannerOption configures a RenewalScanner.
type ScannerOption func(*RenewalScanner)

// WithRenewalWindow sets how long before expiry a certificate becomes
// eligible for renewal.
func WithRenewalWindow(d time.Duration) ScannerOption {
	return func(s *RenewalScanner) {
		if d > 0 {
			s.window = d
		}
	}
}

// WithScannerLogger sets the scanner's logger.
func WithScannerLogger(log *slog.Logger) ScannerOption {
	return func(s *RenewalScanner) {
		if log != nil {
			s.logger = log.With(logger.Component("renewal_scanner"))
		}
	}
}

// NewRenewalScanner creates a scanner over the given lister and enqueuer.
func NewRenewalScanner(lister ExpiringDomainLister, enqueuer *queue.Enqueuer, opts ...ScannerOption) (*RenewalScanner, error) {
	if lister == nil {
		return nil, ErrStoreNil
	}
	if enqueuer == nil {
		return nil, ErrEnqueuerNil
	}

	s := &RenewalScanner{
		lister:   lister,
		enqueuer: enqueuer,
		window:   issuance.DefaultRenewalWindow,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // No-op logger by default
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Scan enqueues renewal jobs for every domain inside the window.
func (s *RenewalScanner) Scan(ctx context.Context) error {
	cutoff := time.Now().Add(s.window)

	domains, err := s.lister.ListDomainsExpiringBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("list expiring domains: %w", err)
	}

	for _, d := range domains {
		jobID := renewalJobID(d.ID, d.ExpiresAt)
		if _, err := s.enqueuer.Enqueue(ctx, queue.JobTypeRenewal, d.ID,
			queue.WithJobID(jobID)); err != nil {
			s.logger.ErrorContext(ctx, "failed to enqueue renewal",
				logger.DomainName(d.DomainName),
				logger.Error(err))
			continue
		}
	}

	if len(domains) > 0 {
		s.logger.InfoContext(ctx, "renewal scan finished",
			slog.Int("expiring_domains", len(domains)))
	}
	return nil
}

// renewalJobID is stable per (domain, certificate generation): the same
// expiry always derives the same job ID.
func renewalJobID(domainID uuid.UUID, expiresAt time.Time) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID,
		fmt.Appendf(nil, "renewal:%s:%d", domainID, expiresAt.Unix()))
}
