package dcv

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/delegatedssl/platform/core/dns"
	"github.com/delegatedssl/platform/core/email"
	"github.com/delegatedssl/platform/core/issuance"
	"github.com/delegatedssl/platform/core/logger"
	"github.com/delegatedssl/platform/core/queue"
)

// CNAMEChecker verifies a domain's challenge delegation.
type CNAMEChecker interface {
	CheckCNAME(ctx context.Context, domain, expected string) (dns.CNAMECheck, error)
}

// Config holds pipeline tuning knobs.
type Config struct {
	RecheckInterval time.Duration `env:"DCV_RECHECK_INTERVAL" envDefault:"5m"`
}

// Pipeline owns the five job handlers that drive a domain from
// registration through delegation checks to an issued certificate.
type Pipeline struct {
	store    Store
	checker  CNAMEChecker
	issuer   issuance.Issuer
	enqueuer *queue.Enqueuer
	sender   email.Sender
	guard    AttemptGuard

	recheckInterval time.Duration
	logger          *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithRecheckInterval sets the delay before a failed dns_check is retried.
func WithRecheckInterval(d time.Duration) PipelineOption {
	return func(p *Pipeline) {
		if d > 0 {
			p.recheckInterval = d
		}
	}
}

// WithAttemptGuard installs best-effort duplicate suppression for
// redelivered job attempts.
func WithAttemptGuard(guard AttemptGuard) PipelineOption {
	return func(p *Pipeline) {
		p.guard = guard
	}
}

// WithPipelineLogger sets the pipeline's logger.
func WithPipelineLogger(log *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if log != nil {
			p.logger = log.With(logger.Component("dcv"))
		}
	}
}

// NewPipeline wires the pipeline's collaborators together.
func NewPipeline(store Store, checker CNAMEChecker, issuer issuance.Issuer, enqueuer *queue.Enqueuer, sender email.Sender, opts ...PipelineOption) (*Pipeline, error) {
	switch {
	case store == nil:
		return nil, ErrStoreNil
	case checker == nil:
		return nil, ErrCheckerNil
	case issuer == nil:
		return nil, ErrIssuerNil
	case enqueuer == nil:
		return nil, ErrEnqueuerNil
	case sender == nil:
		return nil, ErrSenderNil
	}

	p := &Pipeline{
		store:           store,
		checker:         checker,
		issuer:          issuer,
		enqueuer:        enqueuer,
		sender:          sender,
		recheckInterval: 5 * time.Minute,
		logger:          slog.New(slog.NewTextHandler(io.Discard, nil)), // No-op logger by default
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Handlers returns one queue handler per job type, ready for worker
// registration. Payload-carrying job types go through the typed handler
// wrapper so unmarshaling failures are reported uniformly.
func (p *Pipeline) Handlers() []queue.Handler {
	return []queue.Handler{
		p.wrap(pipelineHandler{queue.JobTypeDNSCheck, p.handleDNSCheck}),
		p.wrap(pipelineHandler{queue.JobTypeStartIssuance, p.handleIssuance}),
		p.wrap(pipelineHandler{queue.JobTypeRenewal, p.handleRenewal}),
		p.wrap(queue.NewHandler(queue.JobTypeSyncStatus, p.handleSyncStatus)),
		p.wrap(queue.NewHandler(queue.JobTypeSendEmail, p.handleSendEmail)),
	}
}

// pipelineHandler adapts a plain handler func to the queue Handler
// interface for job types without a structured payload.
type pipelineHandler struct {
	jobType queue.JobType
	fn      func(ctx context.Context, job queue.Job) error
}

func (h pipelineHandler) Type() queue.JobType { return h.jobType }
func (h pipelineHandler) Handle(ctx context.Context, job queue.Job) error {
	return h.fn(ctx, job)
}

// wrap adds duplicate suppression and outcome logging around a handler.
// The guard is advisory: any guard failure is logged and processing
// continues, because handlers are idempotent anyway.
func (p *Pipeline) wrap(h queue.Handler) queue.Handler {
	jobType := h.Type()
	return pipelineHandler{jobType: jobType, fn: func(ctx context.Context, job queue.Job) error {
		if p.guard != nil {
			first, err := p.guard.FirstAttempt(ctx, job.ID, job.Attempts)
			if err != nil {
				p.logger.WarnContext(ctx, "attempt guard unavailable",
					logger.JobID(job.ID.String()),
					logger.Error(err))
			} else if !first {
				p.logger.InfoContext(ctx, "duplicate job attempt suppressed",
					logger.JobID(job.ID.String()),
					slog.String("job_type", string(jobType)),
					slog.Int("attempt", job.Attempts))
				return nil
			}
		}

		start := time.Now()
		err := h.Handle(ctx, job)
		if err != nil {
			p.logger.ErrorContext(ctx, "job failed",
				logger.JobID(job.ID.String()),
				slog.String("job_type", string(jobType)),
				slog.Int("attempt", job.Attempts),
				logger.Elapsed(start),
				logger.Error(err))
			return err
		}

		p.logger.InfoContext(ctx, "job completed",
			logger.JobID(job.ID.String()),
			slog.String("job_type", string(jobType)),
			logger.Elapsed(start))
		return nil
	}}
}
