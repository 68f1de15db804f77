package dcv

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/delegatedssl/platform/core/domain"
	"github.com/delegatedssl/platform/core/logger"
	"github.com/delegatedssl/platform/core/queue"
)

// followUpJobID derives a deterministic job ID for pipeline-created
// follow-up jobs. Combined with the idempotent job create, a redelivered
// parent job cannot fan out duplicate children.
func followUpJobID(jobType queue.JobType, parent uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(string(jobType)+":"+parent.String()))
}

// handleDNSCheck verifies the challenge delegation. A matching CNAME
// moves the domain into issuing and enqueues start_issuance; a mismatch
// or missing record schedules a delayed re-check and is not a job
// failure, since the fix sits with the tenant's DNS.
func (p *Pipeline) handleDNSCheck(ctx context.Context, job queue.Job) error {
	d, err := p.store.GetDomain(ctx, job.DomainID)
	if err != nil {
		return fmt.Errorf("load domain: %w", err)
	}
	if d.CNAMETarget == "" {
		return fmt.Errorf("%w: domain %s", ErrMissingCNAMETarget, d.DomainName)
	}

	check, err := p.checker.CheckCNAME(ctx, d.DomainName, d.CNAMETarget)
	if err != nil {
		return fmt.Errorf("cname lookup: %w", err)
	}

	if !check.Success {
		p.logger.InfoContext(ctx, "delegation not verified yet",
			logger.DomainName(d.DomainName),
			slog.String("reason", check.Error))

		if _, err := p.enqueuer.Enqueue(ctx, queue.JobTypeDNSCheck, d.ID,
			queue.WithJobID(followUpJobID(queue.JobTypeDNSCheck, job.ID)),
			queue.WithDelay(p.recheckInterval)); err != nil {
			return fmt.Errorf("schedule re-check: %w", err)
		}
		return nil
	}

	if err := d.Transition(domain.StatusIssuing); err != nil {
		return err
	}
	if err := p.store.UpdateDomainStatus(ctx, d.ID, d.Status); err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	if _, err := p.enqueuer.Enqueue(ctx, queue.JobTypeStartIssuance, d.ID,
		queue.WithJobID(followUpJobID(queue.JobTypeStartIssuance, job.ID))); err != nil {
		return fmt.Errorf("enqueue issuance: %w", err)
	}
	return nil
}

// handleIssuance obtains the first certificate for a domain.
func (p *Pipeline) handleIssuance(ctx context.Context, job queue.Job) error {
	d, err := p.store.GetDomain(ctx, job.DomainID)
	if err != nil {
		return fmt.Errorf("load domain: %w", err)
	}

	// Redelivery after a completed issuance: nothing left to do.
	if d.Status == domain.StatusActive && !d.ExpiresAt.IsZero() {
		return nil
	}

	if err := p.markIssuing(ctx, d); err != nil {
		return err
	}
	return p.issueCertificate(ctx, d)
}

// handleRenewal re-issues the certificate for a domain approaching expiry.
func (p *Pipeline) handleRenewal(ctx context.Context, job queue.Job) error {
	d, err := p.store.GetDomain(ctx, job.DomainID)
	if err != nil {
		return fmt.Errorf("load domain: %w", err)
	}

	if err := p.markIssuing(ctx, d); err != nil {
		return err
	}
	return p.issueCertificate(ctx, d)
}

// markIssuing moves the domain into issuing and persists the move. Both
// first deliveries (pending_cname after a verified check, active on
// renewal) and retries of a failed attempt (error) pass through here, so
// a domain parked in error by a previous attempt is recoverable within
// the job's retry budget.
func (p *Pipeline) markIssuing(ctx context.Context, d *domain.Domain) error {
	if d.Status == domain.StatusIssuing {
		return nil
	}
	if err := d.Transition(domain.StatusIssuing); err != nil {
		return err
	}
	if err := p.store.UpdateDomainStatus(ctx, d.ID, d.Status); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// issueCertificate drives the issuer and records the outcome: a new
// certificate moves the domain to active with its expiry; a failure
// parks it in error and surfaces the failure for retry accounting.
func (p *Pipeline) issueCertificate(ctx context.Context, d *domain.Domain) error {
	result, err := p.issuer.Issue(ctx, d.DomainName)
	if err != nil {
		if transitionErr := d.Transition(domain.StatusError); transitionErr == nil {
			if storeErr := p.store.UpdateDomainStatus(ctx, d.ID, d.Status); storeErr != nil {
				p.logger.ErrorContext(ctx, "failed to record error status",
					logger.DomainName(d.DomainName),
					logger.Error(storeErr))
			}
		}
		return fmt.Errorf("issue certificate for %s: %w", d.DomainName, err)
	}

	if err := d.Transition(domain.StatusActive); err != nil {
		return err
	}
	if err := p.store.UpdateDomainCertificate(ctx, d.ID, d.Status, result.NotAfter); err != nil {
		return fmt.Errorf("record certificate: %w", err)
	}

	p.logger.InfoContext(ctx, "certificate issued",
		logger.DomainName(d.DomainName),
		slog.Time("not_after", result.NotAfter))
	return nil
}

// handleSyncStatus maps the provider-reported certificate state onto
// the domain lifecycle. It only restates what the provider said;
// transitions the state machine forbids are skipped, not forced.
func (p *Pipeline) handleSyncStatus(ctx context.Context, job queue.Job, payload SyncStatusPayload) error {
	d, err := p.store.GetDomain(ctx, job.DomainID)
	if err != nil {
		return fmt.Errorf("load domain: %w", err)
	}

	var target domain.Status
	switch payload.CertificateStatus {
	case ProviderStateIssued:
		target = domain.StatusActive
	case ProviderStatePending:
		target = domain.StatusIssuing
	case ProviderStateFailed:
		target = domain.StatusError
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProviderState, payload.CertificateStatus)
	}

	if !domain.CanTransition(d.Status, target) {
		p.logger.WarnContext(ctx, "provider state does not fit lifecycle, skipping",
			logger.DomainName(d.DomainName),
			slog.String("current", string(d.Status)),
			slog.String("reported", string(target)))
		return nil
	}

	if target == domain.StatusActive && !payload.ExpiresAt.IsZero() {
		if err := p.store.UpdateDomainCertificate(ctx, d.ID, target, payload.ExpiresAt); err != nil {
			return fmt.Errorf("record certificate: %w", err)
		}
		return nil
	}

	if err := p.store.UpdateDomainStatus(ctx, d.ID, target); err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	return nil
}

// handleSendEmail delivers an operator notification.
func (p *Pipeline) handleSendEmail(ctx context.Context, job queue.Job, payload SendEmailPayload) error {
	if err := payload.EmailParams.Validate(); err != nil {
		return fmt.Errorf("invalid email params: %w", err)
	}

	if err := p.sender.SendEmail(ctx, payload.EmailParams); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}
