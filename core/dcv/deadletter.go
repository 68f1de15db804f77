package dcv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/delegatedssl/platform/core/email"
	"github.com/delegatedssl/platform/core/logger"
	"github.com/delegatedssl/platform/core/queue"
)

// genericFailureMessage is the fallback when a dead letter carries no
// usable error detail.
const genericFailureMessage = "the job failed repeatedly with no recorded error"

// DeadLetterNotifier escalates exhausted jobs to the owning
// organization's operators by enqueueing a send_email job. It never
// asks to be retried: whatever happens, the dead letter is consumed.
type DeadLetterNotifier struct {
	store    Store
	enqueuer *queue.Enqueuer
	logger   *slog.Logger
}

// NotifierOption configures a DeadLetterNotifier.
type NotifierOption func(*DeadLetterNotifier)

// WithNotifierLogger sets the notifier's logger.
func WithNotifierLogger(log *slog.Logger) NotifierOption {
	return func(n *DeadLetterNotifier) {
		if log != nil {
			n.logger = log.With(logger.Component("dlq_notifier"))
		}
	}
}

// NewDeadLetterNotifier creates the escalation handler for dead letters.
func NewDeadLetterNotifier(store Store, enqueuer *queue.Enqueuer, opts ...NotifierOption) (*DeadLetterNotifier, error) {
	if store == nil {
		return nil, ErrStoreNil
	}
	if enqueuer == nil {
		return nil, ErrEnqueuerNil
	}

	n := &DeadLetterNotifier{
		store:    store,
		enqueuer: enqueuer,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // No-op logger by default
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// ProcessDeadLetter resolves the failed job's domain, organization, and
// active owner/admin recipients, then enqueues one send_email job
// addressed to all of them. Missing domain, organization, or recipients
// end the escalation quietly: there is nobody to tell, and retrying the
// notification path would only recreate the poison message.
func (n *DeadLetterNotifier) ProcessDeadLetter(ctx context.Context, dl queue.DeadLetter) error {
	d, err := n.store.GetDomain(ctx, dl.DomainID)
	if err != nil {
		if errors.Is(err, ErrDomainNotFound) {
			n.logger.WarnContext(ctx, "dead letter references unknown domain",
				logger.JobID(dl.JobID.String()),
				logger.ID("domain_id", dl.DomainID))
			return nil
		}
		return fmt.Errorf("load domain: %w", err)
	}

	org, err := n.store.GetOrganization(ctx, d.OrgID)
	if err != nil {
		if errors.Is(err, ErrOrganizationNotFound) {
			n.logger.WarnContext(ctx, "domain references unknown organization",
				logger.DomainName(d.DomainName),
				logger.ID("org_id", d.OrgID))
			return nil
		}
		return fmt.Errorf("load organization: %w", err)
	}

	members, err := n.store.ListOperators(ctx, org.ID)
	if err != nil {
		return fmt.Errorf("list operators: %w", err)
	}

	var recipients []string
	for _, m := range members {
		if m.IsOperator() {
			recipients = append(recipients, m.Email)
		}
	}
	if len(recipients) == 0 {
		n.logger.WarnContext(ctx, "no active operators to notify",
			logger.DomainName(d.DomainName),
			logger.ID("org_id", org.ID))
		return nil
	}

	reason := extractFailureReason(dl)
	params := email.SendEmailParams{
		To:       recipients,
		Subject:  fmt.Sprintf("Action required: %s failed for %s", dl.Type, d.DomainName),
		BodyHTML: escalationBody(org.Name, d.DomainName, dl, reason),
		Tag:      "dlq_escalation",
	}

	_, err = n.enqueuer.Enqueue(ctx, queue.JobTypeSendEmail, d.ID,
		queue.WithJobID(escalationJobID(dl.ID)),
		queue.WithPayload(SendEmailPayload{EmailParams: params}))
	if err != nil {
		// Logged only. The dead letter is acknowledged regardless, so a
		// broken notification path cannot loop forever.
		n.logger.ErrorContext(ctx, "failed to enqueue escalation email",
			logger.JobID(dl.JobID.String()),
			logger.DomainName(d.DomainName),
			logger.Error(err))
		return nil
	}

	n.logger.InfoContext(ctx, "escalation email enqueued",
		logger.DomainName(d.DomainName),
		slog.String("job_type", string(dl.Type)),
		slog.Int("recipients", len(recipients)))
	return nil
}

// escalationJobID derives a deterministic send_email job ID from the
// dead letter, so a re-claimed dead letter cannot double-notify.
func escalationJobID(deadLetterID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("dlq-escalation:"+deadLetterID.String()))
}

// extractFailureReason pulls the most specific failure description
// available: an explicit error field on the payload, then the job's
// last recorded error, then a generic fallback.
func extractFailureReason(dl queue.DeadLetter) string {
	if len(dl.Payload) > 0 {
		var p failurePayload
		if err := json.Unmarshal(dl.Payload, &p); err == nil && strings.TrimSpace(p.Error) != "" {
			return p.Error
		}
	}
	if strings.TrimSpace(dl.Error) != "" {
		return dl.Error
	}
	return genericFailureMessage
}

func escalationBody(orgName, domainName string, dl queue.DeadLetter, reason string) string {
	var b strings.Builder
	b.WriteString("<h2>Certificate pipeline job failed</h2>")
	fmt.Fprintf(&b, "<p>A <strong>%s</strong> job for <strong>%s</strong> (organization %s) exhausted its retry budget after %d attempts.</p>",
		html.EscapeString(string(dl.Type)), html.EscapeString(domainName), html.EscapeString(orgName), dl.Attempts)
	fmt.Fprintf(&b, "<p>Last error: %s</p>", html.EscapeString(reason))
	b.WriteString("<p>The job will not be retried automatically. Review the domain in the dashboard and re-run validation once the underlying issue is fixed.</p>")
	return b.String()
}
