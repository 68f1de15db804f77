package dcv

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/delegatedssl/platform/core/domain"
)

// Store is the pipeline's view of the relational store. Writes are
// field-scoped: each job type touches only the columns it owns, so
// concurrent jobs racing on the same domain row cannot clobber each
// other's fields.
type Store interface {
	// GetDomain returns ErrDomainNotFound when no such domain exists.
	GetDomain(ctx context.Context, id uuid.UUID) (*domain.Domain, error)

	// GetOrganization returns ErrOrganizationNotFound when no such
	// organization exists.
	GetOrganization(ctx context.Context, id uuid.UUID) (*domain.Organization, error)

	// ListOperators returns the organization's active owner and admin
	// memberships, the recipients of operational escalations.
	ListOperators(ctx context.Context, orgID uuid.UUID) ([]domain.Membership, error)

	// UpdateDomainStatus writes only the status column. Idempotent.
	UpdateDomainStatus(ctx context.Context, domainID uuid.UUID, status domain.Status) error

	// UpdateDomainCertificate writes status and certificate expiry
	// together, the outcome of a successful issuance. Idempotent.
	UpdateDomainCertificate(ctx context.Context, domainID uuid.UUID, status domain.Status, expiresAt time.Time) error
}

// AttemptGuard provides best-effort duplicate suppression for redelivered
// job attempts. It is advisory only: a guard failure must never block
// processing, and handlers stay idempotent regardless.
type AttemptGuard interface {
	// FirstAttempt reports whether this (job, attempt) pair has not been
	// seen before.
	FirstAttempt(ctx context.Context, jobID uuid.UUID, attempt int) (bool, error)
}
