package domain

import (
	"time"

	"github.com/google/uuid"
)

// Domain is a tenant's custom domain under certificate management. Owned by
// an Organization; mutated exclusively by the job pipeline through the
// status state machine.
type Domain struct {
	ID         uuid.UUID `json:"id"`
	OrgID      uuid.UUID `json:"org_id"`
	DomainName string    `json:"domain_name"`
	Status     Status    `json:"status"`

	// CNAMETarget is the platform host _acme-challenge.<DomainName> must
	// point at. Immutable once assigned for a validation cycle.
	CNAMETarget string `json:"cname_target"`

	// ExpiresAt is the NotAfter of the current certificate, zero before the
	// first successful issuance.
	ExpiresAt time.Time `json:"expires_at"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Organization owns domains and memberships. Read-only from the pipeline's
// perspective.
type Organization struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Role is a member's role within an organization.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
	RoleMember Role = "member"
)

// MembershipStatus tracks whether a membership is currently active.
type MembershipStatus string

const (
	MembershipActive   MembershipStatus = "active"
	MembershipInactive MembershipStatus = "inactive"
)

// Membership links a person to an organization. The pipeline reads these
// only to resolve notification recipients.
type Membership struct {
	OrgID  uuid.UUID        `json:"org_id"`
	Email  string           `json:"email"`
	Role   Role             `json:"role"`
	Status MembershipStatus `json:"status"`
}

// IsOperator reports whether the membership should receive operational
// escalations: active owners and admins only.
func (m Membership) IsOperator() bool {
	return m.Status == MembershipActive && (m.Role == RoleOwner || m.Role == RoleAdmin)
}
