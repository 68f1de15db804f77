package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/delegatedssl/platform/core/dcv"
	"github.com/delegatedssl/platform/core/domain"
)

// DomainStore implements dcv.Store on PostgreSQL. All writes are
// field-scoped single statements: each job type owns its columns, so
// concurrent jobs racing on the same domain row never read-modify-write.
type DomainStore struct {
	pool *pgxpool.Pool
}

// NewDomainStore creates a domain store over the given pool.
func NewDomainStore(pool *pgxpool.Pool) *DomainStore {
	return &DomainStore{pool: pool}
}

func (s *DomainStore) GetDomain(ctx context.Context, id uuid.UUID) (*domain.Domain, error) {
	var (
		d         domain.Domain
		expiresAt *time.Time
	)
	err := conn(ctx, s.pool).QueryRow(ctx, `
		SELECT id, org_id, domain_name, status, cname_target, expires_at, updated_at
		FROM domains
		WHERE id = $1`, id).
		Scan(&d.ID, &d.OrgID, &d.DomainName, &d.Status, &d.CNAMETarget, &expiresAt, &d.UpdatedAt)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", dcv.ErrDomainNotFound, id)
		}
		return nil, fmt.Errorf("query domain: %w", err)
	}
	if expiresAt != nil {
		d.ExpiresAt = *expiresAt
	}
	return &d, nil
}

func (s *DomainStore) GetOrganization(ctx context.Context, id uuid.UUID) (*domain.Organization, error) {
	var org domain.Organization
	err := conn(ctx, s.pool).QueryRow(ctx, `
		SELECT id, name FROM organizations WHERE id = $1`, id).
		Scan(&org.ID, &org.Name)
	if err != nil {
		if IsNotFoundError(err) {
			return nil, fmt.Errorf("%w: %s", dcv.ErrOrganizationNotFound, id)
		}
		return nil, fmt.Errorf("query organization: %w", err)
	}
	return &org, nil
}

func (s *DomainStore) ListOperators(ctx context.Context, orgID uuid.UUID) ([]domain.Membership, error) {
	rows, err := conn(ctx, s.pool).Query(ctx, `
		SELECT org_id, email, role, status
		FROM memberships
		WHERE org_id = $1 AND status = 'active' AND role IN ('owner', 'admin')
		ORDER BY email`, orgID)
	if err != nil {
		return nil, fmt.Errorf("query operators: %w", err)
	}
	defer rows.Close()

	members, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Membership, error) {
		var m domain.Membership
		err := row.Scan(&m.OrgID, &m.Email, &m.Role, &m.Status)
		return m, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan operators: %w", err)
	}
	return members, nil
}

func (s *DomainStore) UpdateDomainStatus(ctx context.Context, domainID uuid.UUID, status domain.Status) error {
	_, err := conn(ctx, s.pool).Exec(ctx, `
		UPDATE domains SET status = $2, updated_at = now() WHERE id = $1`,
		domainID, status)
	if err != nil {
		return fmt.Errorf("update domain status: %w", err)
	}
	return nil
}

func (s *DomainStore) UpdateDomainCertificate(ctx context.Context, domainID uuid.UUID, status domain.Status, expiresAt time.Time) error {
	_, err := conn(ctx, s.pool).Exec(ctx, `
		UPDATE domains SET status = $2, expires_at = $3, updated_at = now() WHERE id = $1`,
		domainID, status, expiresAt)
	if err != nil {
		return fmt.Errorf("update domain certificate: %w", err)
	}
	return nil
}

// ListDomainsExpiringBefore returns active domains whose certificate
// expires before the cutoff, feeding the periodic renewal scan.
func (s *DomainStore) ListDomainsExpiringBefore(ctx context.Context, cutoff time.Time) ([]domain.Domain, error) {
	rows, err := conn(ctx, s.pool).Query(ctx, `
		SELECT id, org_id, domain_name, status, cname_target, expires_at, updated_at
		FROM domains
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at < $1
		ORDER BY expires_at`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query expiring domains: %w", err)
	}
	defer rows.Close()

	domains, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Domain, error) {
		var (
			d         domain.Domain
			expiresAt *time.Time
		)
		err := row.Scan(&d.ID, &d.OrgID, &d.DomainName, &d.Status, &d.CNAMETarget, &expiresAt, &d.UpdatedAt)
		if expiresAt != nil {
			d.ExpiresAt = *expiresAt
		}
		return d, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan expiring domains: %w", err)
	}
	return domains, nil
}
