package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/delegatedssl/platform/core/issuance"
)

// ChallengeZone persists ACME DNS-01 TXT records in the table the
// platform's authoritative nameservers serve for the challenge zone.
// Records written here are visible to every resolver immediately, so the
// CA can observe a challenge regardless of which worker wrote it.
type ChallengeZone struct {
	pool *pgxpool.Pool
}

var _ issuance.ChallengeZoneStore = (*ChallengeZone)(nil)

// NewChallengeZone creates a challenge zone store over the given pool.
func NewChallengeZone(pool *pgxpool.Pool) *ChallengeZone {
	return &ChallengeZone{pool: pool}
}

func (z *ChallengeZone) SetTXT(ctx context.Context, fqdn, value string) error {
	_, err := conn(ctx, z.pool).Exec(ctx, `
		INSERT INTO challenge_records (fqdn, value)
		VALUES ($1, $2)
		ON CONFLICT (fqdn) DO UPDATE SET value = EXCLUDED.value, created_at = now()`,
		fqdn, value)
	if err != nil {
		return fmt.Errorf("set challenge record: %w", err)
	}
	return nil
}

func (z *ChallengeZone) DeleteTXT(ctx context.Context, fqdn string) error {
	_, err := conn(ctx, z.pool).Exec(ctx, `
		DELETE FROM challenge_records WHERE fqdn = $1`, fqdn)
	if err != nil {
		return fmt.Errorf("delete challenge record: %w", err)
	}
	return nil
}
