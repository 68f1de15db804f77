package dns

import (
	"context"
	"fmt"
)

// challengeLabel is the subdomain tenants delegate to the platform for
// ACME DNS-01 challenges.
const challengeLabel = "_acme-challenge."

// CNAMECheck reports whether a tenant's challenge delegation points at the
// expected platform-controlled target.
type CNAMECheck struct {
	// Success is true only when the delegation target matches exactly.
	Success bool

	// Found reports whether any CNAME answer existed at all.
	Found bool

	// Actual is the normalized target returned by DNS, if any.
	Actual string

	// Expected is the normalized target the check compared against.
	Expected string

	// Error explains a failed check. Empty on success.
	Error string
}

// CheckCNAME verifies that _acme-challenge.<domain> is a CNAME pointing
// exactly at expected. Both sides are lowercased and stripped of the
// trailing root dot before comparison, so the remaining comparison is
// byte-exact. A missing record is a failed check, not an error: only
// transport-level problems surface through the error return.
func (r *Resolver) CheckCNAME(ctx context.Context, domain, expected string) (CNAMECheck, error) {
	expected = NormalizeName(expected)

	result, err := r.LookupCNAME(ctx, challengeLabel+domain)
	if err != nil {
		return CNAMECheck{}, err
	}

	check := CNAMECheck{Expected: expected}

	if !result.Found {
		check.Error = fmt.Sprintf("no CNAME record found for %s%s; expected delegation to %s",
			challengeLabel, NormalizeName(domain), expected)
		return check, nil
	}

	check.Found = true
	check.Actual = NormalizeName(result.First())

	if check.Actual != expected {
		check.Error = fmt.Sprintf("CNAME for %s%s points to %s, expected %s",
			challengeLabel, NormalizeName(domain), check.Actual, expected)
		return check, nil
	}

	check.Success = true
	return check, nil
}
