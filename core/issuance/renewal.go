package issuance

import "time"

// DefaultRenewalWindow is how long before expiry a certificate becomes
// eligible for renewal.
const DefaultRenewalWindow = 30 * 24 * time.Hour

// NeedsRenewal reports whether a certificate expiring at expiresAt
// should be renewed now. A zero expiry means no certificate exists yet,
// which is an issuance concern rather than a renewal one.
func NeedsRenewal(expiresAt, now time.Time) bool {
	if expiresAt.IsZero() {
		return false
	}
	return !now.Before(expiresAt.Add(-DefaultRenewalWindow))
}
