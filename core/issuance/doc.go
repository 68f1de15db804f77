// Package issuance obtains TLS certificates through an ACME CA using
// the DNS-01 challenge. Challenges are answered from the platform's
// own delegated zone: customers CNAME `_acme-challenge.<domain>` at
// the platform, so writing a TXT record into the ChallengeZoneStore is
// all that issuance needs from DNS.
//
// The Issuer interface is what the job handlers consume; ACMEIssuer is
// the production implementation backed by go-acme/lego. A client
// factory seam lets tests substitute a fake ACME client.
package issuance
