package dcv

import (
	"time"

	"github.com/delegatedssl/platform/core/email"
)

// SendEmailPayload is the payload of a send_email job.
type SendEmailPayload struct {
	EmailParams email.SendEmailParams `json:"emailParams"`
}

// ProviderState is the certificate state as reported by the issuance
// provider, carried on sync_status jobs.
type ProviderState string

const (
	ProviderStateIssued  ProviderState = "issued"
	ProviderStatePending ProviderState = "pending"
	ProviderStateFailed  ProviderState = "failed"
)

// SyncStatusPayload carries the latest provider-reported certificate
// state. sync_status only maps this onto the domain lifecycle; it never
// infers facts the provider did not report.
type SyncStatusPayload struct {
	CertificateStatus ProviderState `json:"certificate_status"`
	ExpiresAt         time.Time     `json:"expires_at,omitzero"`
}

// failurePayload extracts the optional explicit error field some
// producers attach to job payloads.
type failurePayload struct {
	Error string `json:"error"`
}
