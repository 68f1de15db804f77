package email

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Sender abstracts the email provider. Implementations must validate
// params before dispatch and wrap provider failures in
// ErrFailedToSendEmail so callers can match on the sentinel.
type Sender interface {
	SendEmail(ctx context.Context, params SendEmailParams) error
}

// SendEmailParams describes one outgoing message. A single message may
// address several recipients, which is how operator escalations reach
// every owner and admin of an organization at once.
type SendEmailParams struct {
	To       []string `json:"to"`
	Subject  string   `json:"subject"`
	BodyHTML string   `json:"html"`
	Tag      string   `json:"tag,omitempty"`
}

// Validate checks that the params carry at least one well-formed
// recipient, a subject, and a body.
func (p SendEmailParams) Validate() error {
	if len(p.To) == 0 {
		return fmt.Errorf("%w: at least one recipient is required", ErrInvalidParams)
	}
	for _, addr := range p.To {
		if !IsValidEmail(addr) {
			return fmt.Errorf("%w: invalid recipient address %q", ErrInvalidParams, addr)
		}
	}
	if strings.TrimSpace(p.Subject) == "" {
		return fmt.Errorf("%w: subject is required", ErrInvalidParams)
	}
	if strings.TrimSpace(p.BodyHTML) == "" {
		return fmt.Errorf("%w: body is required", ErrInvalidParams)
	}
	return nil
}

// emailRegex is a simple regex for validating email addresses.
var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// IsValidEmail checks if the provided string is a valid email address.
func IsValidEmail(addr string) bool {
	return emailRegex.MatchString(addr)
}
