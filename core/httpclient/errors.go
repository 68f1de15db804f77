package httpclient

import (
	"errors"
	"fmt"
)

// Domain-specific errors for consistent handling across the application.
// Use errors.Is() to distinguish exhausted budgets from transport failures.
var (
	// ErrRetriesExhausted wraps the last observed failure once the main
	// attempt budget is spent.
	ErrRetriesExhausted = errors.New("retry budget exhausted")

	// ErrRateLimitExceeded is returned when the separate rate-limit budget
	// is spent on consecutive 429 responses.
	ErrRateLimitExceeded = errors.New("rate limit budget exhausted")

	// ErrNilRequest is returned when Do is called with a nil request.
	ErrNilRequest = errors.New("nil request")
)

// StatusError reports a non-success HTTP status observed on the final
// attempt. Server errors (5xx) surface as StatusError only after the retry
// budget is exhausted; client errors (4xx) are returned as plain responses
// and never reach this type.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %s", e.Status)
}
