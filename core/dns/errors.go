package dns

import "errors"

var (
	// ErrEmptyName is returned when a lookup is requested for an empty name.
	ErrEmptyName = errors.New("empty dns name")

	// ErrUnexpectedStatus is returned when the DoH endpoint answers with a
	// non-success HTTP status.
	ErrUnexpectedStatus = errors.New("unexpected doh response status")

	// ErrMalformedResponse is returned when the DoH payload cannot be decoded.
	ErrMalformedResponse = errors.New("malformed doh response")
)
