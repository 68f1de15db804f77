package issuance

import "errors"

var (
	ErrInvalidConfig     = errors.New("invalid issuance configuration")
	ErrEmptyDomain       = errors.New("domain name is required")
	ErrIssuanceFailed    = errors.New("certificate issuance failed")
	ErrEmptyCertificate  = errors.New("empty certificate payload received from ACME server")
	ErrEmptyPrivateKey   = errors.New("empty private key received from ACME server")
	ErrChallengeStoreNil = errors.New("challenge zone store is nil")
)
