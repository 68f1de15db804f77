package dcv

import "errors"

var (
	ErrStoreNil             = errors.New("store is nil")
	ErrCheckerNil           = errors.New("cname checker is nil")
	ErrIssuerNil            = errors.New("issuer is nil")
	ErrEnqueuerNil          = errors.New("enqueuer is nil")
	ErrSenderNil            = errors.New("email sender is nil")
	ErrDomainNotFound       = errors.New("domain not found")
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrMissingCNAMETarget   = errors.New("domain has no delegation target assigned")
	ErrUnknownProviderState = errors.New("unknown provider certificate state")
)
