package queue

import "errors"

// Use errors.Is() to check error types across queue components.
var (
	ErrStorageNil           = errors.New("queue storage cannot be nil")
	ErrHandlerNil           = errors.New("job handler cannot be nil")
	ErrNoHandlers           = errors.New("no job handlers registered")
	ErrHandlerNotFound      = errors.New("no handler registered for job type")
	ErrInvalidJobType       = errors.New("invalid job type")
	ErrNoJobToClaim         = errors.New("no job available to claim")
	ErrNoDeadLetters        = errors.New("no dead letters available to claim")
	ErrJobAlreadyRegistered = errors.New("periodic job already registered")
	ErrHealthcheckFailed    = errors.New("queue healthcheck failed")
	ErrWorkerNotRunning     = errors.New("worker is not running")
	ErrWorkerOverloaded     = errors.New("worker is overloaded")
)
