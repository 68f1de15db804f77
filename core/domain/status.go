package domain

import (
	"errors"
	"fmt"
)

// Status is a domain's position in the validation and issuance lifecycle.
type Status string

const (
	// StatusPendingCNAME means the tenant has registered the domain but the
	// challenge delegation has not been verified yet.
	StatusPendingCNAME Status = "pending_cname"

	// StatusIssuing means delegation is verified and certificate issuance
	// (or renewal) is in flight.
	StatusIssuing Status = "issuing"

	// StatusActive means a valid certificate is deployed.
	StatusActive Status = "active"

	// StatusError means the last issuance attempt failed. Always recoverable
	// by a subsequent successful check; never strictly terminal.
	StatusError Status = "error"
)

// ErrIllegalTransition is returned for a status move outside the lifecycle.
var ErrIllegalTransition = errors.New("illegal domain status transition")

// transitions is the legal move table. error is recoverable both back into
// pending_cname (tenant fixes DNS, validation restarts) and directly into
// issuing (delegation still intact, retry issuance).
var transitions = map[Status][]Status{
	StatusPendingCNAME: {StatusIssuing},
	StatusIssuing:      {StatusActive, StatusError},
	StatusActive:       {StatusIssuing},
	StatusError:        {StatusPendingCNAME, StatusIssuing},
}

// Valid reports whether s is one of the defined lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingCNAME, StatusIssuing, StatusActive, StatusError:
		return true
	}
	return false
}

// CanTransition reports whether moving from one status to another is legal.
// Same-state "transitions" are allowed: jobs are redelivered at least once
// and re-applying an outcome must not fail.
func CanTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves the domain to the target status, rejecting illegal moves.
func (d *Domain) Transition(to Status) error {
	if !to.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrIllegalTransition, to)
	}
	if !CanTransition(d.Status, to) {
		return fmt.Errorf("%w: %s -> %s for domain %s", ErrIllegalTransition, d.Status, to, d.DomainName)
	}
	d.Status = to
	return nil
}
