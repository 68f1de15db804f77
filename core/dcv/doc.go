// Package dcv implements the domain-control-validation pipeline: the
// job handlers that take a tenant's domain from registration through
// delegation verification and certificate issuance, and the dead-letter
// escalation path that tells human operators when a domain is stuck.
//
// The pipeline is queue-driven. Each of the five job types has one
// handler; all handlers are idempotent because the queue delivers
// at least once. State changes go through the domain status state
// machine and are persisted as field-scoped writes, so concurrent jobs
// racing on the same domain cannot clobber each other.
package dcv
