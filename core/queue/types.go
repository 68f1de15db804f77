package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefaultQueueName is the queue jobs land on when no queue is specified.
const DefaultQueueName = "default"

// JobType identifies which pipeline handler processes a job. The set is
// closed: the scheduler and producers only ever create these five types.
type JobType string

const (
	JobTypeDNSCheck      JobType = "dns_check"
	JobTypeStartIssuance JobType = "start_issuance"
	JobTypeRenewal       JobType = "renewal"
	JobTypeSyncStatus    JobType = "sync_status"
	JobTypeSendEmail     JobType = "send_email"
)

// Valid reports whether t is a known job type.
func (t JobType) Valid() bool {
	switch t {
	case JobTypeDNSCheck, JobTypeStartIssuance, JobTypeRenewal, JobTypeSyncStatus, JobTypeSendEmail:
		return true
	}
	return false
}

// JobStatus tracks a job's lifecycle through the queue.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Job is one unit of pipeline work. Delivery is at-least-once: the same job
// may be claimed and handled more than once, and Attempts is authoritative
// only in storage, never in worker memory.
type Job struct {
	ID       uuid.UUID `json:"id"`
	Queue    string    `json:"queue"`
	Type     JobType   `json:"type"`
	DomainID uuid.UUID `json:"domain_id"`

	// Payload carries job-type-specific parameters (e.g. email contents for
	// send_email). Empty for jobs that only need DomainID.
	Payload json.RawMessage `json:"payload,omitempty"`

	Status JobStatus `json:"status"`

	// Attempts is incremented by storage on every failure and is
	// non-decreasing across redeliveries of the same logical job.
	Attempts    int        `json:"attempts"`
	MaxAttempts int        `json:"max_attempts"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	LockedUntil *time.Time `json:"locked_until,omitempty"`
	LockedBy    *uuid.UUID `json:"locked_by,omitempty"`
	LastError   *string    `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// DeadLetter is a job that exhausted its retry budget, parked for operator
// escalation and manual recovery.
type DeadLetter struct {
	ID       uuid.UUID       `json:"id"`
	JobID    uuid.UUID       `json:"job_id"`
	Queue    string          `json:"queue"`
	Type     JobType         `json:"type"`
	DomainID uuid.UUID       `json:"domain_id"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Attempts int             `json:"attempts"`
	Error    string          `json:"error"`
	FailedAt time.Time       `json:"failed_at"`
}
