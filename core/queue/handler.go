package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

type (
	// Handler processes jobs of one type. Handlers must be idempotent:
	// at-least-once delivery means Handle may run more than once for the
	// same logical job.
	Handler interface {
		// Type returns the job type this handler is registered for.
		Type() JobType

		// Handle processes one job.
		Handle(ctx context.Context, job Job) error
	}

	// HandlerFunc is a type-safe handler for jobs carrying a structured
	// payload. T is the expected payload shape; jobs without a payload
	// receive the zero value.
	HandlerFunc[T any] func(ctx context.Context, job Job, payload T) error
)

// NewHandler wraps a typed handler function into a Handler, unmarshaling the
// job payload into T before invocation.
func NewHandler[T any](jobType JobType, fn HandlerFunc[T]) Handler {
	return &typedHandler[T]{jobType: jobType, fn: fn}
}

type typedHandler[T any] struct {
	jobType JobType
	fn      HandlerFunc[T]
}

func (h *typedHandler[T]) Type() JobType {
	return h.jobType
}

func (h *typedHandler[T]) Handle(ctx context.Context, job Job) error {
	var payload T
	if len(job.Payload) > 0 {
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal %s payload: %w", h.jobType, err)
		}
	}
	return h.fn(ctx, job, payload)
}
