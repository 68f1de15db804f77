package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AttemptGuard provides best-effort duplicate suppression for
// redelivered job attempts via SETNX with a TTL. It implements the
// pipeline's guard contract and is advisory only: handlers stay
// idempotent whether or not the guard is reachable.
type AttemptGuard struct {
	client *redis.Client
	ttl    time.Duration
}

// GuardOption configures an AttemptGuard.
type GuardOption func(*AttemptGuard)

// WithGuardTTL sets how long an attempt marker is remembered.
func WithGuardTTL(ttl time.Duration) GuardOption {
	return func(g *AttemptGuard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// NewAttemptGuard creates a guard over the given client.
func NewAttemptGuard(client *redis.Client, opts ...GuardOption) *AttemptGuard {
	g := &AttemptGuard{
		client: client,
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// FirstAttempt reports whether this (job, attempt) pair has not been
// seen before. The marker is written and checked in one SETNX round
// trip.
func (g *AttemptGuard) FirstAttempt(ctx context.Context, jobID uuid.UUID, attempt int) (bool, error) {
	key := fmt.Sprintf("dcv:attempt:%s:%d", jobID, attempt)
	first, err := g.client.SetNX(ctx, key, 1, g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("attempt guard setnx: %w", err)
	}
	return first, nil
}
