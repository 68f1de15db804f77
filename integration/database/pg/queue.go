package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/delegatedssl/platform/core/queue"
)

// QueueStorage implements queue.Storage on PostgreSQL. Claims use
// FOR UPDATE SKIP LOCKED so a worker fleet never contends on the same
// row, and every state change is a single statement: the database, not
// worker memory, is authoritative for attempt accounting.
type QueueStorage struct {
	pool *pgxpool.Pool
}

// NewQueueStorage creates queue storage over the given pool.
func NewQueueStorage(pool *pgxpool.Pool) *QueueStorage {
	return &QueueStorage{pool: pool}
}

const jobColumns = `id, queue, type, domain_id, payload, status, attempts, max_attempts,
	scheduled_at, locked_until, locked_by, last_error, created_at`

func scanJob(row pgx.Row) (*queue.Job, error) {
	var job queue.Job
	err := row.Scan(&job.ID, &job.Queue, &job.Type, &job.DomainID, &job.Payload,
		&job.Status, &job.Attempts, &job.MaxAttempts, &job.ScheduledAt,
		&job.LockedUntil, &job.LockedBy, &job.LastError, &job.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// CreateJob inserts a job, silently succeeding when the job ID already
// exists. Producers run at-least-once; replayed creates must not fail.
func (s *QueueStorage) CreateJob(ctx context.Context, job *queue.Job) error {
	_, err := conn(ctx, s.pool).Exec(ctx, `
		INSERT INTO jobs (`+jobColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`,
		job.ID, job.Queue, job.Type, job.DomainID, job.Payload, job.Status,
		job.Attempts, job.MaxAttempts, job.ScheduledAt, job.LockedUntil,
		job.LockedBy, job.LastError, job.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// ClaimJob atomically claims the oldest due job on the given queues,
// including jobs whose previous worker's lock has expired.
func (s *QueueStorage) ClaimJob(ctx context.Context, workerID uuid.UUID, queues []string, lockDuration time.Duration) (*queue.Job, error) {
	lockedUntil := time.Now().Add(lockDuration)

	job, err := scanJob(conn(ctx, s.pool).QueryRow(ctx, `
		UPDATE jobs
		SET status = 'processing', locked_by = $1, locked_until = $2
		WHERE id = (
			SELECT id FROM jobs
			WHERE queue = ANY($3)
			  AND scheduled_at <= now()
			  AND (status = 'pending'
			       OR (status = 'processing' AND locked_until < now()))
			ORDER BY scheduled_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+jobColumns,
		workerID, lockedUntil, queues))
	if err != nil {
		if IsNotFoundError(err) {
			return nil, queue.ErrNoJobToClaim
		}
		return nil, fmt.Errorf("claim job: %w", err)
	}
	return job, nil
}

func (s *QueueStorage) CompleteJob(ctx context.Context, jobID uuid.UUID) error {
	_, err := conn(ctx, s.pool).Exec(ctx, `
		UPDATE jobs
		SET status = 'completed', locked_by = NULL, locked_until = NULL
		WHERE id = $1`, jobID)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	return nil
}

// FailJob increments the attempt count and either reschedules the job
// with exponential backoff or marks it failed when the budget is
// exhausted, in one statement.
func (s *QueueStorage) FailJob(ctx context.Context, jobID uuid.UUID, errorMsg string) error {
	_, err := conn(ctx, s.pool).Exec(ctx, `
		UPDATE jobs
		SET attempts = attempts + 1,
		    last_error = $2,
		    locked_by = NULL,
		    locked_until = NULL,
		    status = CASE WHEN attempts + 1 >= max_attempts THEN 'failed' ELSE 'pending' END,
		    scheduled_at = CASE WHEN attempts + 1 >= max_attempts
		                        THEN scheduled_at
		                        ELSE now() + make_interval(secs => least(power(2, attempts), 300))
		                   END
		WHERE id = $1`, jobID, errorMsg)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	return nil
}

// MoveToDLQ moves a job off the active table into dead_letters.
func (s *QueueStorage) MoveToDLQ(ctx context.Context, jobID uuid.UUID) error {
	_, err := conn(ctx, s.pool).Exec(ctx, `
		WITH moved AS (
			DELETE FROM jobs WHERE id = $1
			RETURNING id, queue, type, domain_id, payload, attempts, last_error
		)
		INSERT INTO dead_letters (id, job_id, queue, type, domain_id, payload, attempts, error, failed_at)
		SELECT $2, id, queue, type, domain_id, payload, attempts, COALESCE(last_error, ''), now()
		FROM moved`, jobID, uuid.New())
	if err != nil {
		return fmt.Errorf("move job to dlq: %w", err)
	}
	return nil
}

// ClaimDeadLetters returns up to limit unacknowledged dead letters,
// marking them claimed. A stale claim (consumer died before acking) is
// reclaimable after five minutes.
func (s *QueueStorage) ClaimDeadLetters(ctx context.Context, limit int) ([]queue.DeadLetter, error) {
	rows, err := conn(ctx, s.pool).Query(ctx, `
		UPDATE dead_letters
		SET claimed_at = now()
		WHERE id IN (
			SELECT id FROM dead_letters
			WHERE acked_at IS NULL
			  AND (claimed_at IS NULL OR claimed_at < now() - interval '5 minutes')
			ORDER BY failed_at
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, job_id, queue, type, domain_id, payload, attempts, error, failed_at`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("claim dead letters: %w", err)
	}
	defer rows.Close()

	deadLetters, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (queue.DeadLetter, error) {
		var dl queue.DeadLetter
		err := row.Scan(&dl.ID, &dl.JobID, &dl.Queue, &dl.Type, &dl.DomainID,
			&dl.Payload, &dl.Attempts, &dl.Error, &dl.FailedAt)
		return dl, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan dead letters: %w", err)
	}
	if len(deadLetters) == 0 {
		return nil, queue.ErrNoDeadLetters
	}
	return deadLetters, nil
}

// AckDeadLetter marks a dead letter acknowledged. The row stays behind
// for auditing; it is simply never claimable again.
func (s *QueueStorage) AckDeadLetter(ctx context.Context, id uuid.UUID) error {
	_, err := conn(ctx, s.pool).Exec(ctx, `
		UPDATE dead_letters SET acked_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ack dead letter: %w", err)
	}
	return nil
}

func (s *QueueStorage) HasPendingJob(ctx context.Context, jobType queue.JobType) (bool, error) {
	var exists bool
	err := conn(ctx, s.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM jobs
			WHERE type = $1 AND status IN ('pending', 'processing')
		)`, jobType).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check pending job: %w", err)
	}
	return exists, nil
}
