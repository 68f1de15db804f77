// Package queue implements the job pipeline's queue: enqueueing, worker
// consumption, periodic scheduling, and dead-letter escalation.
//
// Delivery is at-least-once. Jobs are claimed with a lock; a worker crash
// lets the lock expire and the job is redelivered with its attempt count
// intact, so every handler must be idempotent. When a job's attempt budget
// is exhausted it is parked on the dead-letter queue, where DLQConsumer
// hands it to a DeadLetterHandler (operator escalation) and always
// acknowledges it, failed escalation included, so a poison message can
// never loop.
//
// The job type set is closed (dns_check, start_issuance, renewal,
// sync_status, send_email); handlers register per type:
//
//	worker, _ := queue.NewWorker(storage, queue.WithMaxConcurrentJobs(10))
//	_ = worker.RegisterHandler(dnsCheckHandler)
//
//	g.Go(worker.Run(ctx))
//
// Storage is an interface; integration/database/pg provides the durable
// implementation and MemoryStorage backs tests and local development.
package queue
