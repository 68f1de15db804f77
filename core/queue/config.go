package queue

import "time"

// Config holds configuration for the worker, scheduler, DLQ consumer, and
// enqueuer. Designed for environment-based loading via core/config.
type Config struct {
	// Worker configuration
	PollInterval      time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"5s"`
	LockTimeout       time.Duration `env:"QUEUE_LOCK_TIMEOUT" envDefault:"5m"`
	ShutdownTimeout   time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	MaxConcurrentJobs int           `env:"QUEUE_MAX_CONCURRENT_JOBS" envDefault:"10"`
	Queues            []string      `env:"QUEUE_WORKER_QUEUES" envDefault:"default" envSeparator:","`

	// DLQ consumer configuration
	DLQPollInterval time.Duration `env:"QUEUE_DLQ_POLL_INTERVAL" envDefault:"30s"`
	DLQBatchSize    int           `env:"QUEUE_DLQ_BATCH_SIZE" envDefault:"10"`

	// Scheduler configuration
	CheckInterval time.Duration `env:"QUEUE_CHECK_INTERVAL" envDefault:"10s"`

	// Enqueuer configuration
	DefaultQueue       string `env:"QUEUE_DEFAULT_QUEUE" envDefault:"default"`
	DefaultMaxAttempts int    `env:"QUEUE_DEFAULT_MAX_ATTEMPTS" envDefault:"3"`
}

// DefaultConfig returns sensible defaults for production use.
func DefaultConfig() Config {
	return Config{
		PollInterval:       5 * time.Second,
		LockTimeout:        5 * time.Minute,
		ShutdownTimeout:    30 * time.Second,
		MaxConcurrentJobs:  10,
		Queues:             []string{DefaultQueueName},
		DLQPollInterval:    30 * time.Second,
		DLQBatchSize:       10,
		CheckInterval:      10 * time.Second,
		DefaultQueue:       DefaultQueueName,
		DefaultMaxAttempts: 3,
	}
}
