package config

import "time"

// QueueConfig contains queue and worker pool configuration.
// These values control how tasks are enqueued, claimed, and processed.
type QueueConfig struct {
	// Backend selects the queue adapter (memory or redis).
	Backend QueueBackendType `yaml:"backend"`

	// RedisAddr is the host:port of the Redis backend. Ignored for memory.
	RedisAddr string `yaml:"redis_addr"`

	// WorkerCount is the number of worker goroutines.
	// Each worker independently polls and processes tasks.
	WorkerCount int `yaml:"worker_count"`

	// MaxConcurrentTasks is the limit of tasks being processed at once.
	MaxConcurrentTasks int `yaml:"max_concurrent_tasks"`

	// PollInterval is the base interval for checking queued tasks.
	PollInterval time.Duration `yaml:"poll_interval"`

	// PollIntervalJitter is the random jitter added to PollInterval.
	// Actual interval: PollInterval ± PollIntervalJitter.
	PollIntervalJitter time.Duration `yaml:"poll_interval_jitter"`

	// TaskTimeout is the maximum time a task can be processed.
	TaskTimeout time.Duration `yaml:"task_timeout"`

	// GracefulShutdownTimeout is the max time to wait for active tasks
	// to complete during shutdown. Should match TaskTimeout.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// FallbackDir is where jobs are persisted when the queue backend is
	// unavailable, relative to the workspace root.
	FallbackDir string `yaml:"fallback_dir"`

	// FailureThreshold is the consecutive-failure count at which a
	// pipeline's jobs are paused.
	FailureThreshold int `yaml:"failure_threshold"`
}

// DefaultQueueConfig returns the built-in queue defaults.
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		Backend:                 QueueBackendMemory,
		WorkerCount:             3,
		MaxConcurrentTasks:      3,
		PollInterval:            1 * time.Second,
		PollIntervalJitter:      500 * time.Millisecond,
		TaskTimeout:             10 * time.Minute,
		GracefulShutdownTimeout: 10 * time.Minute,
		FallbackDir:             "queue-fallback",
		FailureThreshold:        3,
	}
}
