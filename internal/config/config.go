package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Research ResearchConfig `mapstructure:"research" validate:"required"`
	Worker   WorkerConfig   `mapstructure:"worker"   validate:"required"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

// ServerConfig contains the HTTP trigger surface settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required,url"`
}

// ResearchConfig contains the settings for the external generation service
// consumed by the streaming research client.
type ResearchConfig struct {
	// EndpointURL is the base URL of the generation service.
	EndpointURL string `mapstructure:"endpoint_url" validate:"required,url"`

	// APIKey authenticates requests to the generation service. Optional in
	// local development where the service runs unauthenticated.
	APIKey string `mapstructure:"api_key"`

	// RequestTimeout bounds one full streaming call, including all frames.
	// Deep research calls can run for minutes, so this defaults high.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"required"`

	// ConnectAttempts is how many times the client retries establishing
	// the stream before reporting the endpoint unavailable.
	ConnectAttempts uint `mapstructure:"connect_attempts" validate:"required,gte=1,lte=10"`
}

// WorkerConfig contains the orchestrator and reclaimer settings.
type WorkerConfig struct {
	// QueueSize is the buffer size of the in-process job continuation queue.
	QueueSize int `mapstructure:"queue_size" validate:"required,gte=1"`

	// Workers is the number of goroutines consuming the continuation queue.
	// Each worker runs one job tick at a time.
	Workers int `mapstructure:"workers" validate:"required,gte=1"`

	// ReclaimTimeout is how long a task may sit in running before a sweep
	// returns it to pending.
	ReclaimTimeout time.Duration `mapstructure:"reclaim_timeout" validate:"required"`

	// ReclaimInterval is how often the background sweep runs.
	ReclaimInterval time.Duration `mapstructure:"reclaim_interval" validate:"required"`
}

// NotifyConfig contains the job completion notification settings.
type NotifyConfig struct {
	// WebhookURL receives a fire-and-forget POST when a job finalizes.
	// Empty disables notifications.
	WebhookURL string `mapstructure:"webhook_url" validate:"omitempty,url"`
}
