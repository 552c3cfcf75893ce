package campaign

import "time"

// Config contains configuration for campaign processing.
type Config struct {
	// Concurrency bounds the number of in-flight recipient pipelines.
	Concurrency int `json:"concurrency"`

	// Retry settings for transient send failures.
	MaxAttempts int           `json:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay"`
	MaxDelay    time.Duration `json:"max_delay"`

	// MinRateLimitDelay floors the wait after a provider 429, even when the
	// computed backoff and Retry-After are both shorter.
	MinRateLimitDelay time.Duration `json:"min_rate_limit_delay"`

	// ProgressLogInterval spaces out in-flight progress log lines.
	ProgressLogInterval time.Duration `json:"progress_log_interval"`
}

// MaxConcurrency caps how many pipelines any run may hold in flight.
const MaxConcurrency = 1000

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Concurrency:         10,
		MaxAttempts:         3,
		BaseDelay:           1 * time.Second,
		MaxDelay:            30 * time.Second,
		MinRateLimitDelay:   30 * time.Second,
		ProgressLogInterval: 5 * time.Second,
	}
}
