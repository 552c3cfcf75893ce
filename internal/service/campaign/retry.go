package campaign

import (
	"math/rand"
	"time"
)

// RetryPolicy computes backoff delays for transient send failures. Delays
// grow exponentially from BaseDelay, cap at MaxDelay, and carry a jitter
// factor in [0.8, 1.2] so concurrent workers do not retry in lockstep.
type RetryPolicy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	MinRateLimitDelay time.Duration

	randFloat func() float64
}

// RetryOption customizes a RetryPolicy.
type RetryOption func(*RetryPolicy)

// WithRandFloat replaces the jitter source, for tests.
func WithRandFloat(f func() float64) RetryOption {
	return func(p *RetryPolicy) {
		p.randFloat = f
	}
}

// NewRetryPolicy creates a retry policy from the configured bounds.
func NewRetryPolicy(cfg *Config, opts ...RetryOption) *RetryPolicy {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	p := &RetryPolicy{
		MaxAttempts:       cfg.MaxAttempts,
		BaseDelay:         cfg.BaseDelay,
		MaxDelay:          cfg.MaxDelay,
		MinRateLimitDelay: cfg.MinRateLimitDelay,
		randFloat:         rand.Float64,
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ShouldRetry reports whether another attempt is allowed after the given
// 1-based attempt number failed.
func (p *RetryPolicy) ShouldRetry(attempt int) bool {
	return attempt < p.MaxAttempts
}

// Delay returns the jittered backoff after the given failed attempt.
func (p *RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	backoff := p.BaseDelay
	for i := 1; i < attempt && backoff < p.MaxDelay; i++ {
		backoff *= 2
	}
	if backoff > p.MaxDelay {
		backoff = p.MaxDelay
	}

	jitter := 0.8 + 0.4*p.randFloat()
	return time.Duration(float64(backoff) * jitter)
}

// RateLimitDelay returns the wait after a provider 429. The provider's
// Retry-After is authoritative when longer than the computed backoff, and
// the result never drops below MinRateLimitDelay.
func (p *RetryPolicy) RateLimitDelay(attempt int, retryAfter time.Duration) time.Duration {
	d := p.Delay(attempt)
	if retryAfter > d {
		d = retryAfter
	}
	if d < p.MinRateLimitDelay {
		d = p.MinRateLimitDelay
	}
	return d
}
