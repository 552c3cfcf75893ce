package campaign

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedJitterPolicy(t *testing.T) *RetryPolicy {
	t.Helper()
	cfg := &Config{
		MaxAttempts:       3,
		BaseDelay:         1 * time.Second,
		MaxDelay:          30 * time.Second,
		MinRateLimitDelay: 30 * time.Second,
	}
	// randFloat 0.5 makes the jitter factor exactly 1.0
	return NewRetryPolicy(cfg, WithRandFloat(func() float64 { return 0.5 }))
}

func TestRetryPolicy_ShouldRetry(t *testing.T) {
	p := fixedJitterPolicy(t)

	assert.True(t, p.ShouldRetry(1))
	assert.True(t, p.ShouldRetry(2))
	assert.False(t, p.ShouldRetry(3))
	assert.False(t, p.ShouldRetry(4))
}

func TestRetryPolicy_Delay_ExponentialWithCap(t *testing.T) {
	p := fixedJitterPolicy(t)

	assert.Equal(t, 1*time.Second, p.Delay(1))
	assert.Equal(t, 2*time.Second, p.Delay(2))
	assert.Equal(t, 4*time.Second, p.Delay(3))
	assert.Equal(t, 30*time.Second, p.Delay(10), "delays cap at MaxDelay")
}

func TestRetryPolicy_Delay_JitterBounds(t *testing.T) {
	cfg := &Config{MaxAttempts: 3, BaseDelay: 10 * time.Second, MaxDelay: 60 * time.Second}

	low := NewRetryPolicy(cfg, WithRandFloat(func() float64 { return 0 }))
	high := NewRetryPolicy(cfg, WithRandFloat(func() float64 { return 1 }))

	assert.Equal(t, 8*time.Second, low.Delay(1))
	assert.Equal(t, 12*time.Second, high.Delay(1))
}

func TestRetryPolicy_RateLimitDelay(t *testing.T) {
	p := fixedJitterPolicy(t)

	// Floor dominates short backoffs and short Retry-After values
	assert.Equal(t, 30*time.Second, p.RateLimitDelay(1, 0))
	assert.Equal(t, 30*time.Second, p.RateLimitDelay(1, 5*time.Second))

	// A longer Retry-After is authoritative
	assert.Equal(t, 90*time.Second, p.RateLimitDelay(1, 90*time.Second))
}

func TestNewRetryPolicy_Defaults(t *testing.T) {
	p := NewRetryPolicy(nil)
	assert.Equal(t, 3, p.MaxAttempts)
	assert.Equal(t, 1*time.Second, p.BaseDelay)

	zero := NewRetryPolicy(&Config{MaxAttempts: 0, BaseDelay: time.Second, MaxDelay: time.Second})
	assert.Equal(t, 1, zero.MaxAttempts, "at least one attempt always runs")
}
