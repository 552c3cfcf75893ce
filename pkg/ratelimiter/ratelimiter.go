package ratelimiter

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TokenBucket is a blocking token-bucket rate limiter. The bucket holds up to
// `capacity` tokens and refills continuously at `refillPerSec` tokens per
// second, computed from the monotonic clock. It starts full.
//
// Acquire hands out tokens in arrival order: each caller reserves the next
// token under the lock, so a caller that arrives later can never be admitted
// before an earlier one. A cancelled waiter returns its reservation to the
// bucket.
//
// State is process-local; nothing is persisted across restarts.
type TokenBucket struct {
	mu           sync.Mutex
	capacity     float64
	refillPerSec float64
	tokens       float64
	last         time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option configures a TokenBucket.
type Option func(*TokenBucket)

// WithNowFunc replaces the clock used for refill computation. Tests use this
// to advance time on command.
func WithNowFunc(now func() time.Time) Option {
	return func(tb *TokenBucket) {
		tb.now = now
	}
}

// WithSleepFunc replaces the wait used when the bucket is empty.
func WithSleepFunc(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(tb *TokenBucket) {
		tb.sleep = sleep
	}
}

// NewTokenBucket creates a full bucket admitting `perMinute` sends per rolling
// minute with burst capacity equal to the full bucket.
func NewTokenBucket(perMinute int, opts ...Option) (*TokenBucket, error) {
	if perMinute <= 0 {
		return nil, fmt.Errorf("ratelimiter: per-minute rate must be positive, got %d", perMinute)
	}

	tb := &TokenBucket{
		capacity:     float64(perMinute),
		refillPerSec: float64(perMinute) / 60.0,
		tokens:       float64(perMinute),
		now:          time.Now,
		sleep:        sleepCtx,
	}
	for _, opt := range opts {
		opt(tb)
	}
	tb.last = tb.now()
	return tb, nil
}

// Acquire blocks until one token is available or ctx is done. It returns
// ctx.Err() on cancellation.
func (tb *TokenBucket) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tb.mu.Lock()
	tb.refillLocked()

	// Reserve the next token. Tokens may go negative: a negative balance is
	// the queue of reservations already handed out, which preserves FIFO
	// admission among waiters.
	tb.tokens--
	var wait time.Duration
	if tb.tokens < 0 {
		deficit := -tb.tokens
		wait = time.Duration(deficit / tb.refillPerSec * float64(time.Second))
	}
	tb.mu.Unlock()

	if wait <= 0 {
		return nil
	}

	if err := tb.sleep(ctx, wait); err != nil {
		// Return the unused reservation so later waiters are not delayed by
		// a cancelled one.
		tb.mu.Lock()
		tb.tokens++
		tb.mu.Unlock()
		return err
	}
	return nil
}

// Available reports the number of whole tokens currently in the bucket.
// Negative reservations count as zero.
func (tb *TokenBucket) Available() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.refillLocked()
	if tb.tokens < 0 {
		return 0
	}
	return int(tb.tokens)
}

// refillLocked credits tokens for the time elapsed since the last refill.
// Callers must hold tb.mu.
func (tb *TokenBucket) refillLocked() {
	now := tb.now()
	elapsed := now.Sub(tb.last)
	if elapsed <= 0 {
		return
	}
	tb.last = now

	tb.tokens += elapsed.Seconds() * tb.refillPerSec
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
