package campaign

import (
	"context"
	"time"
)

// Clock provides time-related functionality that can be mocked in tests.
// Every scheduler wait goes through Sleep so tests never block on real time.
type Clock interface {
	// Now returns the current time
	Now() time.Time

	// Since returns the time elapsed since t
	Since(t time.Time) time.Duration

	// Sleep blocks for d or until the context is cancelled, returning the
	// context error in that case
	Sleep(ctx context.Context, d time.Duration) error
}

// RealClock is the default Clock backed by the system time.
type RealClock struct{}

// NewRealClock creates a new RealClock.
func NewRealClock() Clock {
	return &RealClock{}
}

// Now returns the current time.
func (RealClock) Now() time.Time {
	return time.Now()
}

// Since returns the time elapsed since t.
func (RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// Sleep blocks for d or until ctx is done.
func (RealClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
