// Package poll implements bounded fixed-interval polling for data that
// becomes available eventually.
package poll

import (
	"context"
	"errors"
	"time"
)

// ErrExhausted is returned when every attempt reported "not yet".
var ErrExhausted = errors.New("poll: attempts exhausted")

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy describes a bounded polling strategy.
type Policy struct {
	Interval    time.Duration
	MaxAttempts int
	// Sleep defaults to Sleep when nil. Tests replace it to count waits.
	Sleep SleepFunc
}

// AttemptFunc performs one attempt. Returning done=false with a nil error
// means "not ready yet, try again after the interval". Any error stops
// polling immediately.
type AttemptFunc func(ctx context.Context, attempt int) (done bool, err error)

// Until runs fn until it reports done, returns an error, or MaxAttempts is
// reached. It sleeps Interval between attempts, never after the last one.
// The returned count is the number of attempts made.
func (p Policy) Until(ctx context.Context, fn AttemptFunc) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}
		done, err := fn(ctx, attempt)
		if err != nil {
			return attempt, err
		}
		if done {
			return attempt, nil
		}
		if attempt == maxAttempts {
			break
		}
		if err := sleep(ctx, p.Interval); err != nil {
			return attempt, err
		}
	}
	return maxAttempts, ErrExhausted
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
