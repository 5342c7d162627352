package limiter

import (
	"context"
	"time"
)

// Clock is the wall-clock Timer used outside of tests.
type Clock struct{}

func NewClock() Clock {
	return Clock{}
}

func (Clock) Now() time.Time {
	return time.Now()
}

// Sleep blocks for duration or until ctx is done.
// Non-positive durations only report an already-canceled context.
func (Clock) Sleep(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			return nil
		}
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Elapsed returns the time passed since start according to clock.
func Elapsed(clock Timer, start time.Time) time.Duration {
	if clock == nil {
		return time.Since(start)
	}

	elapsed := clock.Now().Sub(start)
	if elapsed < 0 {
		return 0
	}

	return elapsed
}
