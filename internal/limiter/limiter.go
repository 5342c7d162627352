package limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Timer provides time for task timestamps, crawl delays and rate limiting.
type Timer interface {
	Now() time.Time
	Sleep(ctx context.Context, duration time.Duration) error
}

// Waiter blocks until the next request is allowed.
// Both *Limiter and *rate.Limiter satisfy it.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Limiter enforces a minimum delay between requests.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	clock    Timer
}

// New creates a limiter using real time.
func New(interval time.Duration) *Limiter {
	return NewWithTimer(interval, Clock{})
}

// NewWithTimer creates a limiter with a custom clock.
func NewWithTimer(interval time.Duration, clock Timer) *Limiter {
	if interval <= 0 {
		return nil
	}

	if clock == nil {
		clock = Clock{}
	}

	return &Limiter{
		interval: interval,
		clock:    clock,
	}
}

// ForRate picks the waiter for a requests-per-second budget: a token bucket
// when rps is positive, otherwise a fixed minimum interval (nil when interval <= 0).
func ForRate(rps float64, interval time.Duration, clock Timer) Waiter {
	if rps > 0 {
		return rate.NewLimiter(rate.Limit(rps), 1)
	}

	limiter := NewWithTimer(interval, clock)
	if limiter == nil {
		return nil
	}

	return limiter
}

// Wait blocks until the next allowed request time or context cancellation.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}

	l.mu.Lock()
	now := l.clock.Now()
	if l.last.IsZero() {
		l.last = now
		l.mu.Unlock()

		return nil
	}

	next := l.last.Add(l.interval)
	if now.Before(next) {
		wait := next.Sub(now)
		l.last = next
		l.mu.Unlock()

		return l.clock.Sleep(ctx, wait)
	}

	l.last = now
	l.mu.Unlock()

	return nil
}
