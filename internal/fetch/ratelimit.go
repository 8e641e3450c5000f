package fetch

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is the single process-wide gate bounding outbound request
// rate. The unit of mutual exclusion is the last-call timestamp: two
// callers must never both observe a stale value and bypass the delay.
type RateLimiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewRateLimiter builds a limiter permitting callsPerSecond requests.
func NewRateLimiter(callsPerSecond float64) *RateLimiter {
	if callsPerSecond <= 0 {
		callsPerSecond = 1
	}
	return &RateLimiter{
		interval: time.Duration(float64(time.Second) / callsPerSecond),
	}
}

// Wait blocks until at least one interval has elapsed since the previous
// permitted call, then records the new call time. Returns early with the
// context error if ctx is cancelled while waiting.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	now := time.Now()
	next := rl.last.Add(rl.interval)
	if next.Before(now) {
		next = now
	}
	rl.last = next
	rl.mu.Unlock()

	delay := time.Until(next)
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
