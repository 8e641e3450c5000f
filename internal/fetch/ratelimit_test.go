package fetch

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterEnforcesMinimumInterval(t *testing.T) {
	const callsPerSecond = 50.0
	interval := time.Duration(float64(time.Second) / callsPerSecond)
	rl := NewRateLimiter(callsPerSecond)

	const calls = 5
	start := time.Now()
	for i := 0; i < calls; i++ {
		require.NoError(t, rl.Wait(context.Background()))
	}
	elapsed := time.Since(start)

	// N calls imply at least N-1 full intervals between completions.
	assert.GreaterOrEqual(t, elapsed, time.Duration(calls-1)*interval)
}

func TestRateLimiterConcurrentCallersNeverBypassDelay(t *testing.T) {
	const callsPerSecond = 100.0
	interval := time.Duration(float64(time.Second) / callsPerSecond)
	rl := NewRateLimiter(callsPerSecond)

	const calls = 8
	times := make(chan time.Time, calls)
	var wg sync.WaitGroup
	for i := 0; i < calls; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, rl.Wait(context.Background()))
			times <- time.Now()
		}()
	}
	wg.Wait()
	close(times)

	var completions []time.Time
	for ts := range times {
		completions = append(completions, ts)
	}
	require.Len(t, completions, calls)

	// Completion order is unspecified across goroutines; sort first.
	for i := 1; i < len(completions); i++ {
		for j := i; j > 0 && completions[j].Before(completions[j-1]); j-- {
			completions[j], completions[j-1] = completions[j-1], completions[j]
		}
	}
	const slack = 2 * time.Millisecond
	for i := 1; i < len(completions); i++ {
		gap := completions[i].Sub(completions[i-1])
		assert.GreaterOrEqual(t, gap+slack, interval, "gap between call %d and %d too small", i-1, i)
	}
}

func TestRateLimiterHonorsContextCancellation(t *testing.T) {
	rl := NewRateLimiter(0.1) // 10s interval

	require.NoError(t, rl.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := rl.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
