package fetch

import (
	"context"
	"fmt"
	"time"
)

// Retry invokes op, retrying on any failure up to maxRetries total
// attempts with a linear backoff of baseDelay × attempt between tries.
// The final failure is propagated wrapped, never swallowed. Every error
// is considered retryable; only context cancellation cuts the loop short.
func Retry(ctx context.Context, maxRetries int, baseDelay time.Duration, op func(context.Context) error) error {
	if maxRetries < 1 {
		maxRetries = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt < maxRetries {
			timer := time.NewTimer(baseDelay * time.Duration(attempt))
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", maxRetries, lastErr)
}
