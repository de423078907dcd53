package embedding

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/passage/internal/models"
)

// retryWithBackoff runs op up to maxAttempts times, doubling baseDelay between attempts.
// Invariant violations are returned immediately. The last error is returned when every
// attempt fails.
func retryWithBackoff(ctx context.Context, op func() error, maxAttempts int, baseDelay time.Duration) error {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return lastErr
			}
			return err
		}
		lastErr = op()
		if lastErr == nil || errors.Is(lastErr, models.ErrInvariantViolation) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return lastErr
		case <-timer.C:
		}
		delay *= 2
	}
	return lastErr
}
