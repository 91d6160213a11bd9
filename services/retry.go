package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"stock-research/models"
	"stock-research/observability"
)

// RetryConfig bounds the attempts made against one upstream call
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig keeps a failing refresh well inside the request budget
var DefaultRetryConfig = RetryConfig{
	MaxRetries:     2,
	InitialBackoff: 250 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
}

// permanentError marks a failure that retrying cannot fix
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so WithRetry returns it immediately
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// stopRetrying unwraps failures that another attempt cannot change.
// An unknown symbol stays unknown and a cancelled caller is gone.
func stopRetrying(err error) (error, bool) {
	var perm *permanentError
	if errors.As(err, &perm) {
		return perm.err, true
	}
	if errors.Is(err, models.ErrUnknownSymbol) || errors.Is(err, context.Canceled) {
		return err, true
	}
	return err, false
}

// WithRetry calls fn until it succeeds, returns a non-retryable error, or
// runs out of attempts. Backoff doubles after each failure up to MaxBackoff.
func WithRetry(ctx context.Context, config RetryConfig, fn func() error) error {
	var lastErr error
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("context cancelled during retry: %w", errors.Join(ctx.Err(), lastErr))
			case <-timer.C:
			}

			backoff = min(backoff*2, config.MaxBackoff)
		}

		err := fn()
		if err == nil {
			return nil
		}
		if final, stop := stopRetrying(err); stop {
			return final
		}

		lastErr = err
		if attempt < config.MaxRetries {
			observability.Debug("retrying after failure",
				"attempt", attempt+1,
				"max_retries", config.MaxRetries,
				"backoff", backoff,
				"error", err)
		}
	}

	return fmt.Errorf("failed after %d retries: %w", config.MaxRetries, lastErr)
}
