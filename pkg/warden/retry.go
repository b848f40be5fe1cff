package warden

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"
)

const (
	// backoffMultiplier is the exponential backoff multiplier for retry attempts
	backoffMultiplier = 2.0
)

// applyJitter applies symmetric jitter to a duration.
//
// The jitter creates a random duration centered on the input duration, varying by jitterFactor (+ or -)
// For example, with jitterFactor=0.2 and duration=60s, the result ranges from 48s to 72s (+/-20%).
//
// Returns the original duration if jitterFactor is 0 or negative.
func applyJitter(duration time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return duration
	}

	// Generate random multiplier in [1-jitterFactor, 1+jitterFactor]
	//nolint:gosec // Using non-cryptographic random for jitter is acceptable
	multiplier := 1.0 + (rand.Float64()*2.0-1.0)*jitterFactor
	return time.Duration(float64(duration) * multiplier)
}

// RetryPolicy bounds retries of transient failures with exponential backoff
type RetryPolicy struct {
	MaxRetries          int
	InitialBackoff      time.Duration
	MaxBackoff          time.Duration
	BackoffJitterFactor float64
}

// retryWithBackoff executes an operation with exponential backoff retry logic
func (rp RetryPolicy) retryWithBackoff(
	ctx context.Context,
	operation func() error,
	shouldRetry func(error) bool,
	operationName string,
	logger *slog.Logger,
) error {
	var lastErr error
	backoff := rp.InitialBackoff

	for attempt := 0; attempt <= rp.MaxRetries; attempt++ {
		if attempt > 0 {
			// Apply jitter to the backoff
			actualBackoff := applyJitter(backoff, rp.BackoffJitterFactor)

			logger.Info(fmt.Sprintf("retrying %s after backoff", operationName),
				"attempt", attempt,
				"backoffSeconds", actualBackoff.Seconds())

			select {
			case <-time.After(actualBackoff):
			case <-ctx.Done():
				if errors.Is(ctx.Err(), context.DeadlineExceeded) {
					logger.Warn(fmt.Sprintf("%s operation timed out", operationName), "error", ctx.Err())
				}
				return ctx.Err()
			}

			backoff = time.Duration(float64(backoff) * backoffMultiplier)
			if backoff > rp.MaxBackoff && rp.MaxBackoff > 0 {
				backoff = rp.MaxBackoff
			}
		}

		err := operation()
		if err == nil {
			if attempt > 0 {
				logger.Info(fmt.Sprintf("%s succeeded after retry", operationName), "attempt", attempt)
			}
			return nil
		}

		if shouldRetry != nil && !shouldRetry(err) {
			logger.Error(fmt.Sprintf("permanent error, not retrying %s", operationName), "error", err)
			return fmt.Errorf("permanent error in %s: %w", operationName, err)
		}

		lastErr = err

		logger.Warn(fmt.Sprintf("transient error, will retry %s", operationName),
			"attempt", attempt,
			"error", err)
	}

	return fmt.Errorf("max retries (%d) exceeded for %s: %w", rp.MaxRetries, operationName, lastErr)
}
