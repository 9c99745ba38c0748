// Package reconnect retries an operation with exponential backoff.
package reconnect

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Config contains configuration for exponential backoff
type Config struct {
	MaxRetries    int           // Maximum number of retries after the first attempt (default: 5)
	RetryDelay    time.Duration // Initial retry delay (default: 500ms)
	MaxRetryDelay time.Duration // Maximum retry delay cap (default: 8 seconds)
}

// DefaultConfig returns default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries:    5,
		RetryDelay:    500 * time.Millisecond,
		MaxRetryDelay: 8 * time.Second,
	}
}

// AttemptFunc performs one attempt
type AttemptFunc func(ctx context.Context) error

// Run calls fn until it succeeds, returns an error retryable rejects, the
// retry budget is spent, or ctx is done. A nil retryable retries every error.
//
// Backoff schedule with the default config:
//   - Retry 1: 500ms
//   - Retry 2: 1s
//   - Retry 3: 2s
//   - Retry 4: 4s
//   - Retry 5: 8s
//
// Returns the number of attempts made.
func Run(ctx context.Context, fn AttemptFunc, cfg Config, retryable func(error) bool) (int, error) {
	attempts := 0
	for {
		if err := ctx.Err(); err != nil {
			return attempts, err
		}

		attempts++
		err := fn(ctx)
		if err == nil {
			if attempts > 1 {
				slog.Info("reconnect: attempt succeeded", "attempts", attempts)
			}
			return attempts, nil
		}

		if retryable != nil && !retryable(err) {
			return attempts, err
		}
		if attempts > cfg.MaxRetries {
			return attempts, fmt.Errorf("reconnect: max retries exceeded (%d attempts): %w", attempts, err)
		}

		delay := Backoff(attempts, cfg)
		slog.Warn("reconnect: attempt failed, retrying",
			"error", err,
			"attempt", attempts,
			"max_retries", cfg.MaxRetries,
			"delay", delay,
		)

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return attempts, ctx.Err()
		}
	}
}

// Backoff returns RetryDelay * 2^(attempt-1), capped at MaxRetryDelay
func Backoff(attempt int, cfg Config) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 30 {
		attempt = 30
	}
	delay := cfg.RetryDelay * time.Duration(1<<uint(attempt-1))
	if cfg.MaxRetryDelay > 0 && (delay > cfg.MaxRetryDelay || delay <= 0) {
		delay = cfg.MaxRetryDelay
	}
	return delay
}
