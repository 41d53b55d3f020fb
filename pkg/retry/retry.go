package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"musinsacrawler/pkg/logger"
)

// Operation is one attempt; attempt is 1-based
type Operation func(ctx context.Context, attempt int) error

// Config holds retry configuration
type Config struct {
	// MaxAttempts is the total number of attempts, including the first
	MaxAttempts int
	Backoff     BackoffStrategy
	// RetryIf decides whether a failed attempt may be retried. Nil retries
	// every error. Once ctx is done nothing is retried, whatever the error.
	RetryIf func(error) bool
	// OnRetry runs after a failed attempt, before the delay. When set it owns
	// the warning for that attempt.
	OnRetry func(attempt int, err error, delay time.Duration)
	// Sleep performs the delay; defaults to Wait
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger logger.Logger
}

// ExhaustedError is returned once every attempt has failed
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("max retry attempts (%d) exceeded: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// Do runs op until it succeeds, returns a non-retryable error, the context
// ends, or MaxAttempts is reached.
func Do(ctx context.Context, op Operation, cfg Config) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if cfg.Backoff == nil {
		cfg.Backoff = DefaultLinearBackoff()
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = func(error) bool { return true }
	}
	if cfg.Sleep == nil {
		cfg.Sleep = Wait
	}
	log := logger.OrGlobal(cfg.Logger)

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := op(ctx, attempt)
		if err == nil {
			if attempt > 1 {
				log.DebugWithFields("Operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		// a timeout inside the attempt is retryable; the caller giving up is not
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("retry cancelled after attempt %d: %w", attempt, errors.Join(ctxErr, err))
		}
		if !cfg.RetryIf(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		delay := cfg.Backoff.NextDelay(attempt)
		fields := map[string]interface{}{
			"attempt":      attempt,
			"max_attempts": cfg.MaxAttempts,
			"delay":        delay,
			"error":        err.Error(),
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err, delay)
			log.DebugWithFields("Retrying operation", fields)
		} else {
			log.WarnWithFields("Retrying operation", fields)
		}

		if err := cfg.Sleep(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}

	return &ExhaustedError{Attempts: cfg.MaxAttempts, Last: lastErr}
}
