// Package retry runs an operation a bounded number of times with a growing
// delay between failures.
//
//	err := retry.Do(ctx, func(ctx context.Context, attempt int) error {
//		return tryLogin(ctx)
//	}, retry.Config{
//		MaxAttempts: cfg.RetryAttempts,
//		Backoff:     retry.DefaultLinearBackoff(),
//	})
//
// When every attempt fails Do returns an *ExhaustedError wrapping the last
// failure. Delays honour context cancellation through Wait.
package retry
