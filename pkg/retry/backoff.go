package retry

import (
	"context"
	"math/rand"
	"time"
)

// BackoffStrategy computes the delay after a failed attempt
type BackoffStrategy interface {
	// NextDelay returns the delay following failed attempt number attempt (1-based)
	NextDelay(attempt int) time.Duration
}

// LinearBackoff grows the delay by a fixed increment after every failure
type LinearBackoff struct {
	BaseDelay    time.Duration
	Increment    time.Duration
	MaxDelay     time.Duration
	JitterFactor float64
}

// DefaultLinearBackoff returns the login retry schedule: 3s, 5s, 7s ... capped at 30s
func DefaultLinearBackoff() *LinearBackoff {
	return &LinearBackoff{
		BaseDelay: 3 * time.Second,
		Increment: 2 * time.Second,
		MaxDelay:  30 * time.Second,
	}
}

// NextDelay implements BackoffStrategy
func (lb *LinearBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := float64(lb.BaseDelay + lb.Increment*time.Duration(attempt-1))
	return finish(delay, lb.MaxDelay, lb.JitterFactor)
}

func finish(delay float64, max time.Duration, jitterFactor float64) time.Duration {
	if max > 0 && delay > float64(max) {
		delay = float64(max)
	}
	if jitterFactor > 0 {
		jitter := delay * jitterFactor
		delay += rand.Float64()*2*jitter - jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Wait blocks for delay or until ctx is done
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
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
