package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces outgoing requests
type Limiter interface {
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
}

// Interval spaces consecutive requests at least `every` apart
type Interval struct {
	limiter *rate.Limiter
}

// NewInterval creates an Interval limiter. A non-positive interval
// never blocks.
func NewInterval(every time.Duration) *Interval {
	if every <= 0 {
		return &Interval{limiter: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Interval{limiter: rate.NewLimiter(rate.Every(every), 1)}
}

// Wait implements Limiter
func (iv *Interval) Wait(ctx context.Context) error {
	return iv.limiter.Wait(ctx)
}
