// Package ratelimit paces asset downloads.
//
// Interval wraps golang.org/x/time/rate with a burst of one so that
// consecutive requests are at least the configured delay apart:
//
//	limiter := ratelimit.NewInterval(cfg.DownloadDelayDuration())
//	for _, asset := range assets {
//		if err := limiter.Wait(ctx); err != nil {
//			return err
//		}
//		fetch(asset)
//	}
package ratelimit
