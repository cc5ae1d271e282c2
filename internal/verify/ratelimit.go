package verify

import (
	"context"
	"time"
)

// RateLimiter spaces requests evenly; free explorer plans allow 5 per second.
type RateLimiter struct {
	ticker *time.Ticker
}

func NewRateLimiter(requestsPerSecond int) *RateLimiter {
	interval := time.Second / time.Duration(requestsPerSecond)
	return &RateLimiter{ticker: time.NewTicker(interval)}
}

func (r *RateLimiter) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-r.ticker.C:
		return nil
	}
}

func (r *RateLimiter) Stop() {
	r.ticker.Stop()
}
