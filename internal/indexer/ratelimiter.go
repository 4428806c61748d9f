package indexer

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"
)

// RateLimiter spaces outbound calls to one upstream API.
type RateLimiter struct {
	limiter *rate.Limiter
	name    string
}

// NewRateLimiter creates a rate limiter allowing rps requests per second.
func NewRateLimiter(name string, rps int) *RateLimiter {
	slog.Debug("rate limiter created",
		"upstream", name,
		"rps", rps,
	)
	return &RateLimiter{
		// Burst 1: a metadata batch fans out many goroutines at once and the
		// indexing API counts compute units per second, not per minute.
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		name:    name,
	}
}

// Wait blocks until the limiter admits one request or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if err := rl.limiter.Wait(ctx); err != nil {
		slog.Debug("rate limiter wait aborted",
			"upstream", rl.name,
			"error", err,
		)
		return err
	}
	return nil
}

// Name returns the upstream this limiter guards.
func (rl *RateLimiter) Name() string {
	return rl.name
}
