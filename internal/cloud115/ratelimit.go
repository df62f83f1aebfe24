package cloud115

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimiter is an optional process-wide provider-call budget: a token
// bucket plus an implicit minimum inter-request interval (rate.Limiter
// already enforces both via its burst and rate parameters). When nil,
// callers fall back to the backoff-only behavior in Client.attempt.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter builds a limiter allowing qps requests per second with a
// burst of the same size, so the budget is roughly "qps sustained, a short
// burst tolerated."
func NewRateLimiter(qps float64) *RateLimiter {
	if qps <= 0 {
		return nil
	}
	burst := int(qps)
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{limiter: rate.NewLimiter(rate.Limit(qps), burst)}
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return nil
	}
	return rl.limiter.Wait(ctx)
}
