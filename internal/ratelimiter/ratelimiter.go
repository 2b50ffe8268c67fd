// Package ratelimiter throttles outgoing RPC calls with a token bucket.
package ratelimiter

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimiter paces calls issued by an RPC client.
//
// Calls block in Wait until a token is available, so a client configured
// with a rate never floods a server during long directory walks or probes.
// A nil *RateLimiter is valid and never blocks.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a RateLimiter allowing requestsPerSecond sustained calls with
// bursts of up to burst calls.
//
// Special cases:
//   - requestsPerSecond = 0: unlimited, New returns nil
//   - burst = 0: burst defaults to requestsPerSecond (minimum 1)
//
// Example:
//
//	// 50 calls/s sustained, 100 in a burst
//	limiter := ratelimiter.New(50, 100)
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		return nil
	}
	if burst == 0 {
		burst = max(requestsPerSecond, 1)
	}

	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Wait blocks until a call may proceed or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if r == nil {
		return nil
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	return nil
}

// Allow reports whether a call may proceed now, consuming a token if so.
func (r *RateLimiter) Allow() bool {
	if r == nil {
		return true
	}
	return r.limiter.Allow()
}

// Limit returns the sustained rate in calls per second, or 0 when unlimited.
func (r *RateLimiter) Limit() float64 {
	if r == nil {
		return 0
	}
	return float64(r.limiter.Limit())
}

// Burst returns the bucket capacity, or 0 when unlimited.
func (r *RateLimiter) Burst() int {
	if r == nil {
		return 0
	}
	return r.limiter.Burst()
}

// SetLimit updates the sustained rate.
func (r *RateLimiter) SetLimit(requestsPerSecond uint) {
	if r == nil {
		return
	}
	r.limiter.SetLimit(rate.Limit(requestsPerSecond))
}
