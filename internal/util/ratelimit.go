package util

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token-bucket limiter with a bucket depth of one token,
// replenished at a fixed rate.
type RateLimiter struct {
	rate float64 // tokens per second

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// NewRateLimiter creates a RateLimiter that allows perMinute operations per
// minute. The bucket starts full, so the first call never waits.
func NewRateLimiter(perMinute int) *RateLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	return &RateLimiter{
		rate:   float64(perMinute) / 60.0,
		tokens: 1,
		last:   time.Now(),
	}
}

// Wait takes a token, sleeping until one has accrued when the bucket is
// empty, or until the context is cancelled. The sleep is computed from the
// refill rate up front rather than polled.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	rl.mu.Lock()
	now := time.Now()
	rl.tokens += now.Sub(rl.last).Seconds() * rl.rate
	if rl.tokens > 1 {
		rl.tokens = 1
	}
	rl.last = now

	var wait time.Duration
	if rl.tokens >= 1 {
		rl.tokens--
	} else {
		// Spend the token that will have accrued once the wait elapses.
		wait = time.Duration((1 - rl.tokens) / rl.rate * float64(time.Second))
		rl.tokens = 0
		rl.last = now.Add(wait)
	}
	rl.mu.Unlock()

	if wait == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
