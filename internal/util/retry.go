package util

import (
	"context"
	"math/rand/v2"
	"time"
)

// Retry calls fn up to maxAttempts times with exponential backoff starting
// at baseDelay, plus a random jitter of up to half the current delay so
// concurrent callers do not retry in lockstep. It returns nil on the first
// successful call, or the last error if all attempts fail. Context
// cancellation is honoured between attempts.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	delay := baseDelay

	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Don't sleep after the last failed attempt.
		if attempt < maxAttempts-1 {
			sleep := delay
			if delay > 0 {
				sleep += rand.N(delay/2 + 1)
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(sleep):
			}
			delay *= 2
		}
	}

	return err
}
