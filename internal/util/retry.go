package util

import (
	"context"
	"time"
)

// Retry calls fn up to maxAttempts times, doubling the wait between
// attempts starting from baseDelay. It returns nil on the first success,
// the last error once the attempts are spent, or ctx.Err if the context is
// cancelled while waiting.
func Retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	for attempt, delay := 1, baseDelay; ; attempt, delay = attempt+1, delay*2 {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= maxAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
