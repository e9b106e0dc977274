package gateway

import (
	"context"
	"time"
)

// retryPolicy controls backoff for transient service failures.
type retryPolicy struct {
	attempts int // retries after the initial attempt
	initial  time.Duration
	max      time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{
		attempts: 2,
		initial:  500 * time.Millisecond,
		max:      4 * time.Second,
	}
}

// retryOn runs fn, retrying with exponential backoff while shouldRetry
// reports the error as transient. Context cancellation stops the loop
// between attempts.
func retryOn[T any](ctx context.Context, p retryPolicy, shouldRetry func(error) bool, fn func() (T, error)) (T, error) {
	delay := p.initial
	for attempt := 0; ; attempt++ {
		out, err := fn()
		if err == nil || attempt >= p.attempts || !shouldRetry(err) {
			return out, err
		}

		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
		if delay > p.max {
			delay = p.max
		}
	}
}
