package errors

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"
)

const (
	MaxRetries        = 3
	InitialBackoff    = 100 * time.Millisecond
	MaxBackoff        = 5 * time.Second
	BackoffMultiplier = 2.0
)

// Do runs fn until it succeeds, returns a non-retryable error, or MaxRetries
// is reached, sleeping a jittered exponential backoff between attempts. Only
// use it for idempotent reads: the purchase flow never retries.
func Do[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	if fn == nil {
		return zero, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		v, err := fn()
		if err == nil {
			return v, nil
		}
		if !IsRetryable(err) || attempt == MaxRetries {
			return zero, err
		}

		timer := time.NewTimer(backoff(attempt + 1))
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

// WithRetry is Do for functions without a result.
func WithRetry(ctx context.Context, fn func() error) error {
	if fn == nil {
		return nil
	}
	_, err := Do(ctx, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr.Retryable
	}
	return false
}

// backoff returns a full-jitter delay in [ceiling/2, ceiling], where ceiling
// grows by BackoffMultiplier per attempt up to MaxBackoff.
func backoff(attempt int) time.Duration {
	ceiling := float64(InitialBackoff)
	for i := 0; i < attempt && ceiling < float64(MaxBackoff); i++ {
		ceiling *= BackoffMultiplier
	}
	if ceiling > float64(MaxBackoff) {
		ceiling = float64(MaxBackoff)
	}

	half := ceiling / 2
	return time.Duration(half + rand.Float64()*half)
}
