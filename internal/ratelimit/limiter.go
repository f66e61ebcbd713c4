// Package ratelimit implements sliding-window limits for bot updates.
package ratelimit

import (
	"context"
	"time"
)

// Result captures the outcome of a rate-limit evaluation.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter counts events per key within a window. An over-limit call returns
// Allowed=false and a nil error; errors are reserved for backend failures.
type Limiter interface {
	Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}
