package ratelimit

import (
	"context"
	"log/slog"
	"time"
)

// Cleaner evicts idle buckets from the in-memory fallback limiter. Redis keys
// expire on their own.
type Cleaner struct {
	memory   *MemoryLimiter
	log      *slog.Logger
	interval time.Duration
	maxAge   time.Duration
}

// NewCleaner constructs a Cleaner. Buckets untouched for maxAge are dropped.
func NewCleaner(memory *MemoryLimiter, log *slog.Logger, interval, maxAge time.Duration) *Cleaner {
	if log == nil {
		log = slog.Default()
	}
	if maxAge <= 0 {
		maxAge = 10 * time.Minute
	}

	return &Cleaner{
		memory:   memory,
		log:      log,
		interval: interval,
		maxAge:   maxAge,
	}
}

// Run starts the cleaner loop until the context is cancelled.
func (c *Cleaner) Run(ctx context.Context) {
	if c.memory == nil || c.interval <= 0 {
		return
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.log.Info("rate limit cleaner stopped", slog.String("reason", ctx.Err().Error()))
			return
		case <-ticker.C:
			if removed := c.memory.Cleanup(c.maxAge); removed > 0 {
				c.log.Debug("rate limit buckets evicted", slog.Int("buckets", removed))
			}
		}
	}
}
