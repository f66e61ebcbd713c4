package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is the in-process sliding window used when Redis is unreachable.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string][]time.Time
	now     func() time.Time
}

var _ Limiter = (*MemoryLimiter)(nil)

// NewMemoryLimiter returns an empty in-memory limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Check enforces a sliding-window limit for the provided key. Rejected
// requests are not recorded.
func (m *MemoryLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := m.now()
	windowStart := now.Add(-window)

	m.mu.Lock()
	defer m.mu.Unlock()

	requests := keepRecent(m.buckets[key], windowStart)

	allowed := len(requests) < limit
	if allowed {
		requests = append(requests, now)
	}
	m.buckets[key] = requests

	resetAt := now.Add(window)
	if len(requests) > 0 {
		resetAt = requests[0].Add(window)
	}

	return &Result{
		Allowed:   allowed,
		Remaining: max(limit-len(requests), 0),
		ResetAt:   resetAt,
	}, nil
}

// Cleanup removes buckets whose newest request is older than maxAge and
// returns how many were dropped.
func (m *MemoryLimiter) Cleanup(maxAge time.Duration) int {
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, requests := range m.buckets {
		if len(requests) == 0 || requests[len(requests)-1].Before(cutoff) {
			delete(m.buckets, key)
			removed++
		}
	}

	return removed
}

func keepRecent(reqs []time.Time, windowStart time.Time) []time.Time {
	first := 0
	for first < len(reqs) && !reqs[first].After(windowStart) {
		first++
	}

	if first == 0 {
		return reqs
	}

	return append(reqs[:0], reqs[first:]...)
}
