package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	checksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ratelimit_checks_total",
		Help: "Rate limit checks by backend and result.",
	}, []string{"backend", "result"})

	backendErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ratelimit_redis_errors_total",
		Help: "Redis failures that pushed the limiter onto the in-memory fallback.",
	})
)

// AdaptiveLimiter asks Redis first and falls back to a stricter in-memory
// limiter when Redis fails, so one replica keeps some protection on its own.
type AdaptiveLimiter struct {
	primary  Limiter
	fallback Limiter
	log      *slog.Logger
}

// NewAdaptiveLimiter combines a primary and a fallback limiter.
func NewAdaptiveLimiter(primary, fallback Limiter, log *slog.Logger) *AdaptiveLimiter {
	if log == nil {
		log = slog.Default()
	}

	return &AdaptiveLimiter{
		primary:  primary,
		fallback: fallback,
		log:      log,
	}
}

func (a *AdaptiveLimiter) Check(ctx context.Context, key string, limit int, window time.Duration) (*Result, error) {
	result, err := a.primary.Check(ctx, key, limit, window)
	if err == nil {
		checksTotal.WithLabelValues("redis", resultLabel(result.Allowed)).Inc()
		return result, nil
	}

	backendErrorsTotal.Inc()
	a.log.Warn("redis limiter failed, using in-memory fallback", slog.String("key", key), slog.Any("error", err))

	result, err = a.fallback.Check(ctx, key, max(limit/2, 1), window)
	if err != nil {
		return nil, err
	}

	checksTotal.WithLabelValues("memory", resultLabel(result.Allowed)).Inc()
	return result, nil
}

func resultLabel(allowed bool) string {
	if allowed {
		return "allowed"
	}
	return "rejected"
}
