package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/Proton-105/oasis-bot/internal/health"
)

// ErrDraining is reported by Readiness once shutdown has begun.
var ErrDraining = errors.New("shutting down")

// HealthChecker exposes liveness and readiness probes.
type HealthChecker interface {
	Liveness(ctx context.Context) error
	Readiness(ctx context.Context) error
}

// Probes answers liveness from the process itself and readiness from the
// dependency checker. Readiness fails as soon as draining starts so traffic
// moves away before the bot stops polling.
type Probes struct {
	log      *slog.Logger
	checker  *health.Checker
	draining atomic.Bool
}

// NewProbes creates a new Probes instance.
func NewProbes(log *slog.Logger, checker *health.Checker) *Probes {
	if log == nil {
		log = slog.Default()
	}
	return &Probes{log: log, checker: checker}
}

// Liveness reports success while the process can serve HTTP at all.
func (p *Probes) Liveness(context.Context) error {
	return nil
}

// Readiness fails while draining or when a required dependency is unhealthy.
func (p *Probes) Readiness(ctx context.Context) error {
	if p.draining.Load() {
		return ErrDraining
	}
	if p.checker == nil {
		return nil
	}

	report := p.checker.Check(ctx)
	if report.Healthy {
		return nil
	}

	failed := make([]string, 0, len(report.Components))
	for name, status := range report.Components {
		if status != "OK" {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)
	p.log.Debug("readiness probe failed", slog.Any("components", failed))

	return fmt.Errorf("unhealthy: %s", strings.Join(failed, ", "))
}

// StartDraining flips readiness to failing.
func (p *Probes) StartDraining() {
	p.draining.Store(true)
}
