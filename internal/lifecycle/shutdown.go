package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Shutdown coordinates shutdown hooks. Hooks in the same phase run in parallel;
// phases run in order.
type Shutdown struct {
	mu     sync.Mutex
	hooks  []Hook
	log    *slog.Logger
	probes *Probes
}

// NewShutdown constructs a new Shutdown coordinator. probes may be nil.
func NewShutdown(log *slog.Logger, probes *Probes) *Shutdown {
	if log == nil {
		log = slog.Default()
	}

	return &Shutdown{log: log, probes: probes}
}

// Register adds a named shutdown hook to phase.
func (s *Shutdown) Register(phase Phase, name string, fn func(context.Context) error) {
	if fn == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.hooks = append(s.hooks, Hook{Name: name, Phase: phase, Fn: fn})
}

// Execute runs all registered hooks and returns the joined hook errors.
func (s *Shutdown) Execute(ctx context.Context) error {
	if s.probes != nil {
		s.probes.StartDraining()
	}

	s.mu.Lock()
	hooks := append([]Hook(nil), s.hooks...)
	s.mu.Unlock()

	sort.SliceStable(hooks, func(i, j int) bool { return hooks[i].Phase < hooks[j].Phase })

	start := time.Now()
	s.log.Info("shutdown sequence started", slog.Int("hook_count", len(hooks)))

	var errs []error
	for i := 0; i < len(hooks); {
		j := i
		for j < len(hooks) && hooks[j].Phase == hooks[i].Phase {
			j++
		}
		errs = append(errs, s.runPhase(ctx, hooks[i].Phase, hooks[i:j])...)
		i = j
	}

	s.log.Info("shutdown sequence finished", slog.Duration("elapsed", time.Since(start)))

	return errors.Join(errs...)
}

func (s *Shutdown) runPhase(ctx context.Context, phase Phase, hooks []Hook) []error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, hook := range hooks {
		h := hook
		wg.Add(1)
		go func() {
			defer wg.Done()

			s.log.Info("running shutdown hook", slog.String("hook", h.Name), slog.String("phase", phase.String()))
			if err := h.Fn(ctx); err != nil {
				s.log.Error("shutdown hook failed", slog.String("hook", h.Name), slog.Any("error", err))
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", h.Name, err))
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	return errs
}
