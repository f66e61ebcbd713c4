// Package idempotency makes sure a redelivered Telegram update is handled once.
package idempotency

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrRequestInProgress is returned while another worker still handles the same key.
var ErrRequestInProgress = errors.New("update with this key is already being handled")

const (
	// DefaultLockTTL bounds how long a crashed handler can block redelivery.
	DefaultLockTTL = 2 * time.Minute
	// DefaultTTL is how long a completed update is remembered. Telegram stops
	// redelivering well within a day.
	DefaultTTL = 24 * time.Hour
)

// Operation is the guarded unit of work.
type Operation func(ctx context.Context) error

// Result describes how Execute finished.
type Result struct {
	// Duplicate is true when the key had already completed and fn was skipped.
	Duplicate bool
}

// Manager runs operations at most once per key.
type Manager interface {
	Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error)
}

type manager struct {
	store   Store
	log     *slog.Logger
	lockTTL time.Duration
}

// NewManager builds a Manager on top of store.
func NewManager(store Store, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		store:   store,
		log:     log,
		lockTTL: DefaultLockTTL,
	}
}

// Execute runs fn unless key already completed. A failed fn releases the key
// so the same update can be retried; a successful one is remembered for ttl.
func (m *manager) Execute(ctx context.Context, key string, ttl time.Duration, fn Operation) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if fn == nil {
		return nil, errors.New("operation fn cannot be nil")
	}

	status, err := m.store.Status(ctx, key)
	if err != nil {
		return nil, err
	}
	if status == StatusCompleted {
		return &Result{Duplicate: true}, nil
	}

	locked, err := m.store.Lock(ctx, key, m.lockTTL)
	if err != nil {
		return nil, err
	}
	if !locked {
		return nil, ErrRequestInProgress
	}

	if err := fn(ctx); err != nil {
		if releaseErr := m.store.Release(context.WithoutCancel(ctx), key); releaseErr != nil {
			m.log.Warn("failed to release idempotency key", slog.String("key", key), slog.Any("error", releaseErr))
		}
		return nil, err
	}

	if err := m.store.Complete(context.WithoutCancel(ctx), key, ttl); err != nil {
		return nil, err
	}

	return &Result{}, nil
}
