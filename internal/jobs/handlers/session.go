// Package handlers processes background tasks.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/oasis-bot/internal/jobs"
)

// Sweeper unlinks sessions that have been idle too long.
type Sweeper interface {
	SweepStaleSessions(ctx context.Context, maxIdle time.Duration, batch int) (int, error)
}

// Revoker ends an identity session at the provider.
type Revoker interface {
	RevokeSession(ctx context.Context, sessionID string) error
}

type SessionSweepHandler struct {
	sweeper Sweeper
	log     *slog.Logger
}

func NewSessionSweepHandler(sweeper Sweeper, log *slog.Logger) *SessionSweepHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SessionSweepHandler{sweeper: sweeper, log: log}
}

func (h *SessionSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.SessionSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.ErrorContext(ctx, "session sweep: failed to decode payload", slog.String("task_type", t.Type()), slog.Any("error", err))
		return fmt.Errorf("decode payload: %w", asynq.SkipRetry)
	}

	swept, err := h.sweeper.SweepStaleSessions(ctx, payload.MaxIdle, payload.Batch)
	if err != nil {
		return err
	}

	h.log.InfoContext(ctx, "session sweep finished",
		slog.Int("swept", swept),
		slog.Duration("max_idle", payload.MaxIdle),
	)
	return nil
}

type SessionRevokeHandler struct {
	revoker Revoker
	log     *slog.Logger
}

func NewSessionRevokeHandler(revoker Revoker, log *slog.Logger) *SessionRevokeHandler {
	if log == nil {
		log = slog.Default()
	}
	return &SessionRevokeHandler{revoker: revoker, log: log}
}

func (h *SessionRevokeHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.SessionRevokePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil || payload.SessionID == "" {
		h.log.ErrorContext(ctx, "session revoke: bad payload", slog.String("task_type", t.Type()), slog.Any("error", err))
		return fmt.Errorf("session revoke payload: %w", asynq.SkipRetry)
	}

	if err := h.revoker.RevokeSession(ctx, payload.SessionID); err != nil {
		h.log.WarnContext(ctx, "session revoke failed", slog.Any("error", err))
		return err
	}

	h.log.DebugContext(ctx, "session revoked")
	return nil
}
