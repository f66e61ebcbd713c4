package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TaskTypeSessionSweep  = "session:sweep"
	TaskTypeSessionRevoke = "session:revoke"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

// Queues is the priority map handed to the worker.
var Queues = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
	QueueLow:      1,
}

const (
	// DefaultSweepBatch caps the sessions revoked by one sweep run.
	DefaultSweepBatch = 200

	revokeMaxRetry = 5
)

type SessionSweepPayload struct {
	MaxIdle time.Duration `json:"max_idle"`
	Batch   int           `json:"batch"`
}

type SessionRevokePayload struct {
	SessionID string `json:"session_id"`
}

func NewSessionSweepTask(maxIdle time.Duration, batch int) (*asynq.Task, error) {
	if maxIdle <= 0 {
		return nil, errors.New("session sweep needs a positive idle period")
	}
	if batch <= 0 {
		batch = DefaultSweepBatch
	}

	payload, err := json.Marshal(SessionSweepPayload{MaxIdle: maxIdle, Batch: batch})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeSessionSweep, payload, asynq.Queue(QueueLow), asynq.MaxRetry(1)), nil
}

// NewSessionRevokeTask revokes one identity session. Revocation is retried
// because a session left active after logout is still a valid credential.
func NewSessionRevokeTask(sessionID string) (*asynq.Task, error) {
	if sessionID == "" {
		return nil, errors.New("session id is empty")
	}

	payload, err := json.Marshal(SessionRevokePayload{SessionID: sessionID})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeSessionRevoke, payload,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(revokeMaxRetry),
		asynq.TaskID("revoke:"+sessionID),
	), nil
}

// RevokeLater returns a revocation func that enqueues the work instead of
// calling the identity provider inline.
func RevokeLater(m Manager) func(ctx context.Context, sessionID string) error {
	return func(ctx context.Context, sessionID string) error {
		task, err := NewSessionRevokeTask(sessionID)
		if err != nil {
			return err
		}
		if _, err := m.Enqueue(ctx, task); err != nil {
			return fmt.Errorf("enqueue session revoke: %w", err)
		}
		return nil
	}
}
