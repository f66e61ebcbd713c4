package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Manager describes the minimal queue operations needed by the application.
type Manager interface {
	// Enqueue schedules task. A task whose id is already queued is treated as
	// enqueued and returns a nil TaskInfo.
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	Close() error
}

type manager struct {
	client *asynq.Client
	log    *slog.Logger
}

// NewManager builds a Manager backed by an asynq client.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		client: asynq.NewClient(redisOpt),
		log:    log.With(slog.String("component", "jobs")),
	}
}

func (m *manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := m.client.EnqueueContext(ctx, task, opts...)
	if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
		m.log.DebugContext(ctx, "task already queued", slog.String("type", task.Type()))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	m.log.DebugContext(ctx, "task enqueued",
		slog.String("type", info.Type),
		slog.String("task_id", info.ID),
		slog.String("queue", info.Queue),
	)
	return info, nil
}

func (m *manager) Close() error {
	return m.client.Close()
}
