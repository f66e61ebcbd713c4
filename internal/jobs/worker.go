package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const workerShutdownTimeout = 8 * time.Second

// Worker provides APIs to register handlers and control the background worker lifecycle.
type Worker interface {
	RegisterHandler(taskType string, handler asynq.Handler)
	// Start begins processing in the background. It does not install signal
	// handlers; call Shutdown from the application's shutdown sequence.
	Start() error
	Shutdown()
}

type worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *slog.Logger
}

var _ Worker = (*worker)(nil)

// NewWorker constructs a Worker backed by an asynq.Server instance.
// concurrency below one falls back to five.
func NewWorker(redisOpt asynq.RedisConnOpt, queues map[string]int, concurrency int, log *slog.Logger) Worker {
	if log == nil {
		log = slog.Default()
	}
	if concurrency <= 0 {
		concurrency = 5
	}
	log = log.With(slog.String("component", "jobs"))

	server := asynq.NewServer(redisOpt, asynq.Config{
		Queues:          queues,
		Concurrency:     concurrency,
		RetryDelayFunc:  asynq.DefaultRetryDelayFunc,
		ShutdownTimeout: workerShutdownTimeout,
		LogLevel:        asynq.WarnLevel,
		ErrorHandler:    asynq.ErrorHandlerFunc(failureLogger(log)),
	})

	mux := asynq.NewServeMux()
	mux.Use(timing(log))

	return &worker{
		server: server,
		mux:    mux,
		log:    log,
	}
}

// RegisterHandler wires a task type to the provided handler.
func (w *worker) RegisterHandler(taskType string, handler asynq.Handler) {
	w.mux.Handle(taskType, handler)
}

func (w *worker) Start() error {
	w.log.Info("jobs worker starting")
	return w.server.Start(w.mux)
}

// Shutdown waits up to workerShutdownTimeout for running tasks; unfinished
// ones go back to the queue.
func (w *worker) Shutdown() {
	w.log.Info("jobs worker shutting down")
	w.server.Shutdown()
}

func failureLogger(log *slog.Logger) func(ctx context.Context, task *asynq.Task, err error) {
	return func(ctx context.Context, task *asynq.Task, err error) {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)

		level := slog.LevelWarn
		if retried >= maxRetry {
			level = slog.LevelError
		}
		log.Log(ctx, level, "task failed",
			slog.String("type", task.Type()),
			slog.Int("retried", retried),
			slog.Int("max_retry", maxRetry),
			slog.Any("error", err),
		)
	}
}

func timing(log *slog.Logger) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			start := time.Now()
			err := next.ProcessTask(ctx, task)

			id, _ := asynq.GetTaskID(ctx)
			log.Debug("task processed",
				slog.String("type", task.Type()),
				slog.String("task_id", id),
				slog.Duration("elapsed", time.Since(start)),
				slog.Bool("ok", err == nil),
			)
			return err
		})
	}
}
