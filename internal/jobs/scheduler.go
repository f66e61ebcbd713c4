package jobs

import (
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Proton-105/oasis-bot/pkg/config"
)

// Scheduler enqueues the periodic jobs.
type Scheduler interface {
	RegisterTasks() error
	Start() error
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	cfg            config.JobsConfig
	log            *slog.Logger
}

// NewScheduler builds a cron scheduler evaluated in UTC.
func NewScheduler(redisOpt asynq.RedisConnOpt, cfg config.JobsConfig, log *slog.Logger) Scheduler {
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "scheduler"))

	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{
			Location: time.UTC,
			LogLevel: asynq.WarnLevel,
			PostEnqueueFunc: func(info *asynq.TaskInfo, err error) {
				if err != nil {
					log.Error("scheduled enqueue failed", slog.Any("error", err))
					return
				}
				log.Debug("scheduled task enqueued", slog.String("type", info.Type), slog.String("task_id", info.ID))
			},
		}),
		cfg: cfg,
		log: log,
	}
}

func (s *scheduler) RegisterTasks() error {
	task, err := NewSessionSweepTask(s.cfg.SessionMaxIdle, DefaultSweepBatch)
	if err != nil {
		return err
	}

	if _, err := s.asynqScheduler.Register(s.cfg.SessionSweepCron, task); err != nil {
		return err
	}

	s.log.Info("registered session sweep",
		slog.String("cron", s.cfg.SessionSweepCron),
		slog.Duration("max_idle", s.cfg.SessionMaxIdle),
	)

	return nil
}

// Start runs the cron loop in the background. Like Worker.Start it leaves
// signal handling to the caller.
func (s *scheduler) Start() error {
	s.log.Info("scheduler starting")
	return s.asynqScheduler.Start()
}

func (s *scheduler) Shutdown() {
	s.log.Info("scheduler shutting down")
	s.asynqScheduler.Shutdown()
}
