package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	_ "github.com/lib/pq"

	"github.com/Proton-105/oasis-bot/internal/bot"
	"github.com/Proton-105/oasis-bot/internal/catalog"
	"github.com/Proton-105/oasis-bot/internal/database"
	"github.com/Proton-105/oasis-bot/internal/health"
	"github.com/Proton-105/oasis-bot/internal/i18n"
	"github.com/Proton-105/oasis-bot/internal/idempotency"
	"github.com/Proton-105/oasis-bot/internal/identity"
	"github.com/Proton-105/oasis-bot/internal/jobs"
	jobhandlers "github.com/Proton-105/oasis-bot/internal/jobs/handlers"
	"github.com/Proton-105/oasis-bot/internal/lifecycle"
	"github.com/Proton-105/oasis-bot/internal/listings"
	"github.com/Proton-105/oasis-bot/internal/middleware"
	"github.com/Proton-105/oasis-bot/internal/payments"
	"github.com/Proton-105/oasis-bot/internal/purchase"
	"github.com/Proton-105/oasis-bot/internal/ratelimit"
	"github.com/Proton-105/oasis-bot/internal/repository"
	"github.com/Proton-105/oasis-bot/internal/restclient"
	"github.com/Proton-105/oasis-bot/internal/sellers"
	"github.com/Proton-105/oasis-bot/internal/state"
	"github.com/Proton-105/oasis-bot/internal/user"
	"github.com/Proton-105/oasis-bot/internal/usercache"
	"github.com/Proton-105/oasis-bot/internal/users"
	"github.com/Proton-105/oasis-bot/internal/wallet"
	"github.com/Proton-105/oasis-bot/migrations"
	"github.com/Proton-105/oasis-bot/pkg/config"
	"github.com/Proton-105/oasis-bot/pkg/graceful"
	"github.com/Proton-105/oasis-bot/pkg/logger"
	"github.com/Proton-105/oasis-bot/pkg/metrics"
	appredis "github.com/Proton-105/oasis-bot/pkg/redis"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, v, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.AppEnv,
			Release:          cfg.Sentry.Release,
			TracesSampleRate: cfg.Sentry.TracesSampleRate,
		}); err != nil {
			slog.Error("failed to init sentry", slog.Any("error", err))
			cfg.Sentry.Enabled = false
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)
	config.OnLogLevelChange(v, func(level string) {
		logger.SetLevel(level)
		log.Info("log level changed", slog.String("level", level))
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Error("oasis bot stopped with error", slog.Any("error", err))
		sentry.Flush(2 * time.Second)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	log.Info("starting oasis bot",
		slog.String("mode", cfg.Bot.Mode),
		slog.String("http_port", cfg.Server.Port),
		slog.String("log_level", cfg.Logger.Level),
	)

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return err
	}
	if cfg.Database.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	}
	if cfg.Database.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return err
	}

	applied, err := database.NewMigrator(db, log).Apply(ctx, migrations.FS)
	if err != nil {
		_ = db.Close()
		return err
	}
	log.Info("database migrations applied", slog.Int("count", len(applied)))

	redisClient, err := appredis.New(ctx, cfg.Redis)
	if err != nil {
		_ = db.Close()
		return err
	}
	rdb := redisClient.Client
	kv := appredis.NewMetricsClient(redisClient)

	// Upstream services.
	identityClient := identity.NewClient(
		restclient.New("identity", config.ServiceEndpoint{BaseURL: cfg.Clerk.BaseURL, Timeout: cfg.Clerk.Timeout}, log),
		cfg.Clerk.SecretKey,
	)
	usersClient := users.New(restclient.New("user", cfg.Services.UserAPI, log))
	listingsClient := listings.New(restclient.New("listing", cfg.Services.PostAPI, log))
	paymentsClient := payments.New(restclient.New("payment", cfg.Services.PaymentAPI, log))

	accounts := repository.NewAccountRepository(db, log)
	userSvc := user.NewService(accounts, usercache.NewCache(kv, 0), identityClient, usersClient, cfg.Clerk.TokenTemplate, log)

	bridges := wallet.NewBridges(cfg.Services.WalletTimeout, log, wallet.AllowPrivateNetworks(cfg.Services.WalletAllowPrivate))
	userSvc.SetBridgeCheck(bridges.CheckURL)

	resolver := sellers.NewResolver(usersClient, identityClient, log)
	catalogSvc := catalog.NewService(listingsClient, usersClient, identityClient, resolver, log)

	purchase.RegisterTransitionRecorder(metrics.RecordPurchaseTransition)
	flow := purchase.NewFlow(usersClient, paymentsClient, listingsClient, log,
		purchase.WithPollInterval(cfg.Purchase.PollInterval),
		purchase.WithPollAttempts(cfg.Purchase.MaxPollAttempts),
		purchase.WithPollObserver(metrics.RecordConfirmPolls),
	)

	translations, err := i18n.Load("en")
	if err != nil {
		return err
	}

	storage := state.NewRedisStorage(rdb, log, state.DefaultTTL)
	fsm := state.NewStateMachine(storage, log, rdb)
	drafts := repository.NewDraftRepository(kv, 0)

	deps := bot.Deps{
		FSM:          fsm,
		Idempotency:  idempotency.NewManager(idempotency.NewRedisStore(rdb, log), log),
		Accounts:     userSvc,
		Profiles:     usersClient,
		Catalog:      catalogSvc,
		Listings:     listingsClient,
		Drafts:       drafts,
		Purchases:    flow,
		Wallets:      bridges,
		Translations: translations,
	}

	var memoryLimiter *ratelimit.MemoryLimiter
	if cfg.RateLimit.Enabled {
		rules, err := ratelimit.NewRules(cfg.RateLimit)
		if err != nil {
			return err
		}
		memoryLimiter = ratelimit.NewMemoryLimiter()
		limiter := ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(rdb, log), memoryLimiter, log)
		deps.RateLimit = middleware.NewRateLimitMiddleware(limiter, rules, log)
	}

	b, err := bot.New(*cfg, log, deps)
	if err != nil {
		return err
	}

	checker := health.NewChecker(log, 3*time.Second)
	checker.AddCheck("postgres", health.NewDBChecker(db))
	checker.AddCheck("redis", health.NewPingChecker(redisClient))
	checker.AddCheck("telegram", health.NewPingChecker(b))
	checker.AddOptionalCheck("user_api", health.NewPingChecker(usersClient))
	checker.AddOptionalCheck("post_api", health.NewPingChecker(listingsClient))
	checker.AddOptionalCheck("payment_api", health.NewPingChecker(paymentsClient))

	probes := lifecycle.NewProbes(log, checker)
	shutdown := lifecycle.NewShutdown(log, probes)

	opsServer := graceful.NewServer(log, cfg.Server.Port,
		health.NewRouter(log, checker, probes, middleware.RequestLogger(log)),
		cfg.Server.ShutdownTimeout,
	)

	bgCtx, stopBackground := context.WithCancel(context.Background())

	go metrics.NewStateCollector(fsm, 15*time.Second).Run(bgCtx)
	go state.NewCleaner(rdb, storage, log, state.DefaultTTL, time.Minute, func(ctx context.Context, userID int64, last state.State) {
		if err := drafts.Delete(ctx, userID); err != nil {
			log.Warn("failed to drop expired draft", slog.Int64("user_id", userID), slog.Any("error", err))
		}
	}).Run(bgCtx)
	if memoryLimiter != nil {
		go ratelimit.NewCleaner(memoryLimiter, log, cfg.RateLimit.CleanupInterval, 0).Run(bgCtx)
	}

	if cfg.Jobs.Enabled {
		redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}

		manager := jobs.NewManager(redisOpt, log)
		userSvc.SetRevoker(jobs.RevokeLater(manager))

		worker := jobs.NewWorker(redisOpt, jobs.Queues, cfg.Jobs.WorkerConcurrency, log)
		worker.RegisterHandler(jobs.TaskTypeSessionSweep, jobhandlers.NewSessionSweepHandler(userSvc, log))
		worker.RegisterHandler(jobs.TaskTypeSessionRevoke, jobhandlers.NewSessionRevokeHandler(identityClient, log))

		scheduler := jobs.NewScheduler(redisOpt, cfg.Jobs, log)
		if err := scheduler.RegisterTasks(); err != nil {
			stopBackground()
			return err
		}

		if err := worker.Start(); err != nil {
			stopBackground()
			return err
		}
		if err := scheduler.Start(); err != nil {
			worker.Shutdown()
			stopBackground()
			return err
		}

		shutdown.Register(lifecycle.PhaseWorkers, "jobs", func(context.Context) error {
			scheduler.Shutdown()
			worker.Shutdown()
			return manager.Close()
		})
	}

	shutdown.Register(lifecycle.PhaseIntake, "telegram", func(context.Context) error {
		b.Stop()
		return nil
	})
	shutdown.Register(lifecycle.PhaseIntake, "http", opsServer.Shutdown)
	shutdown.Register(lifecycle.PhaseWorkers, "background", func(context.Context) error {
		stopBackground()
		return nil
	})
	shutdown.Register(lifecycle.PhaseStorage, "redis", func(context.Context) error {
		return redisClient.Close()
	})
	shutdown.Register(lifecycle.PhaseStorage, "postgres", func(context.Context) error {
		return db.Close()
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- opsServer.ListenAndServe(context.Background())
	}()
	go b.Start()

	log.Info("oasis bot started")

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			runErr = err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout+5*time.Second)
	defer cancel()

	if err := shutdown.Execute(shutdownCtx); err != nil {
		runErr = errors.Join(runErr, err)
	}

	log.Info("oasis bot stopped")
	return runErr
}
