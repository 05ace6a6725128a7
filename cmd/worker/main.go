package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/psmithccld/Essayons-change-sub001/internal/app"
	"github.com/psmithccld/Essayons-change-sub001/internal/permissions"
	"github.com/psmithccld/Essayons-change-sub001/internal/platform/cache"
	"github.com/psmithccld/Essayons-change-sub001/internal/platform/db"
	"github.com/psmithccld/Essayons-change-sub001/internal/users"
	"github.com/psmithccld/Essayons-change-sub001/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	if !cfg.WorkerEnabled {
		logger.Info("worker disabled by configuration")
		return
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	permRepo := permissions.NewRepository(pool)
	resolver := &permissions.Resolver{
		Roles:     permRepo,
		Groups:    permRepo,
		Overrides: permRepo,
		Logger:    logger,
	}

	var checker permissions.Checker = resolver
	var invalidator permissions.Invalidator = permissions.NoopInvalidator{}
	if cfg.PermissionCacheTTL > 0 {
		cache := permissions.NewResolutionCache(redisClient, cfg.PermissionCacheTTL, logger)
		checker = permissions.NewCachedResolver(resolver, cache)
		invalidator = cache
	}

	usersRepo := users.NewRepository(pool)
	sweepJob := jobs.NewLicenseSweepJob(usersRepo, invalidator, logger)
	warmupJob := jobs.NewPermissionsWarmupJob(usersRepo, checker, logger)

	sweepTask, err := jobs.NewLicenseSweepTask(jobs.LicenseSweepPayload{})
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}

	cron := []jobs.CronRegistration{
		{Spec: cfg.LicenseSweepCron, Task: sweepTask, Options: []asynq.Option{asynq.MaxRetry(3)}},
	}
	if cfg.PermissionCacheTTL > 0 {
		warmupTask, err := jobs.NewPermissionsWarmupTask(jobs.PermissionsWarmupPayload{Scope: "active"})
		if err != nil {
			logger.Error("build warmup task", slog.Any("error", err))
			os.Exit(1)
		}
		cron = append(cron, jobs.CronRegistration{Spec: "15 1 * * *", Task: warmupTask, Options: []asynq.Option{asynq.MaxRetry(3)}})
	}

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers: []jobs.TaskHandler{
			{Type: jobs.TaskLicenseSweep, Handler: sweepJob.Handle},
			{Type: jobs.TaskPermissionsWarmup, Handler: warmupJob.Handle},
		},
		Cron: cron,
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	if err := worker.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
