package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/psmithccld/Essayons-change-sub001/internal/app"
	"github.com/psmithccld/Essayons-change-sub001/internal/auth"
	"github.com/psmithccld/Essayons-change-sub001/internal/groups"
	"github.com/psmithccld/Essayons-change-sub001/internal/permissions"
	"github.com/psmithccld/Essayons-change-sub001/internal/platform/cache"
	"github.com/psmithccld/Essayons-change-sub001/internal/platform/db"
	"github.com/psmithccld/Essayons-change-sub001/internal/roles"
	"github.com/psmithccld/Essayons-change-sub001/internal/shared"
	"github.com/psmithccld/Essayons-change-sub001/internal/users"
	"github.com/psmithccld/Essayons-change-sub001/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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

	sessionManager := shared.NewSessionManager(redisClient, "essayons_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	permRepo := permissions.NewRepository(dbpool)
	resolver := &permissions.Resolver{
		Roles:       permRepo,
		Groups:      permRepo,
		Overrides:   permRepo,
		Logger:      logger,
		StrictNames: !cfg.IsProduction(),
	}

	var checker permissions.Checker = resolver
	var invalidator permissions.Invalidator = permissions.NoopInvalidator{}
	if cfg.PermissionCacheTTL > 0 {
		cache := permissions.NewResolutionCache(redisClient, cfg.PermissionCacheTTL, logger)
		checker = permissions.NewCachedResolver(resolver, cache)
		invalidator = cache
	}

	permService := permissions.NewService(permRepo, invalidator, logger)
	guard := permissions.Middleware{Resolver: checker, Logger: logger}
	permHandler := permissions.NewHandler(logger, permService, checker, guard)

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo, invalidator, logger)
	usersHandler := users.NewHandler(logger, usersService, guard)

	rolesHandler := roles.NewHandler(logger, permService, guard)
	groupsHandler := groups.NewHandler(logger, permService, guard)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		SessionManager:     sessionManager,
		CSRFManager:        csrfManager,
		Accounts:           usersRepo,
		AuthHandler:        authHandler,
		UsersHandler:       usersHandler,
		RolesHandler:       rolesHandler,
		GroupsHandler:      groupsHandler,
		PermissionsHandler: permHandler,
		JobHandler:         jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
