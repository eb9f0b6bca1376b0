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
	"github.com/redis/go-redis/v9"

	"github.com/playbookhq/playbooks/internal/app"
	"github.com/playbookhq/playbooks/internal/observability"
	"github.com/playbookhq/playbooks/internal/permissions"
	"github.com/playbookhq/playbooks/internal/platform/cache"
	"github.com/playbookhq/playbooks/internal/platform/db"
	"github.com/playbookhq/playbooks/internal/playbooks"
	"github.com/playbookhq/playbooks/internal/roles"
	"github.com/playbookhq/playbooks/internal/runs"
	"github.com/playbookhq/playbooks/internal/shared"
	"github.com/playbookhq/playbooks/internal/teams"
	"github.com/playbookhq/playbooks/internal/timeline"
	"github.com/playbookhq/playbooks/internal/users"
	"github.com/playbookhq/playbooks/jobs"
)

const enqueueTimeout = 2 * time.Second

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

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	// Without Redis the service still answers; role caching stays
	// process-local and filter state is not persisted.
	var redisClient *redis.Client
	if client, err := cache.New(ctx, cfg.RedisAddr); err != nil {
		logger.Warn("redis unavailable", slog.Any("error", err))
	} else {
		redisClient = client
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	domainMetrics := observability.NewDomainMetrics(metrics.Registerer())

	var jobClient *jobs.Client
	var jobHandler *jobs.Handler
	if redisClient != nil {
		redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
		jobClient, err = jobs.NewClient(redisOpts)
		if err != nil {
			logger.Error("init job client", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
		inspector := asynq.NewInspector(redisOpts)
		defer func() {
			if err := inspector.Close(); err != nil {
				logger.Warn("inspector close", slog.Any("error", err))
			}
		}()
		jobHandler = jobs.NewHandler(inspector, logger)
	} else {
		jobHandler = jobs.NewHandler(nil, logger)
	}

	roleStore := roles.NewStore(roles.StoreConfig{
		Source:      roles.NewRepository(dbpool),
		Cache:       roles.NewCache(redisClient, cfg.RoleCacheTTL),
		Metrics:     domainMetrics,
		Logger:      logger,
		LoadTimeout: cfg.RoleLoadTimeout,
		OnMiss: func(names []string) {
			enqueueCtx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
			defer cancel()
			if err := jobClient.EnqueueRoleWarm(enqueueCtx, names); err != nil {
				logger.Warn("enqueue role warm", slog.Any("roles", names), slog.Any("error", err))
			}
		},
	})
	if err := roleStore.Listen(ctx); err != nil {
		logger.Warn("role invalidation listener", slog.Any("error", err))
	}

	userStore := users.NewStore(users.NewRepository(dbpool), logger, cfg.UserFetchTimeout, cfg.UserCacheTTL)
	memberStore := teams.NewStore(teams.NewRepository(dbpool), cfg.TeamMemberTTL)

	resolver := permissions.NewResolver(roleStore, permissions.TeamRoles{
		Roles:   roleStore,
		Users:   userStore,
		Members: memberStore,
	}, domainMetrics)

	playbookService := playbooks.NewService(playbooks.ServiceConfig{
		Source:   playbooks.NewRepository(dbpool),
		Resolver: resolver,
		Users:    userStore,
		Members:  memberStore,
		Roles:    roleStore,
		Logger:   logger,
	})

	runService := runs.NewService(runs.ServiceConfig{
		Source: runs.NewRepository(dbpool),
		Assembler: timeline.NewAssembler(timeline.Config{
			Users:       userStore,
			Logger:      logger,
			Metrics:     domainMetrics,
			Concurrency: cfg.EnrichConcurrency,
		}),
		Authorizer:  playbookService,
		Preferences: userStore,
		Filters:     shared.NewViewStateStore(redisClient, "playbooks:viewstate", cfg.FilterStateTTL),
		Logger:      logger,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		PlaybooksHandler: playbooks.NewHandler(logger, playbookService),
		RunsHandler:      runs.NewHandler(logger, runService),
		JobHandler:       jobHandler,
		Metrics:          metrics,
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
	roleStore.Wait()
}
