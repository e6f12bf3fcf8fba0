package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"sellhub/storage/internal/cache"
	"sellhub/storage/internal/config"
	"sellhub/storage/internal/database"
	"sellhub/storage/internal/handlers"
	"sellhub/storage/internal/jobs"
	"sellhub/storage/internal/log"
	"sellhub/storage/internal/server"
	"sellhub/storage/internal/service"
	"sellhub/storage/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx := context.Background()

	dbPool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	if err := database.Migrate(ctx, dbPool); err != nil {
		logger.Fatal().Err(err).Msg("schema migration failed")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	ephemeral, err := storage.NewEphemeral(cfg.Ephemeral)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init ephemeral tier")
	}

	warm, err := storage.NewWarm(cfg.Warm)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init warm tier")
	}
	if err := warm.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure warm bucket failed")
	}

	cold, err := storage.NewCold(ctx, cfg.Cold)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init cold tier")
	}

	backends := service.Backends{
		Ephemeral: ephemeral,
		Warm:      warm,
		Cold:      cold,
	}

	handlerSet := handlers.NewHandlerSet(logger, dbPool, redisClient, backends, cfg)
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(handlerSet.Lifecycle(), cfg.Lifecycle.Schedule, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, dbPool, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("forced shutdown failed")
		}
	}

	if scheduler != nil {
		scheduler.Stop()
	}

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
