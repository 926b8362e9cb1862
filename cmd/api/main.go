package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/clauseguard/clauseguard/internal/api"
	"github.com/clauseguard/clauseguard/internal/config"
	"github.com/clauseguard/clauseguard/internal/database"
	"github.com/clauseguard/clauseguard/internal/janitor"
	"github.com/clauseguard/clauseguard/internal/logging"
	"github.com/clauseguard/clauseguard/internal/queue"
	"github.com/clauseguard/clauseguard/internal/repository"
	"github.com/clauseguard/clauseguard/internal/s3storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := logging.Init(cfg.LogLevel)
	defer logger.Sync()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("connect database", zap.Error(err))
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal("ensure schema", zap.Error(err))
	}
	analyses := repository.NewAnalysisRepository(pool)
	generations := repository.NewGenerationRepository(pool)
	usage := repository.NewUsageRepository(pool)

	store, err := s3storage.New(cfg)
	if err != nil {
		logger.Fatal("init storage", zap.Error(err))
	}
	if err := store.EnsureBucket(ctx); err != nil {
		logger.Fatal("ensure bucket", zap.Error(err))
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer asynqClient.Close()
	enqueuer := queue.NewClient(asynqClient, queue.Policy{
		MaxAttempts: cfg.QueueMaxAttempts,
		Timeout:     cfg.JobTimeout,
	})

	sweeper := janitor.New(store, cfg.CleanupInterval, cfg.UploadRetention, logger)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	srv := api.New(cfg, analyses, generations, usage, store, enqueuer, logger)
	if err := srv.Run(ctx); err != nil {
		logger.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}
