package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/clauseguard/clauseguard/internal/config"
	"github.com/clauseguard/clauseguard/internal/database"
	"github.com/clauseguard/clauseguard/internal/llm"
	"github.com/clauseguard/clauseguard/internal/logging"
	"github.com/clauseguard/clauseguard/internal/queue"
	"github.com/clauseguard/clauseguard/internal/repository"
	"github.com/clauseguard/clauseguard/internal/s3storage"
	"github.com/clauseguard/clauseguard/internal/worker"
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

	store, err := s3storage.New(cfg)
	if err != nil {
		logger.Fatal("init storage", zap.Error(err))
	}
	if err := store.EnsureBucket(ctx); err != nil {
		logger.Fatal("ensure bucket", zap.Error(err))
	}

	completer := llm.New(llm.Config{
		Endpoint:   cfg.LLMEndpoint,
		APIKey:     cfg.LLMAPIKey,
		Model:      cfg.LLMModel,
		MaxRetries: cfg.LLMMaxRetries,
		RetryDelay: cfg.LLMRetryDelay,
	}, logger)

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.WorkerConcurrency,
		Queues: map[string]int{
			queue.QueueAnalysis:   3,
			queue.QueueGeneration: 2,
		},
		RetryDelayFunc: queue.ExponentialBackoff(cfg.QueueBackoffBase),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			logger.Error("task failed", zap.String("type", task.Type()), zap.Error(err))
		}),
	})
	processor := worker.NewProcessor(analyses, generations, store, completer, logger)
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	logger.Info("worker starting", zap.Int("concurrency", cfg.WorkerConcurrency))
	if err := server.Run(mux); err != nil {
		logger.Error("worker stopped", zap.Error(err))
		os.Exit(1)
	}
}
