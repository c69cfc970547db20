package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tryonWorker/worker/config"
	"tryonWorker/worker/imageprep"
	"tryonWorker/worker/openai"
	"tryonWorker/worker/pool"
	"tryonWorker/worker/queue"
	"tryonWorker/worker/reconciler"
	"tryonWorker/worker/repository"
	"tryonWorker/worker/service"
	"tryonWorker/worker/storage"
)

const shutdownGrace = 30 * time.Second

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()
	logger.Info("worker starting", zap.String("queue", cfg.QueueKey))

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("invalid redis url", zap.Error(err))
	}
	redisClient := redis.NewClient(opts)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		logger.Fatal("redis connection failed", zap.Error(err))
	}
	cancelPing()

	db, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	objectStore, err := storage.NewMinioStore(storage.MinioConfig{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
	})
	if err != nil {
		logger.Fatal("object store init failed", zap.Error(err))
	}

	sessions := repository.NewPostgresStore(db)
	generator := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIMaxRetries, logger)
	preparer := imageprep.NewHTTPPreparer(logger)
	processor := service.NewProcessor(sessions, objectStore, generator, preparer, logger)
	workers := pool.NewWorkerPool(cfg.WorkerCount, cfg.TaskMaxRetries, cfg.OpenAIRatePerMin, processor, logger)
	consumer := queue.NewConsumer(redisClient, cfg.QueueKey, workers, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Resolve sessions orphaned by a previous run before accepting new work.
	reconciler.New(sessions, logger).Run(ctx)

	consumer.Run(ctx)

	// New pops have ceased; give in-flight tasks a bounded chance to finish.
	logger.Info("waiting for in-flight tasks")
	done := make(chan struct{})
	go func() {
		workers.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("worker stopped")
	case <-time.After(shutdownGrace):
		logger.Warn("shutdown grace elapsed, abandoning in-flight tasks")
		os.Exit(1)
	}
}
