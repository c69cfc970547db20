package main

import (
	"net/http"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"tryonWorker/api/config"
	"tryonWorker/api/handlers"
	"tryonWorker/api/middleware"
	"tryonWorker/api/pose"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.Load()
	logger.Info("size recommendation API starting", zap.String("port", cfg.Port))

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal("invalid redis url", zap.Error(err))
	}
	redisClient := redis.NewClient(opts)

	estimator := pose.NewHolder(func() (pose.Estimator, error) {
		return pose.NewHTTPEstimator(cfg.PoseServiceURL), nil
	})

	handler := handlers.NewEstimateHandler(estimator, redisClient, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /estimate-body", handler.EstimateBody)
	mux.HandleFunc("GET /health", handler.Health)

	chain := middleware.RequestID(
		middleware.Logging(logger)(
			middleware.Recovery(logger)(mux),
		),
	)

	logger.Info("server started", zap.String("address", ":"+cfg.Port))
	if err := http.ListenAndServe(":"+cfg.Port, chain); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}
