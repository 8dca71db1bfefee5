package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"eventFlow/internal/config"
	"eventFlow/internal/database"
	"eventFlow/internal/mailer"
	"eventFlow/internal/metrics"
	"eventFlow/internal/storage"
	"eventFlow/internal/tasks"
	"eventFlow/internal/worker"
)

func main() {
	cfg := config.MustLoad()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	db, err := database.InitDatabase(cfg.Database)
	if err != nil {
		log.Fatalf("init database: %v", err)
	}
	logger.Info("database connection ready for worker")

	storageClient, err := storage.NewClient(cfg.MinIO)
	if err != nil {
		log.Fatalf("init storage client: %v", err)
	}
	logger.Info("storage client ready", slog.String("bucket", cfg.MinIO.Bucket))

	mailClient, err := mailer.NewClient(cfg.Mail, logger)
	if err != nil {
		log.Fatalf("init mail client: %v", err)
	}

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	redisClient := redis.NewClient(&redis.Options{Addr: redisAddr})
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error("close redis client failed", slog.Any("error", err))
		}
	}()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("ping redis: %v", err)
	}

	server := asynq.NewServer(asynq.RedisClientOpt{Addr: redisAddr}, asynq.Config{
		Concurrency: cfg.Worker.Concurrency,
	})

	confirmationHandler := worker.NewConfirmationTaskHandler(db, mailClient, redisClient, logger, cfg.API.PublicBaseURL)
	campaignHandler := worker.NewCampaignTaskHandler(db, mailClient, redisClient, logger)
	previewHandler := worker.NewPreviewTaskHandler(db, storageClient, redisClient, logger,
		cfg.API.InternalSecret, cfg.Worker.InternalAPIBaseURL)

	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMetricsMiddleware())
	mux.Handle(tasks.TypeEmailConfirmation, confirmationHandler)
	mux.Handle(tasks.TypeEmailCampaign, campaignHandler)
	mux.Handle(tasks.TypePagePreview, previewHandler)

	go func() {
		http.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":9091", nil); err != nil {
			logger.Error("metrics server stopped", slog.Any("error", err))
		}
	}()

	logger.Info("worker service started",
		slog.String("redis_addr", redisAddr), slog.Int("concurrency", cfg.Worker.Concurrency))
	if err := server.Run(mux); err != nil {
		logger.Error("worker server stopped", slog.Any("error", err))
	}
}
