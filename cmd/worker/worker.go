package main

import (
	"context"
	"log"

	"lab-dashboard/internal/app"
	"lab-dashboard/internal/config"
	"lab-dashboard/internal/logger"
	"lab-dashboard/internal/queue"
	"lab-dashboard/internal/telemetry"

	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	metrics, err := telemetry.InitMetrics()
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}

	// Vectorization runs inline here, so the worker never enqueues
	a, err := app.New(cfg, app.Options{Metrics: metrics})
	if err != nil {
		log.Fatal("Failed to initialize services:", err)
	}
	defer a.Close()

	if a.Redis == nil {
		log.Fatal("The worker needs Redis; check REDIS_ENABLED and REDIS_URL")
	}

	redisOpt, err := queue.RedisConnOpt(cfg)
	if err != nil {
		log.Fatal("Invalid Redis settings:", err)
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 4, // embedding calls are rate limited upstream
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error("Task failed", "type", task.Type(), "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(a.Documents)
	mux := asynq.NewServeMux()
	processor.Register(mux)

	logger.Info("Starting Asynq worker", "concurrency", 4, "queues", "critical(6), default(3), low(1)")

	if err := server.Run(mux); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
