package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"satinel-backend/cmd"
	"satinel-backend/internal/config"
	"satinel-backend/internal/core"
	"satinel-backend/internal/messaging"
)

func main() {
	cmd.LoadEnvFile()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}
	if cfg.RabbitMQURL == "" {
		log.Fatalf("RABBITMQ_URL must be set for the standalone worker")
	}

	logFile := cmd.InitLogging(cfg)
	defer logFile.Close()

	ctx := context.Background()

	db := cmd.CreateDatabase(cfg)
	provider := cmd.CreateStorage(ctx, cfg)
	resolver := cmd.CreateResolver(cfg, cmd.CreateAreaRepository(ctx, cfg, db))
	pipeline := cmd.CreatePipeline(cfg, resolver, cmd.CreateImagerySource(cfg, provider), provider)

	publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}

	receiver, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("failed to start rabbitmq consumer: %v", err)
	}

	worker := core.NewBatchProcessor(db, cmd.CreateBatchCoordinator(cfg, pipeline), publisher, receiver)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutdown signal received, stopping worker")
		worker.Stop()
		os.Exit(0)
	}()

	slog.Info("worker started, waiting for batch tasks", "queue", messaging.BatchQueue, "concurrency", cfg.BatchConcurrency)
	worker.Start()
}
