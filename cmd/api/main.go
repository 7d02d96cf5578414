package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"satinel-backend/cmd"
	"satinel-backend/internal/api"
	"satinel-backend/internal/config"
	"satinel-backend/internal/core"
	"satinel-backend/internal/messaging"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func createServer(service *api.SatinelService, port int) *http.Server {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/api", func(r chi.Router) {
		service.AddRoutes(r)
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r,
	}
}

func main() {
	cmd.LoadEnvFile()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("error loading config: %v", err)
	}

	logFile := cmd.InitLogging(cfg)
	defer logFile.Close()

	slog.Info("starting api server", "root", cfg.Root, "port", cfg.Port, "storage", cfg.StorageType, "imagery_source", cfg.DefaultImagerySource)

	ctx := context.Background()

	db := cmd.CreateDatabase(cfg)
	provider := cmd.CreateStorage(ctx, cfg)
	resolver := cmd.CreateResolver(cfg, cmd.CreateAreaRepository(ctx, cfg, db))
	pipeline := cmd.CreatePipeline(cfg, resolver, cmd.CreateImagerySource(cfg, provider), provider)
	batches := cmd.CreateBatchCoordinator(cfg, pipeline)

	// With RABBITMQ_URL set, batch jobs run in cmd/worker. Otherwise they run
	// in this process off the in memory queue.
	var publisher messaging.Publisher
	var worker *core.BatchProcessor
	if cfg.RabbitMQURL != "" {
		rabbit, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
		if err != nil {
			log.Fatalf("failed to connect to rabbitmq: %v", err)
		}
		publisher = rabbit
	} else {
		queue := cmd.CreateInMemoryQueue(db)
		publisher = queue
		worker = core.NewBatchProcessor(db, batches, queue, queue)
	}

	service := api.NewSatinelService(db, resolver, pipeline, batches, publisher, cfg.DefaultImagerySourceMode())
	server := createServer(service, cfg.Port)

	if worker != nil {
		slog.Info("starting in process worker")
		go worker.Start()
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("server forced to shutdown: %v", err)
		}

		if worker != nil {
			slog.Info("shutting down worker")
			worker.Stop()
		} else {
			publisher.Close()
		}
	}()

	slog.Info("server started", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("could not listen on %d: %v", cfg.Port, err)
	}

	slog.Info("server stopped")
}
