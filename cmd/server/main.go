package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/Priya8975/leadgateway/internal/api"
	"github.com/Priya8975/leadgateway/internal/config"
	"github.com/Priya8975/leadgateway/internal/delivery"
	"github.com/Priya8975/leadgateway/internal/ingest"
	"github.com/Priya8975/leadgateway/internal/mapper"
	"github.com/Priya8975/leadgateway/internal/normalizer"
	"github.com/Priya8975/leadgateway/internal/processor"
	"github.com/Priya8975/leadgateway/internal/queue"
	"github.com/Priya8975/leadgateway/internal/queue/pgqueue"
	"github.com/Priya8975/leadgateway/internal/queue/redisqueue"
	"github.com/Priya8975/leadgateway/internal/store"
	"github.com/Priya8975/leadgateway/internal/sweeper"
	"github.com/Priya8975/leadgateway/internal/validator"
	ws "github.com/Priya8975/leadgateway/internal/websocket"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()
	logger.Info("connected to PostgreSQL")

	if err := pgStore.RunMigrations(ctx, "migrations", logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("database migrations applied")

	redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisStore.Close()
	logger.Info("connected to Redis")

	var jobQueue queue.Queue
	switch cfg.QueueTransport {
	case "redis":
		jobQueue = redisqueue.New(redisStore.Client())
	default:
		jobQueue = pgqueue.New(pgStore.Pool())
	}
	logger.Info("queue transport selected", "transport", cfg.QueueTransport)

	zipPattern, err := regexp.Compile(cfg.ZipPattern)
	if err != nil {
		logger.Error("invalid zip pattern", "error", err)
		os.Exit(1)
	}

	attributeDefs, err := config.LoadAttributeDefs(cfg.AttributeDefsPath)
	if err != nil {
		logger.Error("failed to load attribute definitions", "error", err)
		os.Exit(1)
	}

	v := validator.New(validator.Config{
		ZipField:               cfg.ZipField,
		ZipPattern:             zipPattern,
		ZipRejectCode:          cfg.ZipRejectCode,
		OwnerField:             cfg.OwnerField,
		NotOwnerRejectCode:     cfg.NotOwnerRejectCode,
		RequiredFields:         cfg.RequiredFields,
		MissingFieldRejectCode: cfg.MissingFieldRejectCode,
	})

	n := normalizer.New(normalizer.Config{
		EmailKeys: cfg.EmailKeys,
		PhoneKeys: cfg.PhoneKeys,
	})

	m := mapper.New(mapper.Config{
		PhoneField:    cfg.PhoneField,
		ProductName:   cfg.ProductName,
		AttributeDefs: attributeDefs,
	})

	client := delivery.New(delivery.Config{
		EndpointURL: cfg.DownstreamURL,
		BearerToken: cfg.DownstreamBearerToken,
		Timeout:     cfg.DownstreamTimeout,
	})

	breaker := delivery.NewCircuitBreaker(redisStore.Client(), logger, cfg.CircuitBreakerFailureThreshold, cfg.CircuitBreakerCooldown)

	hub := ws.NewHub(logger)
	go hub.Run()

	proc := processor.New(processor.Config{
		Validator:  v,
		Normalizer: n,
		Mapper:     m,
		Client:     client,
		Breaker:    breaker,
		Store:      pgStore,
		Queue:      jobQueue,
		Backoff:    processor.BackoffSchedule{Base: cfg.BackoffBase, MaxAttempts: cfg.MaxAttempts},
		Notifier:   hub,
		Logger:     logger,
	})

	pool := processor.NewPool(cfg.NumWorkers, proc, logger)
	pool.Start(ctx)

	dispatcher := processor.NewDispatcher(jobQueue, pool, logger, cfg.PollInterval)
	go dispatcher.Start(ctx)

	orphanSweeper := sweeper.New(pgStore, jobQueue, logger, cfg.SweepInterval, cfg.OrphanSweepAge)
	go orphanSweeper.Run(ctx)

	ingestHandler := ingest.NewHandler(pgStore, jobQueue, logger, ingest.AuthConfig{
		Enabled:      cfg.AuthEnabled,
		HeaderName:   cfg.AuthHeaderName,
		SharedSecret: cfg.AuthSharedSecret,
	})
	healthDeps := map[string]api.HealthChecker{
		"postgres": pgStore,
		"redis":    redisStore,
		"queue":    jobQueue,
	}
	router := api.NewRouter(pgStore, ingestHandler, breaker, hub, nil, healthDeps)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancel()
	pool.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
