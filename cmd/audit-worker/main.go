package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"campusledger/internal/amqp"
	"campusledger/internal/config"
	"campusledger/internal/log"
	"campusledger/internal/storage"
	"campusledger/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentWorker)
	log.SetDefault(logger)

	logger.Info("starting audit-worker")

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("audit-worker requires AMQP_URL")
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to initialize storage", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	auditWorker := worker.NewAuditWorker(repo, logger)
	if err := auditWorker.Run(ctx, client); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("audit consumption failed", log.FieldError, err)
		os.Exit(1)
	}

	logger.Info("audit-worker stopped gracefully")
}
