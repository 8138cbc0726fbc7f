package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"campusledger/internal/amqp"
	"campusledger/internal/auth"
	"campusledger/internal/config"
	apphttp "campusledger/internal/http"
	"campusledger/internal/log"
	"campusledger/internal/reports"
	"campusledger/internal/services"
	"campusledger/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("failed to initialize storage", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}

	// The audit bus is optional: without it audit events are simply not
	// recorded, ledger operations keep working.
	var bus *amqp.Client
	if cfg.AMQPURL != "" {
		bus, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		logger.Info("audit bus connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("audit bus disabled - no AMQP_URL provided")
	}

	authSvc := auth.NewService(repo)

	var busPublisher services.AuditPublisher
	if bus != nil {
		busPublisher = bus
	}
	ledger := services.NewLedgerService(repo, busPublisher, cfg.Thresholds(), logger)
	defer ledger.Close()

	var exporter *reports.Exporter
	if cfg.GoogleSpreadsheetID != "" {
		exporter, err = reports.NewExporter(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, logger)
		if err != nil {
			logger.Error("failed to initialize sheets exporter", log.FieldError, err)
			os.Exit(1)
		}
		logger.Info("sheets exporter initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("sheets export disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	srv := apphttp.NewServer(apphttp.Options{
		Addr:              ":" + cfg.Port,
		SessionTTL:        cfg.SessionTTL,
		RequestsPerMinute: cfg.RequestsPerMinute,
		Exporter:          exporter,
	}, authSvc, ledger, logger)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting campusledger server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", log.FieldError, err)
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("server error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("server stopped gracefully")
}
