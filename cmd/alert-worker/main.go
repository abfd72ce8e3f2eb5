package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"budgetwatch/internal/amqp"
	"budgetwatch/internal/config"
	"budgetwatch/internal/log"
	"budgetwatch/internal/notify"
	"budgetwatch/internal/notify/amqpsink"
	"budgetwatch/internal/notify/memory"
	"budgetwatch/internal/services"
	"budgetwatch/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	logger.Info("Starting alert-worker")

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}

	// Initialize SQLite repository
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// Initialize the alert sink. Alerts go through AMQP when a broker is
	// configured; otherwise they are kept in memory (useful for local runs).
	var sink notify.AlertSink
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, alerts will not be delivered", "error", err)
			amqpClient = nil
		}
	}
	if amqpClient != nil {
		defer amqpClient.Close()
		sink = amqpsink.New(amqpClient)
		logger.Info("AMQP alert sink initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		sink = memory.New()
		logger.Info("In-memory alert sink initialized - alerts are not delivered anywhere")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the budget alert sweep
	evaluator := services.NewAlertEvaluator(repo, sink, services.AlertEvaluatorConfig{
		Threshold:     cfg.AlertThreshold,
		SweepInterval: cfg.SweepInterval,
		Cooldown:      cfg.AlertCooldown,
		Concurrency:   cfg.SweepConcurrency,
	})
	if err := evaluator.Start(ctx); err != nil {
		logger.Error("Failed to start alert evaluator", "error", err)
		os.Exit(1)
	}

	// Start the monthly report trigger, but only when triggers can actually
	// be published somewhere.
	var processor *services.ReportProcessor
	if amqpClient != nil {
		processor, err = services.NewReportProcessor(repo, amqpClient, services.ReportProcessorConfig{
			CheckInterval: cfg.ReportCheckInterval,
			Frequency:     services.ReportMonthly,
		})
		if err != nil {
			logger.Error("Failed to create report processor", "error", err)
			os.Exit(1)
		}
		if err := processor.Start(ctx); err != nil {
			logger.Error("Failed to start report processor", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Info("Skipping report trigger - no AMQP client available")
	}

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Shutdown signal received", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := evaluator.Stop(shutdownCtx); err != nil {
		logger.Error("Alert evaluator shutdown error", "error", err)
	}
	if processor != nil {
		if err := processor.Stop(shutdownCtx); err != nil {
			logger.Error("Report processor shutdown error", "error", err)
		}
	}

	logger.Info("Worker shutdown complete")
}
