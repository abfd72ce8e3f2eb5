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
	"budgetwatch/internal/report"
	gsheet "budgetwatch/internal/report/google"
	mem "budgetwatch/internal/report/memory"
	"budgetwatch/internal/services"
	"budgetwatch/internal/storage"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	_ = godotenv.Load()

	// Setup structured logging
	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)
	structured := log.NewStructuredLogger(logger)

	logger.Info("Starting notify-worker")

	// Load configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL must be set - the notify-worker consumes budget events from the broker")
		os.Exit(1)
	}

	// Initialize SQLite repository to materialize report data
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the report writer (optional Google Sheets export)
	var writer report.Writer
	if cfg.GoogleSpreadsheetID != "" {
		writer, err = gsheet.NewFromEnv(ctx)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		logger.Info("Google Sheets report writer initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		writer = mem.New()
		logger.Info("In-memory report writer initialized - no GOOGLE_SPREADSHEET_ID provided")
	}

	// Initialize AMQP client for consuming messages
	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	handlers := amqp.Handlers{
		OnBudgetAlert: func(msg *amqp.BudgetAlertMessage) error {
			structured.LogBudgetAlert(ctx, msg.UserID, msg.BudgetID, msg.BudgetName, msg.PercentageUsed)
			return nil
		},
		OnMonthlyReport: func(msg *amqp.MonthlyReportMessage) error {
			rep, err := services.BuildMonthlyReport(ctx, repo, msg.UserID, msg.Year, msg.Month)
			if err != nil {
				return err
			}
			ref, err := writer.WriteMonthlyReport(ctx, rep)
			if err != nil {
				return err
			}
			logger.InfoContext(ctx, "Monthly report exported",
				"component", log.ComponentReport,
				"user_id", msg.UserID,
				"year", msg.Year,
				"month", msg.Month,
				"ref", ref)
			return nil
		},
	}

	// Start message consumption
	go func() {
		if err := amqpClient.Consume(ctx, handlers); err != nil && err != context.Canceled {
			logger.Error("Message consumption failed", "error", err)
			cancel()
		}
	}()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled")
	}

	cancel()

	// Give the consumer time to finish the in-flight delivery
	time.Sleep(2 * time.Second)
	logger.Info("Worker shutdown complete")
}
