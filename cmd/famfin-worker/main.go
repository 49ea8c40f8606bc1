package main

import (
	"context"
	"errors"
	"os"

	"famfin/internal/amqp"
	"famfin/internal/cli"
	"famfin/internal/log"
	ports "famfin/internal/sheets"
	gsheet "famfin/internal/sheets/google"
	"famfin/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("worker")
	logger.Info("Starting famfin-worker", log.FieldOperation, log.OpStartup)

	cfg := cli.LoadAndValidateConfig(logger)
	if !cfg.AMQPEnabled() {
		logger.Error("AMQP_URL is required for the worker",
			log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	var exporter ports.TransactionExporter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(context.Background(), gsheet.Options{
			SpreadsheetID:     cfg.GoogleSpreadsheetID,
			TransactionsSheet: cfg.GoogleSheetName,
			CategoriesSheet:   cfg.GoogleCategoriesSheet,
			CredentialsJSON:   cfg.GoogleServiceAccountJSON,
			CredentialsFile:   cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client",
				log.FieldError, err,
				log.FieldErrorType, log.ErrorTypeNetwork)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeNetwork)
		os.Exit(1)
	}
	defer client.Close()

	alerts := worker.NewAlertWorker(repo, exporter)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, nil)

	logger.Info("Consuming transaction events", "queue", cfg.AMQPQueue)
	if err := client.ConsumeTransactionEvents(ctx, alerts.HandleTransactionEvent); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Consumer stopped", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped gracefully")
}
