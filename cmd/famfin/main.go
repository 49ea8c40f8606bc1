package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"famfin/internal/amqp"
	"famfin/internal/cli"
	"famfin/internal/config"
	apphttp "famfin/internal/http"
	"famfin/internal/log"
	"famfin/internal/narrative"
	"famfin/internal/services"
	ports "famfin/internal/sheets"
	gsheet "famfin/internal/sheets/google"
	mem "famfin/internal/sheets/memory"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger("api")
	cfg := cli.LoadAndValidateConfig(logger)

	plannerCfg, err := cfg.PlannerConfig()
	if err != nil {
		logger.Error("Invalid planner configuration",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	var (
		publisher services.EventPublisher
		ready     func(ctx context.Context) error
	)
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Error("Failed to initialize AMQP client",
				log.FieldError, err,
				log.FieldErrorType, log.ErrorTypeNetwork)
			os.Exit(1)
		}
		defer client.Close()
		publisher = client
		ready = func(context.Context) error {
			if !client.IsHealthy() {
				return errors.New("amqp connection unavailable")
			}
			return nil
		}
		logger.Info("AMQP publishing enabled", "exchange", cfg.AMQPExchange)
	} else {
		logger.Info("AMQP disabled - no AMQP_URL provided")
	}

	defaults := categoryDefaults(logger, cfg)

	gen, err := narrative.NewTemplateGenerator(3)
	if err != nil {
		logger.Error("Failed to build narrative generator", log.FieldError, err)
		os.Exit(1)
	}

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		Store:        repo,
		Users:        services.NewUserService(repo, defaults),
		Transactions: services.NewTransactionService(repo, publisher),
		Advisor:      services.NewAdvisorService(repo, plannerCfg, gen),
		Logger:       logger,
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		CacheEnabled:       cfg.CacheEnabled,
		CacheTTL:           cfg.CacheTTL,
		CacheSize:          cfg.CacheSize,
		Ready:              ready,
	})

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting famfin server", "port", cfg.Port, log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

// categoryDefaults picks where new users' default categories come from: the
// categories tab when Sheets is configured, the seed files otherwise.
func categoryDefaults(logger *log.Logger, cfg *config.Config) ports.CategoryReader {
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(context.Background(), gsheet.Options{
			SpreadsheetID:     cfg.GoogleSpreadsheetID,
			TransactionsSheet: cfg.GoogleSheetName,
			CategoriesSheet:   cfg.GoogleCategoriesSheet,
			CredentialsJSON:   cfg.GoogleServiceAccountJSON,
			CredentialsFile:   cfg.GoogleServiceAccountFile,
		})
		if err == nil {
			logger.Info("Default categories read from Google Sheets", "spreadsheet_id", cfg.GoogleSpreadsheetID)
			return client
		}
		logger.Warn("Google Sheets unavailable, using seed files",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeNetwork)
	}
	return mem.NewFromFiles(cfg.CategoriesDir)
}
