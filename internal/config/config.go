package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"famfin/internal/log"
	"famfin/internal/planner"

	"github.com/shopspring/decimal"
)

type Config struct {
	// HTTP Server
	Port            string
	ShutdownTimeout time.Duration

	LogLevel string

	// Database
	SQLiteDBPath string

	// AMQP; an empty URL disables event publishing.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets export; an empty spreadsheet id disables it.
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleCategoriesSheet    string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Directory holding seed_expense_categories.txt and seed_income_categories.txt.
	CategoriesDir string

	RateLimitPerMinute int
	CacheEnabled       bool
	CacheTTL           time.Duration
	CacheSize          int

	Planner PlannerOverrides
}

// PlannerOverrides replace planner defaults; empty strings keep the default.
type PlannerOverrides struct {
	NeedsFraction    string
	WantsFraction    string
	SavingsFraction  string
	AggressiveRate   string
	DefaultRate      string
	ConservativeRate string
	MinMonths        int
	MonthsAhead      int
}

func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8081"),
		ShutdownTimeout: getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		LogLevel:        getEnv("LOG_LEVEL", "info"),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/famfin.db"),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "famfin"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "transaction_events"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Transactions"),
		GoogleCategoriesSheet:    getEnv("GOOGLE_CATEGORIES_SHEET", "Categories"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		CategoriesDir: getEnv("CATEGORIES_DIR", "."),

		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		CacheEnabled:       getEnvBool("CACHE_ENABLED", true),
		CacheTTL:           getEnvDuration("CACHE_TTL", 5*time.Minute),
		CacheSize:          getEnvInt("CACHE_SIZE", 500),

		Planner: PlannerOverrides{
			NeedsFraction:    getEnv("PLANNER_NEEDS_FRACTION", ""),
			WantsFraction:    getEnv("PLANNER_WANTS_FRACTION", ""),
			SavingsFraction:  getEnv("PLANNER_SAVINGS_FRACTION", ""),
			AggressiveRate:   getEnv("PLANNER_AGGRESSIVE_RATE", ""),
			DefaultRate:      getEnv("PLANNER_DEFAULT_RATE", ""),
			ConservativeRate: getEnv("PLANNER_CONSERVATIVE_RATE", ""),
			MinMonths:        getEnvInt("PLANNER_MIN_MONTHS", 0),
			MonthsAhead:      getEnvInt("PLANNER_MONTHS_AHEAD", 0),
		},
	}
}

// AMQPEnabled reports whether a broker is configured.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// SheetsEnabled reports whether Google Sheets export is configured.
func (c *Config) SheetsEnabled() bool {
	return c.GoogleSpreadsheetID != ""
}

// PlannerConfig returns planner defaults with the overrides applied.
func (c *Config) PlannerConfig() (planner.Config, error) {
	cfg := planner.DefaultConfig()
	var problems []string
	set := func(name, raw string, dst *decimal.Decimal) {
		if raw == "" {
			return
		}
		d, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			problems = append(problems, fmt.Sprintf("invalid %s '%s': must be a decimal number", name, raw))
			return
		}
		*dst = d
	}
	set("PLANNER_NEEDS_FRACTION", c.Planner.NeedsFraction, &cfg.Rule.Needs)
	set("PLANNER_WANTS_FRACTION", c.Planner.WantsFraction, &cfg.Rule.Wants)
	set("PLANNER_SAVINGS_FRACTION", c.Planner.SavingsFraction, &cfg.Rule.Savings)
	set("PLANNER_AGGRESSIVE_RATE", c.Planner.AggressiveRate, &cfg.AggressiveRate)
	set("PLANNER_DEFAULT_RATE", c.Planner.DefaultRate, &cfg.DefaultRate)
	set("PLANNER_CONSERVATIVE_RATE", c.Planner.ConservativeRate, &cfg.ConservativeRate)
	if len(problems) > 0 {
		return planner.Config{}, fmt.Errorf("%s", strings.Join(problems, "\n- "))
	}

	minMonths, ahead := cfg.MinMonthsForPrediction, cfg.MonthsAhead
	if c.Planner.MinMonths != 0 {
		minMonths = c.Planner.MinMonths
	}
	if c.Planner.MonthsAhead != 0 {
		ahead = c.Planner.MonthsAhead
	}
	cfg = cfg.WithHorizon(minMonths, ahead)

	if err := cfg.Validate(); err != nil {
		return planner.Config{}, err
	}
	return cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, fmt.Sprintf("invalid log level '%s': must be debug, info, warn or error", c.LogLevel))
	}

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
			}
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.GoogleSpreadsheetID != "" {
		if c.GoogleSheetName == "" {
			errors = append(errors, "Google Sheet name is required when a spreadsheet ID is set")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" && os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") == "" {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets export")
		}
		if c.GoogleServiceAccountFile != "" {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
	}

	if c.RateLimitPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	if c.CacheEnabled {
		if c.CacheTTL < time.Second {
			errors = append(errors, fmt.Sprintf("invalid cache TTL %v: must be at least 1 second", c.CacheTTL))
		}
		if c.CacheSize < 1 {
			errors = append(errors, fmt.Sprintf("invalid cache size %d: must be at least 1", c.CacheSize))
		}
	}
	if c.ShutdownTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid shutdown timeout %v: must be at least 1 second", c.ShutdownTimeout))
	}

	if _, err := c.PlannerConfig(); err != nil {
		errors = append(errors, fmt.Sprintf("invalid planner settings: %v", err))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
