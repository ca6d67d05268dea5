package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

const (
	BackendAPI    = "api"
	BackendSheets = "sheets"
	BackendMemory = "memory"

	TotalsModeRecords = "records"
	TotalsModeServer  = "totals"
)

var (
	validBackends    = []string{BackendAPI, BackendSheets, BackendMemory}
	validTotalsModes = []string{TotalsModeRecords, TotalsModeServer}
)

type Config struct {
	// HTTP Server
	Port string

	// Collaborator API. APIToken is the one credential slot.
	APIBaseURL string
	APIToken   string
	APITimeout time.Duration

	// Backend selection
	DataBackend   string
	TotalsMode    string
	DataDirectory string

	// Monitor
	PollInterval time.Duration

	// Snapshot store; empty path disables persistence
	SQLiteDBPath      string
	SnapshotRetention int

	// AMQP alert fan-out; empty URL disables publishing
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleIncomeSheet        string
	GoogleExpenseSheet       string
	GoogleBudgetSheet        string
	GoogleGoalSheet          string
	GoogleTotalsSheet        string

	LogLevel string
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		APIBaseURL: getEnv("FINTRACK_API_URL", "http://localhost:5000"),
		APIToken:   getEnv("FINTRACK_API_TOKEN", ""),
		APITimeout: getEnvDuration("FINTRACK_API_TIMEOUT", 10*time.Second),

		DataBackend:   getEnv("DATA_BACKEND", BackendAPI),
		TotalsMode:    getEnv("TOTALS_MODE", TotalsModeRecords),
		DataDirectory: getEnv("DATA_DIR", "./data"),

		PollInterval: getEnvDuration("POLL_INTERVAL", 10*time.Second),

		SQLiteDBPath:      getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),
		SnapshotRetention: getEnvInt("SNAPSHOT_RETENTION", 1000),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "fintrack.alerts"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "fintrack.alerts.log"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", getEnv("GOOGLE_APPLICATION_CREDENTIALS", "")),
		GoogleIncomeSheet:        getEnv("GOOGLE_INCOME_SHEET", "Income"),
		GoogleExpenseSheet:       getEnv("GOOGLE_EXPENSE_SHEET", "Expenses"),
		GoogleBudgetSheet:        getEnv("GOOGLE_BUDGET_SHEET", "Budgets"),
		GoogleGoalSheet:          getEnv("GOOGLE_GOAL_SHEET", "Goals"),
		GoogleTotalsSheet:        getEnv("GOOGLE_TOTALS_SHEET", "Totals"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}
	if !slices.Contains(validTotalsModes, c.TotalsMode) {
		errors = append(errors, fmt.Sprintf("invalid totals mode '%s': must be one of %v", c.TotalsMode, validTotalsModes))
	}

	if c.DataBackend == BackendAPI {
		if parsedURL, err := url.Parse(c.APIBaseURL); err != nil || parsedURL.Host == "" {
			errors = append(errors, fmt.Sprintf("invalid API URL '%s'", c.APIBaseURL))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid API URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
		if strings.TrimSpace(c.APIToken) == "" {
			errors = append(errors, "FINTRACK_API_TOKEN is required when using api backend")
		}
	}

	if c.APITimeout < 100*time.Millisecond {
		errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be at least 100ms", c.APITimeout))
	} else if c.APITimeout > 5*time.Minute {
		errors = append(errors, fmt.Sprintf("invalid API timeout %v: must be at most 5 minutes", c.APITimeout))
	}

	if c.PollInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid poll interval %v: must be at least 1 second", c.PollInterval))
	} else if c.PollInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid poll interval %v: must be at most 24 hours", c.PollInterval))
	}

	if c.SQLiteDBPath != "" {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}
	if c.SnapshotRetention < 0 {
		errors = append(errors, fmt.Sprintf("invalid snapshot retention %d: must not be negative", c.SnapshotRetention))
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

	if c.DataBackend == BackendSheets {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "Google Spreadsheet ID is required when using sheets backend")
		}
		hasJSON := c.GoogleServiceAccountJSON != ""
		hasFile := c.GoogleServiceAccountFile != ""
		if !hasJSON && !hasFile {
			errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_JSON or GOOGLE_SERVICE_ACCOUNT_FILE must be provided for sheets backend")
		}
		if hasFile {
			if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
			}
		}
		if c.TotalsMode == TotalsModeServer && c.GoogleTotalsSheet == "" {
			errors = append(errors, "Google totals sheet name is required in totals mode")
		}
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() slog.Level {
	l, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level '%s': must be debug, info, warn or error", s)
	}
	return l, nil
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
