package backend

import (
	"errors"
	"fmt"
	"time"

	"fintrack/internal/config"
)

// Config holds configuration for backend creation
type Config struct {
	Type       BackendType
	TotalsMode TotalsMode

	// API backend. Also serves obligations for the sheets backend when a
	// token is present.
	APIBaseURL    string
	APIToken      string
	APITimeout    time.Duration
	OnAuthExpired func()

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
	GoogleIncomeSheet        string
	GoogleExpenseSheet       string
	GoogleBudgetSheet        string
	GoogleGoalSheet          string
	GoogleTotalsSheet        string

	// Memory backend specific
	DataDirectory string
}

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, errors.New("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	return Config{
		Type:       backendType,
		TotalsMode: TotalsMode(appConfig.TotalsMode),

		APIBaseURL: appConfig.APIBaseURL,
		APIToken:   appConfig.APIToken,
		APITimeout: appConfig.APITimeout,

		GoogleSpreadsheetID:      appConfig.GoogleSpreadsheetID,
		GoogleServiceAccountJSON: appConfig.GoogleServiceAccountJSON,
		GoogleServiceAccountFile: appConfig.GoogleServiceAccountFile,
		GoogleIncomeSheet:        appConfig.GoogleIncomeSheet,
		GoogleExpenseSheet:       appConfig.GoogleExpenseSheet,
		GoogleBudgetSheet:        appConfig.GoogleBudgetSheet,
		GoogleGoalSheet:          appConfig.GoogleGoalSheet,
		GoogleTotalsSheet:        appConfig.GoogleTotalsSheet,

		DataDirectory: appConfig.DataDirectory,
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.TotalsMode != "" && !c.TotalsMode.IsValid() {
		return fmt.Errorf("invalid totals mode: %s", c.TotalsMode)
	}

	switch c.Type {
	case APIBackend:
		if c.APIBaseURL == "" {
			return errors.New("API base URL is required for api backend")
		}
		if c.APIToken == "" {
			return errors.New("API token is required for api backend")
		}

	case SheetsBackend:
		if c.GoogleSpreadsheetID == "" {
			return errors.New("Google Spreadsheet ID is required for sheets backend")
		}
		if c.GoogleServiceAccountJSON == "" && c.GoogleServiceAccountFile == "" {
			return errors.New("either GoogleServiceAccountJSON or GoogleServiceAccountFile must be provided for sheets backend")
		}

	case MemoryBackend:
		// DataDirectory defaults to "data" if empty
	}

	return nil
}
