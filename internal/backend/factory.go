package backend

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/aggregator"
	"fintrack/internal/api"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/sheets/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		res *BackendResult
		err error
	)
	switch config.Type {
	case APIBackend:
		res, err = f.createAPIBackend(config)
	case SheetsBackend:
		res, err = f.createSheetsBackend(ctx, config)
	case MemoryBackend:
		res, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	res.Totals = totalsSource(config.TotalsMode, res.Records)
	f.logger.Info("Initialized backend",
		"backend", config.Type.String(),
		"totals_mode", string(modeOrDefault(config.TotalsMode)),
		"obligations", res.Obligations != nil)
	return res, nil
}

func (f *DefaultFactory) createAPIBackend(config Config) (*BackendResult, error) {
	cli, err := newAPIClient(config)
	if err != nil {
		return nil, err
	}
	return &BackendResult{
		Records:     cli,
		Obligations: cli,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:      config.GoogleSpreadsheetID,
		ServiceAccountJSON: config.GoogleServiceAccountJSON,
		ServiceAccountFile: config.GoogleServiceAccountFile,
		IncomeSheet:        config.GoogleIncomeSheet,
		ExpenseSheet:       config.GoogleExpenseSheet,
		BudgetSheet:        config.GoogleBudgetSheet,
		GoalSheet:          config.GoogleGoalSheet,
		TotalsSheet:        config.GoogleTotalsSheet,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	res := &BackendResult{Records: cli}

	// Obligations live behind the API only.
	if config.APIToken != "" && config.APIBaseURL != "" {
		apiCli, err := newAPIClient(config)
		if err != nil {
			f.logger.Warn("Obligations unavailable for sheets backend", "error", err)
		} else {
			res.Obligations = apiCli
		}
	}
	return res, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}

	store, err := memory.NewFromFiles(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize memory backend: %w", err)
	}

	f.logger.Info("Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{
		Records:     store,
		Obligations: store,
	}, nil
}

func newAPIClient(config Config) (*api.Client, error) {
	cli, err := api.New(api.Config{
		BaseURL:       config.APIBaseURL,
		Timeout:       config.APITimeout,
		TokenSource:   api.NewTokenSource(config.APIToken),
		OnAuthExpired: config.OnAuthExpired,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize API client: %w", err)
	}
	return cli, nil
}

func totalsSource(mode TotalsMode, records sheets.RecordReader) aggregator.Source {
	if modeOrDefault(mode) == ServerMode {
		return aggregator.NewTotalsFetcher(records)
	}
	return aggregator.NewCollector(records)
}

func modeOrDefault(mode TotalsMode) TotalsMode {
	if mode == "" {
		return RecordsMode
	}
	return mode
}
