package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/core"
)

// recordColumns bounds the range read from each collection sheet.
const recordColumns = "A:Z"

// Config names the spreadsheet, the credentials and one sheet per collection.
type Config struct {
	SpreadsheetID      string
	ServiceAccountJSON string
	ServiceAccountFile string

	IncomeSheet  string
	ExpenseSheet string
	BudgetSheet  string
	GoalSheet    string
	TotalsSheet  string
}

// Client reads record collections and a totals sheet from one spreadsheet.
// It satisfies both aggregator.RecordSource and aggregator.TotalsSource.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheets        map[core.RecordKind]string
	totalsSheet   string
}

// New creates a read-only Sheets client from service account credentials.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet id")
	}
	svc, err := newSheetsService(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return NewWithService(svc, cfg), nil
}

// NewWithService wraps an existing service, e.g. one pointed at a test server.
func NewWithService(svc *gsheet.Service, cfg Config) *Client {
	return &Client{
		svc:           svc,
		spreadsheetID: strings.TrimSpace(cfg.SpreadsheetID),
		sheets: map[core.RecordKind]string{
			core.KindIncome:  sheetOr(cfg.IncomeSheet, "Income"),
			core.KindExpense: sheetOr(cfg.ExpenseSheet, "Expenses"),
			core.KindBudget:  sheetOr(cfg.BudgetSheet, "Budgets"),
			core.KindGoal:    sheetOr(cfg.GoalSheet, "Goals"),
		},
		totalsSheet: sheetOr(cfg.TotalsSheet, "Totals"),
	}
}

// newSheetsService initializes a Sheets Service using Service Account credentials.
// Inline JSON wins over a credentials file.
func newSheetsService(ctx context.Context, cfg Config) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(cfg.ServiceAccountJSON)
	serviceAccountFile := strings.TrimSpace(cfg.ServiceAccountFile)

	var credentialsJSON []byte
	var err error

	switch {
	case serviceAccountJSON != "":
		slog.DebugContext(ctx, "Using inline JSON credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		slog.DebugContext(ctx, "Reading credentials from file", "path", serviceAccountFile)
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsReadonlyScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	slog.InfoContext(ctx, "Google Sheets service created successfully")
	return service, nil
}

// FetchRecords reads the sheet mapped to kind. The first row is the header.
func (c *Client) FetchRecords(ctx context.Context, kind core.RecordKind) ([]core.Record, error) {
	sheet, ok := c.sheets[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown record kind %q", core.ErrValidation, kind)
	}
	values, err := c.read(ctx, fmt.Sprintf("%s!%s", sheet, recordColumns))
	if err != nil {
		return nil, err
	}
	records := parseRecords(values)
	slog.DebugContext(ctx, "Read sheet records", "sheet", sheet, "kind", string(kind), "count", len(records))
	return records, nil
}

// FetchTotals reads a two-column label/value sheet.
func (c *Client) FetchTotals(ctx context.Context) (map[string]any, error) {
	values, err := c.read(ctx, fmt.Sprintf("%s!A:B", c.totalsSheet))
	if err != nil {
		return nil, err
	}
	return parseTotals(values), nil
}

func (c *Client) read(ctx context.Context, rng string) ([][]interface{}, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	resp, err := c.svc.Spreadsheets.Values.Get(c.spreadsheetID, rng).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", rng, classify(err))
	}
	return resp.Values, nil
}

// classify maps a Sheets API failure onto the shared error taxonomy.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %w", core.ErrAuthExpired, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", core.ErrNotFound, err)
		case http.StatusBadRequest:
			return fmt.Errorf("%w: %w", core.ErrValidation, err)
		}
	}
	return fmt.Errorf("%w: %w", core.ErrNetwork, err)
}

func sheetOr(name, fallback string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return fallback
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
