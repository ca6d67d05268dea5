package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/aggregator"
	"fintrack/internal/config"
	"fintrack/internal/core"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"unknown type", Config{Type: "sqlite"}, "invalid backend type"},
		{"bad totals mode", Config{Type: MemoryBackend, TotalsMode: "sum"}, "invalid totals mode"},
		{"api without url", Config{Type: APIBackend, APIToken: "t"}, "API base URL is required"},
		{"api without token", Config{Type: APIBackend, APIBaseURL: "http://x"}, "API token is required"},
		{"sheets without id", Config{Type: SheetsBackend, GoogleServiceAccountJSON: "{}"}, "Spreadsheet ID is required"},
		{"sheets without credentials", Config{Type: SheetsBackend, GoogleSpreadsheetID: "abc"}, "GoogleServiceAccountJSON"},
		{"memory", Config{Type: MemoryBackend}, ""},
		{"api", Config{Type: APIBackend, APIBaseURL: "http://x", APIToken: "t", TotalsMode: ServerMode}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	_, err = FromAppConfig(&config.Config{DataBackend: "sqlite"})
	assert.Error(t, err)

	cfg, err := FromAppConfig(&config.Config{
		DataBackend:   config.BackendAPI,
		TotalsMode:    config.TotalsModeServer,
		APIBaseURL:    "http://localhost:5000",
		APIToken:      "tok",
		APITimeout:    3 * time.Second,
		DataDirectory: "./data",
	})
	require.NoError(t, err)
	assert.Equal(t, APIBackend, cfg.Type)
	assert.Equal(t, ServerMode, cfg.TotalsMode)
	assert.Equal(t, "tok", cfg.APIToken)
	assert.Equal(t, 3*time.Second, cfg.APITimeout)
	assert.Equal(t, "./data", cfg.DataDirectory)
}

func TestCreateBackend_Memory(t *testing.T) {
	dir := t.TempDir()
	seed := `{"income":[{"amount":100}],"expenses":[{"amount":150}],"obligations":[{"id":"a","amount":1,"interval":"monthly","nextDue":"2024-01-01"}]}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "seed.json"), []byte(seed), 0644))

	res, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend, DataDirectory: dir})
	require.NoError(t, err)
	defer res.Close()

	assert.IsType(t, &aggregator.Collector{}, res.Totals)
	totals, err := res.Totals.Totals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "100", totals.Income.String())
	assert.Equal(t, "150", totals.Expense.String())

	require.NotNil(t, res.Obligations)
	obs, err := res.Obligations.ListObligations(context.Background())
	require.NoError(t, err)
	assert.Len(t, obs, 1)
}

func TestCreateBackend_APITotalsMode(t *testing.T) {
	var authExpired atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/api/transactions/totals":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"income":10,"expense":"4.5","budget":8,"goal":2}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := Config{
		Type:          APIBackend,
		TotalsMode:    ServerMode,
		APIBaseURL:    srv.URL,
		APIToken:      "tok",
		APITimeout:    time.Second,
		OnAuthExpired: func() { authExpired.Store(true) },
	}
	res, err := NewFactory(nil).CreateBackend(context.Background(), cfg)
	require.NoError(t, err)

	assert.IsType(t, &aggregator.TotalsFetcher{}, res.Totals)
	totals, err := res.Totals.Totals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "4.5", totals.Expense.String())
	assert.NotNil(t, res.Obligations)

	cfg.APIToken = "stale"
	res, err = NewFactory(nil).CreateBackend(context.Background(), cfg)
	require.NoError(t, err)
	_, err = res.Totals.Totals(context.Background())
	assert.ErrorIs(t, err, core.ErrAuthExpired)
	assert.True(t, authExpired.Load())
}

func TestCreateBackend_SheetsWithoutCredentials(t *testing.T) {
	_, err := NewFactory(nil).CreateBackend(context.Background(), Config{
		Type:                     SheetsBackend,
		GoogleSpreadsheetID:      "abc",
		GoogleServiceAccountFile: filepath.Join(t.TempDir(), "missing.json"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize Google Sheets client")
}
