package google

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"fintrack/internal/aggregator"
	"fintrack/internal/core"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()),
		goption.WithoutAuthentication())
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	return NewWithService(svc, Config{SpreadsheetID: "sheet-1"})
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{ServiceAccountJSON: "{}"})
	if err == nil || !strings.Contains(err.Error(), "missing spreadsheet id") {
		t.Errorf("New() error = %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{SpreadsheetID: "abc"})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Errorf("New() error = %v", err)
	}
}

func TestClient_FetchRecords(t *testing.T) {
	var gotPath, gotRender string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotRender = r.URL.Query().Get("valueRenderOption")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"range":"Goals!A1:B3","majorDimension":"ROWS","values":[["Name","Target Amount"],["Car",4000],["Trip","1500,5"]]}`))
	})

	recs, err := c.FetchRecords(context.Background(), core.KindGoal)
	if err != nil {
		t.Fatalf("FetchRecords() error = %v", err)
	}
	if !strings.Contains(gotPath, "/spreadsheets/sheet-1/values/Goals!A:Z") {
		t.Errorf("request path = %q", gotPath)
	}
	if gotRender != "UNFORMATTED_VALUE" {
		t.Errorf("valueRenderOption = %q", gotRender)
	}
	if len(recs) != 2 {
		t.Fatalf("FetchRecords() = %v", recs)
	}

	totals := aggregator.Aggregate(aggregator.Records{Goal: recs})
	if totals.Goal.String() != "5500.5" {
		t.Errorf("goal total = %s, want 5500.5", totals.Goal)
	}
}

func TestClient_FetchRecords_UnknownKind(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	_, err := c.FetchRecords(context.Background(), core.RecordKind("loans"))
	if !errors.Is(err, core.ErrValidation) {
		t.Errorf("FetchRecords() error = %v, want ErrValidation", err)
	}
}

func TestClient_FetchTotals(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "/values/Totals!A:B") {
			t.Errorf("request path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"values":[["Income",100],["Expenses",150],["Budget",120],["Goal",200]]}`))
	})

	payload, err := c.FetchTotals(context.Background())
	if err != nil {
		t.Fatalf("FetchTotals() error = %v", err)
	}
	got := aggregator.Normalize(payload)
	want := core.FinancialTotals{
		Income:  core.AmountOrZero(100),
		Expense: core.AmountOrZero(150),
		Budget:  core.AmountOrZero(120),
		Goal:    core.AmountOrZero(200),
	}
	if !got.Equal(want) {
		t.Errorf("FetchTotals() normalized = %+v, want %+v", got, want)
	}
}

func TestClient_ErrorClassification(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, core.ErrAuthExpired},
		{http.StatusForbidden, core.ErrAuthExpired},
		{http.StatusNotFound, core.ErrNotFound},
		{http.StatusBadRequest, core.ErrValidation},
		{http.StatusInternalServerError, core.ErrNetwork},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			})
			_, err := c.FetchTotals(context.Background())
			if !errors.Is(err, tt.want) {
				t.Errorf("FetchTotals() error = %v, want %v", err, tt.want)
			}
		})
	}
}
