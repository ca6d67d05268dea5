package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/clock"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/monitor"
	"fintrack/internal/notify"
	"fintrack/internal/scheduler"
	"fintrack/internal/sheets/memory"
	"fintrack/internal/storage"
)

type monitorStub struct {
	mu        sync.Mutex
	snap      *monitor.Snapshot
	next      monitor.Snapshot
	err       error
	refreshes int
}

func (m *monitorStub) Snapshot() (monitor.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return monitor.Snapshot{}, false
	}
	return *m.snap, true
}

func (m *monitorStub) Refresh(ctx context.Context) (monitor.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshes++
	if m.err != nil {
		return monitor.Snapshot{}, m.err
	}
	s := m.next
	m.snap = &s
	return s, nil
}

type historyStub struct {
	alerts    []storage.Alert
	lastLimit int
}

func (h *historyStub) RecentAlerts(ctx context.Context, limit int) ([]storage.Alert, error) {
	h.lastLimit = limit
	return h.alerts, nil
}

type fixture struct {
	srv     *Server
	monitor *monitorStub
	engine  *notify.Engine
	sched   *scheduler.Scheduler
	history *historyStub
}

func newFixture(t *testing.T, opts ...func(*Deps)) *fixture {
	t.Helper()
	clk := &clock.Mock{FixedNow: time.Date(2024, 2, 10, 9, 0, 0, 0, time.UTC)}
	store := memory.New(memory.Seed{Obligations: []memory.SeedObligation{
		{ID: "rent", Amount: 900.0, Category: "housing", Interval: "monthly", NextDue: "2024-01-31"},
		{ID: "gym", Amount: "29.9", Category: "health", Interval: "weekly", NextDue: "2024-02-12"},
		{ID: "misc", Amount: 5.0, Interval: "sometimes"},
	}})
	sched := scheduler.New(store, scheduler.WithClock(clk))
	_, err := sched.Load(context.Background())
	require.NoError(t, err)

	f := &fixture{
		monitor: &monitorStub{},
		engine:  notify.NewEngine(),
		sched:   sched,
		history: &historyStub{},
	}
	deps := Deps{
		Monitor:     f.monitor,
		Engine:      f.engine,
		Obligations: sched,
		History:     f.history,
		Logger:      applog.New(applog.Config{Output: io.Discard}),
		Clock:       clk,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	f.srv = NewServer(":0", deps)
	t.Cleanup(func() { _ = f.srv.Shutdown(context.Background()) })
	return f
}

func (f *fixture) do(method, path, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.RemoteAddr = "192.0.2.10:1234"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	f.srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealthAndReady(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get(applog.RequestIDHeader))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/readyz", "").Code)

	f.monitor.next = monitor.Snapshot{UpdatedAt: time.Now()}
	_, _ = f.monitor.Refresh(context.Background())
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/readyz", "").Code)
}

func TestTotals(t *testing.T) {
	f := newFixture(t)
	f.monitor.next = monitor.Snapshot{
		Totals: core.FinancialTotals{
			Income:  core.AmountOrZero(100),
			Expense: core.AmountOrZero(150),
		},
		Notifications: []core.Notification{{Message: notify.MsgExpensesExceedIncome, Severity: core.SeverityWarning}},
	}

	rr := f.do(http.MethodGet, "/api/totals", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	snap := decode[monitor.Snapshot](t, rr)
	assert.Equal(t, "150", snap.Totals.Expense.String())
	assert.Len(t, snap.Notifications, 1)
	assert.Equal(t, 1, f.monitor.refreshes, "first read refreshes")

	f.do(http.MethodGet, "/api/totals", "")
	assert.Equal(t, 1, f.monitor.refreshes, "later reads serve the snapshot")

	f.do(http.MethodPost, "/api/totals/refresh", "")
	assert.Equal(t, 2, f.monitor.refreshes)
}

func TestTotals_ErrorMapping(t *testing.T) {
	tests := []struct {
		err      error
		status   int
		kindText string
	}{
		{fmt.Errorf("fetch: %w", core.ErrNetwork), http.StatusBadGateway, "network error"},
		{fmt.Errorf("fetch: %w", core.ErrAuthExpired), http.StatusUnauthorized, "authentication expired"},
		{fmt.Errorf("fetch: %w", core.ErrValidation), http.StatusBadRequest, "validation error"},
		{monitor.ErrStale, http.StatusServiceUnavailable, ""},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			f := newFixture(t)
			f.monitor.err = tt.err

			rr := f.do(http.MethodGet, "/api/totals", "")
			assert.Equal(t, tt.status, rr.Code)
			body := decode[ErrorBody](t, rr)
			assert.Equal(t, tt.kindText, body.Kind)
		})
	}
}

func TestNotifications(t *testing.T) {
	f := newFixture(t)
	f.engine.Refresh(core.FinancialTotals{
		Income:  core.AmountOrZero(100),
		Expense: core.AmountOrZero(150),
		Budget:  core.AmountOrZero(120),
		Goal:    core.AmountOrZero(200),
	})

	got := decode[NotificationsResponse](t, f.do(http.MethodGet, "/api/notifications", ""))
	assert.Equal(t, 3, got.Count)
	assert.False(t, got.Open)

	got = decode[NotificationsResponse](t, f.do(http.MethodPost, "/api/notifications/toggle", ""))
	assert.True(t, got.Open)

	got = decode[NotificationsResponse](t, f.do(http.MethodPost, "/api/notifications/clear", ""))
	assert.Equal(t, 0, got.Count)
	assert.Empty(t, got.Notifications)
	assert.False(t, got.Open)
}

func TestObligations_ListAndOverdue(t *testing.T) {
	f := newFixture(t)

	list := decode[[]ObligationResponse](t, f.do(http.MethodGet, "/api/obligations", ""))
	require.Len(t, list, 3)
	assert.Equal(t, []string{"rent", "gym", "misc"}, []string{list[0].ID, list[1].ID, list[2].ID})
	assert.True(t, list[0].Overdue)
	assert.Equal(t, "900.00", list[0].Amount)
	assert.Empty(t, list[2].NextDue)

	overdue := decode[[]ObligationResponse](t, f.do(http.MethodGet, "/api/obligations/overdue", ""))
	require.Len(t, overdue, 1)
	assert.Equal(t, "rent", overdue[0].ID)

	overdue = decode[[]ObligationResponse](t, f.do(http.MethodGet, "/api/obligations/overdue?asOf=2024-02-13", ""))
	assert.Len(t, overdue, 2)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/api/obligations/overdue?asOf=13/02/2024", "").Code)

	rr := f.do(http.MethodGet, "/api/obligations?reload=true", "")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestObligations_Reschedule(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodPatch, "/api/obligations/rent", `{"nextDue":"2024-03-01"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got := decode[ObligationResponse](t, rr)
	assert.Equal(t, "2024-03-01", got.NextDue)
	assert.False(t, got.Overdue)

	rr = f.do(http.MethodPatch, "/api/obligations/rent", `{"nextDue":"03/01/2024"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "validation error", decode[ErrorBody](t, rr).Kind)

	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPatch, "/api/obligations/rent", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPatch, "/api/obligations/rent", `{bad`).Code)

	rr = f.do(http.MethodPatch, "/api/obligations/nope", `{"nextDue":"2024-03-01"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	list := f.sched.List()
	assert.Equal(t, "gym", list[0].ID, "list re-sorted after reschedule")
}

func TestObligations_Advance(t *testing.T) {
	f := newFixture(t)

	rr := f.do(http.MethodPost, "/api/obligations/rent/advance", "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "2024-02-29", decode[ObligationResponse](t, rr).NextDue)

	rr = f.do(http.MethodPost, "/api/obligations/misc/advance", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code, "unknown interval")
}

func TestObligations_Remove(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusNoContent, f.do(http.MethodDelete, "/api/obligations/gym", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/obligations/gym", "").Code)
	assert.Len(t, f.sched.List(), 2)
}

func TestObligations_NotConfigured(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Obligations = nil })
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodGet, "/api/obligations", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(http.MethodDelete, "/api/obligations/rent", "").Code)
}

func TestAlertHistory(t *testing.T) {
	f := newFixture(t)
	f.history.alerts = []storage.Alert{{SnapshotID: 7, Message: "expenses exceed budget", Severity: core.SeverityAlert}}

	rr := f.do(http.MethodGet, "/api/alerts/history?limit=5000", "")
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[[]AlertResponse](t, rr)
	require.Len(t, got, 1)
	assert.Equal(t, int64(7), got[0].SnapshotID)
	assert.Equal(t, maxHistoryLimit, f.history.lastLimit)
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, http.StatusMethodNotAllowed, f.do(http.MethodPut, "/api/totals", "").Code)
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.RateLimit = 2 })

	for i := 0; i < 2; i++ {
		assert.Equal(t, http.StatusOK, f.do(http.MethodPost, "/api/notifications/toggle", "").Code)
	}
	rr := f.do(http.MethodPost, "/api/notifications/toggle", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "60", rr.Header().Get("Retry-After"))
	assert.Equal(t, int64(1), f.srv.SecurityStats().RateLimitHits)

	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/api/notifications", "").Code, "reads are not limited")
}
