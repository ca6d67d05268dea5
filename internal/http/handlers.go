package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/monitor"
	"fintrack/internal/scheduler"
)

// ObligationResponse is the JSON view of a recurring obligation.
type ObligationResponse struct {
	ID          string `json:"id"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Interval    string `json:"interval"`
	NextDue     string `json:"nextDue,omitempty"`
	Overdue     bool   `json:"overdue"`
}

// NotificationsResponse mirrors the notification dropdown: its items, the
// badge count and whether it is open.
type NotificationsResponse struct {
	Notifications []core.Notification `json:"notifications"`
	Count         int                 `json:"count"`
	Open          bool                `json:"open"`
}

// AlertResponse is one persisted notification.
type AlertResponse struct {
	SnapshotID int64         `json:"snapshot_id"`
	Message    string        `json:"message"`
	Severity   core.Severity `json:"severity"`
	RaisedAt   time.Time     `json:"raised_at"`
}

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]string{"status": "ok"}).Write(w)
}

// handleReady reports ready once a first snapshot exists.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		ServiceUnavailableError("monitor not configured").Write(w)
		return
	}
	if _, ok := s.monitor.Snapshot(); !ok {
		ServiceUnavailableError("no snapshot yet").Write(w)
		return
	}
	NewJSONResponse().Data(map[string]any{
		"status":   "ready",
		"security": s.SecurityStats(),
	}).Write(w)
}

// handleTotals serves the last snapshot, refreshing synchronously when
// none exists yet.
func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		ServiceUnavailableError("monitor not configured").Write(w)
		return
	}
	if snap, ok := s.monitor.Snapshot(); ok {
		NewJSONResponse().Data(snap).Write(w)
		return
	}
	s.handleRefresh(w, r)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if s.monitor == nil {
		ServiceUnavailableError("monitor not configured").Write(w)
		return
	}
	snap, err := s.monitor.Refresh(r.Context())
	if err != nil {
		if errors.Is(err, monitor.ErrStale) {
			ServiceUnavailableError("monitor is stopping").Write(w)
			return
		}
		s.writeError(w, r, applog.OpRefresh, err)
		return
	}
	NewJSONResponse().Data(snap).Write(w)
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(s.notificationsState()).Write(w)
}

func (s *Server) handleToggleNotifications(w http.ResponseWriter, r *http.Request) {
	s.engine.Toggle()
	NewJSONResponse().Data(s.notificationsState()).Write(w)
}

// handleClearNotifications empties the list and closes the dropdown. The
// next refresh evaluates the rules again.
func (s *Server) handleClearNotifications(w http.ResponseWriter, r *http.Request) {
	s.engine.Clear()
	slog.InfoContext(r.Context(), "Notifications cleared", applog.FieldOperation, applog.OpClear)
	NewJSONResponse().Data(s.notificationsState()).Write(w)
}

func (s *Server) notificationsState() NotificationsResponse {
	return NotificationsResponse{
		Notifications: s.engine.Notifications(),
		Count:         s.engine.Count(),
		Open:          s.engine.IsOpen(),
	}
}

func (s *Server) handleAlertHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		ServiceUnavailableError("alert history not configured").Write(w)
		return
	}
	limit := ParseLimit(r.URL.Query(), defaultHistoryLimit, maxHistoryLimit)
	alerts, err := s.history.RecentAlerts(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, applog.OpRead, err)
		return
	}
	out := make([]AlertResponse, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, AlertResponse{
			SnapshotID: a.SnapshotID,
			Message:    a.Message,
			Severity:   a.Severity,
			RaisedAt:   a.RaisedAt,
		})
	}
	NewJSONResponse().Data(out).Write(w)
}

// handleListObligations returns the local list; ?reload=true fetches it
// from the store first.
func (s *Server) handleListObligations(w http.ResponseWriter, r *http.Request) {
	if !s.requireObligations(w) {
		return
	}
	if r.URL.Query().Get("reload") == "true" {
		if _, err := s.obligations.Load(r.Context()); err != nil {
			s.writeError(w, r, applog.OpList, err)
			return
		}
	}
	NewJSONResponse().Data(s.obligationViews(s.obligations.List())).Write(w)
}

func (s *Server) handleOverdue(w http.ResponseWriter, r *http.Request) {
	if !s.requireObligations(w) {
		return
	}
	asOf, err := ParseAsOf(r.URL.Query(), s.clock.Now())
	if err != nil {
		BadRequestError("asOf must be a YYYY-MM-DD date").Write(w)
		return
	}
	NewJSONResponse().Data(s.obligationViews(s.obligations.Overdue(asOf))).Write(w)
}

func (s *Server) handleReschedule(w http.ResponseWriter, r *http.Request) {
	if !s.requireObligations(w) {
		return
	}
	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("invalid request body").Write(w)
		return
	}
	nextDue := parser.Get("nextDue")
	if nextDue == "" {
		BadRequestError("nextDue is required").Write(w)
		return
	}

	id := r.PathValue("id")
	updated, err := s.obligations.Reschedule(r.Context(), id, nextDue)
	if err != nil {
		s.writeError(w, r, applog.OpReschedule, err)
		return
	}
	NewJSONResponse().Data(s.obligationView(updated)).Write(w)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	if !s.requireObligations(w) {
		return
	}
	updated, err := s.obligations.Advance(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, applog.OpAdvance, err)
		return
	}
	NewJSONResponse().Data(s.obligationView(updated)).Write(w)
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	if !s.requireObligations(w) {
		return
	}
	if err := s.obligations.Remove(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, applog.OpRemove, err)
		return
	}
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}

func (s *Server) requireObligations(w http.ResponseWriter) bool {
	if s.obligations == nil {
		ServiceUnavailableError("obligations not available for this backend").Write(w)
		return false
	}
	return true
}

func (s *Server) obligationViews(items []core.RecurringObligation) []ObligationResponse {
	out := make([]ObligationResponse, 0, len(items))
	for _, o := range items {
		out = append(out, s.obligationView(o))
	}
	return out
}

func (s *Server) obligationView(o core.RecurringObligation) ObligationResponse {
	return ObligationResponse{
		ID:          o.ID,
		Amount:      o.Amount.StringFixed(2),
		Category:    o.Category,
		Description: o.Description,
		Interval:    string(o.Interval),
		NextDue:     o.NextDue.String(),
		Overdue:     scheduler.IsOverdue(o, core.DateOf(s.clock.Now())),
	}
}

// writeError logs err and answers with the status its kind maps to.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, op string, err error) {
	status := statusFor(err)
	kind := core.Kind(err)

	fields := applog.NewFields().WithOperation(op).WithError(err, kind)
	if id := r.PathValue("id"); id != "" {
		fields.WithObligation(id, "", "")
	}
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	applog.FromContext(r.Context()).Log(r.Context(), level, "Request failed", fields.ToSlice()...)

	body := ErrorBody{Error: err.Error(), RequestID: applog.RequestID(r.Context())}
	if kind != nil {
		body.Kind = kind.Error()
	}
	if status == http.StatusInternalServerError {
		body.Error = "internal error"
	}
	NewJSONResponse().Status(status).Data(body).Write(w)
}
