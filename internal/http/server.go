package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"fintrack/internal/clock"
	"fintrack/internal/core"
	applog "fintrack/internal/log"
	"fintrack/internal/monitor"
	"fintrack/internal/notify"
	"fintrack/internal/storage"
)

// Monitor serves the latest totals snapshot.
type Monitor interface {
	Snapshot() (monitor.Snapshot, bool)
	Refresh(ctx context.Context) (monitor.Snapshot, error)
}

// Obligations is the recurrence scheduler as seen by the handlers.
type Obligations interface {
	Load(ctx context.Context) ([]core.RecurringObligation, error)
	List() []core.RecurringObligation
	Reschedule(ctx context.Context, id, newDate string) (core.RecurringObligation, error)
	Advance(ctx context.Context, id string) (core.RecurringObligation, error)
	Remove(ctx context.Context, id string) error
	Overdue(asOf core.Date) []core.RecurringObligation
}

// AlertHistory reads persisted notifications.
type AlertHistory interface {
	RecentAlerts(ctx context.Context, limit int) ([]storage.Alert, error)
}

// Deps are the collaborators behind the routes. Obligations and History are
// optional; their routes answer 503 when unset.
type Deps struct {
	Monitor     Monitor
	Engine      *notify.Engine
	Obligations Obligations
	History     AlertHistory
	Logger      *applog.Logger
	Clock       clock.Clock
	RateLimit   int
}

type Server struct {
	http.Server
	monitor     Monitor
	engine      *notify.Engine
	obligations Obligations
	history     AlertHistory
	clock       clock.Clock
	rateLimiter *rateLimiter
	metrics     securityMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		monitor:     deps.Monitor,
		engine:      deps.Engine,
		obligations: deps.Obligations,
		history:     deps.History,
		clock:       deps.Clock,
		rateLimiter: newRateLimiter(deps.RateLimit),
	}
	if s.clock == nil {
		s.clock = clock.System{}
	}
	if s.engine == nil {
		s.engine = notify.NewEngine()
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/totals", s.handleTotals)
	mux.HandleFunc("POST /api/totals/refresh", s.handleRefresh)

	mux.HandleFunc("GET /api/notifications", s.handleNotifications)
	mux.HandleFunc("POST /api/notifications/toggle", s.handleToggleNotifications)
	mux.HandleFunc("POST /api/notifications/clear", s.handleClearNotifications)
	mux.HandleFunc("GET /api/alerts/history", s.handleAlertHistory)

	mux.HandleFunc("GET /api/obligations", s.handleListObligations)
	mux.HandleFunc("GET /api/obligations/overdue", s.handleOverdue)
	mux.HandleFunc("PATCH /api/obligations/{id}", s.handleReschedule)
	mux.HandleFunc("POST /api/obligations/{id}/advance", s.handleAdvance)
	mux.HandleFunc("DELETE /api/obligations/{id}", s.handleRemove)

	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	s.Handler = applog.Middleware(logger)(
		applog.RequestIDMiddleware(
			applog.AccessLog(s.withSecurityHeaders(mux))))

	return s
}

// SecurityStats returns the rate limit and suspicious request counters.
func (s *Server) SecurityStats() SecurityStats {
	return s.metrics.snapshot()
}

// Shutdown gracefully shuts down the server and the rate limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withSecurityHeaders adds security headers and rate limits mutating requests.
func (s *Server) withSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		clientIP := extractClientIP(r)

		if reason := detectSuspiciousRequest(r, &s.metrics); reason != "" {
			slog.WarnContext(ctx, "Suspicious request",
				"reason", reason,
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
		}

		if r.Method != http.MethodGet && r.Method != http.MethodHead &&
			!s.rateLimiter.allow(clientIP, s.clock.Now(), &s.metrics) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldMethod, r.Method,
				applog.FieldPath, r.URL.Path)
			ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").
				Header("Retry-After", "60").
				Write(w)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		w.Header().Set("Referrer-Policy", "no-referrer")
		w.Header().Set("Cache-Control", "no-store")

		next.ServeHTTP(w, r)
	})
}
