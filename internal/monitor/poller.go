// Package monitor owns the periodic refresh of the financial snapshot.
//
// A Poller fetches totals on a fixed interval, evaluates notifications,
// merges the overdue-obligation rule and hands the result to its sinks.
// The most recent good snapshot is kept behind an atomic pointer; failed
// refreshes never replace it.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"fintrack/internal/aggregator"
	"fintrack/internal/clock"
	"fintrack/internal/core"
	"fintrack/internal/notify"
)

const DefaultInterval = 10 * time.Second

// ErrStale is returned by Refresh when the poller was stopped while the
// fetch was in flight. The result was discarded.
var ErrStale = errors.New("refresh result discarded")

// Snapshot is the state published after each successful refresh.
type Snapshot struct {
	Totals        core.FinancialTotals `json:"totals"`
	Notifications []core.Notification  `json:"notifications"`
	OverdueCount  int                  `json:"overdue_count"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// Sink receives every new snapshot. Errors are logged, never propagated.
type Sink interface {
	Deliver(ctx context.Context, s Snapshot) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, s Snapshot) error

func (f SinkFunc) Deliver(ctx context.Context, s Snapshot) error { return f(ctx, s) }

// Obligations is the part of the scheduler the poller needs.
type Obligations interface {
	Load(ctx context.Context) ([]core.RecurringObligation, error)
	Overdue(asOf core.Date) []core.RecurringObligation
}

type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(p *Poller) { p.clock = c }
}

// WithObligations enables the overdue rule.
func WithObligations(o Obligations) Option {
	return func(p *Poller) { p.obligations = o }
}

func WithSinks(sinks ...Sink) Option {
	return func(p *Poller) { p.sinks = append(p.sinks, sinks...) }
}

type Poller struct {
	source      aggregator.Source
	engine      *notify.Engine
	obligations Obligations
	sinks       []Sink
	clock       clock.Clock
	interval    time.Duration

	snapshot atomic.Pointer[Snapshot]

	// refreshMu serializes refresh cycles.
	refreshMu sync.Mutex

	// applyMu orders generation bumps against snapshot application.
	applyMu    sync.Mutex
	generation uint64

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

func New(source aggregator.Source, engine *notify.Engine, opts ...Option) *Poller {
	p := &Poller{
		source:   source,
		engine:   engine,
		clock:    clock.System{},
		interval: DefaultInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Seed installs a previously persisted snapshot without notifying sinks.
func (p *Poller) Seed(s Snapshot) {
	p.snapshot.Store(&s)
	p.engine.Refresh(s.Totals, overdueExtra(s.OverdueCount)...)
}

// Snapshot returns the latest good snapshot, if any.
func (p *Poller) Snapshot() (Snapshot, bool) {
	s := p.snapshot.Load()
	if s == nil {
		return Snapshot{}, false
	}
	out := *s
	out.Notifications = append([]core.Notification(nil), s.Notifications...)
	return out, true
}

func (p *Poller) Interval() time.Duration { return p.interval }

// Running reports whether the polling loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Start launches the polling loop. The first refresh runs immediately.
// Calling Start on a running poller is a no-op.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.running = true

	slog.InfoContext(ctx, "Starting poller", "interval", p.interval.String())
	go p.loop(ctx, done)
}

// Stop cancels any in-flight refresh and waits for the loop to exit. A
// refresh that completes afterwards is discarded. Stop is idempotent.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel, done := p.cancel, p.done
	p.running = false
	p.cancel = nil
	p.done = nil
	p.mu.Unlock()

	p.applyMu.Lock()
	p.generation++
	p.applyMu.Unlock()

	cancel()
	<-done
	slog.Info("Poller stopped")
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	if _, err := p.Refresh(ctx); err != nil && !errors.Is(err, ErrStale) {
		slog.ErrorContext(ctx, "Refresh failed, keeping last snapshot", "error", err, "kind", kindName(err))
	}
}

// Refresh performs one fetch-evaluate-publish cycle. On error the previous
// snapshot stays in place.
func (p *Poller) Refresh(ctx context.Context) (Snapshot, error) {
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()

	p.applyMu.Lock()
	gen := p.generation
	p.applyMu.Unlock()

	totals, err := p.source.Totals(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("refresh totals: %w", err)
	}

	overdue := 0
	if p.obligations != nil {
		if p.stale(gen) {
			slog.DebugContext(ctx, "Skipping obligation reload after stop")
			return Snapshot{}, ErrStale
		}
		if _, err := p.obligations.Load(ctx); err != nil {
			slog.WarnContext(ctx, "Obligation refresh failed, using last known list", "error", err)
		}
		overdue = len(p.obligations.Overdue(core.DateOf(p.clock.Now())))
	}

	p.applyMu.Lock()
	if gen != p.generation {
		p.applyMu.Unlock()
		slog.DebugContext(ctx, "Discarding refresh completed after stop")
		return Snapshot{}, ErrStale
	}
	snap := Snapshot{
		Totals:        totals,
		Notifications: p.engine.Refresh(totals, overdueExtra(overdue)...),
		OverdueCount:  overdue,
		UpdatedAt:     p.clock.Now(),
	}
	p.snapshot.Store(&snap)
	p.applyMu.Unlock()

	for _, sink := range p.sinks {
		if err := sink.Deliver(ctx, snap); err != nil {
			slog.WarnContext(ctx, "Sink delivery failed", "error", err)
		}
	}
	return snap, nil
}

func (p *Poller) stale(gen uint64) bool {
	p.applyMu.Lock()
	defer p.applyMu.Unlock()
	return gen != p.generation
}

func overdueExtra(count int) []core.Notification {
	if n, ok := notify.OverdueRule(count); ok {
		return []core.Notification{n}
	}
	return nil
}

func kindName(err error) string {
	if k := core.Kind(err); k != nil {
		return k.Error()
	}
	return "unknown"
}
