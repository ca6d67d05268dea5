package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"fintrack/internal/clock"
	"fintrack/internal/core"
)

// Store is the collaborator that persists obligations. The API client is the
// production implementation.
type Store interface {
	ListObligations(ctx context.Context) ([]core.RecurringObligation, error)
	UpdateNextDue(ctx context.Context, id string, nextDue core.Date) (core.RecurringObligation, error)
	DeleteObligation(ctx context.Context, id string) error
}

// Scheduler keeps the local list of recurring obligations consistent with
// the last successful fetch plus every mutation the store confirmed.
//
// Mutations on the same id are serialized; different ids proceed in
// parallel. The list lock is never held across a store call.
type Scheduler struct {
	store Store
	clock clock.Clock
	keys  keyedMutex

	mu    sync.RWMutex
	items []core.RecurringObligation

	// seq counts confirmed mutations. While a Load is in flight they are
	// also journaled so the fetched list can be brought up to date.
	seq     uint64
	loads   int
	journal []mutation
}

// mutation is one confirmed change: a removal or a new due date.
type mutation struct {
	seq     uint64
	id      string
	removed bool
	nextDue core.Date
}

type Option func(*Scheduler)

// WithClock overrides the clock used when advancing an obligation that has
// no due date yet.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		s.clock = c
	}
}

// New creates a scheduler with an empty list. Call Load to fetch.
func New(store Store, opts ...Option) *Scheduler {
	s := &Scheduler{
		store: store,
		clock: clock.System{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the local list with the store's current set. On failure the
// previous list is kept. Mutations confirmed while the fetch was in flight
// are replayed on top of the fetched set, since it may predate them.
func (s *Scheduler) Load(ctx context.Context) ([]core.RecurringObligation, error) {
	s.mu.Lock()
	start := s.seq
	s.loads++
	s.mu.Unlock()

	fetched, err := s.store.ListObligations(ctx)
	if err != nil {
		s.mu.Lock()
		s.endLoad()
		s.mu.Unlock()
		slog.WarnContext(ctx, "Failed to load recurring obligations, keeping last known list",
			"error", err)
		return nil, fmt.Errorf("load obligations: %w", err)
	}

	items := make([]core.RecurringObligation, 0, len(fetched))
	seen := make(map[string]struct{}, len(fetched))
	for _, o := range fetched {
		if strings.TrimSpace(o.ID) == "" {
			slog.WarnContext(ctx, "Dropping recurring obligation without id",
				"description", o.Description)
			continue
		}
		if _, dup := seen[o.ID]; dup {
			slog.WarnContext(ctx, "Dropping duplicate recurring obligation", "id", o.ID)
			continue
		}
		seen[o.ID] = struct{}{}
		items = append(items, o)
	}

	s.mu.Lock()
	replayed := 0
	for _, m := range s.journal {
		if m.seq <= start {
			continue
		}
		items = m.apply(items)
		replayed++
	}
	sortByDue(items)
	s.items = items
	s.endLoad()
	s.mu.Unlock()

	if replayed > 0 {
		slog.DebugContext(ctx, "Replayed mutations confirmed during load", "count", replayed)
	}
	slog.InfoContext(ctx, "Loaded recurring obligations", "count", len(items))
	return s.List(), nil
}

// Replace seeds the local list without a fetch, e.g. from a persisted
// snapshot. Duplicate ids keep their first occurrence.
func (s *Scheduler) Replace(items []core.RecurringObligation) {
	out := make([]core.RecurringObligation, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, o := range items {
		if _, dup := seen[o.ID]; dup || o.ID == "" {
			continue
		}
		seen[o.ID] = struct{}{}
		out = append(out, o)
	}
	sortByDue(out)

	s.mu.Lock()
	s.items = out
	s.mu.Unlock()
}

// List returns a copy of the known obligations, most urgent first.
// Obligations without a due date sort last.
func (s *Scheduler) List() []core.RecurringObligation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.items)
}

// Get returns the obligation with the given id.
func (s *Scheduler) Get(id string) (core.RecurringObligation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := s.indexOf(id)
	if i < 0 {
		return core.RecurringObligation{}, false
	}
	return s.items[i], true
}

// Reschedule sets a new due date. newDate must be YYYY-MM-DD (an RFC 3339
// timestamp is truncated to its date). The local entry changes only after
// the store accepts the update.
func (s *Scheduler) Reschedule(ctx context.Context, id, newDate string) (core.RecurringObligation, error) {
	date, err := core.ParseDate(newDate)
	if err != nil {
		return core.RecurringObligation{}, fmt.Errorf("%w: reschedule %s: %q is not a calendar date", core.ErrValidation, id, newDate)
	}
	return s.mutateDue(ctx, "reschedule", id, func(core.RecurringObligation) (core.Date, error) {
		return date, nil
	})
}

// Advance moves the due date forward by one interval. Obligations without a
// due date advance from today.
func (s *Scheduler) Advance(ctx context.Context, id string) (core.RecurringObligation, error) {
	return s.mutateDue(ctx, "advance", id, func(o core.RecurringObligation) (core.Date, error) {
		advancer, err := GetAdvancer(o.Interval)
		if err != nil {
			return core.Date{}, fmt.Errorf("%w: advance %s: %v", core.ErrValidation, id, err)
		}
		from := o.NextDue
		if from.IsEmpty() {
			from = core.DateOf(s.clock.Now())
		}
		return advancer.Next(from), nil
	})
}

func (s *Scheduler) mutateDue(ctx context.Context, op, id string, next func(core.RecurringObligation) (core.Date, error)) (core.RecurringObligation, error) {
	unlock := s.keys.Lock(id)
	defer unlock()

	current, ok := s.Get(id)
	if !ok {
		return core.RecurringObligation{}, fmt.Errorf("%s %s: %w", op, id, core.ErrNotFound)
	}

	date, err := next(current)
	if err != nil {
		return core.RecurringObligation{}, err
	}

	if _, err := s.store.UpdateNextDue(ctx, id, date); err != nil {
		slog.ErrorContext(ctx, "Failed to reschedule recurring obligation",
			"operation", op,
			"id", id,
			"next_due", date.String(),
			"error", err)
		return core.RecurringObligation{}, fmt.Errorf("%s %s: %w", op, id, err)
	}

	updated := current
	updated.NextDue = date

	s.mu.Lock()
	if i := s.indexOf(id); i >= 0 {
		s.items[i] = updated
		sortByDue(s.items)
	}
	s.record(mutation{id: id, nextDue: date})
	s.mu.Unlock()

	slog.InfoContext(ctx, "Rescheduled recurring obligation",
		"id", id,
		"previous_due", current.NextDue.String(),
		"next_due", date.String())
	return updated, nil
}

// Remove deletes the obligation in the store, then drops it locally. A
// failed delete leaves the local list untouched.
func (s *Scheduler) Remove(ctx context.Context, id string) error {
	unlock := s.keys.Lock(id)
	defer unlock()

	if _, ok := s.Get(id); !ok {
		return fmt.Errorf("remove %s: %w", id, core.ErrNotFound)
	}

	if err := s.store.DeleteObligation(ctx, id); err != nil {
		slog.ErrorContext(ctx, "Failed to delete recurring obligation", "id", id, "error", err)
		return fmt.Errorf("remove %s: %w", id, err)
	}

	s.mu.Lock()
	if i := s.indexOf(id); i >= 0 {
		s.items = slices.Delete(s.items, i, i+1)
	}
	s.record(mutation{id: id, removed: true})
	s.mu.Unlock()

	slog.InfoContext(ctx, "Removed recurring obligation", "id", id)
	return nil
}

// Overdue returns the obligations due strictly before asOf, most overdue
// first.
func (s *Scheduler) Overdue(asOf core.Date) []core.RecurringObligation {
	var out []core.RecurringObligation
	for _, o := range s.List() {
		if IsOverdue(o, asOf) {
			out = append(out, o)
		}
	}
	return out
}

// IsOverdue reports whether o was due strictly before asOf. Obligations
// without a due date are never overdue.
func IsOverdue(o core.RecurringObligation, asOf core.Date) bool {
	if o.NextDue.IsEmpty() {
		return false
	}
	return o.NextDue.Before(asOf)
}

// record must be called with s.mu held.
func (s *Scheduler) record(m mutation) {
	s.seq++
	if s.loads == 0 {
		return
	}
	m.seq = s.seq
	s.journal = append(s.journal, m)
}

// endLoad must be called with s.mu held.
func (s *Scheduler) endLoad() {
	s.loads--
	if s.loads == 0 {
		s.journal = nil
	}
}

func (m mutation) apply(items []core.RecurringObligation) []core.RecurringObligation {
	i := slices.IndexFunc(items, func(o core.RecurringObligation) bool {
		return o.ID == m.id
	})
	if i < 0 {
		return items
	}
	if m.removed {
		return slices.Delete(items, i, i+1)
	}
	items[i].NextDue = m.nextDue
	return items
}

// indexOf must be called with s.mu held.
func (s *Scheduler) indexOf(id string) int {
	return slices.IndexFunc(s.items, func(o core.RecurringObligation) bool {
		return o.ID == id
	})
}

func sortByDue(items []core.RecurringObligation) {
	slices.SortStableFunc(items, func(a, b core.RecurringObligation) int {
		switch {
		case a.NextDue.IsEmpty() && b.NextDue.IsEmpty():
		case a.NextDue.IsEmpty():
			return 1
		case b.NextDue.IsEmpty():
			return -1
		default:
			if c := a.NextDue.Compare(b.NextDue.Time); c != 0 {
				return c
			}
		}
		return strings.Compare(a.ID, b.ID)
	})
}
