package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"fintrack/internal/aggregator"
	"fintrack/internal/core"
	ports "fintrack/internal/sheets"
)

// SeedFile is the file NewFromFiles reads from the data directory.
const SeedFile = "seed.json"

// Ensure interface conformance
var (
	_ ports.RecordReader    = (*Store)(nil)
	_ ports.ObligationStore = (*Store)(nil)
)

// Seed is the on-disk shape of a memory store.
type Seed struct {
	Income      []core.Record    `json:"income"`
	Expenses    []core.Record    `json:"expenses"`
	Budgets     []core.Record    `json:"budgets"`
	Goals       []core.Record    `json:"goals"`
	Totals      map[string]any   `json:"totals,omitempty"`
	Obligations []SeedObligation `json:"obligations"`
}

// SeedObligation carries the due date as a calendar string.
type SeedObligation struct {
	ID          string `json:"id"`
	Amount      any    `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Interval    string `json:"interval"`
	NextDue     string `json:"nextDue"`
}

// Store is an in-process backend for local runs and tests.
type Store struct {
	mu          sync.Mutex
	records     aggregator.Records
	totals      map[string]any
	obligations []core.RecurringObligation
}

func New(seed Seed) *Store {
	s := &Store{totals: seed.Totals}
	s.records.Set(core.KindIncome, seed.Income)
	s.records.Set(core.KindExpense, seed.Expenses)
	s.records.Set(core.KindBudget, seed.Budgets)
	s.records.Set(core.KindGoal, seed.Goals)
	for _, o := range seed.Obligations {
		ob := core.RecurringObligation{
			ID:          o.ID,
			Amount:      core.AmountOrZero(o.Amount),
			Category:    o.Category,
			Description: o.Description,
			Interval:    core.Interval(o.Interval),
		}
		if o.NextDue != "" {
			d, err := core.ParseDate(o.NextDue)
			if err != nil {
				slog.Warn("Ignoring malformed seed due date", "obligation_id", o.ID, "next_due", o.NextDue)
			} else {
				ob.NextDue = d
			}
		}
		s.obligations = append(s.obligations, ob)
	}
	return s
}

// NewFromFiles loads base/seed.json. A missing file yields an empty store.
func NewFromFiles(base string) (*Store, error) {
	path := filepath.Join(base, SeedFile)
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(Seed{}), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode seed %s: %w", path, err)
	}
	return New(seed), nil
}

func (s *Store) FetchRecords(_ context.Context, kind core.RecordKind) ([]core.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var items []core.Record
	switch kind {
	case core.KindIncome:
		items = s.records.Income
	case core.KindExpense:
		items = s.records.Expense
	case core.KindBudget:
		items = s.records.Budget
	case core.KindGoal:
		items = s.records.Goal
	default:
		return nil, fmt.Errorf("%w: unknown record kind %q", core.ErrValidation, kind)
	}
	out := make([]core.Record, len(items))
	copy(out, items)
	return out, nil
}

// FetchTotals returns the seeded totals object, or the aggregate of the
// seeded collections when none was given.
func (s *Store) FetchTotals(_ context.Context) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.totals != nil {
		out := make(map[string]any, len(s.totals))
		for k, v := range s.totals {
			out[k] = v
		}
		return out, nil
	}
	t := aggregator.Aggregate(s.records)
	return map[string]any{
		string(core.KindIncome):  t.Income,
		string(core.KindExpense): t.Expense,
		string(core.KindBudget):  t.Budget,
		string(core.KindGoal):    t.Goal,
	}, nil
}

func (s *Store) ListObligations(_ context.Context) ([]core.RecurringObligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.obligations), nil
}

func (s *Store) UpdateNextDue(_ context.Context, id string, nextDue core.Date) (core.RecurringObligation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return core.RecurringObligation{}, fmt.Errorf("%w: obligation %q", core.ErrNotFound, id)
	}
	s.obligations[i].NextDue = nextDue
	return s.obligations[i], nil
}

func (s *Store) DeleteObligation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("%w: obligation %q", core.ErrNotFound, id)
	}
	s.obligations = slices.Delete(s.obligations, i, i+1)
	return nil
}

func (s *Store) index(id string) int {
	return slices.IndexFunc(s.obligations, func(o core.RecurringObligation) bool { return o.ID == id })
}
