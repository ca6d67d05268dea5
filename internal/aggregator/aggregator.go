// Package aggregator reduces income, expense, budget and goal data into a
// canonical core.FinancialTotals snapshot.
//
// Two shapes of input exist: four record collections summed client side
// (Aggregate) and a pre-aggregated totals object from the server
// (Normalize). Both end in the same snapshot type so every consumer applies
// identical threshold semantics.
package aggregator

import (
	"github.com/shopspring/decimal"

	"fintrack/internal/core"
)

const (
	// AmountField holds the amount of income, expense and budget records.
	AmountField = "amount"
	// TargetAmountField holds a goal's target. Current savings are ignored.
	TargetAmountField = "targetAmount"
)

// Records groups the four raw collections.
type Records struct {
	Income  []core.Record
	Expense []core.Record
	Budget  []core.Record
	Goal    []core.Record
}

// Set stores items under kind.
func (r *Records) Set(kind core.RecordKind, items []core.Record) {
	switch kind {
	case core.KindIncome:
		r.Income = items
	case core.KindExpense:
		r.Expense = items
	case core.KindBudget:
		r.Budget = items
	case core.KindGoal:
		r.Goal = items
	}
}

// Aggregate sums every collection. Empty collections total zero. A record
// with a missing, non-numeric or negative amount contributes zero and does
// not affect the others. The result does not depend on record order.
func Aggregate(r Records) core.FinancialTotals {
	return core.FinancialTotals{
		Income:  sum(r.Income, AmountField),
		Expense: sum(r.Expense, AmountField),
		Budget:  sum(r.Budget, AmountField),
		Goal:    sum(r.Goal, TargetAmountField),
	}
}

// Normalize coerces a server-provided totals object into the canonical
// shape. Missing or malformed fields default to zero.
func Normalize(payload map[string]any) core.FinancialTotals {
	return core.FinancialTotals{
		Income:  core.AmountOrZero(payload[string(core.KindIncome)]),
		Expense: core.AmountOrZero(payload[string(core.KindExpense)]),
		Budget:  core.AmountOrZero(payload[string(core.KindBudget)]),
		Goal:    core.AmountOrZero(payload[string(core.KindGoal)]),
	}
}

// Malformed counts records whose amount field would be coerced to zero.
func Malformed(r Records) int {
	n := 0
	for _, kind := range core.RecordKinds() {
		field := fieldFor(kind)
		for _, rec := range r.get(kind) {
			if _, ok := core.ParseAmount(rec[field]); !ok {
				n++
			}
		}
	}
	return n
}

func (r Records) get(kind core.RecordKind) []core.Record {
	switch kind {
	case core.KindIncome:
		return r.Income
	case core.KindExpense:
		return r.Expense
	case core.KindBudget:
		return r.Budget
	case core.KindGoal:
		return r.Goal
	}
	return nil
}

func fieldFor(kind core.RecordKind) string {
	if kind == core.KindGoal {
		return TargetAmountField
	}
	return AmountField
}

func sum(records []core.Record, field string) decimal.Decimal {
	total := decimal.Zero
	for _, rec := range records {
		total = total.Add(core.AmountOrZero(rec[field]))
	}
	return total
}
