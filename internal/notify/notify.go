// Package notify derives alert conditions from a totals snapshot.
package notify

import (
	"fmt"
	"log/slog"
	"sync"

	"fintrack/internal/core"
)

const (
	MsgExpensesExceedIncome = "expenses exceed income"
	MsgExpensesExceedBudget = "expenses exceed budget"
	MsgGoalExceedsBudget    = "goal exceeds budget"
)

// Evaluate applies the threshold rules in fixed order. Comparisons are
// strict, so equal values never trigger a rule. It never fails; a snapshot
// with nothing wrong yields an empty, non-nil list.
func Evaluate(t core.FinancialTotals) []core.Notification {
	out := make([]core.Notification, 0, 3)
	if t.Income.LessThan(t.Expense) {
		out = append(out, core.Notification{Message: MsgExpensesExceedIncome, Severity: core.SeverityWarning})
	}
	if t.Expense.GreaterThan(t.Budget) {
		out = append(out, core.Notification{Message: MsgExpensesExceedBudget, Severity: core.SeverityAlert})
	}
	if t.Goal.GreaterThan(t.Budget) {
		out = append(out, core.Notification{Message: MsgGoalExceedsBudget, Severity: core.SeverityReminder})
	}
	return out
}

// OverdueRule builds the notification for overdue recurring obligations.
// It is not part of Evaluate; callers that track obligations append it.
func OverdueRule(count int) (core.Notification, bool) {
	if count <= 0 {
		return core.Notification{}, false
	}
	noun := "obligation"
	if count > 1 {
		noun = "obligations"
	}
	return core.Notification{
		Message:  fmt.Sprintf("%d recurring %s overdue", count, noun),
		Severity: core.SeverityAlert,
	}, true
}

// Engine holds the current notification list and the open state of the
// surface that displays it.
type Engine struct {
	mu    sync.RWMutex
	items []core.Notification
	open  bool
}

func NewEngine() *Engine {
	return &Engine{}
}

// Refresh replaces the list with Evaluate(t) followed by extra.
func (e *Engine) Refresh(t core.FinancialTotals, extra ...core.Notification) []core.Notification {
	next := append(Evaluate(t), extra...)

	e.mu.Lock()
	e.items = next
	e.mu.Unlock()

	slog.Debug("Notifications refreshed", "count", len(next))
	return clone(next)
}

// Notifications returns a copy of the current list.
func (e *Engine) Notifications() []core.Notification {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return clone(e.items)
}

// Count is the badge number.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.items)
}

// Toggle flips the open state and returns it.
func (e *Engine) Toggle() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.open = !e.open
	return e.open
}

func (e *Engine) IsOpen() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.open
}

// Clear discards the list and closes the surface. The next Refresh
// evaluates from scratch.
func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = nil
	e.open = false
}

func clone(in []core.Notification) []core.Notification {
	out := make([]core.Notification, len(in))
	copy(out, in)
	return out
}
