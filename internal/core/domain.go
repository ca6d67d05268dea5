package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Daily     Interval = "daily"
	Weekly    Interval = "weekly"
	Biweekly  Interval = "biweekly"
	Monthly   Interval = "monthly"
	Quarterly Interval = "quarterly"
	Yearly    Interval = "yearly"
)

const (
	KindIncome  RecordKind = "income"
	KindExpense RecordKind = "expense"
	KindBudget  RecordKind = "budget"
	KindGoal    RecordKind = "goal"
)

const (
	SeverityWarning  Severity = "warning"
	SeverityAlert    Severity = "alert"
	SeverityReminder Severity = "reminder"
)

type (
	// Interval is the repetition of a recurring obligation. The collaborator
	// API stores it as free text, so unknown values are kept verbatim.
	Interval string

	// RecordKind names one of the four record collections.
	RecordKind string

	// Record is a raw record as decoded from the collaborator API. Its shape
	// is not trusted; see ParseAmount.
	Record map[string]any

	// Severity classifies a notification. It is shared by the threshold rules
	// and the overdue-obligation rule.
	Severity string

	Date struct {
		time.Time
	}

	// FinancialTotals is an immutable point-in-time summary. A new value is
	// produced on every aggregation.
	FinancialTotals struct {
		Income  decimal.Decimal `json:"income"`
		Expense decimal.Decimal `json:"expense"`
		Budget  decimal.Decimal `json:"budget"`
		Goal    decimal.Decimal `json:"goal"`
	}

	Notification struct {
		Message  string   `json:"message"`
		Severity Severity `json:"severity"`
	}

	RecurringObligation struct {
		ID          string
		Amount      decimal.Decimal
		Category    string
		Description string
		Interval    Interval
		NextDue     Date // zero when the obligation has no due date
	}
)

var ErrInvalidDate = errors.New("invalid date")

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate accepts YYYY-MM-DD or an RFC 3339 timestamp and returns the
// calendar date it names.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrInvalidDate
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return DateOf(t), nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return DateOf(t), nil
	}
	return Date{}, ErrInvalidDate
}

// IsEmpty returns true if the date is zero
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// Before reports whether d is a strictly earlier calendar day than o.
func (d Date) Before(o Date) bool {
	return d.Time.Before(o.Time)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(time.DateOnly)
}

// Equal reports whether both snapshots carry the same amounts.
func (t FinancialTotals) Equal(o FinancialTotals) bool {
	return t.Income.Equal(o.Income) &&
		t.Expense.Equal(o.Expense) &&
		t.Budget.Equal(o.Budget) &&
		t.Goal.Equal(o.Goal)
}

// IsZero reports whether every field of the snapshot is zero.
func (t FinancialTotals) IsZero() bool {
	return t.Income.IsZero() && t.Expense.IsZero() && t.Budget.IsZero() && t.Goal.IsZero()
}

// RecordKinds lists the collections in aggregation order.
func RecordKinds() []RecordKind {
	return []RecordKind{KindIncome, KindExpense, KindBudget, KindGoal}
}

// Known reports whether the interval has a built-in name, ignoring case
// and surrounding space.
func (i Interval) Known() bool {
	switch i.normalized() {
	case Daily, Weekly, Biweekly, Monthly, Quarterly, Yearly:
		return true
	default:
		return false
	}
}

func (i Interval) normalized() Interval {
	return Interval(strings.ToLower(strings.TrimSpace(string(i))))
}

// ParseInterval lowercases and trims free-text interval values.
func ParseInterval(s string) Interval {
	return Interval(s).normalized()
}
