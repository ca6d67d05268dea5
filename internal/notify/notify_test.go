package notify

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fintrack/internal/core"
)

func totals(income, expense, budget, goal int64) core.FinancialTotals {
	return core.FinancialTotals{
		Income:  decimal.NewFromInt(income),
		Expense: decimal.NewFromInt(expense),
		Budget:  decimal.NewFromInt(budget),
		Goal:    decimal.NewFromInt(goal),
	}
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		totals core.FinancialTotals
		want   []core.Notification
	}{
		{
			name:   "all rules fire in order",
			totals: totals(100, 150, 120, 200),
			want: []core.Notification{
				{Message: "expenses exceed income", Severity: core.SeverityWarning},
				{Message: "expenses exceed budget", Severity: core.SeverityAlert},
				{Message: "goal exceeds budget", Severity: core.SeverityReminder},
			},
		},
		{
			name:   "all zero",
			totals: core.FinancialTotals{},
			want:   []core.Notification{},
		},
		{
			name:   "equal values do not fire",
			totals: totals(100, 100, 100, 100),
			want:   []core.Notification{},
		},
		{
			name:   "only goal over budget",
			totals: totals(500, 50, 100, 101),
			want: []core.Notification{
				{Message: "goal exceeds budget", Severity: core.SeverityReminder},
			},
		},
		{
			name:   "over budget but within income",
			totals: totals(1000, 300, 200, 0),
			want: []core.Notification{
				{Message: "expenses exceed budget", Severity: core.SeverityAlert},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.totals)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOverdueRule(t *testing.T) {
	_, ok := OverdueRule(0)
	assert.False(t, ok)

	n, ok := OverdueRule(1)
	require.True(t, ok)
	assert.Equal(t, core.Notification{Message: "1 recurring obligation overdue", Severity: core.SeverityAlert}, n)

	n, ok = OverdueRule(3)
	require.True(t, ok)
	assert.Equal(t, "3 recurring obligations overdue", n.Message)
}

func TestEngine(t *testing.T) {
	e := NewEngine()
	assert.Equal(t, 0, e.Count())
	assert.False(t, e.IsOpen())

	got := e.Refresh(totals(100, 150, 120, 200))
	assert.Len(t, got, 3)
	assert.Equal(t, 3, e.Count())

	t.Run("notifications is a copy", func(t *testing.T) {
		list := e.Notifications()
		list[0].Message = "mutated"
		assert.Equal(t, "expenses exceed income", e.Notifications()[0].Message)
	})

	t.Run("toggle", func(t *testing.T) {
		assert.True(t, e.Toggle())
		assert.True(t, e.IsOpen())
	})

	t.Run("clear empties and closes", func(t *testing.T) {
		e.Clear()
		assert.Empty(t, e.Notifications())
		assert.Equal(t, 0, e.Count())
		assert.False(t, e.IsOpen())
	})

	t.Run("clear does not suppress the next refresh", func(t *testing.T) {
		got := e.Refresh(totals(100, 150, 120, 200))
		assert.Len(t, got, 3)
	})

	t.Run("refresh appends extra notifications", func(t *testing.T) {
		overdue, _ := OverdueRule(2)
		got := e.Refresh(totals(0, 0, 0, 0), overdue)
		assert.Equal(t, []core.Notification{overdue}, got)
	})
}
