package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/scheduler"
)

// Reporter renders command results as aligned text or JSON.
type Reporter struct {
	writer io.Writer
	json   bool
}

func NewReporter(writer io.Writer, asJSON bool) *Reporter {
	if writer == nil {
		writer = os.Stdout
	}
	return &Reporter{writer: writer, json: asJSON}
}

func (r *Reporter) encode(v any) error {
	enc := json.NewEncoder(r.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Totals prints the four amounts and the notifications they raise.
func (r *Reporter) Totals(t core.FinancialTotals, notes []core.Notification) error {
	if r.json {
		return r.encode(struct {
			Totals        core.FinancialTotals `json:"totals"`
			Notifications []core.Notification  `json:"notifications"`
		}{t, notes})
	}
	rows := []struct {
		label string
		value string
	}{
		{"Income", t.Income.StringFixed(2)},
		{"Expense", t.Expense.StringFixed(2)},
		{"Budget", t.Budget.StringFixed(2)},
		{"Goal", t.Goal.StringFixed(2)},
	}
	for _, row := range rows {
		fmt.Fprintf(r.writer, "%-8s %12s\n", row.label, row.value)
	}
	if len(notes) > 0 {
		fmt.Fprintln(r.writer)
	}
	return r.Notifications(notes)
}

func (r *Reporter) Notifications(notes []core.Notification) error {
	if r.json {
		return r.encode(notes)
	}
	if len(notes) == 0 {
		fmt.Fprintln(r.writer, "No notifications")
		return nil
	}
	for _, n := range notes {
		fmt.Fprintf(r.writer, "[%s] %s\n", strings.ToUpper(string(n.Severity)), n.Message)
	}
	return nil
}

type obligationRow struct {
	ID          string `json:"id"`
	Amount      string `json:"amount"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Interval    string `json:"interval"`
	NextDue     string `json:"nextDue"`
	Overdue     bool   `json:"overdue"`
}

// Obligations prints one line per obligation; overdue ones are flagged
// against asOf.
func (r *Reporter) Obligations(items []core.RecurringObligation, asOf core.Date) error {
	rows := make([]obligationRow, 0, len(items))
	for _, o := range items {
		rows = append(rows, obligationRow{
			ID:          o.ID,
			Amount:      o.Amount.StringFixed(2),
			Category:    o.Category,
			Description: o.Description,
			Interval:    string(o.Interval),
			NextDue:     o.NextDue.String(),
			Overdue:     scheduler.IsOverdue(o, asOf),
		})
	}
	if r.json {
		return r.encode(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(r.writer, "No recurring obligations")
		return nil
	}
	fmt.Fprintf(r.writer, "%-24s %10s  %-10s  %-10s  %s\n", "ID", "AMOUNT", "INTERVAL", "NEXT DUE", "DESCRIPTION")
	for _, row := range rows {
		due := row.NextDue
		if due == "" {
			due = "-"
		}
		if row.Overdue {
			due += " !"
		}
		fmt.Fprintf(r.writer, "%-24s %10s  %-10s  %-10s  %s\n", row.ID, row.Amount, row.Interval, due, row.Description)
	}
	return nil
}

func (r *Reporter) Obligation(o core.RecurringObligation, asOf core.Date) error {
	return r.Obligations([]core.RecurringObligation{o}, asOf)
}

// Alert prints one consumed alert message.
func (r *Reporter) Alert(msg *amqp.AlertMessage) error {
	if r.json {
		return r.encode(msg)
	}
	fmt.Fprintf(r.writer, "%s  %d notification(s), %d overdue\n",
		msg.Timestamp.Format("2006-01-02 15:04:05"), len(msg.Notifications), msg.OverdueCount)
	for _, n := range msg.Notifications {
		fmt.Fprintf(r.writer, "  [%s] %s\n", strings.ToUpper(string(n.Severity)), n.Message)
	}
	return nil
}

func (r *Reporter) Message(format string, args ...any) {
	if r.json {
		return
	}
	fmt.Fprintf(r.writer, format+"\n", args...)
}
