package api

import (
	"context"
	"encoding/json"
	"log/slog"

	"fintrack/internal/core"
)

// obligationWire is the collaborator's recurring expense document. Older
// documents expose "_id", newer ones "id".
type obligationWire struct {
	MongoID     json.RawMessage `json:"_id"`
	ID          json.RawMessage `json:"id"`
	Amount      any             `json:"amount"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Interval    string          `json:"interval"`
	NextDue     *string         `json:"nextDue"`
}

func (w obligationWire) toDomain(ctx context.Context) core.RecurringObligation {
	o := core.RecurringObligation{
		ID:          rawID(w.MongoID),
		Amount:      core.AmountOrZero(w.Amount),
		Category:    w.Category,
		Description: w.Description,
		Interval:    core.Interval(w.Interval),
	}
	if o.ID == "" {
		o.ID = rawID(w.ID)
	}
	if w.NextDue != nil && *w.NextDue != "" {
		d, err := core.ParseDate(*w.NextDue)
		if err != nil {
			slog.WarnContext(ctx, "Ignoring unparseable due date", "obligation_id", o.ID, "next_due", *w.NextDue)
		} else {
			o.NextDue = d
		}
	}
	return o
}

// rawID accepts string or numeric identifiers.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}
