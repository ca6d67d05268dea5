package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/core"
	"fintrack/internal/monitor"
)

// AlertMessage is published whenever the set of active notifications
// changes. Amounts travel as decimal strings.
type AlertMessage struct {
	ID            string               `json:"id"`
	Notifications []core.Notification  `json:"notifications"`
	Totals        core.FinancialTotals `json:"totals"`
	OverdueCount  int                  `json:"overdue_count"`
	Timestamp     time.Time            `json:"timestamp"`
}

func NewAlertMessage(s monitor.Snapshot) *AlertMessage {
	ts := s.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	return &AlertMessage{
		ID:            uuid.NewString(),
		Notifications: s.Notifications,
		Totals:        s.Totals,
		OverdueCount:  s.OverdueCount,
		Timestamp:     ts,
	}
}

func (m *AlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func AlertMessageFromJSON(data []byte) (*AlertMessage, error) {
	var msg AlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
