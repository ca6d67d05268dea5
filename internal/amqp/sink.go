package amqp

import (
	"context"
	"slices"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/monitor"
)

// Publisher is satisfied by *Client.
type Publisher interface {
	PublishAlert(ctx context.Context, msg *AlertMessage) error
}

// AlertSink publishes a snapshot only when its notification list differs
// from the last one published successfully. An empty list after a non-empty
// one is published too, so consumers learn that alerts cleared.
type AlertSink struct {
	pub Publisher

	mu   sync.Mutex
	last []core.Notification
	sent bool
}

func NewAlertSink(pub Publisher) *AlertSink {
	return &AlertSink{pub: pub}
}

func (s *AlertSink) Deliver(ctx context.Context, snap monitor.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sent && slices.Equal(s.last, snap.Notifications) {
		return nil
	}
	if !s.sent && len(snap.Notifications) == 0 {
		return nil
	}

	if err := s.pub.PublishAlert(ctx, NewAlertMessage(snap)); err != nil {
		return err
	}
	s.last = slices.Clone(snap.Notifications)
	s.sent = true
	return nil
}

var _ monitor.Sink = (*AlertSink)(nil)
