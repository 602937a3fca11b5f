package sse

import (
	"context"

	"github.com/starford/feedwise/internal/apperr"
	"github.com/starford/feedwise/internal/reminder"
)

// NotificationSink delivers reminders as "reminder" events. Permission is
// granted whenever a broker is attached.
type NotificationSink struct {
	Broker *Broker
}

var _ reminder.Sink = NotificationSink{}

// RequestPermission implements reminder.Sink. Reminders are armed even with no
// client connected, so that a client opening later still receives them.
func (s NotificationSink) RequestPermission(context.Context) bool {
	return s.Broker != nil
}

// Show implements reminder.Sink.
func (s NotificationSink) Show(_ context.Context, n reminder.Notification) error {
	if s.Broker == nil {
		return apperr.ErrPermissionDenied
	}
	s.Broker.Publish(Event{Type: TypeReminder, Data: n})
	return nil
}
