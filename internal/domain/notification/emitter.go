package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/johnnysally/SmartCare360-sub000/internal/domain/queue"
)

// Emitter persists patient notifications and forwards SMS ones to the sender.
type Emitter struct {
	repo   Repository
	sms    SMSSender
	logger zerolog.Logger
	now    func() time.Time
}

func NewEmitter(repo Repository, sms SMSSender, logger zerolog.Logger) *Emitter {
	return &Emitter{repo: repo, sms: sms, logger: logger, now: time.Now}
}

// CreateNotification writes one notification. The channel is SMS when phone is
// set and IN_APP otherwise. A failed SMS hand-off is logged; the stored row
// is still returned.
func (e *Emitter) CreateNotification(ctx context.Context, patientID string, phone *string, typ, title, message string, queueEntryID *uuid.UUID) (*Notification, error) {
	n := &Notification{
		ID:           uuid.New(),
		PatientID:    patientID,
		Channel:      ChannelFor(phone),
		Type:         typ,
		Title:        title,
		Message:      message,
		QueueEntryID: queueEntryID,
		SentAt:       e.now().UTC(),
	}
	if err := e.repo.Create(ctx, n); err != nil {
		return nil, fmt.Errorf("store notification: %w", err)
	}

	if n.Channel == ChannelSMS && e.sms != nil {
		if err := e.sms.SendSMS(ctx, *phone, message); err != nil {
			e.logger.Warn().Err(err).Str("notification_id", n.ID.String()).Msg("sms delivery failed")
		}
	}
	return n, nil
}

// HandleQueueEvent is the outbox subscriber that turns queue transitions into
// patient notifications.
func (e *Emitter) HandleQueueEvent(ctx context.Context, ev queue.Event) error {
	if ev.Entry == nil {
		return nil
	}
	title, message, ok := Render(ev)
	if !ok {
		return nil
	}
	entryID := ev.Entry.ID
	if ev.Type == queue.EventRouted && ev.Routed != nil {
		entryID = ev.Routed.ID
	}
	_, err := e.CreateNotification(ctx, ev.Entry.PatientID, ev.Entry.Phone, string(ev.Type), title, message, &entryID)
	return err
}

// Render builds the title and message for a queue event.
func Render(ev queue.Event) (title, message string, ok bool) {
	entry := ev.Entry
	switch ev.Type {
	case queue.EventRegistration:
		return "Queue Registration",
			fmt.Sprintf("Hello %s, you are checked in to %s. Your queue number is %s.", entry.PatientName, entry.Department, entry.QueueNumber),
			true
	case queue.EventCalled:
		return "Now Serving",
			fmt.Sprintf("%s, please proceed to %s.", entry.QueueNumber, entry.Department),
			true
	case queue.EventRouted:
		if ev.Routed == nil {
			return "", "", false
		}
		return "Next Stop",
			fmt.Sprintf("You have been referred to %s. Your new queue number is %s.", ev.Routed.Department, ev.Routed.QueueNumber),
			true
	case queue.EventCompleted:
		return "Service Completed",
			fmt.Sprintf("Your visit to %s is complete. Thank you.", entry.Department),
			true
	}
	return "", "", false
}
