package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/johnnysally/SmartCare360-sub000/internal/platform/websocket"
)

// BoardHandler returns an outbox subscriber that pushes each queue event to
// the live board, once per affected department topic.
func BoardHandler(pub websocket.EventPublisher) func(ctx context.Context, e Event) error {
	return func(ctx context.Context, e Event) error {
		if e.Entry == nil {
			return nil
		}
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal queue event: %w", err)
		}

		var errs []error
		for _, dept := range e.Departments() {
			queueID := e.Entry.ID.String()
			if e.Routed != nil && dept == e.Routed.Department && dept != e.Entry.Department {
				queueID = e.Routed.ID.String()
			}
			err := pub.Publish(ctx, websocket.Event{
				Type:      string(e.Type),
				Topic:     string(dept),
				QueueID:   queueID,
				Timestamp: e.OccurredAt,
				Data:      data,
			})
			if err != nil {
				errs = append(errs, fmt.Errorf("board %s: %w", dept, err))
			}
		}
		return errors.Join(errs...)
	}
}
