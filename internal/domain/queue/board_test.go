package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/johnnysally/SmartCare360-sub000/internal/platform/websocket"
)

type captureBoard struct {
	events []websocket.Event
	err    error
}

func (c *captureBoard) Publish(_ context.Context, e websocket.Event) error {
	c.events = append(c.events, e)
	return c.err
}

func TestBoardHandler_Called(t *testing.T) {
	board := &captureBoard{}
	entry := &QueueEntry{ID: uuid.New(), Department: DeptOPD, QueueNumber: "OPD003"}
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	if err := BoardHandler(board)(context.Background(), Event{Type: EventCalled, Entry: entry, OccurredAt: at}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(board.events) != 1 {
		t.Fatalf("expected 1 board event, got %d", len(board.events))
	}
	ev := board.events[0]
	if ev.Topic != "OPD" || ev.Type != "CALLED" || ev.QueueID != entry.ID.String() || !ev.Timestamp.Equal(at) {
		t.Errorf("unexpected board event %+v", ev)
	}
	var payload Event
	if err := json.Unmarshal(ev.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload.Entry.QueueNumber != "OPD003" {
		t.Errorf("expected payload to carry the entry, got %+v", payload.Entry)
	}
}

func TestBoardHandler_RoutedTouchesBothDepartments(t *testing.T) {
	board := &captureBoard{}
	done := &QueueEntry{ID: uuid.New(), Department: DeptOPD}
	next := &QueueEntry{ID: uuid.New(), Department: DeptLaboratory}

	if err := BoardHandler(board)(context.Background(), Event{Type: EventRouted, Entry: done, Routed: next}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(board.events) != 2 {
		t.Fatalf("expected 2 board events, got %d", len(board.events))
	}
	if board.events[1].Topic != "Laboratory" || board.events[1].QueueID != next.ID.String() {
		t.Errorf("unexpected routed board event %+v", board.events[1])
	}
}

func TestBoardHandler_PublishError(t *testing.T) {
	board := &captureBoard{err: errors.New("redis down")}
	entry := &QueueEntry{ID: uuid.New(), Department: DeptBilling}
	if err := BoardHandler(board)(context.Background(), Event{Type: EventCalled, Entry: entry}); err == nil {
		t.Error("expected the publish error to surface to the outbox")
	}
}
