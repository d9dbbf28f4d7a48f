package queue

import (
	"context"
	"time"
)

type EventType string

const (
	EventRegistration EventType = "REGISTRATION"
	EventCalled       EventType = "CALLED"
	EventRouted       EventType = "ROUTED"
	EventCompleted    EventType = "COMPLETED"
)

// Event is published after a queue transition has been committed.
type Event struct {
	Type           EventType   `json:"type"`
	Entry          *QueueEntry `json:"entry"`
	Routed         *QueueEntry `json:"routed,omitempty"`
	StaffID        string      `json:"staffId,omitempty"`
	WaitingSeconds int64       `json:"waitingSeconds,omitempty"`
	OccurredAt     time.Time   `json:"occurredAt"`
}

// Departments lists every department whose board changed because of e.
func (e Event) Departments() []Department {
	var out []Department
	if e.Entry != nil {
		out = append(out, e.Entry.Department)
	}
	if e.Routed != nil && (e.Entry == nil || e.Routed.Department != e.Entry.Department) {
		out = append(out, e.Routed.Department)
	}
	return out
}

// Publisher hands events to asynchronous consumers. Implementations must not
// block the caller.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}
