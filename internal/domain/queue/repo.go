package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository is the queue store. Every transition is a single conditional
// statement so concurrent callers can never both win the same entry.
type Repository interface {
	// NextQueueNumber increments and returns the department's sequence for day.
	NextQueueNumber(ctx context.Context, dept Department, day time.Time) (int, error)
	Create(ctx context.Context, e *QueueEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*QueueEntry, error)

	// PeekNext returns the entry ClaimNext would take, or nil.
	PeekNext(ctx context.Context, dept Department) (*QueueEntry, error)
	// ClaimNext moves the head of the department queue to SERVING and returns
	// it, or nil when nothing is waiting.
	ClaimNext(ctx context.Context, dept Department, staffID string, now time.Time) (*QueueEntry, error)
	// Complete moves a SERVING entry to COMPLETED. It returns ErrNotFound for
	// unknown ids and ErrInvalidTransition when the entry is not SERVING.
	Complete(ctx context.Context, id uuid.UUID, now time.Time) (*QueueEntry, error)
	// UpdatePriority changes the priority of a WAITING or SERVING entry.
	UpdatePriority(ctx context.Context, id uuid.UUID, p Priority) (*QueueEntry, error)

	ListActive(ctx context.Context, dept Department, limit int) ([]*QueueEntry, error)
	// ListArrivedBetween returns entries with from <= arrival_time < to. A nil
	// dept means every department.
	ListArrivedBetween(ctx context.Context, dept *Department, from, to time.Time) ([]*QueueEntry, error)

	// WithTx runs fn against a repository bound to one transaction.
	WithTx(ctx context.Context, fn func(Repository) error) error
}
