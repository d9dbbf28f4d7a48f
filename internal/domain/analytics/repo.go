package analytics

import (
	"context"
	"time"

	"github.com/johnnysally/SmartCare360-sub000/internal/domain/queue"
)

type Repository interface {
	Upsert(ctx context.Context, s *DailyDepartmentStat) error
	// ListDaily returns rows with stat_date >= since, newest first. A nil
	// department returns every department.
	ListDaily(ctx context.Context, dept *queue.Department, since time.Time) ([]*DailyDepartmentStat, error)
}

// EntrySource is the slice of the queue store the aggregator reads.
type EntrySource interface {
	ListArrivedBetween(ctx context.Context, dept *queue.Department, from, to time.Time) ([]*queue.QueueEntry, error)
}
