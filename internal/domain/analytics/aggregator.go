package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/johnnysally/SmartCare360-sub000/internal/domain/queue"
)

const (
	DefaultReportDays = 7
	MaxReportDays     = 90
)

// Aggregator computes live queue statistics and maintains the daily
// per-department snapshot table.
type Aggregator struct {
	entries EntrySource
	repo    Repository
	loc     *time.Location
	logger  zerolog.Logger
	now     func() time.Time
}

func NewAggregator(entries EntrySource, repo Repository, loc *time.Location, logger zerolog.Logger) *Aggregator {
	if loc == nil {
		loc = time.Local
	}
	return &Aggregator{entries: entries, repo: repo, loc: loc, logger: logger, now: time.Now}
}

func (a *Aggregator) today() (time.Time, time.Time) {
	start := queue.StartOfDay(a.now(), a.loc)
	return start, start.AddDate(0, 0, 1)
}

func parseOptionalDepartment(s string) (*queue.Department, error) {
	if s == "" {
		return nil, nil
	}
	d, err := queue.ParseDepartment(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// GetQueueStats summarizes entries that arrived today. An empty department
// covers the whole clinic.
func (a *Aggregator) GetQueueStats(ctx context.Context, department string) (*QueueStats, error) {
	dept, err := parseOptionalDepartment(department)
	if err != nil {
		return nil, err
	}
	from, to := a.today()
	entries, err := a.entries.ListArrivedBetween(ctx, dept, from, to)
	if err != nil {
		return nil, fmt.Errorf("list today's entries: %w", err)
	}
	stats := Summarize(entries)
	stats.Department = dept
	stats.Date = from.Format(time.DateOnly)
	return &stats, nil
}

// UpdateQueueAnalytics recomputes today's snapshot for dept and upserts it.
func (a *Aggregator) UpdateQueueAnalytics(ctx context.Context, dept queue.Department) (*DailyDepartmentStat, error) {
	stats, err := a.GetQueueStats(ctx, string(dept))
	if err != nil {
		return nil, err
	}
	from, _ := a.today()
	row := &DailyDepartmentStat{
		Department:      dept,
		StatDate:        from,
		TotalPatients:   stats.Total,
		AvgWaitSeconds:  stats.avgWaitSeconds,
		MaxWaitSeconds:  stats.maxWaitSeconds,
		CongestionLevel: stats.Congestion,
		UpdatedAt:       a.now().UTC(),
	}
	if err := a.repo.Upsert(ctx, row); err != nil {
		return nil, fmt.Errorf("upsert daily stats: %w", err)
	}
	return row, nil
}

// ClampDays applies the report window default and bounds.
func ClampDays(days int) int {
	switch {
	case days <= 0:
		return DefaultReportDays
	case days > MaxReportDays:
		return MaxReportDays
	default:
		return days
	}
}

// GetAnalyticsReport returns stored daily rows for the last days days,
// today included, newest first.
func (a *Aggregator) GetAnalyticsReport(ctx context.Context, department string, days int) ([]*DailyDepartmentStat, error) {
	dept, err := parseOptionalDepartment(department)
	if err != nil {
		return nil, err
	}
	from, _ := a.today()
	since := from.AddDate(0, 0, -(ClampDays(days) - 1))
	rows, err := a.repo.ListDaily(ctx, dept, since)
	if err != nil {
		return nil, fmt.Errorf("list daily stats: %w", err)
	}
	return rows, nil
}

// HandleQueueEvent refreshes the daily snapshot after a patient is called.
func (a *Aggregator) HandleQueueEvent(ctx context.Context, ev queue.Event) error {
	if ev.Type != queue.EventCalled || ev.Entry == nil {
		return nil
	}
	row, err := a.UpdateQueueAnalytics(ctx, ev.Entry.Department)
	if err != nil {
		return err
	}
	a.logger.Debug().
		Str("department", string(row.Department)).
		Str("congestion", string(row.CongestionLevel)).
		Int("total_patients", row.TotalPatients).
		Msg("daily stats refreshed")
	return nil
}
