package analytics

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/johnnysally/SmartCare360-sub000/internal/domain/queue"
)

type fakeEntries struct {
	entries []*queue.QueueEntry
	err     error
	calls   int
}

func (f *fakeEntries) ListArrivedBetween(_ context.Context, dept *queue.Department, from, to time.Time) ([]*queue.QueueEntry, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []*queue.QueueEntry
	for _, e := range f.entries {
		if dept != nil && e.Department != *dept {
			continue
		}
		if e.ArrivalTime.Before(from) || !e.ArrivalTime.Before(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

type statKey struct {
	dept queue.Department
	day  string
}

type mockStatRepo struct {
	mu        sync.Mutex
	rows      map[statKey]*DailyDepartmentStat
	upsertErr error
	since     time.Time
}

func newMockStatRepo() *mockStatRepo {
	return &mockStatRepo{rows: make(map[statKey]*DailyDepartmentStat)}
}

func (m *mockStatRepo) Upsert(_ context.Context, s *DailyDepartmentStat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	cp := *s
	m.rows[statKey{s.Department, s.StatDate.Format(time.DateOnly)}] = &cp
	return nil
}

func (m *mockStatRepo) ListDaily(_ context.Context, dept *queue.Department, since time.Time) ([]*DailyDepartmentStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.since = since
	out := []*DailyDepartmentStat{}
	for _, r := range m.rows {
		if dept != nil && r.Department != *dept {
			continue
		}
		if r.StatDate.Before(since) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StatDate.Equal(out[j].StatDate) {
			return out[i].StatDate.After(out[j].StatDate)
		}
		return out[i].Department < out[j].Department
	})
	return out, nil
}

var testNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newTestAggregator(entries ...*queue.QueueEntry) (*Aggregator, *fakeEntries, *mockStatRepo) {
	src := &fakeEntries{entries: entries}
	repo := newMockStatRepo()
	agg := NewAggregator(src, repo, time.UTC, zerolog.Nop())
	agg.now = func() time.Time { return testNow }
	return agg, src, repo
}

// entry builds a queue entry that arrived at arrival and, when waitMin >= 0,
// was called waitMin minutes later.
func entry(dept queue.Department, status queue.Status, arrival time.Time, waitMin int) *queue.QueueEntry {
	e := &queue.QueueEntry{
		ID:          uuid.New(),
		PatientID:   "P-" + uuid.NewString()[:4],
		Department:  dept,
		Status:      status,
		Priority:    queue.PriorityNormal,
		ArrivalTime: arrival,
	}
	if waitMin >= 0 {
		ct := arrival.Add(time.Duration(waitMin) * time.Minute)
		e.CallTime = &ct
		e.ServiceStartTime = &ct
	}
	return e
}
