package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// -- Mock Repository --

type mockRepo struct {
	mu        sync.Mutex
	entries   map[uuid.UUID]*QueueEntry
	counters  map[string]int
	createErr func(e *QueueEntry) error
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		entries:  make(map[uuid.UUID]*QueueEntry),
		counters: make(map[string]int),
	}
}

func clone(e *QueueEntry) *QueueEntry {
	cp := *e
	return &cp
}

func (m *mockRepo) NextQueueNumber(_ context.Context, dept Department, day time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := string(dept) + "|" + day.Format("2006-01-02")
	m.counters[key]++
	return m.counters[key], nil
}

func (m *mockRepo) Create(_ context.Context, e *QueueEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		if err := m.createErr(e); err != nil {
			return err
		}
	}
	for _, other := range m.entries {
		if other.Department == e.Department && other.QueueDate.Equal(e.QueueDate) && other.QueueNumber == e.QueueNumber {
			return fmt.Errorf("duplicate queue number %s", e.QueueNumber)
		}
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.CreatedAt = e.ArrivalTime
	e.UpdatedAt = e.ArrivalTime
	m.entries[e.ID] = clone(e)
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return clone(e), nil
}

func (m *mockRepo) head(dept Department) *QueueEntry {
	var best *QueueEntry
	for _, e := range m.entries {
		if e.Department != dept || e.Status != StatusWaiting {
			continue
		}
		if best == nil || Less(e, best) {
			best = e
		}
	}
	return best
}

func (m *mockRepo) PeekNext(_ context.Context, dept Department) (*QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e := m.head(dept); e != nil {
		return clone(e), nil
	}
	return nil, nil
}

func (m *mockRepo) ClaimNext(_ context.Context, dept Department, staffID string, now time.Time) (*QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.head(dept)
	if e == nil {
		return nil, nil
	}
	e.Status = StatusServing
	e.CallTime = &now
	e.ServiceStartTime = &now
	if staffID != "" {
		e.CalledBy = &staffID
	}
	e.UpdatedAt = now
	return clone(e), nil
}

func (m *mockRepo) Complete(_ context.Context, id uuid.UUID, now time.Time) (*QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.Status != StatusServing {
		return nil, fmt.Errorf("%w: cannot complete entry in status %s", ErrInvalidTransition, e.Status)
	}
	e.Status = StatusCompleted
	e.ServiceEndTime = &now
	e.UpdatedAt = now
	return clone(e), nil
}

func (m *mockRepo) UpdatePriority(_ context.Context, id uuid.UUID, p Priority) (*QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if e.Status == StatusCompleted {
		return nil, fmt.Errorf("%w: cannot reprioritise entry in status %s", ErrInvalidTransition, e.Status)
	}
	e.Priority = p
	return clone(e), nil
}

func (m *mockRepo) ListActive(_ context.Context, dept Department, limit int) ([]*QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*QueueEntry
	for _, e := range m.entries {
		if e.Department == dept && e.Status != StatusCompleted {
			out = append(out, clone(e))
		}
	}
	sort.Slice(out, func(i, j int) bool { return LessForDisplay(out[i], out[j]) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockRepo) ListArrivedBetween(_ context.Context, dept *Department, from, to time.Time) ([]*QueueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*QueueEntry
	for _, e := range m.entries {
		if dept != nil && e.Department != *dept {
			continue
		}
		if e.ArrivalTime.Before(from) || !e.ArrivalTime.Before(to) {
			continue
		}
		out = append(out, clone(e))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ArrivalTime.Before(out[j].ArrivalTime) })
	return out, nil
}

// WithTx restores the previous state when fn fails.
func (m *mockRepo) WithTx(_ context.Context, fn func(Repository) error) error {
	m.mu.Lock()
	entries := make(map[uuid.UUID]*QueueEntry, len(m.entries))
	for id, e := range m.entries {
		entries[id] = clone(e)
	}
	counters := make(map[string]int, len(m.counters))
	for k, v := range m.counters {
		counters[k] = v
	}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.entries = entries
		m.counters = counters
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *mockRepo) byPatient(dept Department, patientID string) []*QueueEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*QueueEntry
	for _, e := range m.entries {
		if e.Department == dept && e.PatientID == patientID {
			out = append(out, clone(e))
		}
	}
	return out
}

// -- Test doubles --

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)}
}

// Now advances one minute per call so arrivals are strictly ordered.
func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Minute)
	return c.t
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) types() []EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]EventType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

type countingObserver struct {
	mu        sync.Mutex
	checkIns  int
	claimed   int
	empty     int
	completed int
	routed    int
}

func (o *countingObserver) CheckedIn(Department) {
	o.mu.Lock()
	o.checkIns++
	o.mu.Unlock()
}

func (o *countingObserver) Called(_ Department, claimed bool, _ time.Duration) {
	o.mu.Lock()
	if claimed {
		o.claimed++
	} else {
		o.empty++
	}
	o.mu.Unlock()
}

func (o *countingObserver) Completed(_ Department, routed bool) {
	o.mu.Lock()
	o.completed++
	if routed {
		o.routed++
	}
	o.mu.Unlock()
}

type testEnv struct {
	repo     *mockRepo
	pub      *recordingPublisher
	obs      *countingObserver
	checkIn  *CheckInService
	dispatch *DispatchService
}

func newTestEnv() *testEnv {
	repo := newMockRepo()
	pub := &recordingPublisher{}
	obs := &countingObserver{}
	clock := newFakeClock()
	opts := Options{Events: pub, Observer: obs, Location: time.UTC, Now: clock.Now}
	checkIn := NewCheckInService(repo, opts)
	return &testEnv{
		repo:     repo,
		pub:      pub,
		obs:      obs,
		checkIn:  checkIn,
		dispatch: NewDispatchService(repo, checkIn, opts),
	}
}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
