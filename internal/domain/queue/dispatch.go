package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DispatchService advances entries through WAITING -> SERVING -> COMPLETED.
type DispatchService struct {
	repo    Repository
	checkIn *CheckInService
	opts    Options
}

func NewDispatchService(repo Repository, checkIn *CheckInService, opts Options) *DispatchService {
	return &DispatchService{repo: repo, checkIn: checkIn, opts: opts.withDefaults()}
}

// GetNext returns the entry that would be called next, or nil.
func (s *DispatchService) GetNext(ctx context.Context, department string) (*QueueEntry, error) {
	dept, err := ParseDepartment(department)
	if err != nil {
		return nil, err
	}
	return s.repo.PeekNext(ctx, dept)
}

// CallNext claims the head of the department queue for staffID. It returns
// nil, nil when nobody is waiting.
func (s *DispatchService) CallNext(ctx context.Context, department, staffID string) (*CallResult, error) {
	dept, err := ParseDepartment(department)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now()
	entry, err := s.repo.ClaimNext(ctx, dept, strings.TrimSpace(staffID), now)
	if err != nil {
		return nil, fmt.Errorf("claim next in %s: %w", dept, err)
	}
	if entry == nil {
		s.opts.Observer.Called(dept, false, 0)
		return nil, nil
	}

	wait := entry.WaitingSeconds()
	s.opts.Observer.Called(dept, true, time.Duration(wait)*time.Second)
	publish(ctx, s.opts, Event{
		Type:           EventCalled,
		Entry:          entry,
		StaffID:        staffID,
		WaitingSeconds: wait,
		OccurredAt:     now,
	})
	return &CallResult{QueueEntry: entry, WaitingSeconds: wait}, nil
}

// CompleteService finishes a SERVING entry. A valid nextDepartment checks the
// same patient, with the same priority, into that department in the same
// transaction. An unknown nextDepartment is ignored and the entry is completed
// without routing.
func (s *DispatchService) CompleteService(ctx context.Context, id uuid.UUID, nextDepartment string) (*CompleteResult, error) {
	var next *Department
	if strings.TrimSpace(nextDepartment) != "" {
		d, err := ParseDepartment(nextDepartment)
		if err != nil {
			s.opts.Logger.Warn().Err(err).
				Str("queue_id", id.String()).
				Str("next_department", nextDepartment).
				Msg("ignoring unknown next department, completing without routing")
		} else {
			next = &d
		}
	}

	now := s.opts.Now()
	res := &CompleteResult{}
	err := s.repo.WithTx(ctx, func(repo Repository) error {
		completed, err := repo.Complete(ctx, id, now)
		if err != nil {
			return err
		}
		res.Completed = completed
		if next == nil {
			return nil
		}
		res.Routed, err = s.checkIn.admit(ctx, repo, admission{
			patientID:   completed.PatientID,
			patientName: completed.PatientName,
			phone:       completed.Phone,
			dept:        *next,
			priority:    completed.Priority,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.opts.Observer.Completed(res.Completed.Department, res.Routed != nil)
	if res.Routed != nil {
		s.opts.Observer.CheckedIn(res.Routed.Department)
		publish(ctx, s.opts, Event{Type: EventRouted, Entry: res.Completed, Routed: res.Routed, OccurredAt: now})
	} else {
		publish(ctx, s.opts, Event{Type: EventCompleted, Entry: res.Completed, OccurredAt: now})
	}
	return res, nil
}

// SetPriority changes the priority of a WAITING or SERVING entry. Values
// outside 1..4 are rejected before anything is written.
func (s *DispatchService) SetPriority(ctx context.Context, id uuid.UUID, priority int) (*QueueEntry, error) {
	p := Priority(priority)
	if !p.Valid() {
		return nil, fmt.Errorf("%w: priority must be between 1 and 4, got %d", ErrValidation, priority)
	}
	return s.repo.UpdatePriority(ctx, id, p)
}

// GetDepartmentQueue lists WAITING and SERVING entries, SERVING first.
func (s *DispatchService) GetDepartmentQueue(ctx context.Context, department string, limit int) ([]*QueueEntry, error) {
	dept, err := ParseDepartment(department)
	if err != nil {
		return nil, err
	}
	items, err := s.repo.ListActive(ctx, dept, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s queue: %w", dept, err)
	}
	if items == nil {
		items = []*QueueEntry{}
	}
	return items, nil
}

// GetAllQueueStatus fetches every department queue in parallel.
func (s *DispatchService) GetAllQueueStatus(ctx context.Context, limit int) (map[Department][]*QueueEntry, error) {
	results := make([][]*QueueEntry, len(Departments))
	g, gctx := errgroup.WithContext(ctx)
	for i, dept := range Departments {
		i, dept := i, dept
		g.Go(func() error {
			items, err := s.GetDepartmentQueue(gctx, string(dept), limit)
			if err != nil {
				return err
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[Department][]*QueueEntry, len(Departments))
	for i, dept := range Departments {
		out[dept] = results[i]
	}
	return out, nil
}
