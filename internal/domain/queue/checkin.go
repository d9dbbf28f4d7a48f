package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// CheckInRequest is the body of POST /check-in.
type CheckInRequest struct {
	PatientID   string  `json:"patientId" validate:"required,max=64"`
	PatientName string  `json:"patientName" validate:"required,max=255"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=32,phone"`
	Department  string  `json:"department" validate:"required"`
	Priority    *int    `json:"priority,omitempty"`
}

// Observer receives synchronous counters for queue transitions. It must be
// cheap and must not fail.
type Observer interface {
	CheckedIn(dept Department)
	Called(dept Department, claimed bool, wait time.Duration)
	Completed(dept Department, routed bool)
}

type nopObserver struct{}

func (nopObserver) CheckedIn(Department)                   {}
func (nopObserver) Called(Department, bool, time.Duration) {}
func (nopObserver) Completed(Department, bool)             {}

// Options configures the queue services. Zero values fall back to local time,
// a no-op observer and no event publishing.
type Options struct {
	Events   Publisher
	Observer Observer
	Location *time.Location
	Logger   zerolog.Logger
	Now      func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Observer == nil {
		o.Observer = nopObserver{}
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// CheckInService creates WAITING entries.
type CheckInService struct {
	repo Repository
	opts Options
}

func NewCheckInService(repo Repository, opts Options) *CheckInService {
	return &CheckInService{repo: repo, opts: opts.withDefaults()}
}

type admission struct {
	patientID   string
	patientName string
	phone       *string
	dept        Department
	priority    Priority
}

func (s *CheckInService) validate(req CheckInRequest) (admission, error) {
	a := admission{
		patientID:   strings.TrimSpace(req.PatientID),
		patientName: strings.TrimSpace(req.PatientName),
		phone:       req.Phone,
		priority:    PriorityNormal,
	}
	if a.patientID == "" {
		return a, fmt.Errorf("%w: patientId is required", ErrValidation)
	}
	if a.patientName == "" {
		return a, fmt.Errorf("%w: patientName is required", ErrValidation)
	}
	dept, err := ParseDepartment(req.Department)
	if err != nil {
		return a, err
	}
	a.dept = dept
	if req.Priority != nil {
		p := Priority(*req.Priority)
		if !p.Valid() {
			return a, fmt.Errorf("%w: priority must be between 1 and 4, got %d", ErrValidation, *req.Priority)
		}
		a.priority = p
	}
	if a.phone != nil && strings.TrimSpace(*a.phone) == "" {
		a.phone = nil
	}
	return a, nil
}

// CheckIn validates the request, persists a WAITING entry with a fresh queue
// number and publishes a REGISTRATION event.
func (s *CheckInService) CheckIn(ctx context.Context, req CheckInRequest) (*QueueEntry, error) {
	a, err := s.validate(req)
	if err != nil {
		return nil, err
	}

	var entry *QueueEntry
	err = s.repo.WithTx(ctx, func(repo Repository) error {
		var err error
		entry, err = s.admit(ctx, repo, a)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.opts.Observer.CheckedIn(entry.Department)
	publish(ctx, s.opts, Event{Type: EventRegistration, Entry: entry, OccurredAt: entry.ArrivalTime})
	return entry, nil
}

// admit writes the entry through repo so the caller decides the transaction.
func (s *CheckInService) admit(ctx context.Context, repo Repository, a admission) (*QueueEntry, error) {
	now := s.opts.Now()
	day := StartOfDay(now, s.opts.Location)

	seq, err := repo.NextQueueNumber(ctx, a.dept, day)
	if err != nil {
		return nil, err
	}

	entry := &QueueEntry{
		PatientID:   a.patientID,
		PatientName: a.patientName,
		Phone:       a.phone,
		Department:  a.dept,
		Priority:    a.priority,
		QueueNumber: FormatQueueNumber(a.dept, seq),
		QueueDate:   day,
		Status:      StatusWaiting,
		ArrivalTime: now,
	}
	if err := repo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("create queue entry: %w", err)
	}
	return entry, nil
}

// StartOfDay returns local midnight of t in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func publish(ctx context.Context, opts Options, e Event) {
	if opts.Events == nil {
		return
	}
	if err := opts.Events.Publish(ctx, e); err != nil {
		l := opts.Logger.Warn().Err(err).Str("event", string(e.Type))
		if e.Entry != nil {
			l = l.Str("queue_id", e.Entry.ID.String()).Str("department", string(e.Entry.Department))
		}
		l.Msg("queue event dropped")
	}
}
