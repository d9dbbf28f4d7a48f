package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Department is one service point of the clinic. Each department has its own
// independent queue.
type Department string

const (
	DeptOPD        Department = "OPD"
	DeptEmergency  Department = "Emergency"
	DeptLaboratory Department = "Laboratory"
	DeptRadiology  Department = "Radiology"
	DeptPharmacy   Department = "Pharmacy"
	DeptBilling    Department = "Billing"
)

// Departments is the closed set of queues, in display order.
var Departments = []Department{
	DeptOPD, DeptEmergency, DeptLaboratory, DeptRadiology, DeptPharmacy, DeptBilling,
}

// ParseDepartment canonicalises s case-insensitively.
func ParseDepartment(s string) (Department, error) {
	s = strings.TrimSpace(s)
	for _, d := range Departments {
		if strings.EqualFold(string(d), s) {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: unknown department %q", ErrValidation, s)
}

// Code is the three-letter prefix used in queue numbers.
func (d Department) Code() string {
	code := strings.ToUpper(string(d))
	if len(code) > 3 {
		code = code[:3]
	}
	return code
}

// Priority orders waiting patients; the lower value is served first.
type Priority int

const (
	PriorityEmergency Priority = 1
	PriorityUrgent    Priority = 2
	PriorityNormal    Priority = 3
	PriorityLow       Priority = 4
)

func (p Priority) Valid() bool {
	return p >= PriorityEmergency && p <= PriorityLow
}

func (p Priority) String() string {
	switch p {
	case PriorityEmergency:
		return "EMERGENCY"
	case PriorityUrgent:
		return "URGENT"
	case PriorityNormal:
		return "NORMAL"
	case PriorityLow:
		return "LOW"
	default:
		return fmt.Sprintf("Priority(%d)", int(p))
	}
}

type Status string

const (
	StatusWaiting   Status = "WAITING"
	StatusServing   Status = "SERVING"
	StatusCompleted Status = "COMPLETED"
)

// QueueEntry is one patient's visit to one department's queue.
type QueueEntry struct {
	ID               uuid.UUID  `json:"id"`
	PatientID        string     `json:"patientId"`
	PatientName      string     `json:"patientName"`
	Phone            *string    `json:"phone,omitempty"`
	Department       Department `json:"department"`
	Priority         Priority   `json:"priority"`
	QueueNumber      string     `json:"queueNumber"`
	QueueDate        time.Time  `json:"queueDate"`
	Status           Status     `json:"status"`
	ArrivalTime      time.Time  `json:"arrivalTime"`
	CallTime         *time.Time `json:"callTime,omitempty"`
	ServiceStartTime *time.Time `json:"serviceStartTime,omitempty"`
	ServiceEndTime   *time.Time `json:"serviceEndTime,omitempty"`
	CalledBy         *string    `json:"calledBy,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// WaitingSeconds is callTime - arrivalTime, or 0 while the entry is still waiting.
func (e *QueueEntry) WaitingSeconds() int64 {
	if e.CallTime == nil {
		return 0
	}
	secs := int64(e.CallTime.Sub(e.ArrivalTime) / time.Second)
	if secs < 0 {
		return 0
	}
	return secs
}

// HasPhone reports whether an SMS can be sent for this entry.
func (e *QueueEntry) HasPhone() bool {
	return e.Phone != nil && strings.TrimSpace(*e.Phone) != ""
}

// FormatQueueNumber renders the display code, e.g. EME007. Sequences past 999
// keep growing instead of wrapping.
func FormatQueueNumber(d Department, seq int) string {
	return fmt.Sprintf("%s%03d", d.Code(), seq)
}

// Less is the dispatch order among waiting entries: priority, then arrival,
// then id as a stable tie-break.
func Less(a, b *QueueEntry) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if !a.ArrivalTime.Equal(b.ArrivalTime) {
		return a.ArrivalTime.Before(b.ArrivalTime)
	}
	return a.ID.String() < b.ID.String()
}

// LessForDisplay puts SERVING entries ahead of WAITING ones and otherwise
// follows dispatch order.
func LessForDisplay(a, b *QueueEntry) bool {
	if (a.Status == StatusServing) != (b.Status == StatusServing) {
		return a.Status == StatusServing
	}
	return Less(a, b)
}

// CallResult is the outcome of a successful call-next.
type CallResult struct {
	*QueueEntry
	WaitingSeconds int64 `json:"waitingSeconds"`
}

// CompleteResult carries the completed entry and, when the patient was routed,
// the new entry in the next department.
type CompleteResult struct {
	Completed *QueueEntry `json:"completed"`
	Routed    *QueueEntry `json:"routed,omitempty"`
}
