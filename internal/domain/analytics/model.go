package analytics

import (
	"math"
	"time"

	"github.com/johnnysally/SmartCare360-sub000/internal/domain/queue"
)

type Congestion string

const (
	CongestionLow      Congestion = "LOW"
	CongestionModerate Congestion = "MODERATE"
	CongestionHigh     Congestion = "HIGH"
)

// CongestionFor derives the congestion level from the number of waiting patients.
func CongestionFor(waiting int) Congestion {
	switch {
	case waiting > 10:
		return CongestionHigh
	case waiting > 5:
		return CongestionModerate
	default:
		return CongestionLow
	}
}

// QueueStats is the live view of today's entries for one department or the
// whole clinic.
type QueueStats struct {
	Department     *queue.Department `json:"department,omitempty"`
	Date           string            `json:"date"`
	Waiting        int               `json:"waiting"`
	Serving        int               `json:"serving"`
	Completed      int               `json:"completed"`
	Total          int               `json:"total"`
	AvgWaitMinutes float64           `json:"avgWaitMinutes"`
	MaxWaitMinutes float64           `json:"maxWaitMinutes"`
	Congestion     Congestion        `json:"congestionLevel"`

	avgWaitSeconds int64
	maxWaitSeconds int64
}

// DailyDepartmentStat is the stored per-department snapshot for one day.
type DailyDepartmentStat struct {
	Department      queue.Department `json:"department"`
	StatDate        time.Time        `json:"statDate"`
	TotalPatients   int              `json:"totalPatients"`
	AvgWaitSeconds  int64            `json:"avgWaitSeconds"`
	MaxWaitSeconds  int64            `json:"maxWaitSeconds"`
	CongestionLevel Congestion       `json:"congestionLevel"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// Summarize folds a day's entries into QueueStats. Waits are taken over
// entries that have been called.
func Summarize(entries []*queue.QueueEntry) QueueStats {
	var s QueueStats
	var sum int64
	var called int64
	for _, e := range entries {
		s.Total++
		switch e.Status {
		case queue.StatusWaiting:
			s.Waiting++
		case queue.StatusServing:
			s.Serving++
		case queue.StatusCompleted:
			s.Completed++
		}
		if e.CallTime == nil {
			continue
		}
		w := e.WaitingSeconds()
		sum += w
		called++
		if w > s.maxWaitSeconds {
			s.maxWaitSeconds = w
		}
	}
	if called > 0 {
		s.avgWaitSeconds = int64(math.Round(float64(sum) / float64(called)))
		s.AvgWaitMinutes = round1(float64(sum) / float64(called) / 60)
	}
	s.MaxWaitMinutes = round1(float64(s.maxWaitSeconds) / 60)
	s.Congestion = CongestionFor(s.Waiting)
	return s
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
