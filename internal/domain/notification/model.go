package notification

import (
	"time"

	"github.com/google/uuid"
)

type Channel string

const (
	ChannelSMS   Channel = "SMS"
	ChannelInApp Channel = "IN_APP"
)

// Notification is an outbound patient message. Rows are written once and
// never updated.
type Notification struct {
	ID           uuid.UUID  `json:"id"`
	PatientID    string     `json:"patientId"`
	Channel      Channel    `json:"channel"`
	Type         string     `json:"type"`
	Title        string     `json:"title"`
	Message      string     `json:"message"`
	QueueEntryID *uuid.UUID `json:"queueEntryId,omitempty"`
	SentAt       time.Time  `json:"sentAt"`
}

// ChannelFor picks SMS when a usable phone number is present.
func ChannelFor(phone *string) Channel {
	if phone != nil && *phone != "" {
		return ChannelSMS
	}
	return ChannelInApp
}
