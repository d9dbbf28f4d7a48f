package notification

import (
	"context"

	"github.com/rs/zerolog"
)

// SMSSender is the interface for sending SMS messages.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// LogSMSSender stands in for an SMS gateway and only logs the message.
type LogSMSSender struct {
	logger zerolog.Logger
}

func NewLogSMSSender(logger zerolog.Logger) *LogSMSSender {
	return &LogSMSSender{logger: logger}
}

func (s *LogSMSSender) SendSMS(_ context.Context, to, body string) error {
	s.logger.Info().Str("to", maskPhone(to)).Int("length", len(body)).Msg("sms sent (stub)")
	return nil
}

// maskPhone keeps the last three digits so logs stay useful without carrying
// the full number.
func maskPhone(phone string) string {
	if len(phone) <= 3 {
		return "***"
	}
	return "***" + phone[len(phone)-3:]
}
