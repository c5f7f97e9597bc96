package notification

import (
	"context"

	"github.com/rs/zerolog"
)

// LoggingEmailSender writes outbound email to the structured log instead
// of a gateway. It is the default sender until an SMTP or provider
// integration is configured.
type LoggingEmailSender struct {
	logger zerolog.Logger
}

func NewLoggingEmailSender(logger zerolog.Logger) *LoggingEmailSender {
	return &LoggingEmailSender{logger: logger}
}

func (s *LoggingEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.logger.Info().
		Str("channel", "email").
		Str("to", to).
		Str("subject", subject).
		Str("body", body).
		Msg("notification dispatched")
	return nil
}

// LoggingSMSSender writes outbound SMS to the structured log.
type LoggingSMSSender struct {
	logger zerolog.Logger
}

func NewLoggingSMSSender(logger zerolog.Logger) *LoggingSMSSender {
	return &LoggingSMSSender{logger: logger}
}

func (s *LoggingSMSSender) SendSMS(_ context.Context, to, body string) error {
	s.logger.Info().
		Str("channel", "sms").
		Str("to", to).
		Str("body", body).
		Msg("notification dispatched")
	return nil
}
