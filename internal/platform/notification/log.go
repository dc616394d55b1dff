package notification

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSender writes outbound email to the log instead of delivering it. It is
// the default sender when SMTP is unconfigured, so notification flows stay
// exercisable in development.
type LogSender struct {
	logger zerolog.Logger
}

func NewLogSender(logger zerolog.Logger) *LogSender {
	return &LogSender{logger: logger.With().Str("component", "mail").Logger()}
}

func (s *LogSender) SendEmail(_ context.Context, to, subject, body string) error {
	s.logger.Info().
		Str("to", to).
		Str("subject", subject).
		Int("body_bytes", len(body)).
		Msg("email delivery skipped, smtp not configured")
	return nil
}
