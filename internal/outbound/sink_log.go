package outbound

import (
	"context"
	"log/slog"
)

// LogSink writes messages to the log. It stands in for the broker when none is
// configured.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "outbound event",
		"id", msg.ID,
		"type", msg.Type,
		"aggregate_id", msg.Key,
		"version", msg.Version,
		"payload", string(msg.Payload),
	)
	return nil
}

func (s *LogSink) DeadLetter(ctx context.Context, msg Message, reason string) error {
	s.logger.ErrorContext(ctx, "outbound event dead-lettered",
		"id", msg.ID,
		"type", msg.Type,
		"aggregate_id", msg.Key,
		"attempts", msg.Attempts,
		"reason", reason,
	)
	return nil
}
