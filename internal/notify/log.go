package notify

import (
	"context"
	"log/slog"
)

// LogSink writes each event as a structured log record
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a sink that logs to logger, or slog.Default() when nil
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Notify logs the event and never fails
func (s *LogSink) Notify(ctx context.Context, event Event) error {
	attrs := []any{
		"event_id", event.ID.String(),
		"kind", string(event.Kind),
		"item_id", event.Identity,
		"title", event.Item.DisplayTitle(),
		"status", FormatStatus(event.Item.Status),
		"url", event.Item.URL,
	}
	if event.ProgressNumber != nil {
		attrs = append(attrs, "episode", *event.ProgressNumber)
	}
	s.logger.InfoContext(ctx, Title(event), attrs...)
	return nil
}
