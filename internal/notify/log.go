package notify

import (
	"context"
	"log/slog"
)

// LogTransport records notifications to the log instead of delivering them.
// Used in development and as the fallback when no real transport is
// configured.
type LogTransport struct {
	logger *slog.Logger
}

func NewLogTransport(logger *slog.Logger) *LogTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogTransport{logger: logger}
}

func (t *LogTransport) Send(ctx context.Context, n Notification) error {
	t.logger.InfoContext(ctx, "notification",
		"type", n.Type,
		"recipient", n.Recipient,
		"subject", n.Subject,
		"body", n.Body)
	return nil
}
