// Package notify holds the best-effort notification capability. Delivery
// failures are logged and retried by the outbox worker; they never affect
// committed business state.
package notify

import (
	"context"
	"log/slog"
)

type Notifier interface {
	Send(ctx context.Context, to, subject, body string) error
}

type logNotifier struct {
	log *slog.Logger
}

// NewLogNotifier writes notifications to the structured log instead of a
// mail provider.
func NewLogNotifier(log *slog.Logger) Notifier {
	return &logNotifier{log: log}
}

func (n *logNotifier) Send(ctx context.Context, to, subject, body string) error {
	n.log.InfoContext(ctx, "notification sent",
		slog.String("to", to),
		slog.String("subject", subject),
		slog.Int("body_bytes", len(body)),
	)
	return nil
}
