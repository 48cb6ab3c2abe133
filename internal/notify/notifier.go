package notify

import (
	"context"

	"github.com/todovault/core/internal/infrastructure/logger"
	"github.com/todovault/core/internal/ports"
)

// LogNotifier delivers notifications through the application log. It is
// the process-local stand-in for a platform notification tray; delivery
// is best-effort by contract.
type LogNotifier struct {
	log *logger.Logger
}

var _ ports.Notifier = (*LogNotifier)(nil)

// NewLogNotifier returns a log-backed notifier.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.WithComponent("notifier")}
}

func (n *LogNotifier) Notify(ctx context.Context, title, body string) error {
	n.log.Infow("Notification", "title", title, "body", body)
	return nil
}
