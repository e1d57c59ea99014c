// Package notify delivers user-facing notifications. The log notifier is the
// default sink; deployments with a real notification channel provide their
// own domain.Notifier.
package notify

import (
	"context"

	domain "github.com/ahrav/orderharvest/internal/domain/session"
	"github.com/ahrav/orderharvest/pkg/common/logger"
)

// LogNotifier writes notifications to the structured log.
type LogNotifier struct{ log *logger.Logger }

var _ domain.Notifier = (*LogNotifier)(nil)

// NewLogNotifier creates a notifier backed by the given logger.
func NewLogNotifier(log *logger.Logger) *LogNotifier { return &LogNotifier{log: log} }

// Notify records the notification.
func (n *LogNotifier) Notify(ctx context.Context, title, message string) error {
	n.log.Info(ctx, "notification", "title", title, "message", message)
	return nil
}
