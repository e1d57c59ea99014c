package session

import (
	"fmt"

	domain "github.com/ahrav/orderharvest/internal/domain/session"
)

// Status-line wording shown to the user. Transports relay these verbatim.
const (
	msgCancelledByUser      = "Export cancelled by user"
	msgCancellingDownloads  = "Cancelling invoice downloads..."
	msgNoDownloadsActive    = "No invoice downloads in progress."
	msgCollectorUnreachable = "Could not reach the order page collector"
	msgNotificationsWorking = "Notifications are working."

	notificationTitle = "Order export"
)

func startMessage(filter domain.TimeFilter) string {
	if d := filter.Describe(); d != "" {
		return "Exporting orders from " + d
	}
	return "Exporting all available orders"
}

func reuseMessage(n int) string {
	return fmt.Sprintf("Using existing %d orders", n)
}

func retryMessage(n int) string {
	return fmt.Sprintf("Retrying %d failed invoice(s)...", n)
}

func completionNotification(collected int) string {
	if collected == 0 {
		return "No orders found for the selected range."
	}
	return fmt.Sprintf("Export complete: %d orders ready.", collected)
}
