package models

import "time"

// AlertSeverity classifies alerts in the notification sidebar.
type AlertSeverity string

const (
	AlertCritical AlertSeverity = "critical"
	AlertWarning  AlertSeverity = "warning"
	AlertSystem   AlertSeverity = "system"
)

// Alert is a single sidebar notification.
type Alert struct {
	ID          int           `json:"id"`
	Severity    AlertSeverity `json:"severity"`
	Title       string        `json:"title"`
	Message     string        `json:"message"`
	Timestamp   time.Time     `json:"timestamp"`
	DealTicker  *string       `json:"deal_ticker,omitempty"`
	IsDismissed bool          `json:"is_dismissed"`
}
