package service

import (
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/noah-isme/deal-desk-api/internal/models"
)

const defaultAlertCount = 5

var alertMessages = []string{
	"Pricing date mismatch detected in Project Phoenix",
	"Compliance flag: Unusual short interest on ticker AAPL",
	"AI confidence score below 60% for secondary shares field",
	"New prospectus document available for daily processing",
	"Regulatory update: CDR Exchange Code requires validation",
	"Market cap threshold exceeded for high-volatility sector",
	"System: Connection established with secure file repository",
}

var alertSeverities = []models.AlertSeverity{models.AlertCritical, models.AlertWarning, models.AlertSystem}

// AlertService produces the sidebar notification feed.
type AlertService struct {
	count int
	faker *gofakeit.Faker
	now   func() time.Time
}

// NewAlertService builds a generator. A nil faker draws from the global
// source.
func NewAlertService(count int, faker *gofakeit.Faker) *AlertService {
	if count <= 0 {
		count = defaultAlertCount
	}
	if faker == nil {
		faker = gofakeit.New(0)
	}
	return &AlertService{count: count, faker: faker, now: time.Now}
}

// Generate returns a fresh batch of undismissed alerts numbered from zero.
func (s *AlertService) Generate() []models.Alert {
	now := s.now().UTC()
	alerts := make([]models.Alert, 0, s.count)
	for i := 0; i < s.count; i++ {
		severity := alertSeverities[s.faker.Number(0, len(alertSeverities)-1)]
		alerts = append(alerts, models.Alert{
			ID:        i,
			Severity:  severity,
			Title:     severityTitle(severity) + " Alert",
			Message:   alertMessages[s.faker.Number(0, len(alertMessages)-1)],
			Timestamp: now,
		})
	}
	return alerts
}

func severityTitle(severity models.AlertSeverity) string {
	s := string(severity)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// AlertFeed is one session's view of the alert sidebar.
type AlertFeed struct {
	Alerts      []models.Alert `json:"alerts"`
	ShowSidebar bool           `json:"show_sidebar"`
	UnreadCount int            `json:"unread_count"`
}

// AlertState holds per-session alerts. Callers hold the session lock.
type AlertState struct {
	alerts      []models.Alert
	showSidebar bool
}

// NewAlertState starts with the sidebar open and no alerts.
func NewAlertState() *AlertState {
	return &AlertState{showSidebar: true}
}

// Ensure fills the feed from gen unless it already holds alerts.
func (a *AlertState) Ensure(gen *AlertService) {
	if len(a.alerts) > 0 || gen == nil {
		return
	}
	a.alerts = gen.Generate()
}

// Dismiss removes the alert with id. It reports whether one was removed.
func (a *AlertState) Dismiss(id int) bool {
	for i, alert := range a.alerts {
		if alert.ID == id {
			a.alerts = append(a.alerts[:i], a.alerts[i+1:]...)
			return true
		}
	}
	return false
}

// ToggleSidebar flips sidebar visibility.
func (a *AlertState) ToggleSidebar() {
	a.showSidebar = !a.showSidebar
}

// UnreadCount counts alerts not yet dismissed.
func (a *AlertState) UnreadCount() int {
	n := 0
	for _, alert := range a.alerts {
		if !alert.IsDismissed {
			n++
		}
	}
	return n
}

// Feed returns a copy suitable for rendering.
func (a *AlertState) Feed() AlertFeed {
	alerts := make([]models.Alert, len(a.alerts))
	copy(alerts, a.alerts)
	return AlertFeed{Alerts: alerts, ShowSidebar: a.showSidebar, UnreadCount: a.UnreadCount()}
}
