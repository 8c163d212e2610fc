package security

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Severity grades an audit event.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// AuditEvent is one immutable entry in the append-only security history.
type AuditEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Details   string    `json:"details"`
	Severity  Severity  `json:"severity"`
}

// Report summarizes the audit history.
type Report struct {
	TotalEvents    int          `json:"total_events"`
	CriticalEvents int          `json:"critical_events"`
	RecentEvents   []AuditEvent `json:"recent_events"`
	Statistics     Statistics   `json:"statistics"`
}

// Statistics covers the trailing 24 hours.
type Statistics struct {
	Events24h         int            `json:"events_24h"`
	Critical24h       int            `json:"critical_24h"`
	TypesDistribution map[string]int `json:"types_distribution"`
}

const (
	alertThreshold = 5
	alertWindow    = 5 * time.Minute
	recentCount    = 10
)

// AlertFunc is the side-effecting notification hook invoked when critical
// events cluster. The default logs every event at critical level.
type AlertFunc func(events []AuditEvent)

// Auditor keeps the append-only security event stream and fires the alert
// hook when critical events cluster within the alert window.
type Auditor struct {
	events []AuditEvent
	alert  AlertFunc
	now    func() time.Time
}

func NewAuditor() *Auditor {
	return &Auditor{
		alert: defaultAlert,
		now:   time.Now,
	}
}

// SetAlert replaces the notification hook.
func (a *Auditor) SetAlert(alert AlertFunc) {
	if alert != nil {
		a.alert = alert
	}
}

// Log appends an event. A critical event recounts the criticals within
// the trailing alert window and fires the hook at the threshold.
func (a *Auditor) Log(eventType, details string, severity Severity) {
	event := AuditEvent{
		ID:        uuid.NewString(),
		Timestamp: a.now(),
		Type:      eventType,
		Details:   details,
		Severity:  severity,
	}
	a.events = append(a.events, event)

	if severity == SeverityCritical {
		a.checkAlertThreshold()
	}
}

func (a *Auditor) checkAlertThreshold() {
	now := a.now()
	recent := lo.Filter(a.events, func(event AuditEvent, _ int) bool {
		return event.Severity == SeverityCritical && now.Sub(event.Timestamp) < alertWindow
	})
	if len(recent) >= alertThreshold {
		a.alert(recent)
	}
}

// GetReport returns totals, the last ten events and the 24-hour per-type
// distribution.
func (a *Auditor) GetReport() Report {
	now := a.now()

	last24h := lo.Filter(a.events, func(event AuditEvent, _ int) bool {
		return now.Sub(event.Timestamp) < 24*time.Hour
	})

	distribution := make(map[string]int)
	for _, event := range last24h {
		distribution[event.Type]++
	}

	recent := a.events
	if len(recent) > recentCount {
		recent = recent[len(recent)-recentCount:]
	}

	return Report{
		TotalEvents: len(a.events),
		CriticalEvents: lo.CountBy(a.events, func(event AuditEvent) bool {
			return event.Severity == SeverityCritical
		}),
		RecentEvents: append([]AuditEvent{}, recent...),
		Statistics: Statistics{
			Events24h: len(last24h),
			Critical24h: lo.CountBy(last24h, func(event AuditEvent) bool {
				return event.Severity == SeverityCritical
			}),
			TypesDistribution: distribution,
		},
	}
}

func defaultAlert(events []AuditEvent) {
	slog.Error("Security alert: critical event threshold reached", "count", len(events))
	for _, event := range events {
		slog.Error("Critical security event", "type", event.Type, "details", event.Details)
	}
}
