package engine

import "time"

// Severity classifies an alert for the presentation layer.
type Severity string

const (
	SeverityInfo        Severity = "info"
	SeverityWarning     Severity = "warning"
	SeverityCritical    Severity = "critical"
	SeverityAchievement Severity = "achievement"
)

// Alert is one observation emitted during a turn. Alerts never mutate
// simulation state.
type Alert struct {
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Turn      int       `json:"turn"`
	Timestamp time.Time `json:"timestamp"`
}

// maxAlerts bounds the retained alert log.
const maxAlerts = 50

func (c *City) addAlert(severity Severity, message string) {
	c.alerts = append(c.alerts, Alert{
		Message:   message,
		Severity:  severity,
		Turn:      c.turn,
		Timestamp: time.Now(),
	})
	if len(c.alerts) > maxAlerts {
		c.alerts = c.alerts[len(c.alerts)-maxAlerts:]
	}
}

// Alerts returns up to limit most recent alerts, newest last. A
// non-positive limit returns the full retained log.
func (c *City) Alerts(limit int) []Alert {
	if limit <= 0 || limit > len(c.alerts) {
		limit = len(c.alerts)
	}
	out := make([]Alert, limit)
	copy(out, c.alerts[len(c.alerts)-limit:])
	return out
}
