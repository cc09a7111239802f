// Package sla monitors externally tracked deadline items, classifies their
// risk, and feeds synthetic calendar alerts back into the ingest path.
package sla

import "time"

// Risk is the deadline classification of a tracked item.
type Risk string

const (
	RiskOK      Risk = "ok"
	RiskWarning Risk = "warning"
	RiskOverdue Risk = "overdue"
)

// DefaultRiskWindow is how far ahead of a deadline an item turns warning.
const DefaultRiskWindow = 48 * time.Hour

// Classify grades a deadline against now: overdue once the deadline has
// passed, warning inside the risk window, ok otherwise.
func Classify(dueAt, now time.Time, riskWindow time.Duration) Risk {
	if now.After(dueAt) {
		return RiskOverdue
	}
	if dueAt.Sub(now) <= riskWindow {
		return RiskWarning
	}
	return RiskOK
}
