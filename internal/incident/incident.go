// Package incident groups correlated alerts into deduplicated incidents and
// orders them for display. Correlation and ranking are pure functions over an
// alert batch: an incident is always recomputed from the current alert set,
// never incrementally patched.
package incident

import (
	"time"

	"github.com/linnemanlabs/klaxon/internal/alert"
)

// Incident is a deduplicated aggregate over alerts sharing a fingerprint.
type Incident struct {
	ID          string         `json:"id"`
	Fingerprint string         `json:"fingerprint"`
	Severity    alert.Severity `json:"severity"`
	Title       string         `json:"title"`
	Bureau      string         `json:"bureau,omitempty"`
	ImpactMoney float64        `json:"impact_money"`
	DueAt       *time.Time     `json:"due_at,omitempty"`
	Status      alert.Status   `json:"status"`
	Alerts      []*alert.Alert `json:"alerts"`
}

// Correlate groups the alerts by fingerprint into incidents. The first alert
// seen for a fingerprint seeds the incident (title, bureau, position in the
// output); later members raise severity to the max rank, add their money
// impact, and pull the due date earlier. Two alerts land in the same incident
// only if their fingerprints are byte-equal.
func Correlate(alerts []*alert.Alert) []*Incident {
	byFP := make(map[string]*Incident, len(alerts))
	out := make([]*Incident, 0, len(alerts))

	for _, a := range alerts {
		fp := alert.Fingerprint(a)
		inc, ok := byFP[fp]
		if !ok {
			inc = &Incident{
				ID:          alert.IncidentID(fp),
				Fingerprint: fp,
				Severity:    a.Severity,
				Title:       a.Title,
				Bureau:      a.Bureau,
				ImpactMoney: money(a),
				DueAt:       copyTime(a.SLADueAt),
				Status:      a.Status,
				Alerts:      []*alert.Alert{a},
			}
			byFP[fp] = inc
			out = append(out, inc)
			continue
		}

		inc.Alerts = append(inc.Alerts, a)
		inc.Severity = alert.MaxSeverity(inc.Severity, a.Severity)
		inc.ImpactMoney += money(a)
		inc.DueAt = earlier(inc.DueAt, a.SLADueAt)
		inc.Status = representativeStatus(inc.Status, a.Status)
	}

	return out
}

func money(a *alert.Alert) float64 {
	if a.Impact == nil {
		return 0
	}
	return a.Impact.Money
}

// earlier treats a nil due date as infinitely far: any concrete date wins.
func earlier(a, b *time.Time) *time.Time {
	if a == nil {
		return copyTime(b)
	}
	if b == nil {
		return a
	}
	if b.Before(*a) {
		return copyTime(b)
	}
	return a
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

// representativeStatus keeps the member status that most needs attention:
// any non-resolved member keeps the incident from reading as resolved, and
// open outranks the other non-terminal states.
func representativeStatus(cur, next alert.Status) alert.Status {
	if statusWeight(next) > statusWeight(cur) {
		return next
	}
	return cur
}

func statusWeight(s alert.Status) int {
	switch s {
	case alert.StatusOpen:
		return 4
	case alert.StatusEscalated:
		return 3
	case alert.StatusAcknowledged:
		return 2
	case alert.StatusSnoozed:
		return 1
	case alert.StatusResolved:
		return 0
	default:
		return 0
	}
}
