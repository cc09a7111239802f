package alert

import "time"

// Severity grades how urgent an alert is.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
	SeveritySuccess  Severity = "success"
)

// Rank returns the ordering weight of a severity. Higher is more urgent.
// Unknown severities rank below every known one.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 4
	case SeverityWarning:
		return 3
	case SeverityInfo:
		return 2
	case SeveritySuccess:
		return 1
	default:
		return 0
	}
}

// MaxSeverity returns the more urgent of two severities.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// Status tracks where an alert is in its remediation lifecycle.
type Status string

const (
	// StatusOpen is the initial state of every ingested alert.
	StatusOpen Status = "open"

	// StatusAcknowledged means an operator has seen the alert.
	StatusAcknowledged Status = "acknowledged"

	// StatusResolved is terminal; no further transitions are accepted.
	StatusResolved Status = "resolved"

	// StatusEscalated means the alert was handed to a higher tier.
	StatusEscalated Status = "escalated"

	// StatusSnoozed is a time-boxed holding state. An external timer
	// reverts it to open on expiry.
	StatusSnoozed Status = "snoozed"
)

// Terminal reports whether no further status transitions are accepted.
func (s Status) Terminal() bool {
	return s == StatusResolved
}

// Action names a lifecycle operation recorded in the timeline.
type Action string

const (
	ActionAcknowledge Action = "acknowledge"
	ActionResolve     Action = "resolve"
	ActionEscalate    Action = "escalate"
	ActionAssign      Action = "assign"
)

// Entity identifies the business object an alert is about.
type Entity struct {
	Kind       string `json:"kind" validate:"required"`
	ID         string `json:"id" validate:"required"`
	ProjectID  string `json:"project_id,omitempty"`
	SupplierID string `json:"supplier_id,omitempty"`
}

// Impact quantifies the fallout of the underlying problem.
type Impact struct {
	Money        float64 `json:"money,omitempty"`
	ScheduleDays int     `json:"schedule_days,omitempty"`
	Legal        bool    `json:"legal,omitempty"`
}

// Alert is a single normalized signal from a source subsystem.
type Alert struct {
	ID          string            `json:"id" validate:"required"`
	Severity    Severity          `json:"severity" validate:"required,oneof=critical warning info success"`
	Type        string            `json:"type" validate:"required"`
	Source      string            `json:"source,omitempty"`
	Bureau      string            `json:"bureau,omitempty"`
	Title       string            `json:"title" validate:"required"`
	Description string            `json:"description,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Entity      *Entity           `json:"entity,omitempty"`
	Impact      *Impact           `json:"impact,omitempty"`
	SLADueAt    *time.Time        `json:"sla_due_at,omitempty"`
	Status      Status            `json:"status" validate:"required,oneof=open acknowledged resolved escalated snoozed"`
	Assignee    string            `json:"assignee,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy so store implementations can hand out
// mutation-safe records.
func (a *Alert) Clone() *Alert {
	cp := *a
	if a.Entity != nil {
		e := *a.Entity
		cp.Entity = &e
	}
	if a.Impact != nil {
		i := *a.Impact
		cp.Impact = &i
	}
	if a.SLADueAt != nil {
		t := *a.SLADueAt
		cp.SLADueAt = &t
	}
	if a.Metadata != nil {
		cp.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}

// TimelineEntry is one audit record of a lifecycle action against an alert.
type TimelineEntry struct {
	AlertID   string    `json:"alert_id"`
	Actor     string    `json:"actor"`
	Action    Action    `json:"action"`
	Note      string    `json:"note,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
