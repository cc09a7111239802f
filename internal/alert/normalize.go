package alert

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/oklog/ulid/v2"
)

// Source kinds accepted by the normalizer. Each names the subsystem that
// emitted the raw event.
const (
	SourceExecution      = "execution"
	SourceProjects       = "projects"
	SourceHR             = "hr"
	SourceFinance        = "finance"
	SourceCommunications = "communications"
	SourceSystem         = "system"
	SourceCalendar       = "calendar"
)

// RawEvent is the source-agnostic shape of an incoming signal before
// normalization. Sources fill in what they know; the normalizer supplies
// defaults for the rest.
type RawEvent struct {
	ID          string            `json:"id,omitempty"`
	Severity    string            `json:"severity,omitempty"`
	Type        string            `json:"type"`
	Bureau      string            `json:"bureau,omitempty"`
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at,omitempty"`
	Entity      *Entity           `json:"entity,omitempty"`
	Impact      *Impact           `json:"impact,omitempty"`
	SLADueAt    *time.Time        `json:"sla_due_at,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Normalizer converts raw source events into canonical Alerts and validates
// the result against the canonical schema.
type Normalizer struct {
	validate *validator.Validate
	now      func() time.Time
}

// NewNormalizer creates a Normalizer using the wall clock.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		validate: validator.New(),
		now:      time.Now,
	}
}

// Normalize converts a raw event from the given source into a canonical
// Alert. Missing id/severity/timestamp get defaults; a raw event that still
// fails canonical validation is rejected with a validation error.
func (n *Normalizer) Normalize(raw *RawEvent, source string) (*Alert, error) {
	if raw == nil {
		return nil, NewValidation("raw event is required")
	}

	a := &Alert{
		ID:          raw.ID,
		Severity:    Severity(raw.Severity),
		Type:        raw.Type,
		Source:      source,
		Bureau:      raw.Bureau,
		Title:       raw.Title,
		Description: raw.Description,
		CreatedAt:   raw.OccurredAt,
		Entity:      raw.Entity,
		Impact:      raw.Impact,
		SLADueAt:    raw.SLADueAt,
		Status:      StatusOpen,
		Metadata:    raw.Metadata,
	}

	if a.ID == "" {
		a.ID = ulid.Make().String()
	}
	if a.Severity == "" {
		a.Severity = SeverityInfo
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = n.now().UTC()
	}

	if err := n.validate.Struct(a); err != nil {
		return nil, NewValidation("normalize %s event: %v", source, err)
	}
	return a, nil
}
