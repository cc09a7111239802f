package engine

import (
	"context"
	"sort"
	"time"

	"github.com/linnemanlabs/go-core/log"

	"github.com/linnemanlabs/klaxon/internal/alert"
	"github.com/linnemanlabs/klaxon/internal/incident"
)

// Notifier is the escalation side-effect hook. Delivery failures are logged,
// not returned: the transition has already committed by the time it fires.
type Notifier interface {
	Escalated(ctx context.Context, a *alert.Alert, escalateTo, reason, priority string) error
}

// Service is the business boundary for alert operations.
type Service struct {
	store      alert.Store
	normalizer *alert.Normalizer
	notifier   Notifier
	metrics    *Metrics
	logger     log.Logger
	now        func() time.Time

	bulkWorkers int
}

// Option adjusts Service construction.
type Option func(*Service)

// WithNotifier wires the escalation notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithBulkWorkers bounds the bulk coordinator's concurrency.
func WithBulkWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.bulkWorkers = n
		}
	}
}

// NewService creates a new alert service.
func NewService(store alert.Store, metrics *Metrics, logger log.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = log.Nop()
	}
	s := &Service{
		store:       store,
		normalizer:  alert.NewNormalizer(),
		metrics:     metrics,
		logger:      logger,
		now:         time.Now,
		bulkWorkers: defaultBulkWorkers,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest normalizes a raw source event and persists the resulting alert.
// Alerts with an explicit id upsert, so periodic sources (the SLA monitor)
// refresh in place instead of accumulating duplicates.
func (s *Service) Ingest(ctx context.Context, raw *alert.RawEvent, source string) (*alert.Alert, error) {
	a, err := s.normalizer.Normalize(raw, source)
	if err != nil {
		s.metrics.IngestsTotal.WithLabelValues(source, "rejected").Inc()
		return nil, err
	}

	if err := s.store.Put(ctx, a); err != nil {
		s.metrics.IngestsTotal.WithLabelValues(source, "error").Inc()
		return nil, err
	}

	// Put preserves lifecycle fields on upsert, so re-read to hand the
	// caller the committed state rather than the normalized input.
	stored, ok, err := s.store.Get(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	if ok {
		a = stored
	}

	s.metrics.IngestsTotal.WithLabelValues(source, "accepted").Inc()
	s.logger.Info(ctx, "alert ingested",
		"alert_id", a.ID,
		"source", source,
		"type", a.Type,
		"severity", a.Severity,
		"fingerprint", alert.Fingerprint(a),
	)
	return a, nil
}

// Incidents correlates the current alert set into ranked incidents.
// Correlation is recomputed from scratch on every call.
func (s *Service) Incidents(ctx context.Context) ([]*incident.Incident, error) {
	alerts, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}

	start := s.now()
	incidents := incident.Rank(incident.Correlate(alerts))
	s.metrics.CorrelationDuration.Observe(s.now().Sub(start).Seconds())
	s.metrics.IncidentsOpen.Set(float64(len(incidents)))

	return incidents, nil
}

// Acknowledge marks an open alert as seen by an operator.
func (s *Service) Acknowledge(ctx context.Context, id, actor, note string) (*alert.Alert, error) {
	return s.transition(ctx, ActionParams{
		Action: alert.ActionAcknowledge,
		ID:     id,
		Actor:  actor,
		Note:   note,
	})
}

// Resolve closes an alert. Terminal: a resolved alert accepts no further
// transitions. Both resolutionType and note are required.
func (s *Service) Resolve(ctx context.Context, id, actor, resolutionType, note string) (*alert.Alert, error) {
	return s.transition(ctx, ActionParams{
		Action:         alert.ActionResolve,
		ID:             id,
		Actor:          actor,
		ResolutionType: resolutionType,
		Note:           note,
	})
}

// Escalate hands an alert to a higher tier and fires the notification hook.
// Both escalateTo and reason are required.
func (s *Service) Escalate(ctx context.Context, id, actor, escalateTo, reason, priority string) (*alert.Alert, error) {
	return s.transition(ctx, ActionParams{
		Action:     alert.ActionEscalate,
		ID:         id,
		Actor:      actor,
		EscalateTo: escalateTo,
		Note:       reason,
		Priority:   priority,
	})
}

// Assign sets the alert's assignee. Orthogonal to the status machine: the
// status is left untouched, but the change is still audited in the timeline.
func (s *Service) Assign(ctx context.Context, id, actor, userID, note string) (*alert.Alert, error) {
	return s.transition(ctx, ActionParams{
		Action: alert.ActionAssign,
		ID:     id,
		Actor:  actor,
		UserID: userID,
		Note:   note,
	})
}

// Timeline returns the audit log for one alert in append order.
func (s *Service) Timeline(ctx context.Context, alertID string) ([]*alert.TimelineEntry, error) {
	if _, ok, err := s.store.Get(ctx, alertID); err != nil {
		return nil, err
	} else if !ok {
		return nil, alert.NewNotFound("alert", alertID)
	}
	return s.store.Timeline(ctx, alertID)
}

// IncidentTimeline merges the timelines of every member alert of an
// incident, ordered by timestamp.
func (s *Service) IncidentTimeline(ctx context.Context, incidentID string) ([]*alert.TimelineEntry, error) {
	incidents, err := s.Incidents(ctx)
	if err != nil {
		return nil, err
	}

	var target *incident.Incident
	for _, inc := range incidents {
		if inc.ID == incidentID {
			target = inc
			break
		}
	}
	if target == nil {
		return nil, alert.NewNotFound("incident", incidentID)
	}

	var merged []*alert.TimelineEntry
	for _, member := range target.Alerts {
		entries, err := s.store.Timeline(ctx, member.ID)
		if err != nil {
			return nil, err
		}
		merged = append(merged, entries...)
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Timestamp.Before(merged[j].Timestamp)
	})
	return merged, nil
}

// ActionParams carries one lifecycle action's inputs through validation and
// the CAS write.
type ActionParams struct {
	Action         alert.Action
	ID             string
	Actor          string
	Note           string
	ResolutionType string
	EscalateTo     string
	Priority       string
	UserID         string
}

// transition runs the full read-validate-write cycle for one action. The
// store's Transition call only commits if the persisted status still equals
// the one read here, so concurrent writers surface as conflicts instead of
// silently overwriting each other.
func (s *Service) transition(ctx context.Context, p ActionParams) (*alert.Alert, error) {
	a, err := s.applyTransition(ctx, p)
	outcome := "ok"
	if err != nil {
		outcome = string(alert.KindOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	s.metrics.TransitionsTotal.WithLabelValues(string(p.Action), outcome).Inc()
	return a, err
}

func (s *Service) applyTransition(ctx context.Context, p ActionParams) (*alert.Alert, error) {
	if err := validateParams(p); err != nil {
		return nil, err
	}

	a, ok, err := s.store.Get(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, alert.NewNotFound("alert", p.ID)
	}

	expected := a.Status
	entry := &alert.TimelineEntry{
		AlertID:   a.ID,
		Actor:     p.Actor,
		Action:    p.Action,
		Note:      p.Note,
		Timestamp: s.now().UTC(),
	}

	switch p.Action {
	case alert.ActionAcknowledge:
		if a.Status != alert.StatusOpen {
			return nil, alert.NewInvalidTransition(p.Action, a.Status)
		}
		a.Status = alert.StatusAcknowledged

	case alert.ActionResolve:
		switch a.Status {
		case alert.StatusOpen, alert.StatusAcknowledged, alert.StatusEscalated:
			a.Status = alert.StatusResolved
			setMeta(a, "resolution_type", p.ResolutionType)
		default:
			return nil, alert.NewInvalidTransition(p.Action, a.Status)
		}

	case alert.ActionEscalate:
		switch a.Status {
		case alert.StatusOpen, alert.StatusAcknowledged:
			a.Status = alert.StatusEscalated
			setMeta(a, "escalated_to", p.EscalateTo)
			if p.Priority != "" {
				setMeta(a, "escalation_priority", p.Priority)
			}
		default:
			return nil, alert.NewInvalidTransition(p.Action, a.Status)
		}

	case alert.ActionAssign:
		// No status change; expected still guards against concurrent writes.
		a.Assignee = p.UserID

	default:
		return nil, alert.NewValidation("unknown action %q", p.Action)
	}

	if err := s.store.Transition(ctx, a, expected, entry); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "alert transition",
		"alert_id", a.ID,
		"action", p.Action,
		"actor", p.Actor,
		"status", a.Status,
	)

	if p.Action == alert.ActionEscalate && s.notifier != nil {
		if err := s.notifier.Escalated(ctx, a, p.EscalateTo, p.Note, p.Priority); err != nil {
			s.logger.Error(ctx, err, "escalation notification failed", "alert_id", a.ID)
		}
	}

	return a, nil
}

func validateParams(p ActionParams) error {
	if p.ID == "" {
		return alert.NewValidation("alert id is required")
	}
	switch p.Action {
	case alert.ActionResolve:
		if p.ResolutionType == "" {
			return alert.NewValidation("resolve requires a resolution type")
		}
		if p.Note == "" {
			return alert.NewValidation("resolve requires a note")
		}
	case alert.ActionEscalate:
		if p.EscalateTo == "" {
			return alert.NewValidation("escalate requires a target")
		}
		if p.Note == "" {
			return alert.NewValidation("escalate requires a reason")
		}
	case alert.ActionAssign:
		if p.UserID == "" {
			return alert.NewValidation("assign requires a user id")
		}
	}
	return nil
}

func setMeta(a *alert.Alert, key, value string) {
	if a.Metadata == nil {
		a.Metadata = make(map[string]string)
	}
	a.Metadata[key] = value
}
