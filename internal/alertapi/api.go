// Package alertapi exposes the alert engine over HTTP: ingestion, incident
// reads, lifecycle actions, bulk operations, and timelines.
package alertapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/klaxon/internal/alert"
	"github.com/linnemanlabs/klaxon/internal/engine"
	"github.com/linnemanlabs/klaxon/internal/incident"
)

// AlertService defines the business operations alertapi needs.
type AlertService interface {
	Ingest(ctx context.Context, raw *alert.RawEvent, source string) (*alert.Alert, error)
	Incidents(ctx context.Context) ([]*incident.Incident, error)
	Acknowledge(ctx context.Context, id, actor, note string) (*alert.Alert, error)
	Resolve(ctx context.Context, id, actor, resolutionType, note string) (*alert.Alert, error)
	Escalate(ctx context.Context, id, actor, escalateTo, reason, priority string) (*alert.Alert, error)
	Assign(ctx context.Context, id, actor, userID, note string) (*alert.Alert, error)
	BulkApply(ctx context.Context, ids []string, actor string, payload engine.BulkPayload) *engine.BulkResult
	Timeline(ctx context.Context, alertID string) ([]*alert.TimelineEntry, error)
	IncidentTimeline(ctx context.Context, incidentID string) ([]*alert.TimelineEntry, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    AlertService
}

// New creates a new API handler.
func New(logger log.Logger, svc AlertService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("alert service is required"))
	}
	return &API{
		logger: logger,
		svc:    svc,
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/alerts", a.handleIngest)
		r.Post("/alerts/bulk", a.handleBulk)
		r.Post("/alerts/{id}/acknowledge", a.handleAcknowledge)
		r.Post("/alerts/{id}/resolve", a.handleResolve)
		r.Post("/alerts/{id}/escalate", a.handleEscalate)
		r.Post("/alerts/{id}/assign", a.handleAssign)
		r.Get("/alerts/{id}/timeline", a.handleAlertTimeline)
		r.Get("/incidents", a.handleIncidents)
		r.Get("/incidents/{id}/timeline", a.handleIncidentTimeline)
	})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP statuses and reports
// the kind to the caller.
func (a *API) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	var de *alert.Error
	if !errors.As(err, &de) {
		a.logger.Error(ctx, err, "internal error")
		a.writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "internal error"})
		return
	}

	status := http.StatusInternalServerError
	switch de.Kind {
	case alert.KindValidation:
		status = http.StatusBadRequest
	case alert.KindNotFound:
		status = http.StatusNotFound
	case alert.KindInvalidTransition, alert.KindConflict:
		status = http.StatusConflict
	}
	a.writeJSON(w, status, map[string]any{
		"error": de.Msg,
		"kind":  de.Kind,
	})
}
