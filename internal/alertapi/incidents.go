package alertapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func (a *API) handleIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := a.svc.Incidents(r.Context())
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.Int("klaxon.incidents.count", len(incidents)))

	a.writeJSON(w, http.StatusOK, map[string]any{"incidents": incidents})
}

func (a *API) handleIncidentTimeline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("klaxon.incident.id", id))

	entries, err := a.svc.IncidentTimeline(r.Context(), id)
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"timeline": entries})
}
