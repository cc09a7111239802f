package alertapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/linnemanlabs/klaxon/internal/alert"
)

type ingestRequest struct {
	Source string            `json:"source"`
	Events []*alert.RawEvent `json:"events"`
}

func (a *API) handleIngest(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	if req.Source == "" {
		a.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "source is required"})
		return
	}

	accepted := make([]string, 0, len(req.Events))
	var rejected []map[string]any

	for _, raw := range req.Events {
		al, err := a.svc.Ingest(r.Context(), raw, req.Source)
		if err != nil {
			rejected = append(rejected, map[string]any{
				"title": rawTitle(raw),
				"error": err.Error(),
			})
			continue
		}
		accepted = append(accepted, al.ID)
	}

	a.writeJSON(w, http.StatusAccepted, map[string]any{
		"accepted": accepted,
		"rejected": rejected,
	})
}

func rawTitle(raw *alert.RawEvent) string {
	if raw == nil {
		return ""
	}
	return raw.Title
}

type actionRequest struct {
	Actor          string `json:"actor"`
	Note           string `json:"note,omitempty"`
	ResolutionType string `json:"resolution_type,omitempty"`
	EscalateTo     string `json:"escalate_to,omitempty"`
	Reason         string `json:"reason,omitempty"`
	Priority       string `json:"priority,omitempty"`
	UserID         string `json:"user_id,omitempty"`
}

func (a *API) decodeAction(w http.ResponseWriter, r *http.Request) (actionRequest, bool) {
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return req, false
	}
	return req, true
}

func (a *API) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeAction(w, r)
	if !ok {
		return
	}
	al, err := a.svc.Acknowledge(r.Context(), chi.URLParam(r, "id"), req.Actor, req.Note)
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, al)
}

func (a *API) handleResolve(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeAction(w, r)
	if !ok {
		return
	}
	al, err := a.svc.Resolve(r.Context(), chi.URLParam(r, "id"), req.Actor, req.ResolutionType, req.Note)
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, al)
}

func (a *API) handleEscalate(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeAction(w, r)
	if !ok {
		return
	}
	al, err := a.svc.Escalate(r.Context(), chi.URLParam(r, "id"), req.Actor, req.EscalateTo, req.Reason, req.Priority)
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, al)
}

func (a *API) handleAssign(w http.ResponseWriter, r *http.Request) {
	req, ok := a.decodeAction(w, r)
	if !ok {
		return
	}
	al, err := a.svc.Assign(r.Context(), chi.URLParam(r, "id"), req.Actor, req.UserID, req.Note)
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, al)
}

func (a *API) handleAlertTimeline(w http.ResponseWriter, r *http.Request) {
	entries, err := a.svc.Timeline(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"timeline": entries})
}
