package alertapi

import (
	"encoding/json"
	"net/http"

	"github.com/linnemanlabs/klaxon/internal/engine"
)

type bulkRequest struct {
	Action  string          `json:"action"`
	IDs     []string        `json:"ids"`
	Actor   string          `json:"actor,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// decodeBulkPayload picks the payload variant for the requested action.
// Unknown actions return nil.
func decodeBulkPayload(action string, raw json.RawMessage) (engine.BulkPayload, error) {
	if raw == nil {
		raw = json.RawMessage(`{}`)
	}
	switch action {
	case "acknowledge":
		var p engine.AcknowledgePayload
		return p, json.Unmarshal(raw, &p)
	case "resolve":
		var p engine.ResolvePayload
		return p, json.Unmarshal(raw, &p)
	case "escalate":
		var p engine.EscalatePayload
		return p, json.Unmarshal(raw, &p)
	case "assign":
		var p engine.AssignPayload
		return p, json.Unmarshal(raw, &p)
	default:
		return nil, nil
	}
}

func (a *API) handleBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		a.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid payload"})
		return
	}
	if len(req.IDs) == 0 {
		a.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "ids are required"})
		return
	}

	payload, err := decodeBulkPayload(req.Action, req.Payload)
	if err != nil {
		a.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid bulk payload"})
		return
	}
	if payload == nil {
		a.writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown action"})
		return
	}

	result := a.svc.BulkApply(r.Context(), req.IDs, req.Actor, payload)

	a.writeJSON(w, http.StatusOK, map[string]any{
		"processed":       result.Processed,
		"successful":      result.Successful,
		"failed":          result.Failed,
		"errors":          result.Errors,
		"partial_failure": result.PartialFailure(),
	})
}
