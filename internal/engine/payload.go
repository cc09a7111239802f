package engine

import "github.com/linnemanlabs/klaxon/internal/alert"

// BulkPayload is the tagged union of per-action bulk inputs. One variant per
// action keeps each case statically handled instead of dispatched on loose
// string fields.
type BulkPayload interface {
	Action() alert.Action
}

// AcknowledgePayload carries bulk acknowledge inputs.
type AcknowledgePayload struct {
	Note string `json:"note,omitempty"`
}

func (AcknowledgePayload) Action() alert.Action { return alert.ActionAcknowledge }

// ResolvePayload carries bulk resolve inputs.
type ResolvePayload struct {
	ResolutionType string `json:"resolution_type"`
	Note           string `json:"note"`
}

func (ResolvePayload) Action() alert.Action { return alert.ActionResolve }

// EscalatePayload carries bulk escalate inputs.
type EscalatePayload struct {
	EscalateTo string `json:"escalate_to"`
	Reason     string `json:"reason"`
	Priority   string `json:"priority,omitempty"`
}

func (EscalatePayload) Action() alert.Action { return alert.ActionEscalate }

// AssignPayload carries bulk assign inputs.
type AssignPayload struct {
	UserID string `json:"user_id"`
	Note   string `json:"note,omitempty"`
}

func (AssignPayload) Action() alert.Action { return alert.ActionAssign }

// params expands a payload into the ActionParams for one target alert.
func params(id, actor string, p BulkPayload) ActionParams {
	ap := ActionParams{Action: p.Action(), ID: id, Actor: actor}
	switch v := p.(type) {
	case AcknowledgePayload:
		ap.Note = v.Note
	case ResolvePayload:
		ap.ResolutionType = v.ResolutionType
		ap.Note = v.Note
	case EscalatePayload:
		ap.EscalateTo = v.EscalateTo
		ap.Note = v.Reason
		ap.Priority = v.Priority
	case AssignPayload:
		ap.UserID = v.UserID
		ap.Note = v.Note
	}
	return ap
}
