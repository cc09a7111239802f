package alert

import (
	"errors"
	"fmt"
)

// Kind categorizes a domain error so callers (and the bulk coordinator) can
// react per class without string matching.
type Kind string

const (
	KindValidation        Kind = "validation"
	KindInvalidTransition Kind = "invalid_transition"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindCanceled          Kind = "canceled"
)

// Error is a categorized domain error.
type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

// NewValidation reports a missing or empty required field.
func NewValidation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// NewInvalidTransition reports a status change not permitted from the
// alert's current status.
func NewInvalidTransition(action Action, from Status) *Error {
	return &Error{Kind: KindInvalidTransition, Msg: fmt.Sprintf("cannot %s alert in status %q", action, from)}
}

// NewNotFound reports a reference to a nonexistent resource. The resource
// names what was looked up ("alert", "incident") so the message matches
// what the caller asked for.
func NewNotFound(resource, id string) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf("%s %q not found", resource, id)}
}

// NewConflict reports a concurrent status change between read and write.
func NewConflict(id string, expected Status) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf("alert %q status changed concurrently, expected %q", id, expected)}
}

// NewCanceled reports an operation abandoned before it was started because
// the caller canceled the surrounding request.
func NewCanceled(id string) *Error {
	return &Error{Kind: KindCanceled, Msg: fmt.Sprintf("alert %q not processed: operation canceled", id)}
}

// KindOf extracts the Kind from an error chain, or "" if it carries none.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
