package alert

import "context"

// Store is the persistence interface for alerts and their timelines.
//
// Transition applies a validated status change atomically: the write only
// succeeds if the persisted status still equals expected, and the timeline
// entry is committed in the same step. A lost race surfaces as a conflict
// error so the caller can re-read and retry; the entry is not written.
//
// Put upserts on ID. When the alert already exists the stored status and
// assignee are kept, atomically with the write: those fields change only
// through Transition, and an upsert racing one must not undo it.
type Store interface {
	Get(ctx context.Context, id string) (*Alert, bool, error)
	Put(ctx context.Context, a *Alert) error
	List(ctx context.Context) ([]*Alert, error)
	Transition(ctx context.Context, a *Alert, expected Status, entry *TimelineEntry) error
	Timeline(ctx context.Context, alertID string) ([]*TimelineEntry, error)
}
