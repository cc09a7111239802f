// Package memstore provides an in-memory implementation of alert.Store.
package memstore

import (
	"context"
	"sync"

	"github.com/linnemanlabs/klaxon/internal/alert"
)

// Store holds alerts and timeline entries in memory. Suitable for dev/testing.
type Store struct {
	mu       sync.RWMutex
	alerts   map[string]*alert.Alert
	order    []string // alert IDs in first-insertion order
	timeline []*alert.TimelineEntry
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{
		alerts: make(map[string]*alert.Alert),
	}
}

// Get retrieves an alert by its ID. Returns a copy.
func (s *Store) Get(_ context.Context, id string) (*alert.Alert, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, false, nil
	}
	return a.Clone(), true, nil
}

// Put stores a copy of the alert, upserting on ID. First insertion fixes the
// alert's position in List order. On upsert the stored status and assignee
// win: lifecycle state is owned by Transition, and a re-ingest must not
// revert it.
func (s *Store) Put(_ context.Context, a *alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := a.Clone()
	if cur, exists := s.alerts[a.ID]; exists {
		cp.Status = cur.Status
		cp.Assignee = cur.Assignee
	} else {
		s.order = append(s.order, a.ID)
	}
	s.alerts[a.ID] = cp
	return nil
}

// List returns copies of all alerts in insertion order.
func (s *Store) List(_ context.Context) ([]*alert.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*alert.Alert, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.alerts[id].Clone())
	}
	return out, nil
}

// Transition writes the updated alert and its timeline entry in one step,
// failing with a conflict if the stored status no longer matches expected.
func (s *Store) Transition(_ context.Context, a *alert.Alert, expected alert.Status, entry *alert.TimelineEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.alerts[a.ID]
	if !ok {
		return alert.NewNotFound("alert", a.ID)
	}
	if cur.Status != expected {
		return alert.NewConflict(a.ID, expected)
	}

	s.alerts[a.ID] = a.Clone()
	cp := *entry
	s.timeline = append(s.timeline, &cp)
	return nil
}

// Timeline returns copies of the alert's timeline entries in append order.
func (s *Store) Timeline(_ context.Context, alertID string) ([]*alert.TimelineEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*alert.TimelineEntry
	for _, e := range s.timeline {
		if e.AlertID == alertID {
			cp := *e
			out = append(out, &cp)
		}
	}
	return out, nil
}
