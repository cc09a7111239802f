package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/linnemanlabs/go-core/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/linnemanlabs/klaxon/internal/alert"
	"github.com/linnemanlabs/klaxon/internal/alert/memstore"
)

func newTestService(t *testing.T, opts ...Option) (*Service, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	svc := NewService(store, NewMetrics(prometheus.NewRegistry()), log.Nop(), opts...)
	return svc, store
}

func seedAlert(t *testing.T, store *memstore.Store, id string, status alert.Status) {
	t.Helper()
	err := store.Put(context.Background(), &alert.Alert{
		ID:        id,
		Severity:  alert.SeverityWarning,
		Type:      "payment_overdue",
		Title:     "Invoice overdue",
		CreatedAt: time.Now().UTC(),
		Status:    status,
	})
	if err != nil {
		t.Fatalf("seed alert %s: %v", id, err)
	}
}

// mockNotifier records escalation calls.
type mockNotifier struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (m *mockNotifier) Escalated(_ context.Context, a *alert.Alert, escalateTo, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, a.ID+"->"+escalateTo)
	return m.err
}

func (m *mockNotifier) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func TestIngest_PersistsNormalizedAlert(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)

	a, err := svc.Ingest(context.Background(), &alert.RawEvent{
		Type:  "deploy_failed",
		Title: "Deploy of api-server failed",
	}, alert.SourceExecution)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	got, ok, err := store.Get(context.Background(), a.ID)
	if err != nil || !ok {
		t.Fatalf("Get(%s): ok=%v err=%v", a.ID, ok, err)
	}
	if got.Status != alert.StatusOpen {
		t.Errorf("Status = %q, want %q", got.Status, alert.StatusOpen)
	}
}

func TestIngest_RejectsInvalidEvent(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	_, err := svc.Ingest(context.Background(), &alert.RawEvent{Type: "deploy_failed"}, alert.SourceExecution)
	if alert.KindOf(err) != alert.KindValidation {
		t.Errorf("error kind = %q, want %q", alert.KindOf(err), alert.KindValidation)
	}
}

func TestIngest_ReingestPreservesLifecycleState(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	raw := &alert.RawEvent{ID: "sla-item-1", Type: "sla", Title: "Deadline warning: filing"}
	if _, err := svc.Ingest(ctx, raw, alert.SourceCalendar); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if _, err := svc.Acknowledge(ctx, "sla-item-1", "ops", ""); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}

	a, err := svc.Ingest(ctx, raw, alert.SourceCalendar)
	if err != nil {
		t.Fatalf("re-Ingest: %v", err)
	}
	if a.Status != alert.StatusAcknowledged {
		t.Errorf("Status after re-ingest = %q, want %q", a.Status, alert.StatusAcknowledged)
	}
}

// ackDuringPutStore acknowledges the alert inside Put, simulating an
// operator transition landing while a periodic re-ingest is in flight.
type ackDuringPutStore struct {
	*memstore.Store
	mu    sync.Mutex
	armed bool
}

func (s *ackDuringPutStore) arm() {
	s.mu.Lock()
	s.armed = true
	s.mu.Unlock()
}

func (s *ackDuringPutStore) Put(ctx context.Context, a *alert.Alert) error {
	s.mu.Lock()
	armed := s.armed
	s.armed = false
	s.mu.Unlock()

	if armed {
		cur, ok, err := s.Store.Get(ctx, a.ID)
		if err == nil && ok {
			upd := cur.Clone()
			upd.Status = alert.StatusAcknowledged
			_ = s.Store.Transition(ctx, upd, cur.Status, &alert.TimelineEntry{
				AlertID:   a.ID,
				Action:    alert.ActionAcknowledge,
				Actor:     "ops",
				Timestamp: time.Now().UTC(),
			})
		}
	}
	return s.Store.Put(ctx, a)
}

func TestIngest_ConcurrentAcknowledgeNotReverted(t *testing.T) {
	t.Parallel()

	store := &ackDuringPutStore{Store: memstore.New()}
	svc := NewService(store, NewMetrics(prometheus.NewRegistry()), log.Nop())
	ctx := context.Background()

	raw := &alert.RawEvent{ID: "sla-item-1", Type: "sla", Title: "Deadline warning: filing"}
	if _, err := svc.Ingest(ctx, raw, alert.SourceCalendar); err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	store.arm()
	a, err := svc.Ingest(ctx, raw, alert.SourceCalendar)
	if err != nil {
		t.Fatalf("re-Ingest: %v", err)
	}
	if a.Status != alert.StatusAcknowledged {
		t.Errorf("Status after racing re-ingest = %q, want %q", a.Status, alert.StatusAcknowledged)
	}

	got, ok, err := store.Get(ctx, "sla-item-1")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if got.Status != alert.StatusAcknowledged {
		t.Errorf("stored Status = %q, want %q", got.Status, alert.StatusAcknowledged)
	}
}

func TestAcknowledge_FromOpen(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	seedAlert(t, store, "a1", alert.StatusOpen)

	a, err := svc.Acknowledge(context.Background(), "a1", "ops", "on it")
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if a.Status != alert.StatusAcknowledged {
		t.Errorf("Status = %q, want %q", a.Status, alert.StatusAcknowledged)
	}

	tl, err := svc.Timeline(context.Background(), "a1")
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(tl) != 1 {
		t.Fatalf("timeline len = %d, want 1", len(tl))
	}
	if tl[0].Actor != "ops" || tl[0].Action != alert.ActionAcknowledge {
		t.Errorf("entry = %+v, want acknowledge by ops", tl[0])
	}
}

func TestAcknowledge_InvalidFromNonOpen(t *testing.T) {
	t.Parallel()

	for _, status := range []alert.Status{
		alert.StatusAcknowledged,
		alert.StatusResolved,
		alert.StatusEscalated,
		alert.StatusSnoozed,
	} {
		t.Run(string(status), func(t *testing.T) {
			t.Parallel()
			svc, store := newTestService(t)
			seedAlert(t, store, "a1", status)

			_, err := svc.Acknowledge(context.Background(), "a1", "ops", "")
			if alert.KindOf(err) != alert.KindInvalidTransition {
				t.Errorf("error kind = %q, want %q", alert.KindOf(err), alert.KindInvalidTransition)
			}
		})
	}
}

func TestResolve_AcknowledgeThenResolve(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	seedAlert(t, store, "a1", alert.StatusOpen)
	ctx := context.Background()

	if _, err := svc.Acknowledge(ctx, "a1", "ops", ""); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	a, err := svc.Resolve(ctx, "a1", "ops", "fixed", "rolled back the deploy")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if a.Status != alert.StatusResolved {
		t.Errorf("Status = %q, want %q", a.Status, alert.StatusResolved)
	}
	if a.Metadata["resolution_type"] != "fixed" {
		t.Errorf("resolution_type = %q, want %q", a.Metadata["resolution_type"], "fixed")
	}

	tl, err := svc.Timeline(ctx, "a1")
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(tl) != 2 {
		t.Fatalf("timeline len = %d, want 2", len(tl))
	}
	if tl[0].Action != alert.ActionAcknowledge || tl[1].Action != alert.ActionResolve {
		t.Errorf("timeline actions = [%q, %q], want [acknowledge, resolve]", tl[0].Action, tl[1].Action)
	}
}

func TestResolve_TerminalRejectsSecondResolve(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	seedAlert(t, store, "a1", alert.StatusOpen)
	ctx := context.Background()

	if _, err := svc.Resolve(ctx, "a1", "ops", "fixed", "done"); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	_, err := svc.Resolve(ctx, "a1", "ops", "fixed", "done again")
	if alert.KindOf(err) != alert.KindInvalidTransition {
		t.Fatalf("error kind = %q, want %q", alert.KindOf(err), alert.KindInvalidTransition)
	}

	// failed attempt must not leave an audit entry
	tl, err := svc.Timeline(ctx, "a1")
	if err != nil {
		t.Fatalf("Timeline: %v", err)
	}
	if len(tl) != 1 {
		t.Errorf("timeline len = %d after rejected resolve, want 1", len(tl))
	}
}

func TestResolve_RequiresTypeAndNote(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		resolutionType string
		note           string
	}{
		{"missing type", "", "some note"},
		{"missing note", "fixed", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, store := newTestService(t)
			seedAlert(t, store, "a1", alert.StatusOpen)

			_, err := svc.Resolve(context.Background(), "a1", "ops", tt.resolutionType, tt.note)
			if alert.KindOf(err) != alert.KindValidation {
				t.Errorf("error kind = %q, want %q", alert.KindOf(err), alert.KindValidation)
			}
		})
	}
}

func TestResolve_FromEscalated(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	seedAlert(t, store, "a1", alert.StatusEscalated)

	a, err := svc.Resolve(context.Background(), "a1", "ops", "fixed", "escalation resolved it")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if a.Status != alert.StatusResolved {
		t.Errorf("Status = %q, want %q", a.Status, alert.StatusResolved)
	}
}

func TestEscalate_FiresNotifier(t *testing.T) {
	t.Parallel()

	notifier := &mockNotifier{}
	svc, store := newTestService(t, WithNotifier(notifier))
	seedAlert(t, store, "a1", alert.StatusOpen)

	a, err := svc.Escalate(context.Background(), "a1", "ops", "tier2", "no response in 4h", "high")
	if err != nil {
		t.Fatalf("Escalate: %v", err)
	}
	if a.Status != alert.StatusEscalated {
		t.Errorf("Status = %q, want %q", a.Status, alert.StatusEscalated)
	}
	if a.Metadata["escalated_to"] != "tier2" {
		t.Errorf("escalated_to = %q, want %q", a.Metadata["escalated_to"], "tier2")
	}
	if a.Metadata["escalation_priority"] != "high" {
		t.Errorf("escalation_priority = %q, want %q", a.Metadata["escalation_priority"], "high")
	}
	if notifier.callCount() != 1 {
		t.Errorf("notifier calls = %d, want 1", notifier.callCount())
	}
}

func TestEscalate_NotifierFailureDoesNotFailTransition(t *testing.T) {
	t.Parallel()

	notifier := &mockNotifier{err: errors.New("webhook down")}
	svc, store := newTestService(t, WithNotifier(notifier))
	seedAlert(t, store, "a1", alert.StatusOpen)

	a, err := svc.Escalate(context.Background(), "a1", "ops", "tier2", "reason", "")
	if err != nil {
		t.Fatalf("Escalate: %v", err)
	}
	if a.Status != alert.StatusEscalated {
		t.Errorf("Status = %q, want %q", a.Status, alert.StatusEscalated)
	}
}

func TestEscalate_InvalidFromEscalatedOrResolved(t *testing.T) {
	t.Parallel()

	for _, status := range []alert.Status{alert.StatusEscalated, alert.StatusResolved, alert.StatusSnoozed} {
		t.Run(string(status), func(t *testing.T) {
			t.Parallel()
			notifier := &mockNotifier{}
			svc, store := newTestService(t, WithNotifier(notifier))
			seedAlert(t, store, "a1", status)

			_, err := svc.Escalate(context.Background(), "a1", "ops", "tier2", "reason", "")
			if alert.KindOf(err) != alert.KindInvalidTransition {
				t.Errorf("error kind = %q, want %q", alert.KindOf(err), alert.KindInvalidTransition)
			}
			if notifier.callCount() != 0 {
				t.Errorf("notifier calls = %d on failed escalate, want 0", notifier.callCount())
			}
		})
	}
}

func TestEscalate_RequiresTargetAndReason(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		escalateTo string
		reason     string
	}{
		{"missing target", "", "reason"},
		{"missing reason", "tier2", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, store := newTestService(t)
			seedAlert(t, store, "a1", alert.StatusOpen)

			_, err := svc.Escalate(context.Background(), "a1", "ops", tt.escalateTo, tt.reason, "")
			if alert.KindOf(err) != alert.KindValidation {
				t.Errorf("error kind = %q, want %q", alert.KindOf(err), alert.KindValidation)
			}
		})
	}
}

func TestAssign_LeavesStatusUntouched(t *testing.T) {
	t.Parallel()

	for _, status := range []alert.Status{alert.StatusOpen, alert.StatusAcknowledged, alert.StatusEscalated} {
		t.Run(string(status), func(t *testing.T) {
			t.Parallel()
			svc, store := newTestService(t)
			seedAlert(t, store, "a1", status)

			a, err := svc.Assign(context.Background(), "a1", "lead", "engineer-7", "your area")
			if err != nil {
				t.Fatalf("Assign: %v", err)
			}
			if a.Status != status {
				t.Errorf("Status = %q, want unchanged %q", a.Status, status)
			}
			if a.Assignee != "engineer-7" {
				t.Errorf("Assignee = %q, want %q", a.Assignee, "engineer-7")
			}

			tl, err := svc.Timeline(context.Background(), "a1")
			if err != nil {
				t.Fatalf("Timeline: %v", err)
			}
			if len(tl) != 1 || tl[0].Action != alert.ActionAssign {
				t.Errorf("timeline = %+v, want one assign entry", tl)
			}
		})
	}
}

func TestAssign_RequiresUserID(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t)
	seedAlert(t, store, "a1", alert.StatusOpen)

	_, err := svc.Assign(context.Background(), "a1", "lead", "", "")
	if alert.KindOf(err) != alert.KindValidation {
		t.Errorf("error kind = %q, want %q", alert.KindOf(err), alert.KindValidation)
	}
}

func TestTransition_UnknownAlert(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	_, err := svc.Acknowledge(context.Background(), "ghost", "ops", "")
	if alert.KindOf(err) != alert.KindNotFound {
		t.Errorf("error kind = %q, want %q", alert.KindOf(err), alert.KindNotFound)
	}
}

func TestTimeline_UnknownAlert(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	_, err := svc.Timeline(context.Background(), "ghost")
	if alert.KindOf(err) != alert.KindNotFound {
		t.Errorf("error kind = %q, want %q", alert.KindOf(err), alert.KindNotFound)
	}
}

func TestIncidents_CorrelatesAndRanks(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, raw := range []*alert.RawEvent{
		{Type: "payment_overdue", Title: "INV-1 overdue", Severity: "warning",
			Entity: &alert.Entity{Kind: "payment", ID: "INV-1"}, Impact: &alert.Impact{Money: 500}},
		{Type: "payment_overdue", Title: "INV-1 still overdue", Severity: "critical",
			Entity: &alert.Entity{Kind: "payment", ID: "INV-1"}, Impact: &alert.Impact{Money: 300}},
		{Type: "deploy_failed", Title: "deploy broke", Severity: "info"},
	} {
		if _, err := svc.Ingest(ctx, raw, alert.SourceFinance); err != nil {
			t.Fatalf("Ingest: %v", err)
		}
	}

	incidents, err := svc.Incidents(ctx)
	if err != nil {
		t.Fatalf("Incidents: %v", err)
	}
	if len(incidents) != 2 {
		t.Fatalf("incidents = %d, want 2", len(incidents))
	}
	// critical payment incident ranks first
	if incidents[0].Severity != alert.SeverityCritical {
		t.Errorf("incidents[0].Severity = %q, want %q", incidents[0].Severity, alert.SeverityCritical)
	}
	if incidents[0].ImpactMoney != 800 {
		t.Errorf("incidents[0].ImpactMoney = %v, want 800", incidents[0].ImpactMoney)
	}
}

func TestIncidentTimeline_MergesMemberTimelines(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, id := range []string{"a1", "a2"} {
		if _, err := svc.Ingest(ctx, &alert.RawEvent{
			ID: id, Type: "payment_overdue", Title: "INV-1 overdue",
			Entity: &alert.Entity{Kind: "payment", ID: "INV-1"},
		}, alert.SourceFinance); err != nil {
			t.Fatalf("Ingest %s: %v", id, err)
		}
	}
	if _, err := svc.Acknowledge(ctx, "a1", "ops", ""); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if _, err := svc.Acknowledge(ctx, "a2", "ops", ""); err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}

	incidents, err := svc.Incidents(ctx)
	if err != nil {
		t.Fatalf("Incidents: %v", err)
	}
	if len(incidents) != 1 {
		t.Fatalf("incidents = %d, want 1", len(incidents))
	}

	tl, err := svc.IncidentTimeline(ctx, incidents[0].ID)
	if err != nil {
		t.Fatalf("IncidentTimeline: %v", err)
	}
	if len(tl) != 2 {
		t.Fatalf("merged timeline len = %d, want 2", len(tl))
	}
	for i := 1; i < len(tl); i++ {
		if tl[i].Timestamp.Before(tl[i-1].Timestamp) {
			t.Error("merged timeline is not ordered by timestamp")
		}
	}
}

func TestIncidentTimeline_UnknownIncident(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	_, err := svc.IncidentTimeline(context.Background(), "deadbeef")
	if alert.KindOf(err) != alert.KindNotFound {
		t.Errorf("error kind = %q, want %q", alert.KindOf(err), alert.KindNotFound)
	}
	// The message must name the incident, not an alert.
	want := `not_found: incident "deadbeef" not found`
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}
