package pgstore_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/linnemanlabs/klaxon/internal/alert"
	"github.com/linnemanlabs/klaxon/internal/alert/pgstore"
	"github.com/linnemanlabs/klaxon/internal/postgres"
)

func openStore(t *testing.T) *pgstore.Store {
	t.Helper()
	dsn := os.Getenv("KLAXON_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("KLAXON_TEST_DATABASE_URL not set, skipping integration test")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, dsn)
	if err != nil {
		t.Fatalf("postgres.NewPool: %v", err)
	}
	t.Cleanup(pool.Close)
	s, err := pgstore.New(ctx, pool)
	if err != nil {
		t.Fatalf("pgstore.New: %v", err)
	}
	return s
}

func testAlert(id string) *alert.Alert {
	due := time.Now().Add(48 * time.Hour).Truncate(time.Microsecond).UTC()
	return &alert.Alert{
		ID:        id,
		Severity:  alert.SeverityWarning,
		Type:      "payment_overdue",
		Source:    "finance",
		Bureau:    "finance",
		Title:     "Invoice overdue",
		CreatedAt: time.Now().Truncate(time.Microsecond).UTC(),
		Entity:    &alert.Entity{Kind: "payment", ID: "INV-1"},
		Impact:    &alert.Impact{Money: 500},
		SLADueAt:  &due,
		Status:    alert.StatusOpen,
		Metadata:  map[string]string{"invoice": "INV-1"},
	}
}

func TestPutAndGet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	a := testAlert(fmt.Sprintf("test-put-get-%d", time.Now().UnixNano()))
	if err := s.Put(ctx, a); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, ok, err := s.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("Get returned ok=false, want true")
	}
	if got.Type != a.Type || got.Severity != a.Severity || got.Status != a.Status {
		t.Errorf("got = %+v, want fields of %+v", got, a)
	}
	if got.Entity == nil || got.Entity.ID != "INV-1" {
		t.Errorf("Entity = %+v, want INV-1", got.Entity)
	}
	if got.Impact == nil || got.Impact.Money != 500 {
		t.Errorf("Impact = %+v, want money 500", got.Impact)
	}
	if got.SLADueAt == nil || !got.SLADueAt.Equal(*a.SLADueAt) {
		t.Errorf("SLADueAt = %v, want %v", got.SLADueAt, a.SLADueAt)
	}
}

func TestGet_Missing(t *testing.T) {
	s := openStore(t)

	_, ok, err := s.Get(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Error("Get returned ok=true for missing id")
	}
}

func TestPut_Upsert(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	a := testAlert(fmt.Sprintf("test-upsert-%d", time.Now().UnixNano()))
	if err := s.Put(ctx, a); err != nil {
		t.Fatalf("Put: %v", err)
	}

	a.Severity = alert.SeverityCritical
	if err := s.Put(ctx, a); err != nil {
		t.Fatalf("Put (upsert): %v", err)
	}

	got, _, err := s.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Severity != alert.SeverityCritical {
		t.Errorf("Severity = %q after upsert, want critical", got.Severity)
	}
}

func TestPut_UpsertKeepsLifecycleFields(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	a := testAlert(fmt.Sprintf("test-upsert-lc-%d", time.Now().UnixNano()))
	if err := s.Put(ctx, a); err != nil {
		t.Fatalf("Put: %v", err)
	}

	acked := a.Clone()
	acked.Status = alert.StatusAcknowledged
	acked.Assignee = "eng-7"
	entry := &alert.TimelineEntry{
		AlertID:   a.ID,
		Action:    alert.ActionAcknowledge,
		Actor:     "eng-7",
		Timestamp: time.Now().UTC(),
	}
	if err := s.Transition(ctx, acked, alert.StatusOpen, entry); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	// Re-ingest of the same id must not revert the transition.
	if err := s.Put(ctx, a); err != nil {
		t.Fatalf("Put (upsert): %v", err)
	}

	got, _, err := s.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != alert.StatusAcknowledged {
		t.Errorf("Status = %q after upsert, want %q", got.Status, alert.StatusAcknowledged)
	}
	if got.Assignee != "eng-7" {
		t.Errorf("Assignee = %q after upsert, want %q", got.Assignee, "eng-7")
	}
}

func TestTransition_CASAndTimeline(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()

	a := testAlert(fmt.Sprintf("test-cas-%d", time.Now().UnixNano()))
	if err := s.Put(ctx, a); err != nil {
		t.Fatalf("Put: %v", err)
	}

	updated := a.Clone()
	updated.Status = alert.StatusAcknowledged
	entry := &alert.TimelineEntry{
		AlertID:   a.ID,
		Actor:     "ops",
		Action:    alert.ActionAcknowledge,
		Timestamp: time.Now().Truncate(time.Microsecond).UTC(),
	}
	if err := s.Transition(ctx, updated, alert.StatusOpen, entry); err != nil {
		t.Fatalf("Transition: %v", err)
	}

	// stale expected status must fail with conflict and write no entry
	again := updated.Clone()
	again.Status = alert.StatusResolved
	err := s.Transition(ctx, again, alert.StatusOpen, &alert.TimelineEntry{
		AlertID:   a.ID,
		Action:    alert.ActionResolve,
		Timestamp: time.Now().UTC(),
	})
	if alert.KindOf(err) != alert.KindConflict {
		t.Fatalf("error kind = %q, want %q", alert.KindOf(err), alert.KindConflict)
	}

	tl, err := s.Timeline(ctx, a.ID)
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

func TestTransition_NotFound(t *testing.T) {
	s := openStore(t)

	ghost := testAlert("ghost-never-stored")
	err := s.Transition(context.Background(), ghost, alert.StatusOpen, &alert.TimelineEntry{
		AlertID:   ghost.ID,
		Action:    alert.ActionAcknowledge,
		Timestamp: time.Now().UTC(),
	})
	if alert.KindOf(err) != alert.KindNotFound {
		t.Errorf("error kind = %q, want %q", alert.KindOf(err), alert.KindNotFound)
	}
}
