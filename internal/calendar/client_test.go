package calendar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestTrackedItems_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/tracked-items" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/api/v1/tracked-items")
		}
		if got := r.Header.Get("X-Scope-OrgID"); got != "tenant-1" {
			t.Errorf("X-Scope-OrgID = %q, want %q", got, "tenant-1")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[
			{"id":"item-1","title":"Tax filing","due_at":"2026-03-10T00:00:00Z","event_type":"filing","bureau":"finance"},
			{"id":"item-2","title":"Permit renewal","due_at":"2026-03-15T00:00:00Z","event_type":"permit"}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tenant-1")
	items, err := c.TrackedItems(context.Background())
	if err != nil {
		t.Fatalf("TrackedItems: %v", err)
	}

	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if items[0].ID != "item-1" {
		t.Errorf("items[0].ID = %q, want %q", items[0].ID, "item-1")
	}
	want := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	if !items[0].DueAt.Equal(want) {
		t.Errorf("items[0].DueAt = %v, want %v", items[0].DueAt, want)
	}
	if items[0].Bureau != "finance" {
		t.Errorf("items[0].Bureau = %q, want %q", items[0].Bureau, "finance")
	}
}

func TestTrackedItems_NoTenantHeader(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["X-Scope-Orgid"]; ok {
			t.Error("X-Scope-OrgID header set without a tenant configured")
		}
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	items, err := c.TrackedItems(context.Background())
	if err != nil {
		t.Fatalf("TrackedItems: %v", err)
	}
	if len(items) != 0 {
		t.Errorf("items = %d, want 0", len(items))
	}
}

func TestTrackedItems_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.TrackedItems(context.Background())
	if err == nil {
		t.Fatal("expected error on 502 response")
	}
}

func TestTrackedItems_MalformedBody(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"items": not json`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.TrackedItems(context.Background())
	if err == nil {
		t.Fatal("expected decode error")
	}
}

func TestTrackedItems_Unreachable(t *testing.T) {
	t.Parallel()

	c := New("http://127.0.0.1:1", "")
	_, err := c.TrackedItems(context.Background())
	if err == nil {
		t.Fatal("expected connection error")
	}
}
