package calendar

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
)

func TestListEventsNormalizesProviderItems(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		if r.URL.Query().Get("timeMin") == "" || r.URL.Query().Get("timeMax") == "" {
			t.Errorf("missing time range params: %s", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"events":[
			{"id":"e1","summary":"Buy milk","start":{"date":"2025-03-10"},"end":{"date":"2025-03-10"}},
			{"id":"e2","summary":"Standup","start":{"dateTime":"2025-03-10T09:30:00Z"},"end":{"dateTime":"2025-03-10T10:00:00Z"}}
		]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	events, err := c.ListEvents(context.Background(), time.Now(), time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Title != "Buy milk" || !events[0].AllDay {
		t.Fatalf("date-only item not normalized: %+v", events[0])
	}
	if events[1].AllDay {
		t.Fatalf("dateTime item should not be all-day: %+v", events[1])
	}
}

func TestCreateEventReturnsAssignedID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		if err := sonic.ConfigStd.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["action"] != "create" {
			t.Errorf("unexpected action: %v", req["action"])
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("unexpected auth header: %q", got)
		}
		_, _ = w.Write([]byte(`{"success":true,"event":{"id":"evt-42"}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.Local)
	ev, err := c.CreateEvent(context.Background(), Event{Title: "Write report", Start: start, End: start.Add(time.Hour), AllDay: true})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ev.ID != "evt-42" {
		t.Fatalf("expected assigned id, got %q", ev.ID)
	}
}

func TestUnauthenticatedMapsToSentinel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Not authenticated"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	if _, err := c.ListEvents(context.Background(), time.Now(), time.Now()); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
	if err := c.DeleteEvent(context.Background(), "e1"); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated on delete, got %v", err)
	}
}

func TestStaleEventMapsToNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"gone"}`, http.StatusGone)
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	if err := c.DeleteEvent(context.Background(), "stale"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
