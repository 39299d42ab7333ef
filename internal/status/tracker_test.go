package status

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestIsReady(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/project-status/")
		w.Header().Set("Content-Type", "application/json")
		if id == "demo" {
			w.Write([]byte(`{"readyToRun":true}`))
			return
		}
		w.Write([]byte(`{"readyToRun":false}`))
	}))
	defer srv.Close()

	tr := NewTracker(srv.URL)
	if !tr.IsReady(context.Background(), "demo") {
		t.Error("Expected demo to be ready")
	}
	if tr.IsReady(context.Background(), "blog") {
		t.Error("Expected blog to be not ready")
	}
}

func TestIsReadyDefaultsFalseOnError(t *testing.T) {
	// Server error
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "broken", http.StatusInternalServerError)
	}))
	tr := NewTracker(srv.URL)
	if tr.IsReady(context.Background(), "demo") {
		t.Error("Server error must degrade to not ready")
	}
	srv.Close()

	// Connection refused
	if tr.IsReady(context.Background(), "demo") {
		t.Error("Unreachable daemon must degrade to not ready")
	}
}

func TestIsReadyDefaultsFalseOnBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	tr := NewTracker(srv.URL)
	if tr.IsReady(context.Background(), "demo") {
		t.Error("Malformed payload must degrade to not ready")
	}
}

func TestBatchStatus(t *testing.T) {
	ready := map[string]bool{"a": true, "b": false, "c": true, "d": false, "e": true}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/project-status/")
		w.Header().Set("Content-Type", "application/json")
		if ready[id] {
			w.Write([]byte(`{"readyToRun":true}`))
		} else {
			w.Write([]byte(`{"readyToRun":false}`))
		}
	}))
	defer srv.Close()

	tr := NewTracker(srv.URL)
	got := tr.BatchStatus(context.Background(), []string{"a", "b", "c", "d", "e"})
	if len(got) != 5 {
		t.Fatalf("Expected 5 results, got %d", len(got))
	}
	for id, want := range ready {
		if got[id] != want {
			t.Errorf("Status mismatch for %s: got %v want %v", id, got[id], want)
		}
	}
}
