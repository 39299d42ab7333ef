package archive

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListProjects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/projects/" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id":"demo","files":["project.zip"]},{"id":"blog","files":[]}]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	projects, err := c.ListProjects(context.Background())
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(projects) != 2 {
		t.Fatalf("Expected 2 projects, got %d", len(projects))
	}
	// Catalog order is preserved
	if projects[0].ID != "demo" || projects[1].ID != "blog" {
		t.Errorf("Unexpected order: %v", projects)
	}
	if len(projects[0].Files) != 1 || projects[0].Files[0] != "project.zip" {
		t.Errorf("Unexpected files: %v", projects[0].Files)
	}
}

func TestListProjectsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.ListProjects(context.Background())
	if !errors.Is(err, ErrCatalogUnavailable) {
		t.Errorf("Expected ErrCatalogUnavailable, got %v", err)
	}
}

func TestListProjectsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := NewClient(srv.URL)
	_, err := c.ListProjects(context.Background())
	if !errors.Is(err, ErrCatalogUnavailable) {
		t.Errorf("Expected ErrCatalogUnavailable, got %v", err)
	}
}

func TestFetchArchive(t *testing.T) {
	payload := []byte("PK\x03\x04 pretend zip")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/projects/demo/download/project.zip" {
			http.NotFound(w, r)
			return
		}
		w.Write(payload)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	body, err := c.FetchArchive(context.Background(), "demo", "project.zip")
	if err != nil {
		t.Fatalf("FetchArchive failed: %v", err)
	}
	defer body.Close()

	got, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(got) != string(payload) {
		t.Errorf("Payload mismatch: %q", got)
	}
}

func TestFetchArchiveNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.FetchArchive(context.Background(), "demo", "missing.zip")
	if !errors.Is(err, ErrArchiveNotFound) {
		t.Errorf("Expected ErrArchiveNotFound, got %v", err)
	}
}

func TestFetchArchiveTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewClient(srv.URL)
	_, err := c.FetchArchive(context.Background(), "demo", "project.zip")
	if !errors.Is(err, ErrNetwork) {
		t.Errorf("Expected ErrNetwork, got %v", err)
	}
}
