package pipeline

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"projecthub/internal/archive"
	"projecthub/internal/installer"
	"projecthub/internal/models"
	"projecthub/internal/store"
)

func makeZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	return buf.Bytes()
}

// fakeFetcher serves canned archive bytes or a canned error.
type fakeFetcher struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeFetcher) FetchArchive(ctx context.Context, projectID, fileName string) (io.ReadCloser, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

// fakeInstaller records invocations and optionally fails or blocks.
type fakeInstaller struct {
	err     error
	block   chan struct{}
	started chan struct{}
	dirs    []string
}

func (f *fakeInstaller) Install(ctx context.Context, projectDir string, sink installer.LogSink) error {
	f.dirs = append(f.dirs, projectDir)
	if f.started != nil {
		close(f.started)
	}
	if sink != nil {
		sink("added 1 package")
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return f.err
}

func newTestPipeline(t *testing.T, fetcher Fetcher, inst Installer) (*Pipeline, *store.Store) {
	t.Helper()
	tmpDir := t.TempDir()
	st, err := store.New(filepath.Join(tmpDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	p := New(fetcher, inst, st, filepath.Join(tmpDir, "projects"), "test-holder", 0, nil)
	return p, st
}

func TestAcquireSuccess(t *testing.T) {
	data := makeZip(t, map[string]string{
		"package.json":  "{}",
		"index.html":    "<html></html>",
		"src/main.js":   "console.log('hi')",
	})
	fetcher := &fakeFetcher{data: data}
	inst := &fakeInstaller{}
	p, st := newTestPipeline(t, fetcher, inst)

	dir, err := p.Acquire(context.Background(), "demo", "project.zip")
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if dir != p.ProjectDir("demo") {
		t.Errorf("Unexpected dir: %s", dir)
	}

	// Files materialized with exact relative structure
	for _, want := range []string{"package.json", "index.html", filepath.Join("src", "main.js")} {
		if _, err := os.Stat(filepath.Join(dir, want)); err != nil {
			t.Errorf("Expected %s to exist: %v", want, err)
		}
	}

	// Install ran in the extracted directory
	if len(inst.dirs) != 1 || inst.dirs[0] != dir {
		t.Errorf("Install was not run in %s: %v", dir, inst.dirs)
	}

	// Project marked ready only after all three stages
	ready, _ := st.IsReady("demo")
	if !ready {
		t.Error("Expected project to be ready")
	}

	acqs, _ := st.GetAcquisitionsForProject("demo")
	if len(acqs) != 1 || acqs[0].Stage != models.StageReady {
		t.Fatalf("Expected one ready acquisition, got %+v", acqs)
	}
	if acqs[0].Log == "" {
		t.Error("Expected install output to be captured")
	}
}

func TestAcquireDefaultFileName(t *testing.T) {
	fetcher := &fakeFetcher{err: archive.ErrArchiveNotFound}
	p, _ := newTestPipeline(t, fetcher, &fakeInstaller{})

	_, err := p.Acquire(context.Background(), "demo", "")
	if !errors.Is(err, archive.ErrArchiveNotFound) {
		t.Fatalf("Expected ErrArchiveNotFound, got %v", err)
	}
	if fetcher.calls != 1 {
		t.Errorf("Expected one fetch attempt, got %d", fetcher.calls)
	}
}

func TestAcquireDownloadFailureSkipsLaterStages(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("%w: demo/project.zip (status 404)", archive.ErrArchiveNotFound)}
	inst := &fakeInstaller{}
	p, st := newTestPipeline(t, fetcher, inst)

	_, err := p.Acquire(context.Background(), "demo", "project.zip")
	if !errors.Is(err, archive.ErrArchiveNotFound) {
		t.Fatalf("Expected ErrArchiveNotFound, got %v", err)
	}

	// Neither extraction nor install happened
	if _, err := os.Stat(p.ProjectDir("demo")); !os.IsNotExist(err) {
		t.Error("Expected no extraction directory after download failure")
	}
	if len(inst.dirs) != 0 {
		t.Error("Install must not run after download failure")
	}

	ready, _ := st.IsReady("demo")
	if ready {
		t.Error("Project must not be ready after a failed download")
	}
}

func TestAcquireInstallFailure(t *testing.T) {
	data := makeZip(t, map[string]string{"package.json": "{}"})
	fetcher := &fakeFetcher{data: data}
	inst := &fakeInstaller{err: &installer.InstallError{ExitCode: 2}}
	p, st := newTestPipeline(t, fetcher, inst)

	_, err := p.Acquire(context.Background(), "demo", "project.zip")
	var instErr *installer.InstallError
	if !errors.As(err, &instErr) || instErr.ExitCode != 2 {
		t.Fatalf("Expected InstallError with exit code 2, got %v", err)
	}

	// Download and extraction succeeded, but the project stays not-ready
	if _, statErr := os.Stat(filepath.Join(p.ProjectDir("demo"), "package.json")); statErr != nil {
		t.Errorf("Expected extracted files to remain: %v", statErr)
	}
	ready, _ := st.IsReady("demo")
	if ready {
		t.Error("Project must not be ready after a failed install")
	}

	acqs, _ := st.GetAcquisitionsForProject("demo")
	if len(acqs) != 1 || acqs[0].Stage != models.StageFailed {
		t.Fatalf("Expected one failed acquisition, got %+v", acqs)
	}
	if acqs[0].ExitCode != 2 {
		t.Errorf("Expected exit code 2 recorded, got %d", acqs[0].ExitCode)
	}
}

func TestAcquireCorruptArchive(t *testing.T) {
	fetcher := &fakeFetcher{data: []byte("this is not a zip")}
	inst := &fakeInstaller{}
	p, st := newTestPipeline(t, fetcher, inst)

	_, err := p.Acquire(context.Background(), "demo", "project.zip")
	if !errors.Is(err, archive.ErrCorruptArchive) {
		t.Fatalf("Expected ErrCorruptArchive, got %v", err)
	}
	if len(inst.dirs) != 0 {
		t.Error("Install must not run after a corrupt archive")
	}
	ready, _ := st.IsReady("demo")
	if ready {
		t.Error("Project must not be ready")
	}
}

func TestAcquireConcurrencyGuard(t *testing.T) {
	data := makeZip(t, map[string]string{"package.json": "{}"})
	fetcher := &fakeFetcher{data: data}
	inst := &fakeInstaller{block: make(chan struct{}), started: make(chan struct{})}
	p, _ := newTestPipeline(t, fetcher, inst)

	done := make(chan error, 1)
	go func() {
		_, err := p.Acquire(context.Background(), "demo", "project.zip")
		done <- err
	}()

	// Wait until the first run holds the lock and sits in its install stage
	select {
	case <-inst.started:
	case <-time.After(5 * time.Second):
		t.Fatal("First acquisition never reached install")
	}

	// A second request for the same project must be rejected
	_, err := p.Acquire(context.Background(), "demo", "project.zip")
	if !errors.Is(err, ErrAcquisitionInFlight) {
		t.Fatalf("Expected ErrAcquisitionInFlight, got %v", err)
	}

	close(inst.block)
	if err := <-done; err != nil {
		t.Fatalf("First acquisition failed: %v", err)
	}

	// Only one install subprocess ran
	if len(inst.dirs) != 1 {
		t.Errorf("Expected exactly one install run, got %d", len(inst.dirs))
	}
}

func TestAcquireRerunIsIdempotent(t *testing.T) {
	data := makeZip(t, map[string]string{"package.json": "{\"name\":\"demo\"}"})
	fetcher := &fakeFetcher{data: data}
	inst := &fakeInstaller{}
	p, st := newTestPipeline(t, fetcher, inst)

	dir1, err := p.Acquire(context.Background(), "demo", "project.zip")
	if err != nil {
		t.Fatalf("First acquire failed: %v", err)
	}
	dir2, err := p.Acquire(context.Background(), "demo", "project.zip")
	if err != nil {
		t.Fatalf("Second acquire failed: %v", err)
	}
	if dir1 != dir2 {
		t.Errorf("Expected same directory, got %s and %s", dir1, dir2)
	}

	content, err := os.ReadFile(filepath.Join(dir1, "package.json"))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(content) != "{\"name\":\"demo\"}" {
		t.Errorf("Unexpected content after rerun: %s", content)
	}

	ready, _ := st.IsReady("demo")
	if !ready {
		t.Error("Expected project to remain ready")
	}
	if acqs, _ := st.GetAcquisitionsForProject("demo"); len(acqs) != 2 {
		t.Errorf("Expected two recorded runs, got %d", len(acqs))
	}
}

func TestAcquireFailedRerunClearsReadiness(t *testing.T) {
	data := makeZip(t, map[string]string{"package.json": "{}"})
	fetcher := &fakeFetcher{data: data}
	inst := &fakeInstaller{}
	p, st := newTestPipeline(t, fetcher, inst)

	if _, err := p.Acquire(context.Background(), "demo", "project.zip"); err != nil {
		t.Fatalf("First acquire failed: %v", err)
	}
	if ready, _ := st.IsReady("demo"); !ready {
		t.Fatal("Expected project to be ready after first run")
	}

	// The re-run overwrites the directory and then fails at install; the
	// partial result must not be reported as ready.
	inst.err = &installer.InstallError{ExitCode: 1}
	if _, err := p.Acquire(context.Background(), "demo", "project.zip"); err == nil {
		t.Fatal("Expected failing re-run to return an error")
	}

	if ready, _ := st.IsReady("demo"); ready {
		t.Error("Failed re-run left the project reported as ready")
	}
}

func TestAcquireCancellation(t *testing.T) {
	data := makeZip(t, map[string]string{"package.json": "{}"})
	fetcher := &fakeFetcher{data: data}
	inst := &fakeInstaller{block: make(chan struct{}), started: make(chan struct{})}
	p, st := newTestPipeline(t, fetcher, inst)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Acquire(ctx, "demo", "project.zip")
		done <- err
	}()

	<-inst.started
	cancel()

	err := <-done
	if err == nil {
		t.Fatal("Expected cancelled acquisition to fail")
	}

	ready, _ := st.IsReady("demo")
	if ready {
		t.Error("Cancelled acquisition must not mark the project ready")
	}

	// The lock is released, so a retry is possible
	if _, err := st.AcquireLock("demo", "retry", time.Minute); err != nil {
		t.Errorf("Expected lock to be free after cancellation, got %v", err)
	}
}
