// Package pipeline orchestrates project acquisition: download, extract to
// disk, install dependencies, mark ready.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"projecthub/internal/archive"
	"projecthub/internal/installer"
	"projecthub/internal/models"
	"projecthub/internal/store"
)

// DefaultArchiveFile is used when a project publishes no file names.
const DefaultArchiveFile = "project.zip"

// lockTTL bounds how long a crashed run can hold a project's directory.
const lockTTL = 30 * time.Minute

// ErrAcquisitionInFlight rejects a second acquisition request for a project
// whose pipeline run has not finished.
var ErrAcquisitionInFlight = store.ErrProjectLocked

// Fetcher retrieves archive bytes from the remote store.
type Fetcher interface {
	FetchArchive(ctx context.Context, projectID, fileName string) (io.ReadCloser, error)
}

// Installer runs the dependency install step for an extracted directory.
type Installer interface {
	Install(ctx context.Context, projectDir string, sink installer.LogSink) error
}

// Pipeline turns a catalog entry into an installed local project. Stages run
// strictly sequentially: the download completes fully before extraction
// begins, and extraction completes fully before install begins.
type Pipeline struct {
	fetcher        Fetcher
	installer      Installer
	store          *store.Store
	root           string
	holderID       string
	installTimeout time.Duration
	sink           installer.LogSink
}

// New creates a Pipeline. root is the acquisition root directory; each
// project extracts into a subdirectory named after its identifier. sink, if
// non-nil, receives progress lines for the operator console.
func New(fetcher Fetcher, inst Installer, st *store.Store, root, holderID string, installTimeout time.Duration, sink installer.LogSink) *Pipeline {
	if sink == nil {
		sink = func(string) {}
	}
	return &Pipeline{
		fetcher:        fetcher,
		installer:      inst,
		store:          st,
		root:           root,
		holderID:       holderID,
		installTimeout: installTimeout,
		sink:           sink,
	}
}

// ProjectDir returns the extraction directory for a project identifier.
func (p *Pipeline) ProjectDir(projectID string) string {
	return filepath.Join(p.root, projectID)
}

// Acquire runs the full pipeline for one project and returns the extracted
// directory path. At most one run per project may be in flight: a concurrent
// request fails with ErrAcquisitionInFlight. Re-running for an already-ready
// project is safe (files are overwritten, install re-runs) but wasteful;
// callers should consult readiness first.
func (p *Pipeline) Acquire(ctx context.Context, projectID, fileName string) (string, error) {
	if fileName == "" {
		fileName = DefaultArchiveFile
	}

	if _, err := p.store.AcquireLock(projectID, p.holderID, lockTTL); err != nil {
		return "", err
	}
	defer p.store.ReleaseLock(projectID, p.holderID)

	acq, err := p.store.CreateAcquisition(projectID)
	if err != nil {
		return "", err
	}

	// A run overwrites the project directory, so readiness from any
	// earlier run no longer holds. Cleared up front: a failed re-run
	// must not leave a partial tree reported as ready.
	if err := p.store.SetReady(projectID, false); err != nil {
		return "", fmt.Errorf("clear ready: %w", err)
	}

	var captured []string
	runSink := func(line string) {
		captured = append(captured, line)
		p.sink(line)
	}

	dir, err := p.run(ctx, acq, projectID, fileName, runSink)
	if err != nil {
		exitCode := 0
		var instErr *installer.InstallError
		if errors.As(err, &instErr) {
			exitCode = instErr.ExitCode
		}
		p.store.FinishAcquisition(acq.ID, models.StageFailed, "", err.Error(), exitCode, strings.Join(captured, "\n"))
		p.sink(fmt.Sprintf("Acquisition of %s failed: %v", projectID, err))
		return "", err
	}

	if err := p.store.SetReady(projectID, true); err != nil {
		return "", fmt.Errorf("mark ready: %w", err)
	}
	if err := p.store.FinishAcquisition(acq.ID, models.StageReady, dir, "", 0, strings.Join(captured, "\n")); err != nil {
		return "", fmt.Errorf("record acquisition: %w", err)
	}
	p.sink(fmt.Sprintf("Installation successful at: %s", dir))
	return dir, nil
}

// run executes the three stages. A failure at any stage aborts the rest; no
// automatic retry is performed.
func (p *Pipeline) run(ctx context.Context, acq *models.Acquisition, projectID, fileName string, runSink installer.LogSink) (string, error) {
	// DOWNLOADING
	if err := p.store.UpdateAcquisitionStage(acq.ID, models.StageDownloading); err != nil {
		return "", err
	}
	p.sink(fmt.Sprintf("Downloading %s for %s...", fileName, projectID))

	body, err := p.fetcher.FetchArchive(ctx, projectID, fileName)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		return "", fmt.Errorf("%w: read archive: %v", archive.ErrNetwork, err)
	}

	if names, err := archive.EntryNames(data); err == nil {
		for _, missing := range archive.MissingConventions(names) {
			p.sink(fmt.Sprintf("Warning: required file not found: %s", missing))
		}
	}

	// EXTRACTING
	if err := p.store.UpdateAcquisitionStage(acq.ID, models.StageExtracting); err != nil {
		return "", err
	}
	dir := p.ProjectDir(projectID)
	p.sink(fmt.Sprintf("Extracting to %s...", dir))

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &archive.DiskWriteError{Path: dir, Err: err}
	}
	if _, err := archive.ExtractToDisk(data, dir); err != nil {
		return "", err
	}

	// INSTALLING
	if err := p.store.UpdateAcquisitionStage(acq.ID, models.StageInstalling); err != nil {
		return "", err
	}
	p.sink(fmt.Sprintf("Installing dependencies in %s...", dir))

	installCtx := ctx
	if p.installTimeout > 0 {
		var cancel context.CancelFunc
		installCtx, cancel = context.WithTimeout(ctx, p.installTimeout)
		defer cancel()
	}
	if err := p.installer.Install(installCtx, dir, runSink); err != nil {
		return "", err
	}

	return dir, nil
}
