// Package controlplane provides the HTTP API and service layer for the
// Project Hub daemon.
package controlplane

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	"projecthub/internal/archive"
	"projecthub/internal/models"
	"projecthub/internal/pipeline"
	"projecthub/internal/store"
)

// logBufferSize is how many recent log lines the daemon retains.
const logBufferSize = 50

// Catalog lists remote projects and serves their archives.
type Catalog interface {
	ListProjects(ctx context.Context) ([]models.Project, error)
	FetchArchive(ctx context.Context, projectID, fileName string) (io.ReadCloser, error)
}

// Acquirer runs the acquisition pipeline for a project.
type Acquirer interface {
	Acquire(ctx context.Context, projectID, fileName string) (string, error)
	ProjectDir(projectID string) string
}

// Previewer owns the single local preview subprocess.
type Previewer interface {
	Start(projectID, dir string) (string, error)
	Stop()
	ActiveProject() string
}

// PromptSink ships prompt text to the remote datastore.
type PromptSink interface {
	Submit(ctx context.Context, text, projectID string) error
}

// Service provides the daemon business logic.
type Service struct {
	store    *store.Store
	catalog  Catalog
	acquirer Acquirer
	preview  Previewer
	prompts  PromptSink

	logMu    sync.Mutex
	logLines []string

	filesMu     sync.Mutex
	cachedID    string
	cachedFiles map[string]models.VirtualFile
}

// NewService creates a new daemon service.
func NewService(st *store.Store, catalog Catalog, acquirer Acquirer, preview Previewer, prompts PromptSink) *Service {
	return &Service{
		store:    st,
		catalog:  catalog,
		acquirer: acquirer,
		preview:  preview,
		prompts:  prompts,
	}
}

// Log appends a timestamped line to the daemon's ring buffer. It is handed
// to the pipeline and preview manager as their output sink.
func (s *Service) Log(line string) {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	s.logLines = append(s.logLines, time.Now().Format("[15:04:05] ")+line)
	if len(s.logLines) > logBufferSize {
		s.logLines = s.logLines[len(s.logLines)-logBufferSize:]
	}
}

// Logs returns a copy of the retained log lines, oldest first.
func (s *Service) Logs() []string {
	s.logMu.Lock()
	defer s.logMu.Unlock()
	out := make([]string, len(s.logLines))
	copy(out, s.logLines)
	return out
}

// --- Project Operations ---

// ListProjects returns the remote catalog with local readiness merged in.
// A project whose status cannot be read reports not ready.
func (s *Service) ListProjects(ctx context.Context) ([]models.Project, error) {
	projects, err := s.catalog.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	for i := range projects {
		ready, err := s.store.IsReady(projects[i].ID)
		if err != nil {
			ready = false
		}
		projects[i].ReadyToRun = ready
	}
	return projects, nil
}

// ProjectStatus reports whether a project is ready to run. Errors degrade
// to not ready.
func (s *Service) ProjectStatus(projectID string) bool {
	ready, err := s.store.IsReady(projectID)
	if err != nil {
		return false
	}
	return ready
}

// DownloadZip runs the acquisition pipeline for a project. Either zipURL or
// fileName names the archive; when a URL is given the file name is its last
// path segment. It returns the extracted directory path.
func (s *Service) DownloadZip(ctx context.Context, projectID, zipURL, fileName string) (string, error) {
	if projectID == "" {
		return "", fmt.Errorf("%w: project id required", ErrProjectNotFound)
	}
	if fileName == "" {
		fileName = fileNameFromURL(zipURL)
	}
	dir, err := s.acquirer.Acquire(ctx, projectID, fileName)
	if err != nil {
		return "", err
	}
	return dir, nil
}

// RunProject launches the local preview for an acquired project and returns
// its URL. Only ready projects may run.
func (s *Service) RunProject(projectID string) (string, error) {
	ready, err := s.store.IsReady(projectID)
	if err != nil {
		return "", err
	}
	if !ready {
		return "", fmt.Errorf("%w: %s", ErrNotReady, projectID)
	}

	dir := s.acquirer.ProjectDir(projectID)
	if _, err := os.Stat(dir); err != nil {
		return "", fmt.Errorf("%w: %s has no extracted directory", ErrProjectNotFound, projectID)
	}

	return s.preview.Start(projectID, dir)
}

// StopProject stops the active preview, if any.
func (s *Service) StopProject() error {
	if s.preview.ActiveProject() == "" {
		return ErrNoActivePreview
	}
	s.preview.Stop()
	return nil
}

// ProjectFiles returns the virtual file map of a project's archive for
// browsing. The map for the most recently viewed project is cached and
// replaced wholesale when another project is requested.
func (s *Service) ProjectFiles(ctx context.Context, projectID string) (map[string]models.VirtualFile, error) {
	s.filesMu.Lock()
	if s.cachedID == projectID && s.cachedFiles != nil {
		files := s.cachedFiles
		s.filesMu.Unlock()
		return files, nil
	}
	s.filesMu.Unlock()

	fileName, err := s.archiveFileName(ctx, projectID)
	if err != nil {
		return nil, err
	}

	body, err := s.catalog.FetchArchive(ctx, projectID, fileName)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(body)
	body.Close()
	if err != nil {
		return nil, fmt.Errorf("%w: read archive: %v", archive.ErrNetwork, err)
	}

	files, err := archive.Extract(data)
	if err != nil {
		return nil, err
	}

	s.filesMu.Lock()
	s.cachedID = projectID
	s.cachedFiles = files
	s.filesMu.Unlock()
	return files, nil
}

// SubmitPrompt syncs prompt text to the remote datastore.
func (s *Service) SubmitPrompt(ctx context.Context, content, projectID string) error {
	return s.prompts.Submit(ctx, content, projectID)
}

// History returns the recorded acquisition runs for a project, newest first.
func (s *Service) History(projectID string) ([]models.Acquisition, error) {
	return s.store.GetAcquisitionsForProject(projectID)
}

// archiveFileName resolves which archive file a project publishes: the
// first entry of its catalog file list, or the conventional default when
// the list is empty.
func (s *Service) archiveFileName(ctx context.Context, projectID string) (string, error) {
	projects, err := s.catalog.ListProjects(ctx)
	if err != nil {
		return "", err
	}
	for _, p := range projects {
		if p.ID == projectID {
			if len(p.Files) > 0 {
				return p.Files[0], nil
			}
			break
		}
	}
	return pipeline.DefaultArchiveFile, nil
}

// fileNameFromURL extracts the archive file name from a download URL. An
// empty or unparseable URL falls through to the pipeline's default.
func fileNameFromURL(zipURL string) string {
	if zipURL == "" {
		return ""
	}
	u, err := url.Parse(zipURL)
	if err != nil {
		return ""
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || strings.TrimSpace(name) == "" {
		return ""
	}
	return name
}
