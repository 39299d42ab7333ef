package controlplane

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"projecthub/internal/archive"
	"projecthub/internal/models"
	"projecthub/internal/pipeline"
	"projecthub/internal/preview"
	"projecthub/internal/promptsync"
	"projecthub/internal/store"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Server provides the HTTP API for the Project Hub daemon.
type Server struct {
	service *Service
	store   *store.Store
	addr    string
	server  *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(service *Service, st *store.Store, addr string) *Server {
	return &Server{
		service: service,
		store:   st,
		addr:    addr,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Project endpoints
	mux.HandleFunc("/projects", s.handleProjects)
	mux.HandleFunc("/projects/", s.handleProjectByID)
	mux.HandleFunc("/project-status/", s.handleProjectStatus)
	mux.HandleFunc("/download-zip", s.handleDownloadZip)
	mux.HandleFunc("/run-project", s.handleRunProject)
	mux.HandleFunc("/stop-project", s.handleStopProject)

	// Side channels
	mux.HandleFunc("/logs", s.handleLogs)
	mux.HandleFunc("/prompts", s.handlePrompts)

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Minute, // download-zip waits for npm install
	}

	log.Printf("Starting Project Hub daemon on %s", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// HealthResponse is the health endpoint payload.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := HealthResponse{
		OK:      true,
		DB:      "ok",
		Version: Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		health.OK = false
		health.DB = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	if !health.OK {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(health)
}

// handleProjects handles GET /projects
func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	projects, err := s.service.ListProjects(r.Context())
	if err != nil {
		jsonError(w, err)
		return
	}
	if projects == nil {
		projects = []models.Project{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(projects)
}

// handleProjectByID handles /projects/{id}/*
func (s *Server) handleProjectByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/projects/")
	parts := strings.Split(path, "/")

	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "project id required", http.StatusBadRequest)
		return
	}

	projectID := parts[0]
	action := ""
	if len(parts) > 1 {
		action = parts[1]
	}

	switch {
	case action == "files" && r.Method == http.MethodGet:
		s.getProjectFiles(w, r, projectID)
	case action == "history" && r.Method == http.MethodGet:
		s.getProjectHistory(w, r, projectID)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}

// handleProjectStatus handles GET /project-status/{id}
func (s *Server) handleProjectStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	projectID := strings.TrimPrefix(r.URL.Path, "/project-status/")
	if projectID == "" {
		http.Error(w, "project id required", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{
		"readyToRun": s.service.ProjectStatus(projectID),
	})
}

type downloadZipRequest struct {
	ProjectID string `json:"projectId"`
	ZipURL    string `json:"zipUrl"`
	FileName  string `json:"fileName"`
}

func (s *Server) handleDownloadZip(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req downloadZipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.ProjectID == "" {
		http.Error(w, "projectId required", http.StatusBadRequest)
		return
	}

	dir, err := s.service.DownloadZip(r.Context(), req.ProjectID, req.ZipURL, req.FileName)
	if err != nil {
		jsonError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"path": dir})
}

type runProjectRequest struct {
	ProjectID string `json:"projectId"`
}

func (s *Server) handleRunProject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req runProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.ProjectID == "" {
		http.Error(w, "projectId required", http.StatusBadRequest)
		return
	}

	url, err := s.service.RunProject(req.ProjectID)
	if err != nil {
		jsonError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"url": url})
}

func (s *Server) handleStopProject(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := s.service.StopProject(); err != nil {
		jsonError(w, err)
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"stopped"}`))
}

func (s *Server) getProjectFiles(w http.ResponseWriter, r *http.Request, projectID string) {
	files, err := s.service.ProjectFiles(r.Context(), projectID)
	if err != nil {
		jsonError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(files)
}

func (s *Server) getProjectHistory(w http.ResponseWriter, r *http.Request, projectID string) {
	acqs, err := s.service.History(projectID)
	if err != nil {
		jsonError(w, err)
		return
	}
	if acqs == nil {
		acqs = []models.Acquisition{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(acqs)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string][]string{"lines": s.service.Logs()})
}

type promptRequest struct {
	Content   string `json:"content"`
	ProjectID string `json:"projectId"`
}

func (s *Server) handlePrompts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, "content required", http.StatusBadRequest)
		return
	}

	if err := s.service.SubmitPrompt(r.Context(), req.Content, req.ProjectID); err != nil {
		jsonError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	w.Write([]byte(`{"status":"synced"}`))
}

// jsonError writes {"error": ...} with the status code for the error class.
func jsonError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForError(err))
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrAcquisitionInFlight):
		return http.StatusConflict
	case errors.Is(err, archive.ErrArchiveNotFound), errors.Is(err, ErrProjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, archive.ErrCatalogUnavailable), errors.Is(err, archive.ErrNetwork),
		errors.Is(err, promptsync.ErrSyncFailed):
		return http.StatusBadGateway
	case errors.Is(err, ErrNotReady), errors.Is(err, ErrNoActivePreview),
		errors.Is(err, promptsync.ErrNotConfigured):
		return http.StatusBadRequest
	case errors.Is(err, preview.ErrRunFailed):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
