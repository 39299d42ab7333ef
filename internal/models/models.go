// Package models defines the core domain types for Project Hub.
package models

import "time"

// AcquisitionStage represents where a pipeline run is in its lifecycle.
type AcquisitionStage string

const (
	StagePending     AcquisitionStage = "pending"
	StageDownloading AcquisitionStage = "downloading"
	StageExtracting  AcquisitionStage = "extracting"
	StageInstalling  AcquisitionStage = "installing"
	StageReady       AcquisitionStage = "ready"
	StageFailed      AcquisitionStage = "failed"
)

// Terminal reports whether a stage ends a pipeline run.
func (s AcquisitionStage) Terminal() bool {
	return s == StageReady || s == StageFailed
}

// Project is a catalog entry published by the archive store. ReadyToRun is
// derived, never persisted by the catalog: it is recomputed from the local
// status tracker on every load.
type Project struct {
	ID         string   `json:"id"`
	Files      []string `json:"files"`
	ReadyToRun bool     `json:"readyToRun"`
}

// VirtualFile is one extracted archive entry held in memory for preview.
// Content is decoded as text; entries that are not valid UTF-8 are flagged
// binary so viewers can skip rendering them.
type VirtualFile struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	IsBinary bool   `json:"isBinary"`
}

// Acquisition is the durable record of one pipeline run for a project.
type Acquisition struct {
	ID        string           `json:"id"`
	ProjectID string           `json:"project_id"`
	Stage     AcquisitionStage `json:"stage"`
	Error     string           `json:"error,omitempty"`
	ExitCode  int              `json:"exit_code"`
	Dir       string           `json:"dir,omitempty"`
	Log       string           `json:"log,omitempty"`
	StartedAt time.Time        `json:"started_at"`
	EndedAt   time.Time        `json:"ended_at"`
}

// AcquisitionLock guards a project's extraction directory for the duration
// of one pipeline run. TTL-bounded so a crashed run cannot wedge a project.
type AcquisitionLock struct {
	ProjectID string    `json:"project_id"`
	HolderID  string    `json:"holder_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Prompt is a free-text note synced to the remote datastore.
type Prompt struct {
	Content   string    `json:"content"`
	ProjectID string    `json:"project_id"`
	CreatedAt time.Time `json:"created_at"`
}
