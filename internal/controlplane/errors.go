package controlplane

import "errors"

// Sentinel errors for control plane operations.
var (
	ErrProjectNotFound = errors.New("project not found")
	ErrNotReady        = errors.New("project is not ready to run")
	ErrNoActivePreview = errors.New("no preview is running")
)
