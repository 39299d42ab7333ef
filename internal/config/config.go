// Package config resolves Project Hub configuration at startup. All remote
// and local addresses are injected here rather than hardcoded at call sites.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Defaults for every tunable. The listen address and preview port mirror the
// local collaborator addresses the clients expect.
const (
	DefaultListenAddr     = "127.0.0.1:4000"
	DefaultAPIAddr        = "http://127.0.0.1:4000"
	DefaultPreviewPort    = 3001
	DefaultInstallCommand = "npm install"
	DefaultPreviewCommand = "npm run dev"
	DefaultInstallTimeout = 10 * time.Minute
)

// Config holds the daemon's runtime configuration.
type Config struct {
	// ListenAddr is the address the daemon's HTTP API binds to.
	ListenAddr string
	// CatalogURL is the base URL of the remote archive store.
	CatalogURL string
	// DBPath is the SQLite database location.
	DBPath string
	// ProjectsRoot is the directory extracted projects live under,
	// one subdirectory per project identifier.
	ProjectsRoot string
	// InstallCommand is the package manager invocation, split on spaces.
	InstallCommand []string
	// InstallTimeout bounds one install subprocess. Zero disables it.
	InstallTimeout time.Duration
	// PreviewCommand launches the project's dev server.
	PreviewCommand []string
	// PreviewPort is the local port the preview becomes reachable on.
	PreviewPort int
	// SyncURL is the remote datastore's prompt insert endpoint.
	SyncURL string
	// SyncKey authenticates prompt inserts. Optional.
	SyncKey string
}

// FromEnv builds a Config from PROJECTHUB_* environment variables, falling
// back to defaults for anything unset.
func FromEnv() *Config {
	homeDir, _ := os.UserHomeDir()

	cfg := &Config{
		ListenAddr:     envOr("PROJECTHUB_LISTEN", DefaultListenAddr),
		CatalogURL:     os.Getenv("PROJECTHUB_CATALOG_URL"),
		DBPath:         envOr("PROJECTHUB_DB", filepath.Join(homeDir, ".projecthub", "projecthub.db")),
		ProjectsRoot:   envOr("PROJECTHUB_PROJECTS_ROOT", filepath.Join(homeDir, ".projecthub", "projects")),
		InstallCommand: strings.Fields(envOr("PROJECTHUB_INSTALL_CMD", DefaultInstallCommand)),
		InstallTimeout: envDuration("PROJECTHUB_INSTALL_TIMEOUT", DefaultInstallTimeout),
		PreviewCommand: strings.Fields(envOr("PROJECTHUB_PREVIEW_CMD", DefaultPreviewCommand)),
		PreviewPort:    envInt("PROJECTHUB_PREVIEW_PORT", DefaultPreviewPort),
		SyncURL:        os.Getenv("PROJECTHUB_SYNC_URL"),
		SyncKey:        os.Getenv("PROJECTHUB_SYNC_KEY"),
	}
	return cfg
}

// PreviewURL is the address a running preview is reachable at.
func (c *Config) PreviewURL() string {
	return "http://localhost:" + strconv.Itoa(c.PreviewPort) + "/"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
