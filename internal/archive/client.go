// Package archive talks to the remote archive store and unpacks the zip
// containers it serves.
package archive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"projecthub/internal/models"
)

// DefaultClientTimeout bounds every catalog and download request.
const DefaultClientTimeout = 60 * time.Second

// Sentinel errors for archive store operations.
var (
	// ErrCatalogUnavailable indicates the project catalog could not be
	// fetched. Clients degrade to an empty project list.
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	// ErrArchiveNotFound indicates the store returned a non-success status
	// for the requested archive file.
	ErrArchiveNotFound = errors.New("archive not found")
	// ErrNetwork indicates a transport-level failure.
	ErrNetwork = errors.New("network error")
)

// Client fetches the project catalog and archive bytes from the remote
// store. It never touches the filesystem.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a store client for the given base URL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// ListProjects returns the ordered catalog of available projects.
func (c *Client) ListProjects(ctx context.Context) ([]models.Project, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/projects/", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrCatalogUnavailable, resp.StatusCode)
	}

	var projects []models.Project
	if err := json.NewDecoder(resp.Body).Decode(&projects); err != nil {
		return nil, fmt.Errorf("%w: decode catalog: %v", ErrCatalogUnavailable, err)
	}
	return projects, nil
}

// FetchArchive streams the raw archive bytes for one published file. The
// caller owns the returned body.
func (c *Client) FetchArchive(ctx context.Context, projectID, fileName string) (io.ReadCloser, error) {
	url := fmt.Sprintf("%s/projects/%s/download/%s", c.baseURL, projectID, fileName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetwork, err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s/%s (status %d)", ErrArchiveNotFound, projectID, fileName, resp.StatusCode)
	}
	return resp.Body, nil
}
