// Package promptsync persists operator prompts to the remote datastore.
// It is a side-channel: failures never touch acquisition state.
package promptsync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"projecthub/internal/models"
)

// ErrSyncFailed indicates the remote insert did not complete.
var ErrSyncFailed = errors.New("prompt sync failed")

// ErrNotConfigured indicates no sync endpoint was configured.
var ErrNotConfigured = errors.New("prompt sync not configured")

// DefaultClientTimeout bounds each insert call.
const DefaultClientTimeout = 10 * time.Second

// Client inserts rows into the datastore's prompts table over its REST
// insert endpoint.
type Client struct {
	insertURL  string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Client. insertURL is the full insert endpoint for the
// prompts table; apiKey is optional.
func NewClient(insertURL, apiKey string) *Client {
	return &Client{
		insertURL: insertURL,
		apiKey:    apiKey,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
	}
}

// Submit inserts one prompt row with the text, the active project
// identifier, and the current timestamp.
func (c *Client) Submit(ctx context.Context, text, projectID string) error {
	if c.insertURL == "" {
		return fmt.Errorf("%w: set PROJECTHUB_SYNC_URL", ErrNotConfigured)
	}

	rows := []models.Prompt{{
		Content:   text,
		ProjectID: projectID,
		CreatedAt: time.Now().UTC(),
	}}
	payload, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.insertURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSyncFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: status %d: %s", ErrSyncFailed, resp.StatusCode, string(body))
	}
	return nil
}
