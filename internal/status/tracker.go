// Package status resolves cached project readiness against the local
// control daemon. Readiness is always re-derived on each load, never stored
// by callers.
package status

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultRequestTimeout is the hard per-request cap on a readiness probe.
const DefaultRequestTimeout = 3 * time.Second

// maxConcurrentProbes bounds batched readiness lookups.
const maxConcurrentProbes = 4

// Tracker queries the daemon's readiness endpoint.
type Tracker struct {
	baseURL    string
	httpClient *http.Client
}

// NewTracker creates a Tracker for the daemon at baseURL.
func NewTracker(baseURL string) *Tracker {
	return &Tracker{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultRequestTimeout,
		},
	}
}

// IsReady reports cached readiness for one project. Every failure degrades
// to false: the operator is prompted to install rather than shown stale
// content.
func (t *Tracker) IsReady(ctx context.Context, projectID string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/project-status/"+projectID, nil)
	if err != nil {
		return false
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}

	var payload struct {
		ReadyToRun bool `json:"readyToRun"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false
	}
	return payload.ReadyToRun
}

// BatchStatus resolves readiness for many projects with bounded concurrency
// instead of one sequential probe per list item.
func (t *Tracker) BatchStatus(ctx context.Context, projectIDs []string) map[string]bool {
	result := make(map[string]bool, len(projectIDs))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProbes)
	for _, id := range projectIDs {
		id := id
		g.Go(func() error {
			ready := t.IsReady(gctx, id)
			mu.Lock()
			result[id] = ready
			mu.Unlock()
			return nil
		})
	}
	g.Wait()
	return result
}
