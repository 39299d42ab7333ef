package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

// DefaultClientTimeout is the default timeout for API requests. Install
// requests get a much longer one: the daemon answers only once npm is done.
const DefaultClientTimeout = 10 * time.Second

// InstallTimeout bounds how long the TUI waits for a download-zip call.
const InstallTimeout = 15 * time.Minute

// Client wraps HTTP calls to the Project Hub daemon
type Client struct {
	baseURL       string
	httpClient    *http.Client
	installClient *http.Client
}

// NewClient creates a new API client with timeout
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: DefaultClientTimeout,
		},
		installClient: &http.Client{
			Timeout: InstallTimeout,
		},
	}
}

// ListProjects fetches the catalog merged with local readiness
func (c *Client) ListProjects() ([]ProjectItem, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/projects")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var projects []struct {
		ID         string   `json:"id"`
		Files      []string `json:"files"`
		ReadyToRun bool     `json:"readyToRun"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&projects); err != nil {
		return nil, err
	}

	items := make([]ProjectItem, len(projects))
	for i, p := range projects {
		items[i] = ProjectItem{
			ID:         p.ID,
			Files:      p.Files,
			ReadyToRun: p.ReadyToRun,
		}
	}
	return items, nil
}

// ProjectFiles fetches the extracted file map of a project, sorted by path
func (c *Client) ProjectFiles(projectID string) ([]FileEntry, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/projects/" + projectID + "/files")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	var files map[string]struct {
		Path     string `json:"path"`
		Content  string `json:"content"`
		IsBinary bool   `json:"isBinary"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&files); err != nil {
		return nil, err
	}

	entries := make([]FileEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, FileEntry{
			Path:     f.Path,
			Content:  f.Content,
			IsBinary: f.IsBinary,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// History fetches the recorded pipeline runs for a project
func (c *Client) History(projectID string) ([]AcquisitionDetail, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/projects/" + projectID + "/history")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var acqs []struct {
		ID        string `json:"id"`
		Stage     string `json:"stage"`
		Error     string `json:"error"`
		ExitCode  int    `json:"exit_code"`
		StartedAt string `json:"started_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&acqs); err != nil {
		return nil, err
	}

	details := make([]AcquisitionDetail, len(acqs))
	for i, a := range acqs {
		details[i] = AcquisitionDetail{
			ID:        a.ID,
			Stage:     a.Stage,
			Error:     a.Error,
			ExitCode:  a.ExitCode,
			StartedAt: a.StartedAt,
		}
	}
	return details, nil
}

// Install runs the acquisition pipeline for a project and returns the
// extracted directory path
func (c *Client) Install(projectID, fileName string) (string, error) {
	body := map[string]string{
		"projectId": projectID,
		"fileName":  fileName,
	}
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	resp, err := c.installClient.Post(c.baseURL+"/download-zip", "application/json", bytes.NewReader(jsonData))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("API error: %s", string(data))
	}

	var result struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return "", err
	}
	return result.Path, nil
}

// Run launches the preview for a ready project and returns its URL
func (c *Client) Run(projectID string) (string, error) {
	resp, err := c.post("/run-project", map[string]string{"projectId": projectID})
	if err != nil {
		return "", err
	}

	var result struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return "", err
	}
	return result.URL, nil
}

// Stop stops the active preview
func (c *Client) Stop() error {
	_, err := c.post("/stop-project", map[string]string{})
	return err
}

// Logs fetches the daemon's recent log lines
func (c *Client) Logs() ([]string, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/logs")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var body struct {
		Lines []string `json:"lines"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.Lines, nil
}

// SubmitPrompt syncs prompt text to the remote datastore
func (c *Client) SubmitPrompt(content, projectID string) error {
	_, err := c.post("/prompts", map[string]string{
		"content":   content,
		"projectId": projectID,
	})
	return err
}

func (c *Client) post(path string, data interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Post(c.baseURL+path, "application/json", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error: %s", string(body))
	}

	return body, nil
}

// CheckHealth checks if the daemon is healthy
func (c *Client) CheckHealth() (bool, error) {
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, nil
	}

	var health struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return false, err
	}

	return health.OK, nil
}
