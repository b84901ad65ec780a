// Package projects is the HTTP client for the remote projects collaborator
// service, which owns the project table.
package projects

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"observatory-calendar-backend/config"
	"observatory-calendar-backend/internal/observation"
)

// Client calls the projects backend deployed alongside the calendar.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a projects client from configuration.
func NewClient(cfg *config.ProjectsConfig) *Client {
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *Client) post(ctx context.Context, path string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+path, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("projects backend returned status %d for %s", resp.StatusCode, path)
	}
	return responseBody, nil
}

// Create registers a new project with the projects backend.
func (c *Client) Create(ctx context.Context, project *observation.Project) error {
	if _, err := c.post(ctx, "new-project", project); err != nil {
		return fmt.Errorf("failed to create project %s: %w", project.ProjectID, err)
	}
	return nil
}

// DeleteSchedulerProjects bulk-deletes the scheduler-created projects with
// the given ids. An empty list is a no-op.
func (c *Client) DeleteSchedulerProjects(ctx context.Context, projectIDs []string) error {
	if len(projectIDs) == 0 {
		return nil
	}
	body := map[string][]string{"project_ids": projectIDs}
	if _, err := c.post(ctx, "delete-scheduler-projects", body); err != nil {
		return fmt.Errorf("failed to delete %d scheduler projects: %w", len(projectIDs), err)
	}
	return nil
}

// Get fetches project details by name and creation time.
func (c *Client) Get(ctx context.Context, projectName, createdAt string) (map[string]any, error) {
	body := map[string]string{
		"project_name": projectName,
		"created_at":   createdAt,
	}
	raw, err := c.post(ctx, "get-project", body)
	if err != nil {
		return nil, fmt.Errorf("failed to get project %s#%s: %w", projectName, createdAt, err)
	}

	var project map[string]any
	if err := json.Unmarshal(raw, &project); err != nil {
		return nil, fmt.Errorf("failed to unmarshal project %s#%s: %w", projectName, createdAt, err)
	}
	return project, nil
}
