package projects

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"observatory-calendar-backend/config"
	"observatory-calendar-backend/internal/observation"
)

func newTestClient(serverURL string) *Client {
	return NewClient(&config.ProjectsConfig{
		BaseURL: serverURL,
		Timeout: 5 * time.Second,
	})
}

func TestCreate(t *testing.T) {
	var gotPath string
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.Create(context.Background(), &observation.Project{
		ProjectID:   "M101 Survey#2025-02-15T10:00:00Z",
		ProjectName: "M101 Survey",
		CreatedAt:   "2025-02-15T10:00:00Z",
	})
	require.NoError(t, err)
	assert.Equal(t, "/new-project", gotPath)
	assert.Equal(t, "M101 Survey#2025-02-15T10:00:00Z", gotBody["project_id"])
}

func TestCreate_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.Create(context.Background(), &observation.Project{ProjectID: "p"})
	assert.Error(t, err)
}

func TestDeleteSchedulerProjects(t *testing.T) {
	var gotBody map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/delete-scheduler-projects", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.DeleteSchedulerProjects(context.Background(), []string{"p1", "p2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2"}, gotBody["project_ids"])
}

func TestDeleteSchedulerProjects_EmptyListSkipsCall(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	err := client.DeleteSchedulerProjects(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, called)
}

func TestGet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/get-project", r.URL.Path)
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "m101", body["project_name"])
		assert.Equal(t, "2020-06-24T16:53:56Z", body["created_at"])
		w.Write([]byte(`{"project_name": "m101", "project_priority": "standard"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	project, err := client.Get(context.Background(), "m101", "2020-06-24T16:53:56Z")
	require.NoError(t, err)
	assert.Equal(t, "m101", project["project_name"])
}
