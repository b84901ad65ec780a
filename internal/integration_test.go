package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"observatory-calendar-backend/config"
	"observatory-calendar-backend/internal/api"
	"observatory-calendar-backend/internal/importer"
	"observatory-calendar-backend/internal/model"
	"observatory-calendar-backend/internal/projects"
	"observatory-calendar-backend/internal/siteproxy"
	"observatory-calendar-backend/internal/store"
	"observatory-calendar-backend/internal/topology"
)

type staticSecrets struct{}

func (staticSecrets) Get(ctx context.Context, path string) (string, error) {
	return "Token integration-test", nil
}

// pendingScheduleJSON is a minimal observation-portal schedule response with
// one PENDING observation for the mrc 0m31 telescope.
const pendingScheduleJSON = `{
	"results": [
		{
			"id": 501,
			"site": "mrc",
			"telescope": "0m31",
			"start": "2025-04-01T03:00:00Z",
			"end": "2025-04-01T04:00:00Z",
			"submitter": "integration-user",
			"created": "2025-03-20T10:00:00Z",
			"modified": "2025-03-20T11:00:00Z",
			"name": "Integration Target",
			"observation_type": "NORMAL",
			"state": "PENDING",
			"request": {
				"state": "PENDING",
				"configurations": [
					{
						"type": "EXPOSE",
						"constraints": {
							"max_airmass": 2.0,
							"max_lunar_phase": 0.9,
							"min_lunar_distance": 30.0
						},
						"target": {"ra": 150.0, "dec": 54.0},
						"instrument_configs": [
							{
								"exposure_count": 5,
								"exposure_time": 60.0,
								"mode": "full_frame",
								"optical_elements": {"filter": "rp"},
								"extra_params": {
									"offset_ra": 0.0,
									"offset_dec": 0.0,
									"rotator_angle": 0.0
								}
							}
						]
					}
				]
			}
		},
		{
			"id": 502,
			"site": "mrc",
			"telescope": "0m31",
			"start": "2025-04-01T05:00:00Z",
			"end": "2025-04-01T06:00:00Z",
			"submitter": "integration-user",
			"created": "2025-03-20T10:00:00Z",
			"modified": "2025-03-20T11:00:00Z",
			"name": "Already Running",
			"observation_type": "NORMAL",
			"state": "IN_PROGRESS",
			"request": {"state": "IN_PROGRESS", "configurations": []}
		}
	]
}`

// TestScheduleImportLifecycle drives a full import cycle end to end: a stale
// scheduler reservation is cleared, the pending schedule is imported through
// the real proxy and projects clients, and a second import is a no-op.
func TestScheduleImportLifecycle(t *testing.T) {
	testDB, err := gorm.Open(sqlite.Open("file:integration?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, _ := testDB.DB()
	defer sqlDB.Close()

	require.NoError(t, testDB.AutoMigrate(
		&model.Reservation{},
		&model.ScheduleTracking{},
		&model.PushSubscription{},
		&model.SubscriptionSite{},
	))

	// Fake site proxy: reports a schedule generation time and the pending
	// schedule above.
	proxyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token integration-test", r.Header.Get("Authorization"))
		switch {
		case strings.HasSuffix(r.URL.Path, "/last_scheduled"):
			fmt.Fprint(w, `{"last_schedule_time": "2025-03-20T12:00:00Z"}`)
		case strings.Contains(r.URL.Path, "/schedule"):
			fmt.Fprint(w, pendingScheduleJSON)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer proxyServer.Close()

	// Fake projects collaborator: records created and deleted project ids.
	var createdProjects []string
	var deletedProjects []string
	projectsServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		switch r.URL.Path {
		case "/new-project":
			createdProjects = append(createdProjects, body["project_name"].(string))
		case "/delete-scheduler-projects":
			for _, id := range body["project_ids"].([]any) {
				deletedProjects = append(deletedProjects, id.(string))
			}
		}
		fmt.Fprint(w, `{}`)
	}))
	defer projectsServer.Close()

	schedulerCfg := &config.SchedulerConfig{
		ProxyURLTemplate: proxyServer.URL + "/%s",
		Timeout:          5 * time.Second,
		HorizonDays:      21,
		FetchLimit:       1000,
	}
	proxyClient := siteproxy.NewClient(schedulerCfg, "site-proxy-secret", staticSecrets{})
	projectsClient := projects.NewClient(&config.ProjectsConfig{
		BaseURL: projectsServer.URL,
		Timeout: 5 * time.Second,
	})

	registry, err := topology.NewRegistry(map[string]map[string]string{
		"mrc": {"0m31": "mrc1"},
	})
	require.NoError(t, err)

	appStore := store.NewGormStore(testDB)
	engine := importer.NewEngine(registry, appStore, proxyClient, projectsClient, nil)
	router := api.NewRouter(nil, appStore, engine, projectsClient, nil)

	ctx := context.Background()

	// Seed a stale scheduler reservation and a user reservation.
	require.NoError(t, appStore.CreateReservation(ctx, &model.Reservation{
		EventID:   "stale-scheduler-event",
		Start:     "2099-01-01T03:00:00Z",
		End:       "2099-01-01T04:00:00Z",
		Site:      "mrc1",
		Origin:    model.OriginScheduler,
		ProjectID: "Stale Project#2025-03-01T00:00:00Z",
	}))
	require.NoError(t, appStore.CreateReservation(ctx, &model.Reservation{
		EventID:   "user-event",
		Start:     "2099-01-01T05:00:00Z",
		End:       "2099-01-01T06:00:00Z",
		Site:      "mrc1",
		CreatorID: "google-oauth2|user",
		ProjectID: model.ProjectIDNone,
	}))

	// --- First import: clears the stale schedule and imports one pending observation. ---
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/scheduler/import/mrc1", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var result importer.Result
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, importer.StatusUpdated, result.Status)
	assert.Equal(t, 1, result.Imported)
	assert.Equal(t, 1, result.ClearedProjects)

	assert.Equal(t, []string{"Integration Target"}, createdProjects)
	assert.Equal(t, []string{"Stale Project#2025-03-01T00:00:00Z"}, deletedProjects)

	// The stale scheduler event is gone, the user event survived, and the
	// imported reservation is in place.
	_, err = appStore.EventByID(ctx, "stale-scheduler-event", "2099-01-01T03:00:00Z")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	kept, err := appStore.EventByID(ctx, "user-event", "2099-01-01T05:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, "google-oauth2|user", kept.CreatorID)

	imported, err := appStore.SiteEventsInRange(ctx, "mrc1", "2025-04-01T00:00:00Z", "2025-04-02T00:00:00Z")
	require.NoError(t, err)
	require.Len(t, imported, 1)
	assert.Equal(t, model.OriginScheduler, imported[0].Origin)
	assert.Equal(t, "Integration Target#2025-03-20T10:00:00Z", imported[0].ProjectID)
	assert.Equal(t, "integration-user#LCO", imported[0].CreatorID)

	// --- Second import: the proxy time has not moved, so nothing happens. ---
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPost, "/scheduler/import/mrc1", nil)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, importer.StatusUpToDate, result.Status)
	assert.Len(t, createdProjects, 1)

	// --- The imported event is visible through the calendar API. ---
	payload, _ := json.Marshal(map[string]any{
		"site":  "mrc1",
		"start": "2025-04-01T00:00:00Z",
		"end":   "2025-04-02T00:00:00Z",
	})
	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodPost, "/calendar/siteevents", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var events []model.Reservation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "Integration Target (via LCO)", events[0].Title)
}
