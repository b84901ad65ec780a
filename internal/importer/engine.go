// Package importer reconciles the local reservation calendar with the
// schedules published by the upstream LCO scheduler.
package importer

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"observatory-calendar-backend/internal/observation"
	"observatory-calendar-backend/internal/siteproxy"
	"observatory-calendar-backend/internal/store"
	"observatory-calendar-backend/internal/topology"
)

// ScheduleSource fetches schedule data from a WEMA's site proxy.
type ScheduleSource interface {
	LastScheduleTime(ctx context.Context, wema string) (*time.Time, error)
	Schedule(ctx context.Context, wema string, query siteproxy.ScheduleQuery) ([]observation.Observation, error)
}

// ProjectWriter is the slice of the projects collaborator the engine needs.
type ProjectWriter interface {
	Create(ctx context.Context, project *observation.Project) error
	DeleteSchedulerProjects(ctx context.Context, projectIDs []string) error
}

// Notifier is told which sites had their schedule changed by an import.
type Notifier interface {
	Dispatch(site string)
}

// Statuses reported per site after a reconciliation cycle.
const (
	StatusUpdated  = "updated"
	StatusUpToDate = "up-to-date"
	StatusError    = "error"
)

// Result describes the outcome of one site's reconciliation cycle.
type Result struct {
	Site            string `json:"site"`
	Status          string `json:"status"`
	Imported        int    `json:"imported"`
	ClearedProjects int    `json:"cleared_projects"`
	Error           string `json:"error,omitempty"`
}

// Engine runs the schedule-import reconciliation: per logical site it
// decides whether the upstream schedule changed, clears the previously
// imported reservations, and recreates reservation/project pairs from the
// current pending schedule.
type Engine struct {
	registry *topology.Registry
	store    store.Store
	proxy    ScheduleSource
	projects ProjectWriter
	notifier Notifier

	// siteLocks serializes cycles per site so an overlapping trigger can
	// never interleave one site's clear and recreate steps.
	siteLocks map[string]*sync.Mutex

	// now is swappable for tests.
	now func() time.Time
}

// NewEngine creates a reconciliation engine.
func NewEngine(registry *topology.Registry, s store.Store, proxy ScheduleSource, projects ProjectWriter, notifier Notifier) *Engine {
	locks := make(map[string]*sync.Mutex)
	for _, site := range registry.Sites() {
		locks[site] = &sync.Mutex{}
	}
	return &Engine{
		registry:  registry,
		store:     s,
		proxy:     proxy,
		projects:  projects,
		notifier:  notifier,
		siteLocks: locks,
		now:       time.Now,
	}
}

// SyncAll reconciles every configured logical site and returns a per-site
// result map. A failure at one site never stops the others.
func (e *Engine) SyncAll(ctx context.Context) map[string]Result {
	results := make(map[string]Result)
	for _, site := range e.registry.Sites() {
		results[site] = e.SyncSite(ctx, site)
	}
	return results
}

// SyncSite runs one full reconciliation cycle for a logical site.
func (e *Engine) SyncSite(ctx context.Context, site string) Result {
	if lock, ok := e.siteLocks[site]; ok {
		lock.Lock()
		defer lock.Unlock()
	}

	wema, telescope, err := e.registry.WemaTelescope(site)
	if err != nil {
		return errorResult(site, err)
	}

	// Compare the proxy's last schedule-generation time with the last one
	// we imported. When both are known and the proxy is not newer, nothing
	// changed upstream and the cycle is a no-op.
	proxyTime, err := e.proxy.LastScheduleTime(ctx, wema)
	if err != nil {
		return errorResult(site, err)
	}
	trackedTime := e.store.LastTrackedScheduleTime(ctx, site)

	if proxyTime != nil && trackedTime != nil && !proxyTime.After(*trackedTime) {
		log.Printf("Schedule for %s is already up to date. Last schedule: %s", site, trackedTime.Format(time.RFC3339))
		return Result{Site: site, Status: StatusUpToDate}
	}

	clearedProjects, err := e.clearOldSchedule(ctx, site, "")
	if err != nil {
		return errorResult(site, err)
	}

	sched, err := e.proxy.Schedule(ctx, wema, siteproxy.ScheduleQuery{
		Telescope: telescope,
		States:    []string{observation.StatePending},
	})
	if err != nil {
		return errorResult(site, err)
	}
	log.Printf("Number of observations to schedule for %s: %d", site, len(sched))

	// Each observation is imported independently: a bad or unpersistable
	// one is logged and skipped, never aborting the rest of the batch.
	imported := 0
	for i := range sched {
		if e.importObservation(ctx, &sched[i], site) {
			imported++
		}
	}

	// Record the proxy time we just imported. When it was unavailable the
	// tracker is left untouched so the next cycle does a full reconcile.
	if proxyTime != nil {
		if err := e.store.SetLastScheduleTime(ctx, site, *proxyTime); err != nil {
			log.Printf("Error updating schedule tracking for %s: %v", site, err)
		}
	}

	if imported > 0 && e.notifier != nil {
		e.notifier.Dispatch(site)
	}

	return Result{
		Site:            site,
		Status:          StatusUpdated,
		Imported:        imported,
		ClearedProjects: clearedProjects,
	}
}

// importObservation translates one observation and persists the resulting
// project and reservation. Returns false when the observation was skipped.
func (e *Engine) importObservation(ctx context.Context, obs *observation.Observation, site string) bool {
	project, reservation, err := observation.Translate(obs, site)
	if err != nil {
		log.Printf("Skipping observation %s for %s: %v", obs.ID, site, err)
		return false
	}
	if err := e.projects.Create(ctx, project); err != nil {
		log.Printf("Skipping observation %s for %s: %v", obs.ID, site, err)
		return false
	}
	if err := e.store.CreateReservation(ctx, reservation); err != nil {
		log.Printf("Failed to store reservation for observation %s at %s: %v", obs.ID, site, err)
		return false
	}
	return true
}

// ClearOldSchedule deletes the scheduler-imported reservations at a site
// ending after the cutoff (now when empty), along with their projects, and
// returns the removed project ids.
func (e *Engine) ClearOldSchedule(ctx context.Context, site, cutoff string) ([]string, error) {
	if !e.registry.Knows(site) {
		return nil, fmt.Errorf("%w: %s", topology.ErrUnknownSite, site)
	}

	if cutoff == "" {
		cutoff = e.now().UTC().Format(time.RFC3339)
	}

	projectIDs, err := e.store.ClearSchedulerReservations(ctx, site, cutoff)
	if err != nil {
		return nil, err
	}
	log.Printf("%d projects slated for removal at %s: %v", len(projectIDs), site, projectIDs)

	if err := e.projects.DeleteSchedulerProjects(ctx, projectIDs); err != nil {
		// The reservations are already gone; the stale projects will be
		// retried by the collaborator's own cleanup.
		log.Printf("Error deleting scheduler projects for %s: %v", site, err)
	}

	return projectIDs, nil
}

func (e *Engine) clearOldSchedule(ctx context.Context, site, cutoff string) (int, error) {
	projectIDs, err := e.ClearOldSchedule(ctx, site, cutoff)
	if err != nil {
		return 0, err
	}
	return len(projectIDs), nil
}

// FormattedObservations fetches the site's schedule across all observation
// states and shapes it like calendar events, for preview. An unmapped site
// yields an empty result without calling upstream; fetch problems are soft.
func (e *Engine) FormattedObservations(ctx context.Context, site, start, end string) []observation.Formatted {
	wema, telescope, err := e.registry.WemaTelescope(site)
	if err != nil {
		return []observation.Formatted{}
	}

	sched, err := e.proxy.Schedule(ctx, wema, siteproxy.ScheduleQuery{
		Telescope: telescope,
		Start:     start,
		End:       end,
		States:    observation.AllStates,
	})
	if err != nil {
		log.Printf("Error fetching observations for %s: %v", site, err)
		return []observation.Formatted{}
	}

	formatted := make([]observation.Formatted, 0, len(sched))
	for i := range sched {
		formatted = append(formatted, observation.Format(&sched[i], site))
	}
	return formatted
}

func errorResult(site string, err error) Result {
	log.Printf("Error reconciling schedule for %s: %v", site, err)
	return Result{Site: site, Status: StatusError, Error: err.Error()}
}
