package importer

import (
	"context"
	"log"

	"github.com/robfig/cron/v3"
)

// Runner triggers full reconciliation runs on a cron schedule.
type Runner struct {
	engine *Engine
	spec   string
	cron   *cron.Cron
}

// NewRunner creates a cron-driven runner for the engine.
func NewRunner(engine *Engine, spec string) *Runner {
	return &Runner{
		engine: engine,
		spec:   spec,
		cron:   cron.New(),
	}
}

// Start runs one immediate reconciliation pass and then schedules periodic
// ones. The per-site locks in the engine keep an overlapping run from
// interleaving with a still-active one.
func (r *Runner) Start(ctx context.Context) error {
	_, err := r.cron.AddFunc(r.spec, func() {
		r.runAll(ctx)
	})
	if err != nil {
		return err
	}

	go r.runAll(ctx)
	r.cron.Start()
	log.Printf("Schedule importer started with cron spec %q", r.spec)
	return nil
}

// Stop halts the cron scheduler. The returned context is done when any
// in-flight run has finished.
func (r *Runner) Stop() context.Context {
	return r.cron.Stop()
}

func (r *Runner) runAll(ctx context.Context) {
	results := r.engine.SyncAll(ctx)
	for site, result := range results {
		switch result.Status {
		case StatusError:
			log.Printf("Import for %s failed: %s", site, result.Error)
		case StatusUpdated:
			log.Printf("Import for %s: %d observations imported, %d projects cleared", site, result.Imported, result.ClearedProjects)
		}
	}
}
