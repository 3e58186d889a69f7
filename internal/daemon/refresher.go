package daemon

import (
	"context"
	"time"

	"github.com/adhocore/gronx"

	"github.com/unitime/unitime/internal/server"
	"github.com/unitime/unitime/pkg/logger"
)

// RefreshJob refetches one resource class and reports the outcome.
type RefreshJob func(ctx context.Context) server.RefreshOutcome

// Refresher runs resource refreshes on cron schedules, one goroutine
// per job. A tick that was missed while the daemon was down is not
// replayed; the next occurrence is always computed from now.
type Refresher struct {
	log  logger.Logger
	jobs []refreshJob
}

type refreshJob struct {
	name string
	spec string
	run  RefreshJob
}

// NewRefresher creates an empty Refresher.
func NewRefresher(log logger.Logger) *Refresher {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Refresher{log: log}
}

// AddJob registers a job under a cron spec. Invalid specs are rejected
// at registration with a log entry so one bad spec cannot take down
// the rest.
func (r *Refresher) AddJob(name, spec string, run RefreshJob) {
	if !gronx.New().IsValid(spec) {
		r.log.Error("refresher: invalid cron spec %q for %s, job disabled", spec, name)
		return
	}
	r.jobs = append(r.jobs, refreshJob{name: name, spec: spec, run: run})
}

// Start launches all registered jobs. They stop when ctx is cancelled.
func (r *Refresher) Start(ctx context.Context) {
	for _, job := range r.jobs {
		go r.runJob(ctx, job)
	}
}

// NextTick returns the first occurrence of spec strictly after from.
func NextTick(spec string, from time.Time) (time.Time, error) {
	return gronx.NextTickAfter(spec, from, false)
}

// runJob sleeps until each next cron occurrence and runs the job.
func (r *Refresher) runJob(ctx context.Context, job refreshJob) {
	for {
		next, err := NextTick(job.spec, time.Now())
		if err != nil {
			r.log.Error("refresher: %s: computing next tick: %v", job.name, err)
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		outcome := job.run(ctx)
		if outcome.Error != "" {
			r.log.Warning("refresher: %s: %s", job.name, outcome.Error)
			continue
		}
		r.log.Info("refresher: %s refreshed (source=%s)", job.name, outcome.Source)
	}
}
