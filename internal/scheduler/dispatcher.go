package scheduler

import (
	"context"
	"time"

	"outreach_backend/internal/outreach/repository"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

// staleRunningAge is how long a job may sit in running before the janitor
// assumes the worker died and requeues it.
const staleRunningAge = 30 * time.Minute

// janitorInterval is how often stale running jobs are swept.
const janitorInterval = time.Hour

// JobDispatcher ticks, claims due jobs from the durable queue, and enqueues
// one asynq task per claimed job. The claim is the atomic transition to
// running, so two dispatcher processes never hand out the same job.
type JobDispatcher struct {
	client   *Client
	repo     *repository.Repository
	interval time.Duration
	batch    int
	log      *logger.Logger
}

func NewJobDispatcher(cfg config.SchedulerConfig, client *Client, repo *repository.Repository, log *logger.Logger) *JobDispatcher {
	interval := cfg.GetTickInterval()
	if interval <= 0 {
		interval = 15 * time.Second
	}
	batch := cfg.GetTickBatchSize()
	if batch < 1 {
		batch = 25
	}
	return &JobDispatcher{
		client:   client,
		repo:     repo,
		interval: interval,
		batch:    batch,
		log:      log,
	}
}

func (d *JobDispatcher) Run(ctx context.Context) {
	if d == nil || d.client == nil || d.repo == nil {
		return
	}

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	janitor := time.NewTicker(janitorInterval)
	defer janitor.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-janitor.C:
			d.sweepStale(ctx)
		case <-ticker.C:
			d.tick(ctx)
		}
	}
}

func (d *JobDispatcher) tick(ctx context.Context) {
	jobs, err := d.repo.ClaimDueJobs(ctx, d.batch)
	if err != nil {
		d.log.Warn("job claim failed", "error", err)
		return
	}

	for _, job := range jobs {
		if err := d.client.EnqueueJob(ctx, job); err != nil {
			// Put the job back so the next tick retries the handoff; the
			// attempt was not consumed by a handler.
			d.log.Warn("task enqueue failed, requeueing job", "jobId", job.ID, "error", err)
			if rqErr := d.repo.RequeueJobForRetry(ctx, job.ID, "task enqueue failed: "+err.Error(), time.Now().UTC()); rqErr != nil {
				d.log.Error("failed to requeue job after enqueue failure", "jobId", job.ID, "error", rqErr)
			}
		}
	}
}

func (d *JobDispatcher) sweepStale(ctx context.Context) {
	n, err := d.repo.RequeueStaleRunningJobs(ctx, staleRunningAge)
	if err != nil {
		d.log.Warn("stale job sweep failed", "error", err)
		return
	}
	if n > 0 {
		d.log.Info("stale running jobs requeued", "count", n)
	}
}
