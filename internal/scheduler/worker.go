package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/engine"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	repo   *repository.Repository
	engine *engine.Engine
	log    *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, repo *repository.Repository, eng *engine.Engine, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		repo:   repo,
		engine: eng,
		log:    log,
	}

	for _, taskType := range taskTypeByJobType {
		mux.HandleFunc(taskType, w.handleOutreachJob)
	}

	return w, nil
}

// handleOutreachJob resolves the claimed job row and runs it through the
// engine. The engine records every outcome on the job itself, so this
// handler never signals asynq to retry.
func (w *Worker) handleOutreachJob(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseOutreachJobPayload(task)
	if err != nil {
		return err
	}

	jobID, err := uuid.Parse(payload.JobID)
	if err != nil {
		return err
	}

	job, err := w.repo.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			w.log.Warn("task references missing job", "jobId", jobID)
			return nil
		}
		return err
	}

	// The dispatcher claimed the job; anything else means a duplicate or
	// stale task and the row already tells the full story.
	if job.Status != domain.JobRunning {
		w.log.Info("skipping job not in running state", "jobId", job.ID, "status", job.Status)
		return nil
	}

	w.engine.Execute(ctx, job)
	return nil
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
