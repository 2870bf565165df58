// Package engine executes the durable jobs that drive outreach runs forward:
// sourcing, scheduling, dispatch, reply sync, conversation ticks, and run
// analysis. One handler per job type; all state lives in the repository.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/conversation"
	"outreach_backend/internal/events"
	"outreach_backend/internal/gateway/marketplace"
	"outreach_backend/internal/gateway/messaging"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/internal/sourcing"
	"outreach_backend/platform/logger"
)

// outboundEventName is the transactional event fired per outbound message.
const outboundEventName = "outreach_email"

// ReplySyncer pulls inbound replies from the account mailbox.
type ReplySyncer interface {
	// Sync ingests replies newer than sinceUID and returns the new
	// high-water UID.
	Sync(ctx context.Context, run domain.Run, account domain.Account, sinceUID int) (int, error)
}

// Engine runs claimed jobs to completion.
type Engine struct {
	repo      *repository.Repository
	sourcer   *sourcing.Engine
	flow      *conversation.Flow
	sender    messaging.Sender
	replySync ReplySyncer
	bus       events.Bus
	log       *logger.Logger

	// marketplaceToken is the deployment-level fallback used when the run's
	// account carries no token reference.
	marketplaceToken string
}

type Config struct {
	Repo             *repository.Repository
	Sourcer          *sourcing.Engine
	Flow             *conversation.Flow
	Sender           messaging.Sender
	ReplySync        ReplySyncer
	Bus              events.Bus
	Log              *logger.Logger
	MarketplaceToken string
}

func New(cfg Config) *Engine {
	return &Engine{
		repo:             cfg.Repo,
		sourcer:          cfg.Sourcer,
		flow:             cfg.Flow,
		sender:           cfg.Sender,
		replySync:        cfg.ReplySync,
		bus:              cfg.Bus,
		log:              cfg.Log,
		marketplaceToken: cfg.MarketplaceToken,
	}
}

// Execute runs one claimed job. The job is already in the running state with
// its attempt counted. Handler failure requeues the job with backoff until
// attempts are exhausted, then fails both job and run.
func (e *Engine) Execute(ctx context.Context, job domain.Job) {
	log := e.log.WithRunID(job.RunID.String())

	run, err := e.repo.GetRun(ctx, job.RunID)
	if err != nil {
		log.Error("job references unloadable run", "jobId", job.ID, "error", err)
		e.failJob(ctx, job, fmt.Errorf("run lookup failed: %w", err), false)
		return
	}

	// Cancellation and pausing are advisory: claimed work on a closed or
	// paused run is dropped, not failed.
	if run.Status.IsTerminal() || run.Status == domain.RunPaused {
		log.Info("skipping job for inactive run", "jobId", job.ID, "jobType", job.JobType, "runStatus", run.Status)
		if err := e.repo.MarkJobCompleted(ctx, job.ID); err != nil {
			log.Error("failed to complete skipped job", "jobId", job.ID, "error", err)
		}
		return
	}

	err = e.dispatch(ctx, run, job)
	if err != nil {
		log.JobEvent(string(job.JobType), job.RunID.String(), false, err.Error())
		if job.Attempts >= job.MaxAttempts || !retryable(err) {
			e.failJob(ctx, job, err, true)
		} else {
			retryAt := time.Now().UTC().Add(domain.RetryBackoff(job.Attempts))
			if rqErr := e.repo.RequeueJobForRetry(ctx, job.ID, err.Error(), retryAt); rqErr != nil {
				log.Error("failed to requeue job", "jobId", job.ID, "error", rqErr)
			}
		}
		return
	}

	log.JobEvent(string(job.JobType), job.RunID.String(), true, "")
	if err := e.repo.MarkJobCompleted(ctx, job.ID); err != nil && !errors.Is(err, repository.ErrStaleTransition) {
		log.Error("failed to complete job", "jobId", job.ID, "error", err)
	}
}

func (e *Engine) dispatch(ctx context.Context, run domain.Run, job domain.Job) error {
	payload, err := domain.DecodePayload(job)
	if err != nil {
		return permanent(err)
	}

	switch p := payload.(type) {
	case *domain.SourceLeadsPayload:
		return e.handleSourceLeads(ctx, run, job, p)
	case *domain.ScheduleMessagesPayload:
		return e.handleScheduleMessages(ctx, run)
	case *domain.DispatchMessagesPayload:
		return e.handleDispatchMessages(ctx, run, p)
	case *domain.SyncRepliesPayload:
		return e.handleSyncReplies(ctx, run, p)
	case *domain.ConversationTickPayload:
		return e.handleConversationTick(ctx, run)
	case *domain.AnalyzeRunPayload:
		return e.handleAnalyzeRun(ctx, run)
	}
	return permanent(fmt.Errorf("no handler for job type %q", job.JobType))
}

// failJob marks the job failed and, when failRun is set, fails the owning run
// with the error as its terminal reason.
func (e *Engine) failJob(ctx context.Context, job domain.Job, cause error, failRun bool) {
	if err := e.repo.MarkJobFailed(ctx, job.ID, cause.Error()); err != nil && !errors.Is(err, repository.ErrStaleTransition) {
		e.log.Error("failed to mark job failed", "jobId", job.ID, "error", err)
	}
	if !failRun {
		return
	}
	if err := e.repo.FailRun(ctx, job.RunID, cause.Error(), map[string]any{
		"jobId":    job.ID.String(),
		"jobType":  string(job.JobType),
		"attempts": job.Attempts,
	}); err != nil && !errors.Is(err, repository.ErrStaleTransition) {
		e.log.Error("failed to fail run", "runId", job.RunID, "error", err)
	}
	e.publishStatus(ctx, job.RunID, "", domain.RunFailed, cause.Error())
}

// permanentError wraps failures that must not be retried.
type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

func permanent(err error) error { return permanentError{err: err} }

func retryable(err error) bool {
	var p permanentError
	return !errors.As(err, &p)
}

// transition moves the run between states, treating a lost race as a
// permanent handler failure since another writer owns the run now.
func (e *Engine) transition(ctx context.Context, run domain.Run, to domain.RunStatus, opts ...repository.RunUpdate) error {
	if err := e.repo.TransitionRunStatus(ctx, run.ID, run.Status, to, opts...); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return permanent(fmt.Errorf("run moved out of %s concurrently", run.Status))
		}
		return err
	}
	e.publishStatus(ctx, run.ID, run.Status, to, "")
	return nil
}

func (e *Engine) publishStatus(ctx context.Context, runID uuid.UUID, from, to domain.RunStatus, reason string) {
	e.bus.Publish(ctx, events.RunStatusChanged{
		BaseEvent:  events.NewBaseEvent(),
		RunID:      runID,
		FromStatus: string(from),
		ToStatus:   string(to),
		Reason:     reason,
	})
}

// enqueueOnce enqueues a job unless one of the same type is already pending
// for the run.
func (e *Engine) enqueueOnce(ctx context.Context, runID uuid.UUID, jobType domain.JobType, executeAfter time.Time, payload any) error {
	pending, err := e.repo.HasPendingJob(ctx, runID, jobType)
	if err != nil {
		return err
	}
	if pending {
		return nil
	}
	_, err = e.repo.EnqueueJob(ctx, repository.EnqueueJobParams{
		RunID:        runID,
		JobType:      jobType,
		ExecuteAfter: executeAfter,
		Payload:      payload,
	})
	return err
}

// credentials resolves the marketplace token for the run's account, falling
// back to the deployment token.
func (e *Engine) credentials(account domain.Account) marketplace.Credentials {
	if account.MarketplaceTokenRef != nil && *account.MarketplaceTokenRef != "" {
		return marketplace.Credentials{Token: *account.MarketplaceTokenRef}
	}
	return marketplace.Credentials{Token: e.marketplaceToken}
}

func (e *Engine) loadAccount(ctx context.Context, run domain.Run) (domain.Account, error) {
	if run.AccountID == nil {
		return domain.Account{}, permanent(fmt.Errorf("run has no sending account assigned"))
	}
	account, err := e.repo.GetAccount(ctx, *run.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Account{}, permanent(fmt.Errorf("sending account %s does not exist", *run.AccountID))
		}
		return domain.Account{}, err
	}
	return account, nil
}
