// Package service provides the business logic for launching and controlling
// outreach runs. All persistence goes through the outreach repository; job
// progress is driven by the scheduler and engine, never by HTTP handlers.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/conversation"
	"outreach_backend/internal/events"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/internal/outreach/transport"
	"outreach_backend/platform/apperr"
	"outreach_backend/platform/logger"
)

// Default send pacing applied when the launch request leaves a cap unset.
const (
	defaultDailyCap          = 40
	defaultHourlyCap         = 8
	defaultMinSpacingMinutes = 5
)

// Service provides business logic for outreach runs.
type Service struct {
	repo *repository.Repository
	flow *conversation.Flow
	bus  events.Bus
	log  *logger.Logger

	// fallbackMarketplaceToken stands in when the account carries no token
	// reference. Preflight fails when neither is present.
	fallbackMarketplaceToken string
}

// New creates a new outreach service.
func New(repo *repository.Repository, flow *conversation.Flow, bus events.Bus, log *logger.Logger, fallbackMarketplaceToken string) *Service {
	return &Service{
		repo:                     repo,
		flow:                     flow,
		bus:                      bus,
		log:                      log,
		fallbackMarketplaceToken: fallbackMarketplaceToken,
	}
}

// LaunchRun validates preconditions and creates a new run for the experiment.
// A run whose preflight fails is still persisted, in preflight_failed, so the
// caller can read lastError and debug without log access. An experiment with
// an open run rejects the launch and points at the active run.
func (s *Service) LaunchRun(ctx context.Context, req transport.LaunchRunRequest) (*transport.RunResponse, error) {
	if open, err := s.repo.FindOpenRunByExperiment(ctx, req.ExperimentID); err == nil {
		return nil, apperr.Conflict("experiment already has an open run").
			WithDetails(map[string]any{"activeRunId": open.ID, "activeRunStatus": string(open.Status)})
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("check open run: %w", err)
	}

	params := repository.CreateRunParams{
		BrandID:           req.BrandID,
		CampaignID:        req.CampaignID,
		ExperimentID:      req.ExperimentID,
		HypothesisID:      req.HypothesisID,
		AccountID:         req.AccountID,
		Status:            domain.RunQueued,
		DailyCap:          req.DailyCap,
		HourlyCap:         req.HourlyCap,
		MinSpacingMinutes: req.MinSpacingMinutes,
		Timezone:          req.Timezone,
		TargetAudience:    req.TargetAudience,
	}
	if params.DailyCap == 0 {
		params.DailyCap = defaultDailyCap
	}
	if params.HourlyCap == 0 {
		params.HourlyCap = defaultHourlyCap
	}
	if params.MinSpacingMinutes == 0 {
		params.MinSpacingMinutes = defaultMinSpacingMinutes
	}
	if params.Timezone == "" {
		params.Timezone = "UTC"
	}

	if reason, hint, debug := s.preflight(ctx, req); reason != "" {
		params.Status = domain.RunPreflightFailed
		params.LastError = &reason
		params.Hint = &hint
		params.Debug = debug
		run, err := s.repo.CreateRun(ctx, params)
		if err != nil {
			return nil, fmt.Errorf("persist preflight failure: %w", err)
		}
		s.log.Warn("run preflight failed", "runId", run.ID, "reason", reason)
		resp := transport.ToRunResponse(run)
		return &resp, nil
	}

	run, err := s.repo.CreateRun(ctx, params)
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, apperr.Conflict("experiment already has an open run")
		}
		return nil, fmt.Errorf("create run: %w", err)
	}

	if _, err := s.repo.EnqueueJob(ctx, repository.EnqueueJobParams{
		RunID:   run.ID,
		JobType: domain.JobSourceLeads,
	}); err != nil {
		return nil, fmt.Errorf("enqueue sourcing job: %w", err)
	}

	s.bus.Publish(ctx, events.RunLaunched{
		BaseEvent:    events.NewBaseEvent(),
		RunID:        run.ID,
		ExperimentID: run.ExperimentID,
		CampaignID:   run.CampaignID,
	})
	s.log.WithRunID(run.ID.String()).Info("run launched", "experimentId", run.ExperimentID)

	resp := transport.ToRunResponse(run)
	return &resp, nil
}

// preflight checks the preconditions a run cannot start without. Returns a
// non-empty reason on failure, with a hint and a debug payload sized for
// self-diagnosis.
func (s *Service) preflight(ctx context.Context, req transport.LaunchRunRequest) (reason, hint string, debug map[string]any) {
	debug = map[string]any{
		"accountAssigned":      req.AccountID != nil,
		"fallbackTokenPresent": s.fallbackMarketplaceToken != "",
		"targetAudienceLength": len(req.TargetAudience),
	}

	if req.AccountID == nil {
		return "no sending account assigned",
			"assign an outreach account to the experiment before launching", debug
	}
	account, err := s.repo.GetAccount(ctx, *req.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "assigned sending account does not exist",
				"the account may have been deleted; assign a different one", debug
		}
		return "sending account could not be loaded", "retry the launch", debug
	}
	debug["accountTokenPresent"] = account.MarketplaceTokenRef != nil && *account.MarketplaceTokenRef != ""
	debug["fromAddressPresent"] = account.FromAddress != ""

	if (account.MarketplaceTokenRef == nil || *account.MarketplaceTokenRef == "") && s.fallbackMarketplaceToken == "" {
		return "no marketplace credentials available",
			"store a marketplace token on the account or configure a deployment token", debug
	}
	if account.FromAddress == "" {
		return "sending account has no from address",
			"complete the account's sender identity", debug
	}

	published, err := s.repo.HasPublishedMap(ctx, req.CampaignID)
	if err != nil {
		return "conversation map lookup failed", "retry the launch", debug
	}
	debug["publishedMapPresent"] = published
	if !published {
		return "campaign has no published conversation map",
			"publish a conversation map for the campaign, or install the default seed map", debug
	}
	return "", "", nil
}

// GetRun returns a run with its metrics and failure diagnostics.
func (s *Service) GetRun(ctx context.Context, id uuid.UUID) (*transport.RunResponse, error) {
	run, err := s.repo.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("run not found")
		}
		return nil, err
	}
	resp := transport.ToRunResponse(run)
	return &resp, nil
}

// ListAnomalies returns the run's pause-condition audit records.
func (s *Service) ListAnomalies(ctx context.Context, runID uuid.UUID) ([]transport.AnomalyResponse, error) {
	if _, err := s.repo.GetRun(ctx, runID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("run not found")
		}
		return nil, err
	}
	anomalies, err := s.repo.ListAnomalies(ctx, runID)
	if err != nil {
		return nil, err
	}
	out := make([]transport.AnomalyResponse, 0, len(anomalies))
	for _, a := range anomalies {
		out = append(out, transport.ToAnomalyResponse(a))
	}
	return out, nil
}

// ListLeads returns the run's prospects.
func (s *Service) ListLeads(ctx context.Context, runID uuid.UUID) ([]transport.LeadResponse, error) {
	if _, err := s.repo.GetRun(ctx, runID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("run not found")
		}
		return nil, err
	}
	leads, err := s.repo.ListLeadsByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	out := make([]transport.LeadResponse, 0, len(leads))
	for _, l := range leads {
		out = append(out, transport.ToLeadResponse(l))
	}
	return out, nil
}

// CancelRun closes the run. In-flight job handlers finish their current
// step; subsequent job processing observes the terminal status and no-ops.
func (s *Service) CancelRun(ctx context.Context, id uuid.UUID) (*transport.RunResponse, error) {
	return s.controlTransition(ctx, id, domain.RunCanceled, "canceled by operator")
}

// PauseRun suspends sending without closing the run.
func (s *Service) PauseRun(ctx context.Context, id uuid.UUID, reason string) (*transport.RunResponse, error) {
	if reason == "" {
		reason = "paused by operator"
	}
	return s.controlTransition(ctx, id, domain.RunPaused, reason)
}

// ResumeRun moves a paused run back into sending or monitoring, depending on
// whether scheduled messages remain, and re-arms the driving jobs.
func (s *Service) ResumeRun(ctx context.Context, id uuid.UUID) (*transport.RunResponse, error) {
	run, err := s.repo.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("run not found")
		}
		return nil, err
	}
	if run.Status != domain.RunPaused {
		return nil, apperr.Conflict(fmt.Sprintf("run is %s, only paused runs can be resumed", run.Status))
	}

	pending, err := s.repo.CountPendingScheduled(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	target := domain.RunMonitoring
	if pending > 0 {
		target = domain.RunSending
	}

	if err := s.repo.TransitionRunStatus(ctx, run.ID, run.Status, target, repository.WithPauseReason("")); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return nil, apperr.Conflict("run changed state concurrently, reload and retry")
		}
		return nil, err
	}
	s.publishStatus(ctx, run.ID, run.Status, target, "resumed by operator")

	now := time.Now().UTC()
	if pending > 0 {
		if err := s.enqueueIfAbsent(ctx, run.ID, domain.JobDispatchMessages, now); err != nil {
			return nil, err
		}
	}
	if err := s.enqueueIfAbsent(ctx, run.ID, domain.JobAnalyzeRun, now.Add(time.Hour)); err != nil {
		return nil, err
	}
	if err := s.enqueueIfAbsent(ctx, run.ID, domain.JobConversationTick, now); err != nil {
		return nil, err
	}

	return s.GetRun(ctx, id)
}

// SeedConversationMap installs the default cold-outreach map for the
// campaign when no published map exists. Existing published maps win.
func (s *Service) SeedConversationMap(ctx context.Context, campaignID uuid.UUID) error {
	_, err := conversation.EnsurePublishedMap(ctx, s.repo, campaignID)
	return err
}

func (s *Service) controlTransition(ctx context.Context, id uuid.UUID, to domain.RunStatus, reason string) (*transport.RunResponse, error) {
	run, err := s.repo.GetRun(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("run not found")
		}
		return nil, err
	}
	if !domain.CanTransition(run.Status, to) {
		return nil, apperr.Conflict(fmt.Sprintf("run is %s and cannot move to %s", run.Status, to))
	}

	opts := []repository.RunUpdate{}
	if to == domain.RunPaused {
		opts = append(opts, repository.WithPauseReason(reason))
	}
	if err := s.repo.TransitionRunStatus(ctx, run.ID, run.Status, to, opts...); err != nil {
		if errors.Is(err, repository.ErrStaleTransition) {
			return nil, apperr.Conflict("run changed state concurrently, reload and retry")
		}
		return nil, err
	}
	s.publishStatus(ctx, run.ID, run.Status, to, reason)
	return s.GetRun(ctx, id)
}

func (s *Service) publishStatus(ctx context.Context, runID uuid.UUID, from, to domain.RunStatus, reason string) {
	s.bus.Publish(ctx, events.RunStatusChanged{
		BaseEvent:  events.NewBaseEvent(),
		RunID:      runID,
		FromStatus: string(from),
		ToStatus:   string(to),
		Reason:     reason,
	})
}

func (s *Service) enqueueIfAbsent(ctx context.Context, runID uuid.UUID, jobType domain.JobType, at time.Time) error {
	pending, err := s.repo.HasPendingJob(ctx, runID, jobType)
	if err != nil {
		return err
	}
	if pending {
		return nil
	}
	_, err = s.repo.EnqueueJob(ctx, repository.EnqueueJobParams{
		RunID:        runID,
		JobType:      jobType,
		ExecuteAfter: at,
	})
	return err
}
