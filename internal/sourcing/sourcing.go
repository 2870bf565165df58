// Package sourcing assembles, probes, and executes chains of marketplace
// actors that turn a target-audience description into quality-accepted leads.
package sourcing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"outreach_backend/internal/gateway/archive"
	"outreach_backend/internal/gateway/completion"
	"outreach_backend/internal/gateway/marketplace"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/internal/quality"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

// ErrQuotaExhausted marks provider-quota exhaustion; it short-circuits all
// remaining probing since every further call would fail the same way.
var ErrQuotaExhausted = errors.New("marketplace quota exhausted")

// ErrNoViableChain is returned when no probed candidate produced accepted
// leads within the budget.
var ErrNoViableChain = errors.New("no chain candidate could be probed within the budget cap")

// Engine drives the plan, probe, select, execute cycle.
type Engine struct {
	repo           *repository.Repository
	market         *marketplace.Client
	completer      completion.Completer
	archive        archive.Store
	log            *logger.Logger
	probeBudgetUSD float64
	execBudgetUSD  float64
}

func NewEngine(repo *repository.Repository, market *marketplace.Client, completer completion.Completer, store archive.Store, cfg config.SourcingConfig, log *logger.Logger) *Engine {
	if store == nil {
		store = archive.NoopStore{}
	}
	return &Engine{
		repo:           repo,
		market:         market,
		completer:      completer,
		archive:        store,
		log:            log,
		probeBudgetUSD: cfg.GetProbeBudgetUSD(),
		execBudgetUSD:  cfg.GetExecutionBudgetUSD(),
	}
}

// Result summarizes a completed sourcing pass.
type Result struct {
	LeadsInserted  int
	LeadsRejected  int
	Selected       ChainCandidate
	TotalProbeUSD  float64
	TotalExecUSD   float64
	DecisionID     uuid.UUID
	TraceObjectKey string
}

// SourceLeads runs the full cycle for a run: build the actor pool, generate
// candidates, probe them under the probe budget, select a winner, execute it
// at full scale, and persist accepted leads. Every terminal failure carries a
// specific reason and a diagnostic event.
func (e *Engine) SourceLeads(ctx context.Context, run domain.Run, creds marketplace.Credentials, policy quality.Policy) (Result, error) {
	log := e.log.WithRunID(run.ID.String())

	pool, err := e.BuildActorPool(ctx, creds, nil)
	if err != nil {
		e.diag(ctx, run.ID, "pool_build_failed", map[string]any{"error": err.Error()})
		return Result{}, fmt.Errorf("actor pool build failed: %w", err)
	}
	// Actor ids are only known after search, so the memory bias is applied as
	// a rerank over the fresh pool.
	if ids := pool.actorIDs(); len(ids) > 0 {
		if mems, err := e.repo.GetActorMemories(ctx, ids); err == nil && len(mems) > 0 {
			pool.rerank(mems)
		}
	}

	candidates := e.GenerateChainCandidates(ctx, run.TargetAudience, pool)
	if len(candidates) == 0 {
		e.diag(ctx, run.ID, "no_chain_candidates", nil)
		return Result{}, errors.New("no chain candidates could be assembled from the actor pool")
	}

	probe := e.ProbeCandidates(ctx, run, creds, candidates, policy)
	for _, outcome := range probe.Outcomes {
		e.recordProbeMemory(ctx, candidates, outcome)
	}

	selected, ok := SelectCandidate(candidates, probe.Outcomes)

	decisionID, derr := e.repo.InsertChainDecision(ctx, repository.InsertChainDecisionParams{
		RunID:             run.ID,
		Strategy:          selected.Strategy,
		Rationale:         selected.Rationale,
		Candidates:        candidates,
		Probes:            probe.Outcomes,
		Selected:          selectedOrNil(selected, ok),
		TotalProbeCostUSD: probe.TotalCostUSD,
	})
	if derr != nil {
		log.Warn("failed to persist chain decision", "error", derr)
	}

	traceKey, aerr := e.archive.PutTrace(ctx, run.ID.String(), "probe", map[string]any{
		"candidates": candidates,
		"outcomes":   probe.Outcomes,
		"signals":    probe.Signals,
	})
	if aerr != nil {
		log.Warn("failed to archive probe trace", "error", aerr)
	}

	if !ok {
		e.diag(ctx, run.ID, "no_viable_chain", map[string]any{"probeCostUsd": probe.TotalCostUSD})
		if probe.QuotaExhausted {
			return Result{}, fmt.Errorf("%w during probing", ErrQuotaExhausted)
		}
		return Result{}, ErrNoViableChain
	}

	exec, err := e.ExecutePlan(ctx, run, creds, selected, probe.Signals, policy)
	if err != nil {
		return Result{}, err
	}

	return Result{
		LeadsInserted:  exec.Inserted,
		LeadsRejected:  exec.Rejected,
		Selected:       selected,
		TotalProbeUSD:  probe.TotalCostUSD,
		TotalExecUSD:   exec.CostUSD,
		DecisionID:     decisionID,
		TraceObjectKey: traceKey,
	}, nil
}

func (e *Engine) recordProbeMemory(ctx context.Context, candidates []ChainCandidate, outcome ProbeOutcome) {
	for _, step := range outcome.Steps {
		o := repository.ActorOutcome{
			ActorID:       step.ActorID,
			Success:       step.Passed,
			CompatFailure: !step.Passed && isCompatReason(step.FailReason),
			QualityRate:   -1,
		}
		if step.Stage == StageEmailDiscovery && step.Passed {
			o.LeadsAccepted = outcome.AcceptedLeads
			o.LeadsRejected = outcome.RejectedLeads
			if outcome.AcceptedLeads+outcome.RejectedLeads > 0 {
				o.QualityRate = outcome.QualityRate
			}
		}
		if err := e.repo.UpsertActorOutcome(ctx, o); err != nil {
			e.log.Warn("failed to update actor memory", "actor", step.ActorID, "error", err)
		}
	}
}

// diag writes a diagnostic breadcrumb, ignoring storage failures.
func (e *Engine) diag(ctx context.Context, runID uuid.UUID, name string, detail map[string]any) {
	if err := e.repo.InsertDiagnosticEvent(ctx, &runID, "sourcing", name, detail); err != nil {
		e.log.Warn("failed to record diagnostic event", "name", name, "error", err)
	}
}

func selectedOrNil(c ChainCandidate, ok bool) any {
	if !ok {
		return nil
	}
	return c
}

func isCompatReason(reason string) bool {
	return strings.Contains(reason, "cannot be satisfied") || strings.Contains(reason, "input")
}

func (p *ActorPool) actorIDs() []string {
	var out []string
	seen := map[string]bool{}
	for _, ranked := range p.ByStage {
		for _, a := range ranked {
			if !seen[a.ID] {
				seen[a.ID] = true
				out = append(out, a.ID)
			}
		}
	}
	return out
}

func (p *ActorPool) rerank(memories map[string]domain.ActorMemory) {
	for stage, ranked := range p.ByStage {
		for i := range ranked {
			if mem, ok := memories[ranked[i].ID]; ok {
				ranked[i].Score += memoryBias(mem)
			}
		}
		sortRanked(ranked)
		p.ByStage[stage] = ranked
	}
}
