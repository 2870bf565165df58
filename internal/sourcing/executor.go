package sourcing

import (
	"context"
	"fmt"
	"time"

	"outreach_backend/internal/gateway/marketplace"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/internal/quality"
)

const (
	// executeMaxItems is the per-step item ceiling for a full-scale run.
	executeMaxItems = 200
	// dedupWindow is how far back a campaign's prior runs suppress repeats.
	dedupWindow = 14 * 24 * time.Hour
)

// ExecResult summarizes a full-scale execution.
type ExecResult struct {
	Inserted int
	Rejected int
	CostUSD  float64
}

// ExecutePlan re-runs the selected chain at full scale under the execution
// budget and persists the leads that survive suppression, the cross-run
// duplicate window, and the quality policy. At least one lead must be
// accepted for the execution to count.
func (e *Engine) ExecutePlan(ctx context.Context, run domain.Run, creds marketplace.Credentials, plan ChainCandidate, signals *SignalSet, policy quality.Policy) (ExecResult, error) {
	var result ExecResult
	var finalItems []map[string]any

	for _, step := range plan.Steps {
		remaining := e.execBudgetUSD - result.CostUSD
		if remaining <= 0 {
			e.diag(ctx, run.ID, "execution_budget_exhausted", map[string]any{"costUsd": result.CostUSD})
			e.recordExecFailure(ctx, step.ActorID, false)
			return result, fmt.Errorf("execution budget exhausted before step %s", step.Stage)
		}

		res := e.runStep(ctx, run, creds, step, signals, marketplace.Budget{
			MaxCostUSD: remaining,
			MaxItems:   executeMaxItems,
		})
		result.CostUSD += res.CostUSD
		if !res.OK {
			e.recordExecFailure(ctx, step.ActorID, isCompatReason(res.FailReason))
			return result, fmt.Errorf("execution step %s (%s) failed: %s", step.Stage, step.ActorID, res.FailReason)
		}

		signals.Absorb(res.Items)
		if step.Stage == StageEmailDiscovery {
			finalItems = res.Items
		}
	}

	recent, err := e.repo.RecentlyContactedEmails(ctx, run.CampaignID, run.ID, dedupWindow)
	if err != nil {
		return result, fmt.Errorf("failed to load recent contacts: %w", err)
	}

	var params []repository.InsertLeadParams
	for _, lead := range ParseLeads(finalItems) {
		if recent[lead.Email] {
			result.Rejected++
			continue
		}
		verdict := quality.EvaluateLeadAgainstPolicy(lead.Candidate(), policy)
		if !verdict.Accepted {
			result.Rejected++
			continue
		}
		params = append(params, repository.InsertLeadParams{
			RunID:      run.ID,
			Email:      lead.Email,
			Name:       lead.Name,
			Company:    lead.Company,
			Title:      lead.Title,
			Domain:     lead.Domain,
			SourceURL:  lead.SourceURL,
			Confidence: verdict.Confidence,
		})
	}

	if len(params) == 0 {
		e.diag(ctx, run.ID, "execution_no_accepted_leads", map[string]any{"rejected": result.Rejected})
		return result, fmt.Errorf("full-scale execution produced no quality-accepted leads")
	}

	inserted, err := e.repo.InsertLeads(ctx, params)
	if err != nil {
		return result, fmt.Errorf("failed to persist leads: %w", err)
	}
	result.Inserted = inserted

	final := plan.Steps[len(plan.Steps)-1]
	qualityRate := float64(result.Inserted) / float64(result.Inserted+result.Rejected)
	if err := e.repo.UpsertActorOutcome(ctx, repository.ActorOutcome{
		ActorID:       final.ActorID,
		Success:       true,
		LeadsAccepted: result.Inserted,
		LeadsRejected: result.Rejected,
		QualityRate:   qualityRate,
	}); err != nil {
		e.log.Warn("failed to update actor memory", "actor", final.ActorID, "error", err)
	}

	return result, nil
}

func (e *Engine) recordExecFailure(ctx context.Context, actorID string, compat bool) {
	err := e.repo.UpsertActorOutcome(ctx, repository.ActorOutcome{
		ActorID:       actorID,
		CompatFailure: compat,
		QualityRate:   -1,
	})
	if err != nil {
		e.log.Warn("failed to update actor memory", "actor", actorID, "error", err)
	}
}
