package sourcing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"outreach_backend/internal/gateway/marketplace"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/quality"
)

const (
	// probeMaxItems bounds each probe invocation to a small sample.
	probeMaxItems = 10
	pollInterval  = 3 * time.Second
)

// ProbeReport is the aggregate outcome of probing all candidates.
type ProbeReport struct {
	Outcomes       []ProbeOutcome
	Signals        *SignalSet
	TotalCostUSD   float64
	QuotaExhausted bool
}

// ProbeCandidates runs each candidate's steps at small scale against a shared
// signal set. Probing stops early when the cumulative spend reaches the probe
// budget or the provider reports quota exhaustion.
func (e *Engine) ProbeCandidates(ctx context.Context, run domain.Run, creds marketplace.Credentials, candidates []ChainCandidate, policy quality.Policy) ProbeReport {
	report := ProbeReport{Signals: NewSignalSet()}
	report.Signals.AddQuery(run.TargetAudience)

	for _, candidate := range candidates {
		remaining := e.probeBudgetUSD - report.TotalCostUSD
		if remaining <= 0 {
			report.Outcomes = append(report.Outcomes, ProbeOutcome{
				CandidateID: candidate.ID,
				FailReason:  "probe budget exhausted before candidate could run",
			})
			continue
		}

		outcome := e.probeCandidate(ctx, run, creds, candidate, report.Signals, remaining, policy)
		report.TotalCostUSD += outcome.CostUSD
		report.Outcomes = append(report.Outcomes, outcome)

		if outcome.FailReason != "" && isQuotaReason(outcome.FailReason) {
			report.QuotaExhausted = true
			break
		}
	}
	return report
}

func (e *Engine) probeCandidate(ctx context.Context, run domain.Run, creds marketplace.Credentials, candidate ChainCandidate, signals *SignalSet, budgetUSD float64, policy quality.Policy) ProbeOutcome {
	outcome := ProbeOutcome{CandidateID: candidate.ID}

	for _, step := range candidate.Steps {
		remaining := budgetUSD - outcome.CostUSD
		if remaining <= 0 {
			outcome.FailReason = "probe budget exhausted"
			return outcome
		}

		res := e.runStep(ctx, run, creds, step, signals, marketplace.Budget{
			MaxCostUSD: remaining,
			MaxItems:   probeMaxItems,
		})
		outcome.CostUSD += res.CostUSD
		outcome.Steps = append(outcome.Steps, StepProbe{
			Stage:         step.Stage,
			ActorID:       step.ActorID,
			Passed:        res.OK,
			FailReason:    res.FailReason,
			CostUSD:       res.CostUSD,
			ItemCount:     len(res.Items),
			RepairApplied: res.Repaired,
		})
		if !res.OK {
			outcome.FailReason = fmt.Sprintf("step %s (%s): %s", step.Stage, step.ActorID, res.FailReason)
			return outcome
		}

		signals.Absorb(res.Items)

		if step.Stage == StageEmailDiscovery {
			accepted, rejected := evaluateLeads(ParseLeads(res.Items), policy)
			outcome.AcceptedLeads = accepted
			outcome.RejectedLeads = rejected
			if accepted+rejected > 0 {
				outcome.QualityRate = float64(accepted) / float64(accepted+rejected)
			}
			if accepted == 0 {
				outcome.FailReason = "no quality-accepted leads in probe sample"
				return outcome
			}
		}
	}

	outcome.Completed = true
	return outcome
}

// stepResult is the outcome of one actor invocation.
type stepResult struct {
	OK         bool
	Items      []map[string]any
	CostUSD    float64
	Repaired   bool
	FailReason string
}

// runStep fetches the actor schema, checks compatibility, builds the input,
// starts the run, and polls it to completion. A rejected input shape earns
// one bounded repair attempt before the step fails.
func (e *Engine) runStep(ctx context.Context, run domain.Run, creds marketplace.Credentials, step ChainStep, signals *SignalSet, budget marketplace.Budget) stepResult {
	schema := e.market.FetchSchema(ctx, creds, step.ActorID)
	if !schema.OK {
		e.diag(ctx, run.ID, "schema_fetch_failed", map[string]any{"actor": step.ActorID, "error": schema.Error})
		return stepResult{FailReason: quotaOr(schema.QuotaExhausted, "schema fetch failed: "+schema.Error)}
	}
	if ok, reason := SchemaCompatible(step.Stage, schema.RequiredKeys); !ok {
		e.diag(ctx, run.ID, "schema_incompatible", map[string]any{"actor": step.ActorID, "reason": reason})
		return stepResult{FailReason: reason}
	}

	input := BuildStageInput(step.Stage, schema.KnownKeys, run.TargetAudience, signals.Snapshot(), budget.MaxItems)

	start := e.market.StartRun(ctx, creds, step.ActorID, input, budget)
	repaired := false
	if !start.OK && !start.QuotaExhausted && looksLikeInputRejection(start.Error) {
		fixed, rules, changed := RepairInput(input)
		if changed {
			e.diag(ctx, run.ID, "input_repair_attempted", map[string]any{"actor": step.ActorID, "rules": rules})
			start = e.market.StartRun(ctx, creds, step.ActorID, fixed, budget)
			repaired = true
		}
	}
	if !start.OK {
		e.diag(ctx, run.ID, "run_start_failed", map[string]any{"actor": step.ActorID, "error": start.Error})
		return stepResult{Repaired: repaired, FailReason: quotaOr(start.QuotaExhausted, "run start failed: "+start.Error)}
	}

	poll, err := e.pollUntilDone(ctx, creds, start.RunID)
	if err != nil {
		e.diag(ctx, run.ID, "run_poll_failed", map[string]any{"actor": step.ActorID, "error": err.Error()})
		return stepResult{Repaired: repaired, CostUSD: poll.CostUSD, FailReason: err.Error()}
	}
	if poll.Status != marketplace.RunSucceeded {
		e.diag(ctx, run.ID, "run_not_succeeded", map[string]any{"actor": step.ActorID, "status": poll.Status})
		return stepResult{Repaired: repaired, CostUSD: poll.CostUSD,
			FailReason: fmt.Sprintf("provider run ended %s", poll.Status)}
	}

	items := e.market.FetchDatasetItems(ctx, creds, start.DatasetID, budget.MaxItems)
	if !items.OK {
		e.diag(ctx, run.ID, "dataset_fetch_failed", map[string]any{"actor": step.ActorID, "error": items.Error})
		return stepResult{Repaired: repaired, CostUSD: poll.CostUSD,
			FailReason: quotaOr(items.QuotaExhausted, "dataset fetch failed: "+items.Error)}
	}

	return stepResult{OK: true, Items: items.Items, CostUSD: poll.CostUSD, Repaired: repaired}
}

// pollUntilDone polls the provider run until it reaches a terminal state or
// the gateway's poll timeout elapses.
func (e *Engine) pollUntilDone(ctx context.Context, creds marketplace.Credentials, runID string) (marketplace.PollResult, error) {
	deadline := time.Now().Add(e.market.PollTimeout())
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var last marketplace.PollResult
	for {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-ticker.C:
		}

		last = e.market.PollRun(ctx, creds, runID)
		if !last.OK {
			return last, fmt.Errorf("run poll failed: %s", quotaOr(last.QuotaExhausted, last.Error))
		}
		if marketplace.IsTerminalRunStatus(last.Status) {
			return last, nil
		}
		if time.Now().After(deadline) {
			return last, fmt.Errorf("provider run %s did not finish within %s", runID, e.market.PollTimeout())
		}
	}
}

func evaluateLeads(leads []ParsedLead, policy quality.Policy) (accepted, rejected int) {
	for _, lead := range leads {
		if quality.EvaluateLeadAgainstPolicy(lead.Candidate(), policy).Accepted {
			accepted++
		} else {
			rejected++
		}
	}
	return accepted, rejected
}

func quotaOr(quota bool, reason string) string {
	if quota {
		return "provider quota exhausted"
	}
	return reason
}

func isQuotaReason(reason string) bool {
	return strings.Contains(reason, "quota exhausted")
}

func looksLikeInputRejection(errMsg string) bool {
	lower := strings.ToLower(errMsg)
	return strings.Contains(lower, "input") || strings.Contains(lower, "schema") ||
		strings.Contains(lower, "invalid") || strings.Contains(lower, "400")
}
