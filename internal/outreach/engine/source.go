package engine

import (
	"context"
	"fmt"
	"time"

	"outreach_backend/internal/events"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/internal/quality"
)

// handleSourceLeads runs the sourcing cycle for a queued run. Sourcing is the
// only handler that moves a run out of queued.
func (e *Engine) handleSourceLeads(ctx context.Context, run domain.Run, job domain.Job, payload *domain.SourceLeadsPayload) error {
	switch run.Status {
	case domain.RunQueued:
		if err := e.transition(ctx, run, domain.RunSourcing); err != nil {
			return err
		}
		run.Status = domain.RunSourcing
	case domain.RunSourcing:
		// Retry of a failed attempt; the cycle re-probes from scratch and
		// lead insertion is idempotent per (run, email).
	default:
		return permanent(fmt.Errorf("source_leads job on run in state %s", run.Status))
	}

	account, err := e.loadAccount(ctx, run)
	if err != nil {
		return err
	}

	result, err := e.sourcer.SourceLeads(ctx, run, e.credentials(account), quality.DefaultPolicy())
	if err != nil {
		return fmt.Errorf("sourcing failed: %w", err)
	}

	if _, err := e.repo.ApplyMetricsDelta(ctx, run.ID, domain.MetricsDelta{Sourced: result.LeadsInserted}); err != nil {
		return err
	}

	summary := map[string]any{
		"strategy":      result.Selected.Strategy,
		"probeCostUsd":  result.TotalProbeUSD,
		"execCostUsd":   result.TotalExecUSD,
		"leadsInserted": result.LeadsInserted,
		"leadsRejected": result.LeadsRejected,
	}
	if result.TraceObjectKey != "" {
		summary["traceObjectKey"] = result.TraceObjectKey
	}

	if err := e.transition(ctx, run, domain.RunScheduled,
		repository.WithSourcingTraceSummary(summary)); err != nil {
		return err
	}

	e.bus.Publish(ctx, events.LeadsSourced{
		BaseEvent: events.NewBaseEvent(),
		RunID:     run.ID,
		Accepted:  result.LeadsInserted,
		Rejected:  result.LeadsRejected,
		Strategy:  result.Selected.Strategy,
	})

	return e.enqueueOnce(ctx, run.ID, domain.JobScheduleMessages, time.Now().UTC(), nil)
}
