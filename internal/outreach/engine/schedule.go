package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
)

// conversationTickInterval is how often timer edges are evaluated while a
// run has open sessions.
const conversationTickInterval = 15 * time.Minute

// replySyncInterval is how often the account mailbox is polled.
const replySyncInterval = 30 * time.Minute

// handleScheduleMessages opens a conversation session for every sourced lead
// and schedules the first turn. Re-running is safe: existing sessions and
// session-node messages short-circuit.
func (e *Engine) handleScheduleMessages(ctx context.Context, run domain.Run) error {
	if run.Status != domain.RunScheduled {
		return permanent(fmt.Errorf("schedule_messages job on run in state %s", run.Status))
	}

	cm, err := e.repo.GetPublishedMap(ctx, run.CampaignID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return permanent(fmt.Errorf("campaign %s has no published conversation map", run.CampaignID))
		}
		return err
	}

	leads, err := e.repo.ListLeadsByRun(ctx, run.ID)
	if err != nil {
		return err
	}

	scheduled := 0
	var firstErr error
	for _, lead := range leads {
		if lead.Status != domain.LeadSourced {
			continue
		}
		if err := e.flow.StartSession(ctx, run, lead, cm); err != nil {
			// One broken lead must not sink the batch; the retry pass picks
			// up leads still in sourced.
			e.log.Error("failed to open session", "leadId", lead.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := e.repo.UpdateLeadStatus(ctx, lead.ID, domain.LeadScheduled); err != nil {
			return err
		}
		scheduled++
	}

	if scheduled > 0 {
		if _, err := e.repo.ApplyMetricsDelta(ctx, run.ID, domain.MetricsDelta{Scheduled: scheduled}); err != nil {
			return err
		}
	}
	if scheduled == 0 && firstErr != nil {
		return fmt.Errorf("no lead could be scheduled: %w", firstErr)
	}

	if err := e.transition(ctx, run, domain.RunSending); err != nil {
		return err
	}

	now := time.Now().UTC()
	firstDispatch := now
	if next, err := e.repo.NextScheduledAt(ctx, run.ID); err == nil && next != nil {
		firstDispatch = next.UTC()
	}
	if err := e.enqueueOnce(ctx, run.ID, domain.JobDispatchMessages, firstDispatch, nil); err != nil {
		return err
	}
	if err := e.enqueueOnce(ctx, run.ID, domain.JobConversationTick, now.Add(conversationTickInterval), nil); err != nil {
		return err
	}
	return e.enqueueOnce(ctx, run.ID, domain.JobSyncReplies, now.Add(replySyncInterval), nil)
}
