package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"outreach_backend/internal/events"
	"outreach_backend/internal/gateway/messaging"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/internal/quality"
)

// defaultDispatchBatch bounds one dispatch pass when the payload carries no
// explicit limit and no spacing applies.
const defaultDispatchBatch = 25

// handleDispatchMessages sends due scheduled messages within the run's rate
// caps. Caps are recomputed from persisted sends on every pass so that a
// crashed or retried job can never oversend.
func (e *Engine) handleDispatchMessages(ctx context.Context, run domain.Run, payload *domain.DispatchMessagesPayload) error {
	switch run.Status {
	case domain.RunSending:
	case domain.RunMonitoring:
		// Conversation turns scheduled while monitoring reopen the sending
		// window.
		if err := e.transition(ctx, run, domain.RunSending); err != nil {
			return err
		}
		run.Status = domain.RunSending
	default:
		return permanent(fmt.Errorf("dispatch_messages job on run in state %s", run.Status))
	}

	now := time.Now().UTC()

	available, waitUntil, err := e.sendCapacity(ctx, run, now)
	if err != nil {
		return err
	}
	if available <= 0 {
		return e.enqueueOnce(ctx, run.ID, domain.JobDispatchMessages, waitUntil, payload)
	}

	limit := available
	if payload.BatchLimit > 0 && payload.BatchLimit < limit {
		limit = payload.BatchLimit
	}
	if limit > defaultDispatchBatch {
		limit = defaultDispatchBatch
	}
	// Spacing makes sends strictly sequential: one per pass, paced by the
	// persisted sent_at of the previous message.
	if run.MinSpacingMinutes > 0 {
		limit = 1
	}

	due, err := e.repo.ListDueMessages(ctx, run.ID, now, limit)
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return e.settleAfterDispatch(ctx, run, now)
	}

	account, err := e.loadAccount(ctx, run)
	if err != nil {
		return err
	}

	log := e.log.WithRunID(run.ID.String())
	delta := domain.MetricsDelta{}
	for _, msg := range due {
		if err := e.dispatchOne(ctx, run, account, msg, &delta); err != nil {
			// One undeliverable message must not block the rest of the batch.
			log.Error("message dispatch failed", "messageId", msg.ID, "error", err)
		}
	}
	if delta != (domain.MetricsDelta{}) {
		if _, err := e.repo.ApplyMetricsDelta(ctx, run.ID, delta); err != nil {
			return err
		}
	}

	next := now
	if run.MinSpacingMinutes > 0 {
		next = now.Add(time.Duration(run.MinSpacingMinutes) * time.Minute)
	}
	return e.enqueueOnce(ctx, run.ID, domain.JobDispatchMessages, next, payload)
}

// dispatchOne delivers a single scheduled message, recording the outcome in
// the same pass. Returns an error only for infrastructure failures; provider
// rejections are persisted on the message and do not propagate.
func (e *Engine) dispatchOne(ctx context.Context, run domain.Run, account domain.Account, msg domain.Message, delta *domain.MetricsDelta) error {
	lead, err := e.repo.GetLead(ctx, msg.LeadID)
	if err != nil {
		return err
	}

	if reason := quality.GetLeadEmailSuppressionReason(lead.Email); reason != quality.SuppressionNone {
		if _, err := e.repo.CancelScheduledMessages(ctx, run.ID, lead.ID, string(reason)); err != nil {
			return err
		}
		return e.repo.UpdateLeadStatus(ctx, lead.ID, domain.LeadSuppressed)
	}
	if !lead.Status.Sendable() {
		_, err := e.repo.CancelScheduledMessages(ctx, run.ID, lead.ID, "lead no longer sendable: "+string(lead.Status))
		return err
	}

	data := map[string]string{
		messaging.FieldRecipient:   lead.Email,
		messaging.FieldFromAddress: account.FromAddress,
		messaging.FieldReplyTo:     account.ReplyToAddress,
		messaging.FieldSubject:     msg.Subject,
		messaging.FieldBody:        msg.Body,
	}
	if missing := messaging.ValidateReservedFields(data); missing != "" {
		return permanent(fmt.Errorf("outbound event missing reserved field %q", missing))
	}

	result := e.sender.SendEvent(ctx, account, lead.Email, outboundEventName, data)
	if !result.OK {
		if err := e.repo.MarkMessageFailed(ctx, msg.ID, result.Error, result.HardBounce); err != nil {
			if errors.Is(err, repository.ErrStaleTransition) {
				return nil
			}
			return err
		}
		if result.HardBounce {
			delta.Bounced++
			if err := e.repo.UpdateLeadStatus(ctx, lead.ID, domain.LeadBounced); err != nil {
				return err
			}
		} else {
			delta.Failed++
		}
		e.bus.Publish(ctx, events.MessageDeliveryFailed{
			BaseEvent: events.NewBaseEvent(),
			RunID:     run.ID,
			MessageID: msg.ID,
			LeadID:    lead.ID,
			Reason:    result.Error,
		})
		return nil
	}

	sentAt := time.Now().UTC()
	if err := e.repo.MarkMessageSent(ctx, msg.ID, result.ProviderMessageID, sentAt); err != nil {
		// Lost the race to another dispatcher; the send already counted.
		if errors.Is(err, repository.ErrStaleTransition) {
			return nil
		}
		return err
	}
	delta.Sent++

	if lead.Status == domain.LeadScheduled {
		if err := e.repo.UpdateLeadStatus(ctx, lead.ID, domain.LeadSent); err != nil {
			return err
		}
	}
	e.bus.Publish(ctx, events.MessageSent{
		BaseEvent:         events.NewBaseEvent(),
		RunID:             run.ID,
		MessageID:         msg.ID,
		LeadID:            lead.ID,
		ProviderMessageID: result.ProviderMessageID,
	})
	return nil
}

// sendCounts are the persisted counters the cap arithmetic runs on.
type sendCounts struct {
	SentLastHour int
	SentToday    int
	LastSentAt   *time.Time
}

// sendCapacity loads the run's persisted send counters and computes remaining
// headroom. Returns the sendable count and, when it is zero, the earliest
// instant capacity returns.
func (e *Engine) sendCapacity(ctx context.Context, run domain.Run, now time.Time) (int, time.Time, error) {
	var counts sendCounts
	var err error

	if run.HourlyCap > 0 {
		if counts.SentLastHour, err = e.repo.CountSentSince(ctx, run.ID, now.Add(-time.Hour)); err != nil {
			return 0, time.Time{}, err
		}
	}
	if run.DailyCap > 0 {
		if counts.SentToday, err = e.repo.CountSentSince(ctx, run.ID, utcDayStart(now)); err != nil {
			return 0, time.Time{}, err
		}
	}
	if run.MinSpacingMinutes > 0 {
		if counts.LastSentAt, err = e.repo.LastSentAt(ctx, run.ID); err != nil {
			return 0, time.Time{}, err
		}
	}

	available, waitUntil := remainingCapacity(run, counts, now)
	return available, waitUntil, nil
}

// remainingCapacity applies hourly, daily, and spacing limits to one dispatch
// pass. The daily window resets at UTC midnight; the hourly window rolls.
func remainingCapacity(run domain.Run, counts sendCounts, now time.Time) (int, time.Time) {
	available := defaultDispatchBatch

	if run.HourlyCap > 0 {
		if remaining := run.HourlyCap - counts.SentLastHour; remaining < available {
			available = remaining
		}
	}
	if run.DailyCap > 0 {
		if remaining := run.DailyCap - counts.SentToday; remaining < available {
			available = remaining
			if remaining <= 0 {
				return 0, utcDayStart(now).AddDate(0, 0, 1)
			}
		}
	}
	if available <= 0 {
		return 0, now.Truncate(time.Hour).Add(time.Hour)
	}

	if run.MinSpacingMinutes > 0 && counts.LastSentAt != nil {
		earliest := counts.LastSentAt.Add(time.Duration(run.MinSpacingMinutes) * time.Minute)
		if earliest.After(now) {
			return 0, earliest
		}
	}
	return available, time.Time{}
}

func utcDayStart(now time.Time) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

// settleAfterDispatch decides what a dispatch pass with nothing due does
// next: wait for the next scheduled message, or hand the run over to
// monitoring when the outbound queue is drained.
func (e *Engine) settleAfterDispatch(ctx context.Context, run domain.Run, now time.Time) error {
	next, err := e.repo.NextScheduledAt(ctx, run.ID)
	if err != nil {
		return err
	}
	if next != nil {
		return e.enqueueOnce(ctx, run.ID, domain.JobDispatchMessages, next.UTC(), nil)
	}
	if err := e.transition(ctx, run, domain.RunMonitoring); err != nil {
		return err
	}
	return e.enqueueOnce(ctx, run.ID, domain.JobAnalyzeRun, now.Add(time.Hour), nil)
}
