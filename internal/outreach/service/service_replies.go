package service

import (
	"context"
	"errors"
	"fmt"

	"outreach_backend/internal/conversation"
	"outreach_backend/internal/events"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/internal/outreach/transport"
	"outreach_backend/internal/quality"
	"outreach_backend/platform/apperr"
)

// IngestInboundReply records one inbound reply and advances the lead's
// conversation. Idempotent on (run, providerMessageId): webhook retries and
// IMAP re-polls of the same message are absorbed without side effects.
// Webhook delivery and mailbox polling both funnel through here.
func (s *Service) IngestInboundReply(ctx context.Context, req transport.IngestReplyRequest) (*transport.ReplyIngestResponse, error) {
	run, err := s.repo.GetRun(ctx, req.RunID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("run not found")
		}
		return nil, err
	}

	from := quality.NormalizeEmail(req.From)
	if from == "" {
		return nil, apperr.Validation("sender address is not a valid email")
	}

	var lead *domain.Lead
	if found, err := s.repo.FindLeadByEmail(ctx, run.ID, from); err == nil {
		lead = &found
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("match reply sender: %w", err)
	}

	params := repository.InsertReplyParams{
		RunID:             run.ID,
		ProviderMessageID: req.ProviderMessageID,
		FromAddress:       from,
		ToAddress:         req.To,
		Subject:           req.Subject,
		Body:              req.Body,
	}
	if lead != nil {
		params.LeadID = &lead.ID
	}
	reply, err := s.repo.InsertReply(ctx, params)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateReply) {
			return &transport.ReplyIngestResponse{Duplicate: true}, nil
		}
		return nil, fmt.Errorf("store reply: %w", err)
	}

	resp := &transport.ReplyIngestResponse{ReplyID: reply.ID}
	if lead == nil {
		s.log.WithRunID(run.ID.String()).Info("reply from unknown sender stored", "from", from)
		return resp, nil
	}

	classification, err := s.flow.AdvanceOnReply(ctx, run, *lead, req.Body)
	if err != nil {
		// The reply is persisted; classification or advancement failure must
		// not make the provider redeliver it.
		s.log.Error("conversation advance failed", "runId", run.ID, "leadId", lead.ID, "error", err)
	}
	resp.Intent = classification.Intent
	resp.Sentiment = classification.Sentiment
	resp.Confidence = classification.Confidence

	if err := s.repo.UpdateReplyClassification(ctx, reply.ID,
		classification.Sentiment, classification.Intent, classification.Confidence); err != nil {
		return nil, fmt.Errorf("record classification: %w", err)
	}

	delta := domain.MetricsDelta{Replies: 1}
	switch classification.Sentiment {
	case "positive":
		delta.Positive = 1
	case "negative":
		delta.Negative = 1
	}
	if _, err := s.repo.ApplyMetricsDelta(ctx, run.ID, delta); err != nil {
		return nil, err
	}

	if classification.Intent == conversation.IntentUnsubscribe {
		if err := s.repo.UpdateLeadStatus(ctx, lead.ID, domain.LeadUnsubscribed); err != nil {
			return nil, err
		}
		if _, err := s.repo.CancelScheduledMessages(ctx, run.ID, lead.ID, "lead unsubscribed"); err != nil {
			return nil, err
		}
	} else if lead.Status.Sendable() {
		if err := s.repo.UpdateLeadStatus(ctx, lead.ID, domain.LeadReplied); err != nil {
			return nil, err
		}
	}

	s.bus.Publish(ctx, events.ReplyReceived{
		BaseEvent:  events.NewBaseEvent(),
		RunID:      run.ID,
		LeadID:     lead.ID,
		Intent:     classification.Intent,
		Confidence: classification.Confidence,
		Sentiment:  classification.Sentiment,
	})
	return resp, nil
}
