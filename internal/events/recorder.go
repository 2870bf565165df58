package events

import (
	"context"

	"github.com/google/uuid"

	"outreach_backend/platform/logger"
)

// DiagnosticWriter is the slice of the repository the recorder needs.
type DiagnosticWriter interface {
	InsertDiagnosticEvent(ctx context.Context, runID *uuid.UUID, scope, name string, detail map[string]any) error
}

// DiagnosticRecorder subscribes to run lifecycle events and persists each one
// as a diagnostic breadcrumb, so the history of a run can be reconstructed
// without replaying logs.
type DiagnosticRecorder struct {
	writer DiagnosticWriter
	log    *logger.Logger
}

func NewDiagnosticRecorder(writer DiagnosticWriter, log *logger.Logger) *DiagnosticRecorder {
	return &DiagnosticRecorder{writer: writer, log: log}
}

// Register subscribes the recorder to every event type it records.
func (r *DiagnosticRecorder) Register(bus Bus) {
	bus.Subscribe(RunLaunched{}.EventName(), HandlerFunc(func(ctx context.Context, event Event) error {
		e, ok := event.(RunLaunched)
		if !ok {
			return nil
		}
		return r.record(ctx, e.RunID, "lifecycle", event.EventName(), map[string]any{
			"experimentId": e.ExperimentID,
			"campaignId":   e.CampaignID,
		})
	}))

	bus.Subscribe(RunStatusChanged{}.EventName(), HandlerFunc(func(ctx context.Context, event Event) error {
		e, ok := event.(RunStatusChanged)
		if !ok {
			return nil
		}
		detail := map[string]any{"from": e.FromStatus, "to": e.ToStatus}
		if e.Reason != "" {
			detail["reason"] = e.Reason
		}
		return r.record(ctx, e.RunID, "lifecycle", event.EventName(), detail)
	}))

	bus.Subscribe(RunPaused{}.EventName(), HandlerFunc(func(ctx context.Context, event Event) error {
		e, ok := event.(RunPaused)
		if !ok {
			return nil
		}
		return r.record(ctx, e.RunID, "anomaly", event.EventName(), map[string]any{
			"anomalyType": e.AnomalyType,
			"severity":    e.Severity,
			"observed":    e.Observed,
			"threshold":   e.Threshold,
		})
	}))

	bus.Subscribe(LeadsSourced{}.EventName(), HandlerFunc(func(ctx context.Context, event Event) error {
		e, ok := event.(LeadsSourced)
		if !ok {
			return nil
		}
		return r.record(ctx, e.RunID, "sourcing", event.EventName(), map[string]any{
			"accepted": e.Accepted,
			"rejected": e.Rejected,
			"strategy": e.Strategy,
		})
	}))

	bus.Subscribe(MessageDeliveryFailed{}.EventName(), HandlerFunc(func(ctx context.Context, event Event) error {
		e, ok := event.(MessageDeliveryFailed)
		if !ok {
			return nil
		}
		return r.record(ctx, e.RunID, "messaging", event.EventName(), map[string]any{
			"messageId": e.MessageID,
			"leadId":    e.LeadID,
			"reason":    e.Reason,
		})
	}))

	bus.Subscribe(ReplyReceived{}.EventName(), HandlerFunc(func(ctx context.Context, event Event) error {
		e, ok := event.(ReplyReceived)
		if !ok {
			return nil
		}
		return r.record(ctx, e.RunID, "replies", event.EventName(), map[string]any{
			"leadId":    e.LeadID,
			"intent":    e.Intent,
			"sentiment": e.Sentiment,
		})
	}))
}

func (r *DiagnosticRecorder) record(ctx context.Context, runID uuid.UUID, scope, name string, detail map[string]any) error {
	if err := r.writer.InsertDiagnosticEvent(ctx, &runID, scope, name, detail); err != nil {
		r.log.Warn("failed to record diagnostic event", "event", name, "error", err)
	}
	// Recording is best effort; never fail the handler chain.
	return nil
}
