package events

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"outreach_backend/platform/events"
	"outreach_backend/platform/logger"
)

type recordedDiagnostic struct {
	runID  *uuid.UUID
	scope  string
	name   string
	detail map[string]any
}

type fakeDiagnosticWriter struct {
	records []recordedDiagnostic
	err     error
}

func (f *fakeDiagnosticWriter) InsertDiagnosticEvent(_ context.Context, runID *uuid.UUID, scope, name string, detail map[string]any) error {
	f.records = append(f.records, recordedDiagnostic{runID: runID, scope: scope, name: name, detail: detail})
	return f.err
}

func TestDiagnosticRecorderPersistsLifecycleEvents(t *testing.T) {
	writer := &fakeDiagnosticWriter{}
	bus := events.NewInMemoryBus(logger.New("development"))
	NewDiagnosticRecorder(writer, logger.New("development")).Register(bus)

	runID := uuid.New()
	if err := bus.PublishSync(context.Background(), RunStatusChanged{
		BaseEvent:  NewBaseEvent(),
		RunID:      runID,
		FromStatus: "sending",
		ToStatus:   "paused",
		Reason:     "bounce rate exceeded threshold",
	}); err != nil {
		t.Fatalf("PublishSync: %v", err)
	}

	if len(writer.records) != 1 {
		t.Fatalf("recorded %d diagnostics, want 1", len(writer.records))
	}
	got := writer.records[0]
	if got.scope != "lifecycle" {
		t.Errorf("scope = %q, want lifecycle", got.scope)
	}
	if got.runID == nil || *got.runID != runID {
		t.Errorf("run id = %v, want %s", got.runID, runID)
	}
	if got.detail["reason"] != "bounce rate exceeded threshold" {
		t.Errorf("detail reason = %v", got.detail["reason"])
	}
	if got.detail["from"] != "sending" || got.detail["to"] != "paused" {
		t.Errorf("detail transition = %v -> %v", got.detail["from"], got.detail["to"])
	}
}

func TestDiagnosticRecorderScopes(t *testing.T) {
	writer := &fakeDiagnosticWriter{}
	bus := events.NewInMemoryBus(logger.New("development"))
	NewDiagnosticRecorder(writer, logger.New("development")).Register(bus)

	ctx := context.Background()
	runID := uuid.New()
	published := []struct {
		event Event
		scope string
	}{
		{RunLaunched{BaseEvent: NewBaseEvent(), RunID: runID, ExperimentID: uuid.New(), CampaignID: uuid.New()}, "lifecycle"},
		{RunPaused{BaseEvent: NewBaseEvent(), RunID: runID, AnomalyType: "bounce_rate", Severity: "critical"}, "anomaly"},
		{LeadsSourced{BaseEvent: NewBaseEvent(), RunID: runID, Accepted: 20, Strategy: "single"}, "sourcing"},
		{MessageDeliveryFailed{BaseEvent: NewBaseEvent(), RunID: runID, MessageID: uuid.New(), LeadID: uuid.New(), Reason: "hard bounce"}, "messaging"},
		{ReplyReceived{BaseEvent: NewBaseEvent(), RunID: runID, LeadID: uuid.New(), Intent: "interested", Sentiment: "positive"}, "replies"},
	}
	for _, p := range published {
		if err := bus.PublishSync(ctx, p.event); err != nil {
			t.Fatalf("PublishSync(%s): %v", p.event.EventName(), err)
		}
	}

	if len(writer.records) != len(published) {
		t.Fatalf("recorded %d diagnostics, want %d", len(writer.records), len(published))
	}
	for i, p := range published {
		if writer.records[i].scope != p.scope {
			t.Errorf("event %s scope = %q, want %q", p.event.EventName(), writer.records[i].scope, p.scope)
		}
		if writer.records[i].name != p.event.EventName() {
			t.Errorf("record name = %q, want %q", writer.records[i].name, p.event.EventName())
		}
	}
}

func TestDiagnosticRecorderSwallowsWriteFailures(t *testing.T) {
	writer := &fakeDiagnosticWriter{err: errors.New("connection refused")}
	bus := events.NewInMemoryBus(logger.New("development"))
	NewDiagnosticRecorder(writer, logger.New("development")).Register(bus)

	err := bus.PublishSync(context.Background(), RunLaunched{
		BaseEvent: NewBaseEvent(), RunID: uuid.New(), ExperimentID: uuid.New(), CampaignID: uuid.New(),
	})
	if err != nil {
		t.Fatalf("write failure leaked out of the handler: %v", err)
	}
}
