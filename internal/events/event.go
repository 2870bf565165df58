// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"outreach_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Run Lifecycle Events
// =============================================================================

// RunLaunched is published when a run passes preflight and is queued.
type RunLaunched struct {
	BaseEvent
	RunID        uuid.UUID `json:"runId"`
	ExperimentID uuid.UUID `json:"experimentId"`
	CampaignID   uuid.UUID `json:"campaignId"`
}

func (e RunLaunched) EventName() string { return "outreach.run.launched" }

// RunStatusChanged is published on every run state transition.
type RunStatusChanged struct {
	BaseEvent
	RunID      uuid.UUID `json:"runId"`
	FromStatus string    `json:"fromStatus"`
	ToStatus   string    `json:"toStatus"`
	Reason     string    `json:"reason,omitempty"`
}

func (e RunStatusChanged) EventName() string { return "outreach.run.status_changed" }

// RunPaused is published when the anomaly detector pauses a run.
type RunPaused struct {
	BaseEvent
	RunID       uuid.UUID `json:"runId"`
	AnomalyType string    `json:"anomalyType"`
	Severity    string    `json:"severity"`
	Observed    float64   `json:"observed"`
	Threshold   float64   `json:"threshold"`
}

func (e RunPaused) EventName() string { return "outreach.run.paused" }

// =============================================================================
// Sourcing Events
// =============================================================================

// LeadsSourced is published when full-scale execution persists accepted leads.
type LeadsSourced struct {
	BaseEvent
	RunID    uuid.UUID `json:"runId"`
	Accepted int       `json:"accepted"`
	Rejected int       `json:"rejected"`
	Strategy string    `json:"strategy"`
}

func (e LeadsSourced) EventName() string { return "outreach.sourcing.leads_sourced" }

// =============================================================================
// Messaging Events
// =============================================================================

// MessageSent is published after a successful delivery handoff.
type MessageSent struct {
	BaseEvent
	RunID             uuid.UUID `json:"runId"`
	MessageID         uuid.UUID `json:"messageId"`
	LeadID            uuid.UUID `json:"leadId"`
	ProviderMessageID string    `json:"providerMessageId"`
}

func (e MessageSent) EventName() string { return "outreach.message.sent" }

// MessageDeliveryFailed is published when the provider rejects a send.
type MessageDeliveryFailed struct {
	BaseEvent
	RunID     uuid.UUID `json:"runId"`
	MessageID uuid.UUID `json:"messageId"`
	LeadID    uuid.UUID `json:"leadId"`
	Reason    string    `json:"reason"`
}

func (e MessageDeliveryFailed) EventName() string { return "outreach.message.delivery_failed" }

// ReplyReceived is published once per deduplicated inbound reply.
type ReplyReceived struct {
	BaseEvent
	RunID      uuid.UUID `json:"runId"`
	LeadID     uuid.UUID `json:"leadId"`
	Intent     string    `json:"intent"`
	Confidence float64   `json:"confidence"`
	Sentiment  string    `json:"sentiment"`
}

func (e ReplyReceived) EventName() string { return "outreach.reply.received" }

// =============================================================================
// Conversation Events
// =============================================================================

// GenerationRejected is published when message generation fails for a
// session turn; the session itself is left unchanged.
type GenerationRejected struct {
	BaseEvent
	RunID     uuid.UUID `json:"runId"`
	SessionID uuid.UUID `json:"sessionId"`
	NodeID    string    `json:"nodeId"`
	Reason    string    `json:"reason"`
}

func (e GenerationRejected) EventName() string { return "outreach.conversation.generation_rejected" }

// DraftCreated is published when a manual node synthesizes a reply draft
// for human approval.
type DraftCreated struct {
	BaseEvent
	RunID     uuid.UUID `json:"runId"`
	SessionID uuid.UUID `json:"sessionId"`
	LeadID    uuid.UUID `json:"leadId"`
	NodeID    string    `json:"nodeId"`
}

func (e DraftCreated) EventName() string { return "outreach.conversation.draft_created" }
