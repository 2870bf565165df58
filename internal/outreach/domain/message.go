package domain

import (
	"time"

	"github.com/google/uuid"
)

// MessageStatus is the lifecycle state of one scheduled or sent touch.
// A message transitions scheduled → {sent|failed|canceled} exactly once;
// sent messages may later be marked bounced by reply ingestion.
type MessageStatus string

const (
	MessageScheduled MessageStatus = "scheduled"
	MessageSent      MessageStatus = "sent"
	MessageFailed    MessageStatus = "failed"
	MessageCanceled  MessageStatus = "canceled"
	MessageBounced   MessageStatus = "bounced"
)

// MessageSourceType distinguishes template touches from conversation turns.
type MessageSourceType string

const (
	SourceTemplate     MessageSourceType = "template"
	SourceConversation MessageSourceType = "conversation"
)

// Message is one scheduled or sent touch. Subject and body are immutable once
// the message leaves the scheduled state.
type Message struct {
	ID                uuid.UUID
	RunID             uuid.UUID
	LeadID            uuid.UUID
	Step              int
	Subject           string
	Body              string
	Status            MessageStatus
	SourceType        MessageSourceType
	SessionID         *uuid.UUID
	NodeID            *string
	ParentMessageID   *uuid.UUID
	ProviderMessageID *string
	GenerationMeta    map[string]any
	ScheduledAt       time.Time
	SentAt            *time.Time
	LastError         *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// RunAnomaly is an append-only audit record written whenever a pause
// condition fires.
type RunAnomaly struct {
	ID        uuid.UUID
	RunID     uuid.UUID
	Type      string
	Severity  string
	Threshold float64
	Observed  float64
	Details   map[string]any
	CreatedAt time.Time
}

// Reply is one inbound reply captured via webhook or IMAP sync, deduplicated
// by (run, providerMessageID).
type Reply struct {
	ID                uuid.UUID
	RunID             uuid.UUID
	LeadID            *uuid.UUID
	ProviderMessageID string
	FromAddress       string
	ToAddress         string
	Subject           string
	Body              string
	Sentiment         string
	Intent            string
	Confidence        float64
	CreatedAt         time.Time
}

// Account is the sending identity assigned to a run. Credential material
// lives in the external secret store; this record only carries references.
type Account struct {
	ID                     uuid.UUID
	BrandID                uuid.UUID
	Label                  string
	FromName               string
	FromAddress            string
	ReplyToAddress         string
	MessagingCredentialRef *string
	MarketplaceTokenRef    *string
	CreatedAt              time.Time
	UpdatedAt              time.Time
}
