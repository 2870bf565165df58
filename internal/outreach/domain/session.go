package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionState is the lifecycle of one lead's walk through a conversation map.
type SessionState string

const (
	SessionActive        SessionState = "active"
	SessionWaitingManual SessionState = "waiting_manual"
	SessionCompleted     SessionState = "completed"
	SessionFailed        SessionState = "failed"
)

// Terminal reports whether the session can no longer advance.
func (s SessionState) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed
}

// Session pins one lead to one conversation map revision for the lifetime of
// the exchange. A run has at most one session per lead.
type Session struct {
	ID                uuid.UUID
	RunID             uuid.UUID
	LeadID            uuid.UUID
	MapID             uuid.UUID
	MapRevision       int
	StartNodeID       string
	CurrentNodeID     string
	State             SessionState
	TurnCount         int
	LastIntent        *string
	LastConfidence    *float64
	LastNodeEnteredAt time.Time
	EndedReason       *string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// MapStatus is the publication state of a conversation map revision.
type MapStatus string

const (
	MapDraft     MapStatus = "draft"
	MapPublished MapStatus = "published"
	MapArchived  MapStatus = "archived"
)

// ConversationMap is one immutable revision of a campaign's flow graph. The
// graph payload is owned by the conversation package; the domain only carries
// it opaquely.
type ConversationMap struct {
	ID         uuid.UUID
	CampaignID uuid.UUID
	Revision   int
	Status     MapStatus
	Graph      []byte
	CreatedAt  time.Time
}
