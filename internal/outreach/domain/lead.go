package domain

import (
	"time"

	"github.com/google/uuid"
)

// LeadStatus is the lifecycle state of a prospect within one run.
type LeadStatus string

const (
	LeadSourced      LeadStatus = "sourced"
	LeadScheduled    LeadStatus = "scheduled"
	LeadSent         LeadStatus = "sent"
	LeadReplied      LeadStatus = "replied"
	LeadBounced      LeadStatus = "bounced"
	LeadUnsubscribed LeadStatus = "unsubscribed"
	LeadSuppressed   LeadStatus = "suppressed"
)

// Sendable reports whether a lead in this status may still receive messages.
func (s LeadStatus) Sendable() bool {
	switch s {
	case LeadUnsubscribed, LeadBounced, LeadSuppressed:
		return false
	}
	return true
}

// Lead is a per-run prospect. Email is normalized and lower-cased at creation
// and immutable afterwards.
type Lead struct {
	ID         uuid.UUID
	RunID      uuid.UUID
	Email      string
	Name       string
	Company    string
	Title      string
	Domain     string
	SourceURL  string
	Status     LeadStatus
	Confidence float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
