package domain

import (
	"time"

	"github.com/google/uuid"
)

// ActorMemory aggregates historical outcomes for one marketplace actor across
// all runs. QualityAvg is a running mean over QualitySamples acceptance rates.
type ActorMemory struct {
	ActorID            string
	SuccessCount       int
	FailureCount       int
	CompatFailureCount int
	LeadsAccepted      int
	LeadsRejected      int
	QualityAvg         float64
	QualitySamples     int
	UpdatedAt          time.Time
}

// Runs returns how many probe or execution attempts the memory covers.
func (m ActorMemory) Runs() int {
	return m.SuccessCount + m.FailureCount
}

// ChainDecision is the audit record of one sourcing selection: every
// candidate considered, every probe outcome, and the chain that won.
type ChainDecision struct {
	ID                uuid.UUID
	RunID             uuid.UUID
	Strategy          string
	Rationale         string
	Candidates        []byte
	Probes            []byte
	Selected          []byte
	TotalProbeCostUSD float64
	CreatedAt         time.Time
}

// DiagnosticEvent is a structured breadcrumb persisted for offline debugging
// of sourcing and dispatch decisions.
type DiagnosticEvent struct {
	ID        uuid.UUID
	RunID     *uuid.UUID
	Scope     string
	Name      string
	Detail    map[string]any
	CreatedAt time.Time
}
