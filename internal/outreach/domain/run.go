// Package domain holds the outreach run, lead, message, and job state
// machines. It is pure: no I/O, no persistence, no external calls.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of an OutreachRun.
type RunStatus string

const (
	RunQueued          RunStatus = "queued"
	RunSourcing        RunStatus = "sourcing"
	RunScheduled       RunStatus = "scheduled"
	RunSending         RunStatus = "sending"
	RunMonitoring      RunStatus = "monitoring"
	RunPaused          RunStatus = "paused"
	RunCompleted       RunStatus = "completed"
	RunCanceled        RunStatus = "canceled"
	RunFailed          RunStatus = "failed"
	RunPreflightFailed RunStatus = "preflight_failed"
)

// OpenRunStatuses are the states in which a run still owns its experiment.
// At most one run per experiment may be in any of these states.
var OpenRunStatuses = []RunStatus{
	RunQueued, RunSourcing, RunScheduled, RunSending, RunMonitoring, RunPaused,
}

// IsOpen reports whether the status counts against the one-open-run invariant.
func (s RunStatus) IsOpen() bool {
	for _, open := range OpenRunStatuses {
		if s == open {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the run can no longer make progress.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunCompleted, RunCanceled, RunFailed, RunPreflightFailed:
		return true
	}
	return false
}

var runTransitions = map[RunStatus][]RunStatus{
	RunQueued:     {RunSourcing, RunFailed, RunCanceled},
	RunSourcing:   {RunScheduled, RunFailed, RunCanceled},
	RunScheduled:  {RunSending, RunMonitoring, RunFailed, RunCanceled, RunPaused},
	RunSending:    {RunSending, RunMonitoring, RunFailed, RunCanceled, RunPaused},
	RunMonitoring: {RunSending, RunCompleted, RunPaused, RunFailed, RunCanceled},
	RunPaused:     {RunSending, RunMonitoring, RunCanceled, RunFailed},
}

// CanTransition reports whether a run may move from one status to another.
func CanTransition(from, to RunStatus) bool {
	for _, allowed := range runTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// RunMetrics are the running counters of an outreach run. Mutated only
// through ApplyMetricsDelta so concurrent handlers never lose updates.
type RunMetrics struct {
	Sourced   int `json:"sourced"`
	Scheduled int `json:"scheduled"`
	Sent      int `json:"sent"`
	Bounced   int `json:"bounced"`
	Failed    int `json:"failed"`
	Replies   int `json:"replies"`
	Positive  int `json:"positive"`
	Negative  int `json:"negative"`
}

// MetricsDelta is an additive change to RunMetrics.
type MetricsDelta struct {
	Sourced   int
	Scheduled int
	Sent      int
	Bounced   int
	Failed    int
	Replies   int
	Positive  int
	Negative  int
}

// ApplyMetricsDelta returns metrics with the delta added.
func ApplyMetricsDelta(m RunMetrics, d MetricsDelta) RunMetrics {
	m.Sourced += d.Sourced
	m.Scheduled += d.Scheduled
	m.Sent += d.Sent
	m.Bounced += d.Bounced
	m.Failed += d.Failed
	m.Replies += d.Replies
	m.Positive += d.Positive
	m.Negative += d.Negative
	return m
}

// Run is one execution attempt of an experiment's outreach, from sourcing
// through completion. The sole mutable aggregate per experiment execution.
type Run struct {
	ID                   uuid.UUID
	BrandID              uuid.UUID
	CampaignID           uuid.UUID
	ExperimentID         uuid.UUID
	HypothesisID         *uuid.UUID
	AccountID            *uuid.UUID
	Status               RunStatus
	DailyCap             int
	HourlyCap            int
	MinSpacingMinutes    int
	Timezone             string
	TargetAudience       string
	Metrics              RunMetrics
	LastError            *string
	Hint                 *string
	Debug                map[string]any
	PauseReason          *string
	CompletedAt          *time.Time
	ExternalRef          *string
	SourcingTraceSummary map[string]any
	CreatedAt            time.Time
	UpdatedAt            time.Time
}
