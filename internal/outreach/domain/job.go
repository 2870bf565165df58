package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JobType enumerates the fixed set of job kinds driving a run forward.
type JobType string

const (
	JobSourceLeads      JobType = "source_leads"
	JobScheduleMessages JobType = "schedule_messages"
	JobDispatchMessages JobType = "dispatch_messages"
	JobSyncReplies      JobType = "sync_replies"
	JobConversationTick JobType = "conversation_tick"
	JobAnalyzeRun       JobType = "analyze_run"
)

// Valid reports whether the job type is one of the known kinds.
func (t JobType) Valid() bool {
	switch t {
	case JobSourceLeads, JobScheduleMessages, JobDispatchMessages,
		JobSyncReplies, JobConversationTick, JobAnalyzeRun:
		return true
	}
	return false
}

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is a durable, time-scheduled unit of work keyed by run. Jobs are never
// deleted; completed and failed rows remain as an audit trail.
type Job struct {
	ID           uuid.UUID
	RunID        uuid.UUID
	JobType      JobType
	Status       JobStatus
	Attempts     int
	MaxAttempts  int
	ExecuteAfter time.Time
	Payload      json.RawMessage
	LastError    *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RetryBackoff returns the delay before the next attempt of a failed job.
func RetryBackoff(attempts int) time.Duration {
	minutes := attempts * 5
	if minutes > 60 {
		minutes = 60
	}
	return time.Duration(minutes) * time.Minute
}

// Job payloads form a tagged union per JobType. Each stage variant carries its
// own typed fields and is decoded exactly once at handler entry.

// SourceLeadsPayload resumes the sourcing stage.
type SourceLeadsPayload struct {
	// Stage is empty for a fresh job, or the stage to resume from after a
	// transient failure: "plan", "probe", "execute".
	Stage          string    `json:"stage,omitempty"`
	SelectedPlanID uuid.UUID `json:"selectedPlanId,omitempty"`
}

// ScheduleMessagesPayload carries no resumption state; scheduling is
// idempotent against existing messages.
type ScheduleMessagesPayload struct{}

// DispatchMessagesPayload bounds one dispatch batch.
type DispatchMessagesPayload struct {
	BatchLimit int `json:"batchLimit,omitempty"`
}

// SyncRepliesPayload marks the IMAP high-water line.
type SyncRepliesPayload struct {
	SinceUID int `json:"sinceUid,omitempty"`
}

// ConversationTickPayload carries no state; the tick scans active sessions.
type ConversationTickPayload struct{}

// AnalyzeRunPayload carries no state; rates are recomputed from persisted rows.
type AnalyzeRunPayload struct{}

// DecodePayload decodes a job's opaque payload into the typed variant for its
// job type. Unknown job types are rejected.
func DecodePayload(job Job) (any, error) {
	raw := job.Payload
	if len(raw) == 0 {
		raw = json.RawMessage(`{}`)
	}

	decode := func(into any) (any, error) {
		if err := json.Unmarshal(raw, into); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", job.JobType, err)
		}
		return into, nil
	}

	switch job.JobType {
	case JobSourceLeads:
		return decode(&SourceLeadsPayload{})
	case JobScheduleMessages:
		return decode(&ScheduleMessagesPayload{})
	case JobDispatchMessages:
		return decode(&DispatchMessagesPayload{})
	case JobSyncReplies:
		return decode(&SyncRepliesPayload{})
	case JobConversationTick:
		return decode(&ConversationTickPayload{})
	case JobAnalyzeRun:
		return decode(&AnalyzeRunPayload{})
	}
	return nil, fmt.Errorf("unknown job type %q", job.JobType)
}
