// Package scheduler bridges the durable Postgres job queue to asynq. A tick
// loop claims due jobs and hands each one to the asynq worker; the worker
// invokes the engine. Retry policy lives in the job store, not in asynq.
package scheduler

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"outreach_backend/internal/outreach/domain"
)

// Task type per outreach job type, so queue inspection tools show what a
// task will do without decoding payloads.
const (
	TaskSourceLeads      = "outreach:source_leads"
	TaskScheduleMessages = "outreach:schedule_messages"
	TaskDispatchMessages = "outreach:dispatch_messages"
	TaskSyncReplies      = "outreach:sync_replies"
	TaskConversationTick = "outreach:conversation_tick"
	TaskAnalyzeRun       = "outreach:analyze_run"
)

var taskTypeByJobType = map[domain.JobType]string{
	domain.JobSourceLeads:      TaskSourceLeads,
	domain.JobScheduleMessages: TaskScheduleMessages,
	domain.JobDispatchMessages: TaskDispatchMessages,
	domain.JobSyncReplies:      TaskSyncReplies,
	domain.JobConversationTick: TaskConversationTick,
	domain.JobAnalyzeRun:       TaskAnalyzeRun,
}

// OutreachJobPayload references a claimed job row. The row carries the real
// payload; the task only needs to find it again.
type OutreachJobPayload struct {
	JobID string `json:"jobId"`
}

// NewOutreachJobTask builds the asynq task for a claimed job.
func NewOutreachJobTask(job domain.Job) (*asynq.Task, error) {
	taskType, ok := taskTypeByJobType[job.JobType]
	if !ok {
		return nil, fmt.Errorf("no task type for job type %q", job.JobType)
	}
	data, err := json.Marshal(OutreachJobPayload{JobID: job.ID.String()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, data), nil
}

// ParseOutreachJobPayload decodes the job reference from a task.
func ParseOutreachJobPayload(task *asynq.Task) (OutreachJobPayload, error) {
	var payload OutreachJobPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return OutreachJobPayload{}, err
	}
	return payload, nil
}
