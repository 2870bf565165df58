package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"outreach_backend/internal/outreach/domain"
)

type testSchedulerConfig struct {
	redisURL string
}

func (c testSchedulerConfig) GetRedisURL() string            { return c.redisURL }
func (c testSchedulerConfig) GetRedisTLSInsecure() bool      { return false }
func (c testSchedulerConfig) GetAsynqQueueName() string      { return "outreach" }
func (c testSchedulerConfig) GetAsynqConcurrency() int       { return 1 }
func (c testSchedulerConfig) GetTickInterval() time.Duration { return time.Second }
func (c testSchedulerConfig) GetTickBatchSize() int          { return 10 }

func TestEnqueueJobRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testSchedulerConfig{redisURL: "redis://" + mr.Addr()}

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()

	job := domain.Job{
		ID:      uuid.New(),
		RunID:   uuid.New(),
		JobType: domain.JobDispatchMessages,
		Status:  domain.JobRunning,
	}
	if err := client.EnqueueJob(context.Background(), job); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	opt, err := asynq.ParseRedisURI(cfg.GetRedisURL())
	if err != nil {
		t.Fatalf("ParseRedisURI: %v", err)
	}
	inspector := asynq.NewInspector(opt)
	defer inspector.Close()

	tasks, err := inspector.ListPendingTasks("outreach")
	if err != nil {
		t.Fatalf("ListPendingTasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("pending tasks = %d, want 1", len(tasks))
	}
	if tasks[0].Type != TaskDispatchMessages {
		t.Errorf("task type = %q, want %q", tasks[0].Type, TaskDispatchMessages)
	}

	payload, err := ParseOutreachJobPayload(asynq.NewTask(tasks[0].Type, tasks[0].Payload))
	if err != nil {
		t.Fatalf("ParseOutreachJobPayload: %v", err)
	}
	if payload.JobID != job.ID.String() {
		t.Errorf("payload job id = %q, want %q", payload.JobID, job.ID)
	}
}

func TestNewOutreachJobTaskUnknownType(t *testing.T) {
	_, err := NewOutreachJobTask(domain.Job{ID: uuid.New(), JobType: domain.JobType("bogus")})
	if err == nil {
		t.Fatal("expected error for unknown job type")
	}
}
