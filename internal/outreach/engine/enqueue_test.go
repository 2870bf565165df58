package engine

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/platform/logger"
)

func newMockedEngine(t *testing.T) (*Engine, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	return New(Config{Repo: repository.New(mock), Log: logger.New("development")}), mock
}

// A handler re-arming its own job type runs while its own row is still
// marked running. That row must not block the follow-up insert, or the
// dispatch chain dies after one pass.
func TestEnqueueOnceArmsFollowUpDuringOwnExecution(t *testing.T) {
	eng, mock := newMockedEngine(t)

	runID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery(`status = 'queued'`).
		WithArgs(runID, string(domain.JobDispatchMessages)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery(`INSERT INTO outreach_jobs`).
		WithArgs(runID, string(domain.JobDispatchMessages), pgxmock.AnyArg(), 3, []byte(`{}`)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "run_id", "job_type", "status", "attempts", "max_attempts",
			"execute_after", "payload", "last_error", "created_at", "updated_at",
		}).AddRow(uuid.NewString(), runID.String(), "dispatch_messages", "queued", 0, 3, now, []byte(`{}`), nil, now, now))

	if err := eng.enqueueOnce(context.Background(), runID, domain.JobDispatchMessages, now, nil); err != nil {
		t.Fatalf("enqueueOnce: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("follow-up job was not inserted: %v", err)
	}
}

func TestEnqueueOnceSkipsWhenAlreadyQueued(t *testing.T) {
	eng, mock := newMockedEngine(t)

	runID := uuid.New()

	mock.ExpectQuery(`status = 'queued'`).
		WithArgs(runID, string(domain.JobAnalyzeRun)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	if err := eng.enqueueOnce(context.Background(), runID, domain.JobAnalyzeRun, time.Now(), nil); err != nil {
		t.Fatalf("enqueueOnce: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected insert for an already queued job type: %v", err)
	}
}
