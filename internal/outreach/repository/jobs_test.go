package repository

import (
	"context"
	"testing"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"outreach_backend/internal/outreach/domain"
)

func TestHasPendingJobCountsOnlyQueued(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := New(mock)

	runID := uuid.New()

	// The predicate must not count running rows: while a handler executes,
	// its own job row is still running, and re-arming its job type has to
	// see the queue as empty.
	mock.ExpectQuery(`status = 'queued'`).
		WithArgs(runID, string(domain.JobDispatchMessages)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	pending, err := repo.HasPendingJob(context.Background(), runID, domain.JobDispatchMessages)
	if err != nil {
		t.Fatalf("HasPendingJob: %v", err)
	}
	if pending {
		t.Error("pending = true, want false when no queued row exists")
	}

	mock.ExpectQuery(`status = 'queued'`).
		WithArgs(runID, string(domain.JobDispatchMessages)).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	pending, err = repo.HasPendingJob(context.Background(), runID, domain.JobDispatchMessages)
	if err != nil {
		t.Fatalf("HasPendingJob: %v", err)
	}
	if !pending {
		t.Error("pending = false, want true for a queued row")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestEnqueueJobRejectsUnknownType(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()
	repo := New(mock)

	_, err = repo.EnqueueJob(context.Background(), EnqueueJobParams{
		RunID:   uuid.New(),
		JobType: domain.JobType("bogus"),
	})
	if err == nil {
		t.Fatal("expected error for unknown job type")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected query issued: %v", err)
	}
}
