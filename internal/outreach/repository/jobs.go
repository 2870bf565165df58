package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"outreach_backend/internal/outreach/domain"
)

const jobColumns = `id, run_id, job_type, status, attempts, max_attempts,
	execute_after, payload, last_error, created_at, updated_at`

// EnqueueJobParams describes a new unit of work.
type EnqueueJobParams struct {
	RunID        uuid.UUID
	JobType      domain.JobType
	ExecuteAfter time.Time
	MaxAttempts  int
	Payload      any
}

// EnqueueJob inserts a queued job. Payload may be nil.
func (r *Repository) EnqueueJob(ctx context.Context, p EnqueueJobParams) (domain.Job, error) {
	if !p.JobType.Valid() {
		return domain.Job{}, fmt.Errorf("unknown job type %q", p.JobType)
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 3
	}
	if p.ExecuteAfter.IsZero() {
		p.ExecuteAfter = time.Now().UTC()
	}

	payload := []byte(`{}`)
	if p.Payload != nil {
		encoded, err := json.Marshal(p.Payload)
		if err != nil {
			return domain.Job{}, fmt.Errorf("encode job payload: %w", err)
		}
		payload = encoded
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO outreach_jobs (run_id, job_type, execute_after, max_attempts, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+jobColumns,
		p.RunID, string(p.JobType), p.ExecuteAfter, p.MaxAttempts, payload)
	return scanJob(row)
}

// GetJob fetches one job by id.
func (r *Repository) GetJob(ctx context.Context, id uuid.UUID) (domain.Job, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM outreach_jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Job{}, ErrNotFound
	}
	return job, err
}

// ClaimDueJobs atomically claims up to limit due queued jobs by moving them
// to running, ordered by execute_after. SKIP LOCKED keeps concurrent tick
// processes from claiming the same job twice.
func (r *Repository) ClaimDueJobs(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit < 1 {
		limit = 25
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `WITH cte AS (
		SELECT id
		FROM outreach_jobs
		WHERE status = 'queued' AND execute_after <= now()
		ORDER BY execute_after ASC
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	)
	UPDATE outreach_jobs j
	SET status = 'running', attempts = attempts + 1, updated_at = now()
	FROM cte
	WHERE j.id = cte.id
	RETURNING `+prefixColumns("j", jobColumns), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return jobs, nil
}

// MarkJobCompleted retires a running job.
func (r *Repository) MarkJobCompleted(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE outreach_jobs
		SET status = 'completed', last_error = NULL, updated_at = now()
		WHERE id = $1 AND status = 'running'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleTransition
	}
	return nil
}

// RequeueJobForRetry puts a running job back in the queue with a backoff
// delay. The caller decides whether attempts are exhausted first.
func (r *Repository) RequeueJobForRetry(ctx context.Context, id uuid.UUID, lastError string, executeAfter time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE outreach_jobs
		SET status = 'queued', last_error = $2, execute_after = $3, updated_at = now()
		WHERE id = $1 AND status = 'running'`, id, lastError, executeAfter)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleTransition
	}
	return nil
}

// MarkJobFailed terminally fails a job after its attempts are exhausted.
func (r *Repository) MarkJobFailed(ctx context.Context, id uuid.UUID, lastError string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE outreach_jobs
		SET status = 'failed', last_error = $2, updated_at = now()
		WHERE id = $1`, id, lastError)
	return err
}

// UpdateJobPayload persists stage-resumption state mid-handler.
func (r *Repository) UpdateJobPayload(ctx context.Context, id uuid.UUID, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode job payload: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE outreach_jobs SET payload = $2, updated_at = now() WHERE id = $1`,
		id, encoded)
	return err
}

// RequeueStaleRunningJobs returns jobs stuck in running longer than the
// given age to the queue. Covers worker crashes mid-handler; handlers are
// idempotent so re-running is safe.
func (r *Repository) RequeueStaleRunningJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE outreach_jobs
		SET status = 'queued', last_error = 'requeued after stale running state', updated_at = now()
		WHERE status = 'running' AND updated_at < now() - $1::interval`,
		fmt.Sprintf("%d seconds", int(olderThan.Seconds())))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// HasPendingJob reports whether the run already has a queued job of the
// given type, so handlers do not double-arm follow-ups. Running jobs do not
// count: a handler re-arming its own type is still the running row, and it
// must be able to insert its successor before it completes.
func (r *Repository) HasPendingJob(ctx context.Context, runID uuid.UUID, jobType domain.JobType) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM outreach_jobs
			WHERE run_id = $1 AND job_type = $2 AND status = 'queued'
		)`, runID, string(jobType)).Scan(&exists)
	return exists, err
}

func scanJob(row pgx.Row) (domain.Job, error) {
	var job domain.Job
	var jobType, status string
	err := row.Scan(
		&job.ID, &job.RunID, &jobType, &status, &job.Attempts, &job.MaxAttempts,
		&job.ExecuteAfter, &job.Payload, &job.LastError, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return domain.Job{}, err
	}
	job.JobType = domain.JobType(jobType)
	job.Status = domain.JobStatus(status)
	return job, nil
}

// prefixColumns qualifies a comma-separated column list with a table alias.
func prefixColumns(alias, columns string) string {
	out := ""
	for i, col := range splitColumns(columns) {
		if i > 0 {
			out += ", "
		}
		out += alias + "." + col
	}
	return out
}

func splitColumns(columns string) []string {
	var out []string
	field := ""
	for _, ch := range columns {
		switch ch {
		case ',':
			if field != "" {
				out = append(out, field)
				field = ""
			}
		case ' ', '\n', '\t':
		default:
			field += string(ch)
		}
	}
	if field != "" {
		out = append(out, field)
	}
	return out
}
