package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"outreach_backend/internal/outreach/domain"
)

const runColumns = `id, brand_id, campaign_id, experiment_id, hypothesis_id, account_id,
	status, daily_cap, hourly_cap, min_spacing_minutes, timezone, target_audience,
	metrics, last_error, hint, debug, pause_reason, completed_at, external_ref,
	sourcing_trace_summary, created_at, updated_at`

// CreateRunParams carries the caller-supplied fields of a new run.
type CreateRunParams struct {
	BrandID           uuid.UUID
	CampaignID        uuid.UUID
	ExperimentID      uuid.UUID
	HypothesisID      *uuid.UUID
	AccountID         *uuid.UUID
	Status            domain.RunStatus
	DailyCap          int
	HourlyCap         int
	MinSpacingMinutes int
	Timezone          string
	TargetAudience    string
	LastError         *string
	Hint              *string
	Debug             map[string]any
}

// CreateRun inserts a new run. The partial unique index on open statuses
// enforces the one-open-run-per-experiment invariant at the database level;
// a violation surfaces as a conflict error.
func (r *Repository) CreateRun(ctx context.Context, p CreateRunParams) (domain.Run, error) {
	metrics, _ := json.Marshal(domain.RunMetrics{})
	debug, err := marshalNullable(p.Debug)
	if err != nil {
		return domain.Run{}, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO outreach_runs (brand_id, campaign_id, experiment_id, hypothesis_id,
			account_id, status, daily_cap, hourly_cap, min_spacing_minutes, timezone,
			target_audience, metrics, last_error, hint, debug)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING `+runColumns,
		p.BrandID, p.CampaignID, p.ExperimentID, p.HypothesisID, p.AccountID,
		string(p.Status), p.DailyCap, p.HourlyCap, p.MinSpacingMinutes, p.Timezone,
		p.TargetAudience, metrics, p.LastError, p.Hint, debug,
	)
	return scanRun(row)
}

// GetRun fetches one run by id.
func (r *Repository) GetRun(ctx context.Context, id uuid.UUID) (domain.Run, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM outreach_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Run{}, ErrNotFound
	}
	return run, err
}

// FindOpenRunByExperiment returns the experiment's open run, if any.
func (r *Repository) FindOpenRunByExperiment(ctx context.Context, experimentID uuid.UUID) (domain.Run, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+runColumns+` FROM outreach_runs
		WHERE experiment_id = $1
		  AND status IN ('queued', 'sourcing', 'scheduled', 'sending', 'monitoring', 'paused')`,
		experimentID)
	run, err := scanRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Run{}, ErrNotFound
	}
	return run, err
}

// TransitionRunStatus conditionally moves a run from one status to another,
// optionally recording an error or pause reason. Returns ErrStaleTransition
// when the run was not in the expected source status.
func (r *Repository) TransitionRunStatus(ctx context.Context, id uuid.UUID, from, to domain.RunStatus, opts ...RunUpdate) error {
	set := "status = $3, updated_at = now()"
	args := []any{id, string(from), string(to)}

	for _, opt := range opts {
		var err error
		set, args, err = opt(set, args)
		if err != nil {
			return err
		}
	}

	if to == domain.RunCompleted {
		set += ", completed_at = now()"
	}

	tag, err := r.pool.Exec(ctx,
		fmt.Sprintf(`UPDATE outreach_runs SET %s WHERE id = $1 AND status = $2`, set),
		args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleTransition
	}
	return nil
}

// RunUpdate appends an extra SET clause to a status transition.
type RunUpdate func(set string, args []any) (string, []any, error)

// WithLastError records the failure message on the run.
func WithLastError(message string) RunUpdate {
	return func(set string, args []any) (string, []any, error) {
		args = append(args, message)
		return fmt.Sprintf("%s, last_error = $%d", set, len(args)), args, nil
	}
}

// WithHint records an actionable hint next to the failure.
func WithHint(hint string) RunUpdate {
	return func(set string, args []any) (string, []any, error) {
		args = append(args, hint)
		return fmt.Sprintf("%s, hint = $%d", set, len(args)), args, nil
	}
}

// WithDebug attaches the self-diagnosis payload.
func WithDebug(debug map[string]any) RunUpdate {
	return func(set string, args []any) (string, []any, error) {
		encoded, err := marshalNullable(debug)
		if err != nil {
			return "", nil, err
		}
		args = append(args, encoded)
		return fmt.Sprintf("%s, debug = $%d", set, len(args)), args, nil
	}
}

// WithPauseReason records why the run was paused.
func WithPauseReason(reason string) RunUpdate {
	return func(set string, args []any) (string, []any, error) {
		args = append(args, reason)
		return fmt.Sprintf("%s, pause_reason = $%d", set, len(args)), args, nil
	}
}

// WithSourcingTraceSummary attaches the sourcing decision summary.
func WithSourcingTraceSummary(summary map[string]any) RunUpdate {
	return func(set string, args []any) (string, []any, error) {
		encoded, err := marshalNullable(summary)
		if err != nil {
			return "", nil, err
		}
		args = append(args, encoded)
		return fmt.Sprintf("%s, sourcing_trace_summary = $%d", set, len(args)), args, nil
	}
}

// FailRun moves a run to failed from whatever open status it is in.
func (r *Repository) FailRun(ctx context.Context, id uuid.UUID, message string, debug map[string]any) error {
	encoded, err := marshalNullable(debug)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		UPDATE outreach_runs
		SET status = 'failed', last_error = $2, debug = COALESCE($3, debug), updated_at = now()
		WHERE id = $1
		  AND status IN ('queued', 'sourcing', 'scheduled', 'sending', 'monitoring', 'paused')`,
		id, message, encoded)
	return err
}

// ApplyMetricsDelta atomically folds a delta into the run's metrics using a
// row lock, so concurrent handlers never lose counts.
func (r *Repository) ApplyMetricsDelta(ctx context.Context, id uuid.UUID, delta domain.MetricsDelta) (domain.RunMetrics, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return domain.RunMetrics{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var raw []byte
	if err := tx.QueryRow(ctx,
		`SELECT metrics FROM outreach_runs WHERE id = $1 FOR UPDATE`, id,
	).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.RunMetrics{}, ErrNotFound
		}
		return domain.RunMetrics{}, err
	}

	var metrics domain.RunMetrics
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &metrics); err != nil {
			return domain.RunMetrics{}, fmt.Errorf("decode run metrics: %w", err)
		}
	}

	metrics = domain.ApplyMetricsDelta(metrics, delta)
	encoded, err := json.Marshal(metrics)
	if err != nil {
		return domain.RunMetrics{}, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE outreach_runs SET metrics = $2, updated_at = now() WHERE id = $1`,
		id, encoded); err != nil {
		return domain.RunMetrics{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.RunMetrics{}, err
	}
	return metrics, nil
}

func scanRun(row pgx.Row) (domain.Run, error) {
	var run domain.Run
	var status string
	var metricsRaw, debugRaw, traceRaw []byte
	err := row.Scan(
		&run.ID, &run.BrandID, &run.CampaignID, &run.ExperimentID, &run.HypothesisID,
		&run.AccountID, &status, &run.DailyCap, &run.HourlyCap, &run.MinSpacingMinutes,
		&run.Timezone, &run.TargetAudience, &metricsRaw, &run.LastError, &run.Hint,
		&debugRaw, &run.PauseReason, &run.CompletedAt, &run.ExternalRef, &traceRaw,
		&run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return domain.Run{}, err
	}
	run.Status = domain.RunStatus(status)
	if len(metricsRaw) > 0 {
		if err := json.Unmarshal(metricsRaw, &run.Metrics); err != nil {
			return domain.Run{}, fmt.Errorf("decode run metrics: %w", err)
		}
	}
	if len(debugRaw) > 0 {
		_ = json.Unmarshal(debugRaw, &run.Debug)
	}
	if len(traceRaw) > 0 {
		_ = json.Unmarshal(traceRaw, &run.SourcingTraceSummary)
	}
	return run, nil
}

func marshalNullable(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	encoded, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode json field: %w", err)
	}
	return encoded, nil
}
