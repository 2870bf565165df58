package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"outreach_backend/internal/outreach/domain"
)

const anomalyColumns = `id, run_id, anomaly_type, severity, threshold, observed, details, created_at`

// InsertAnomalyParams records one detector finding.
type InsertAnomalyParams struct {
	RunID     uuid.UUID
	Type      string
	Severity  string
	Threshold float64
	Observed  float64
	Details   map[string]any
}

// InsertAnomaly appends an anomaly record. The table is append-only; pausing
// the run is a separate conditional transition on the run itself.
func (r *Repository) InsertAnomaly(ctx context.Context, p InsertAnomalyParams) (domain.RunAnomaly, error) {
	details, err := marshalNullable(p.Details)
	if err != nil {
		return domain.RunAnomaly{}, err
	}
	row := r.pool.QueryRow(ctx, `
		INSERT INTO run_anomalies (run_id, anomaly_type, severity, threshold, observed, details)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+anomalyColumns,
		p.RunID, p.Type, p.Severity, p.Threshold, p.Observed, details)
	return scanAnomaly(row)
}

// ListAnomalies returns the run's anomaly history, newest first.
func (r *Repository) ListAnomalies(ctx context.Context, runID uuid.UUID) ([]domain.RunAnomaly, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+anomalyColumns+`
		FROM run_anomalies
		WHERE run_id = $1
		ORDER BY created_at DESC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RunAnomaly
	for rows.Next() {
		a, err := scanAnomaly(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAnomaly(row pgx.Row) (domain.RunAnomaly, error) {
	var (
		a       domain.RunAnomaly
		details []byte
	)
	err := row.Scan(&a.ID, &a.RunID, &a.Type, &a.Severity, &a.Threshold, &a.Observed, &details, &a.CreatedAt)
	if err != nil {
		return domain.RunAnomaly{}, err
	}
	if len(details) > 0 {
		if err := json.Unmarshal(details, &a.Details); err != nil {
			return domain.RunAnomaly{}, err
		}
	}
	return a, nil
}
