package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"outreach_backend/internal/outreach/domain"
)

const actorMemoryColumns = `actor_id, success_count, failure_count, compat_failure_count,
	leads_accepted, leads_rejected, quality_avg, quality_samples, updated_at`

// GetActorMemories loads historical outcomes for a set of actors. Actors
// never seen before are simply absent from the result.
func (r *Repository) GetActorMemories(ctx context.Context, actorIDs []string) (map[string]domain.ActorMemory, error) {
	if len(actorIDs) == 0 {
		return map[string]domain.ActorMemory{}, nil
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+actorMemoryColumns+`
		FROM sourcing_actor_memory
		WHERE actor_id = ANY($1)`, actorIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]domain.ActorMemory, len(actorIDs))
	for rows.Next() {
		var m domain.ActorMemory
		err := rows.Scan(
			&m.ActorID, &m.SuccessCount, &m.FailureCount, &m.CompatFailureCount,
			&m.LeadsAccepted, &m.LeadsRejected, &m.QualityAvg, &m.QualitySamples, &m.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		out[m.ActorID] = m
	}
	return out, rows.Err()
}

// ActorOutcome is the result of one probe or execution against an actor.
type ActorOutcome struct {
	ActorID       string
	Success       bool
	CompatFailure bool
	LeadsAccepted int
	LeadsRejected int
	// QualityRate is the acceptance rate for this batch, folded into the
	// running mean. Negative means no quality sample for this outcome.
	QualityRate float64
}

// UpsertActorOutcome folds one outcome into the actor's memory. The quality
// average is a running mean over all sampled batches.
func (r *Repository) UpsertActorOutcome(ctx context.Context, o ActorOutcome) error {
	success, failure, compat := 0, 0, 0
	if o.Success {
		success = 1
	} else {
		failure = 1
		if o.CompatFailure {
			compat = 1
		}
	}
	qualitySample := 0
	quality := 0.0
	if o.QualityRate >= 0 {
		qualitySample = 1
		quality = o.QualityRate
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO sourcing_actor_memory (
			actor_id, success_count, failure_count, compat_failure_count,
			leads_accepted, leads_rejected, quality_avg, quality_samples
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (actor_id) DO UPDATE SET
			success_count = sourcing_actor_memory.success_count + EXCLUDED.success_count,
			failure_count = sourcing_actor_memory.failure_count + EXCLUDED.failure_count,
			compat_failure_count = sourcing_actor_memory.compat_failure_count + EXCLUDED.compat_failure_count,
			leads_accepted = sourcing_actor_memory.leads_accepted + EXCLUDED.leads_accepted,
			leads_rejected = sourcing_actor_memory.leads_rejected + EXCLUDED.leads_rejected,
			quality_avg = CASE
				WHEN EXCLUDED.quality_samples = 0 THEN sourcing_actor_memory.quality_avg
				ELSE (sourcing_actor_memory.quality_avg * sourcing_actor_memory.quality_samples + EXCLUDED.quality_avg)
					/ (sourcing_actor_memory.quality_samples + 1)
			END,
			quality_samples = sourcing_actor_memory.quality_samples + EXCLUDED.quality_samples,
			updated_at = now()`,
		o.ActorID, success, failure, compat,
		o.LeadsAccepted, o.LeadsRejected, quality, qualitySample)
	return err
}

// InsertChainDecisionParams is the audit payload of one sourcing selection.
type InsertChainDecisionParams struct {
	RunID             uuid.UUID
	Strategy          string
	Rationale         string
	Candidates        any
	Probes            any
	Selected          any
	TotalProbeCostUSD float64
}

// InsertChainDecision appends one selection audit record.
func (r *Repository) InsertChainDecision(ctx context.Context, p InsertChainDecisionParams) (uuid.UUID, error) {
	candidates, err := json.Marshal(p.Candidates)
	if err != nil {
		return uuid.Nil, err
	}
	probes, err := json.Marshal(p.Probes)
	if err != nil {
		return uuid.Nil, err
	}
	var selected []byte
	if p.Selected != nil {
		if selected, err = json.Marshal(p.Selected); err != nil {
			return uuid.Nil, err
		}
	}

	var id uuid.UUID
	err = r.pool.QueryRow(ctx, `
		INSERT INTO sourcing_chain_decisions (run_id, strategy, rationale, candidates, probes, selected, total_probe_cost_usd)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		p.RunID, p.Strategy, p.Rationale, candidates, probes, selected, p.TotalProbeCostUSD).Scan(&id)
	return id, err
}

// GetChainDecision loads the latest decision record for a run.
func (r *Repository) GetChainDecision(ctx context.Context, runID uuid.UUID) (domain.ChainDecision, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, run_id, strategy, rationale, candidates, probes, selected, total_probe_cost_usd, created_at
		FROM sourcing_chain_decisions
		WHERE run_id = $1
		ORDER BY created_at DESC
		LIMIT 1`, runID)

	var d domain.ChainDecision
	err := row.Scan(&d.ID, &d.RunID, &d.Strategy, &d.Rationale, &d.Candidates, &d.Probes, &d.Selected, &d.TotalProbeCostUSD, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ChainDecision{}, ErrNotFound
	}
	return d, err
}

// InsertDiagnosticEvent appends a debugging breadcrumb. Failures are the
// caller's to ignore; diagnostics never block the main path.
func (r *Repository) InsertDiagnosticEvent(ctx context.Context, runID *uuid.UUID, scope, name string, detail map[string]any) error {
	encoded, err := marshalNullable(detail)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO diagnostic_events (run_id, scope, name, detail)
		VALUES ($1, $2, $3, $4)`,
		runID, scope, name, encoded)
	return err
}
