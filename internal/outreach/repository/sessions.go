package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"outreach_backend/internal/outreach/domain"
)

const sessionColumns = `id, run_id, lead_id, map_id, map_revision, start_node_id,
	current_node_id, state, turn_count, last_intent, last_confidence,
	last_node_entered_at, ended_reason, created_at, updated_at`

// CreateSessionParams opens a conversation session for a lead.
type CreateSessionParams struct {
	RunID       uuid.UUID
	LeadID      uuid.UUID
	MapID       uuid.UUID
	MapRevision int
	StartNodeID string
}

// CreateSession pins the lead to a map revision. A second session for the
// same (run, lead) pair returns the existing one unchanged.
func (r *Repository) CreateSession(ctx context.Context, p CreateSessionParams) (domain.Session, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO conversation_sessions (run_id, lead_id, map_id, map_revision, start_node_id, current_node_id)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (run_id, lead_id) DO NOTHING
		RETURNING `+sessionColumns,
		p.RunID, p.LeadID, p.MapID, p.MapRevision, p.StartNodeID)

	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.FindSessionByLead(ctx, p.RunID, p.LeadID)
	}
	return sess, err
}

// GetSession loads one session by id.
func (r *Repository) GetSession(ctx context.Context, id uuid.UUID) (domain.Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM conversation_sessions WHERE id = $1`, id)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, ErrNotFound
	}
	return sess, err
}

// FindSessionByLead resolves the session for a lead within a run.
func (r *Repository) FindSessionByLead(ctx context.Context, runID, leadID uuid.UUID) (domain.Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM conversation_sessions WHERE run_id = $1 AND lead_id = $2`,
		runID, leadID)
	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, ErrNotFound
	}
	return sess, err
}

// ListOpenSessions returns sessions that may still advance, for the
// conversation tick to evaluate timer edges.
func (r *Repository) ListOpenSessions(ctx context.Context, runID uuid.UUID, limit int) ([]domain.Session, error) {
	if limit < 1 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM conversation_sessions
		WHERE run_id = $1 AND state IN ('active', 'waiting_manual')
		ORDER BY last_node_entered_at ASC
		LIMIT $2`,
		runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// AdvanceSessionParams moves a session to a new node. FromNodeID and
// FromTurnCount make the write conditional so two workers cannot both
// advance the same turn.
type AdvanceSessionParams struct {
	SessionID     uuid.UUID
	FromNodeID    string
	FromTurnCount int
	ToNodeID      string
	State         domain.SessionState
	Intent        *string
	Confidence    *float64
	EndedReason   *string
}

// AdvanceSession applies one transition. Returns ErrStaleTransition when the
// session already moved past the expected node.
func (r *Repository) AdvanceSession(ctx context.Context, p AdvanceSessionParams) (domain.Session, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE conversation_sessions
		SET current_node_id = $4, state = $5, turn_count = turn_count + 1,
			last_intent = COALESCE($6, last_intent),
			last_confidence = COALESCE($7, last_confidence),
			ended_reason = COALESCE($8, ended_reason),
			last_node_entered_at = now(), updated_at = now()
		WHERE id = $1 AND current_node_id = $2 AND turn_count = $3
			AND state IN ('active', 'waiting_manual')
		RETURNING `+sessionColumns,
		p.SessionID, p.FromNodeID, p.FromTurnCount, p.ToNodeID, string(p.State),
		p.Intent, p.Confidence, p.EndedReason)

	sess, err := scanSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Session{}, ErrStaleTransition
	}
	return sess, err
}

// EndSession moves an open session to a terminal state with a reason.
func (r *Repository) EndSession(ctx context.Context, id uuid.UUID, state domain.SessionState, reason string) error {
	if !state.Terminal() {
		return errors.New("end state must be terminal")
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE conversation_sessions
		SET state = $2, ended_reason = $3, updated_at = now()
		WHERE id = $1 AND state IN ('active', 'waiting_manual')`,
		id, string(state), reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleTransition
	}
	return nil
}

// MarkSessionWaitingManual parks the session until a human acts on its
// draft. Timer edges do not advance a parked session; a classified reply
// still can.
func (r *Repository) MarkSessionWaitingManual(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE conversation_sessions
		SET state = 'waiting_manual', updated_at = now()
		WHERE id = $1 AND state = 'active'`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleTransition
	}
	return nil
}

// CountOpenSessions counts sessions still awaiting progress for a run.
func (r *Repository) CountOpenSessions(ctx context.Context, runID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM conversation_sessions
		WHERE run_id = $1 AND state IN ('active', 'waiting_manual')`,
		runID).Scan(&n)
	return n, err
}

func scanSession(row pgx.Row) (domain.Session, error) {
	var s domain.Session
	err := row.Scan(
		&s.ID, &s.RunID, &s.LeadID, &s.MapID, &s.MapRevision, &s.StartNodeID,
		&s.CurrentNodeID, &s.State, &s.TurnCount, &s.LastIntent, &s.LastConfidence,
		&s.LastNodeEnteredAt, &s.EndedReason, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return domain.Session{}, err
	}
	return s, nil
}

// SessionIdleSince reports whether the session has sat on its current node
// longer than the given wait.
func SessionIdleSince(s domain.Session, wait time.Duration, now time.Time) bool {
	return now.Sub(s.LastNodeEnteredAt) >= wait
}
