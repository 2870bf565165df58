package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"outreach_backend/internal/outreach/domain"
)

const messageColumns = `id, run_id, lead_id, step, subject, body, status, source_type,
	session_id, node_id, parent_message_id, provider_message_id, generation_meta,
	scheduled_at, sent_at, last_error, created_at, updated_at`

// InsertMessageParams describes a message queued for a future send window.
type InsertMessageParams struct {
	RunID           uuid.UUID
	LeadID          uuid.UUID
	Step            int
	Subject         string
	Body            string
	SourceType      domain.MessageSourceType
	SessionID       *uuid.UUID
	NodeID          *string
	ParentMessageID *uuid.UUID
	GenerationMeta  map[string]any
	ScheduledAt     time.Time
}

// ErrDuplicateSessionNode is returned when a conversation node has already
// produced a message for the same session.
var ErrDuplicateSessionNode = errors.New("message for this session node already exists")

// InsertMessage schedules a single message. Conversation messages collide on
// (session_id, node_id); the caller decides whether that is a skip or a bug.
func (r *Repository) InsertMessage(ctx context.Context, p InsertMessageParams) (domain.Message, error) {
	if p.Step < 1 {
		p.Step = 1
	}
	meta, err := marshalNullable(p.GenerationMeta)
	if err != nil {
		return domain.Message{}, err
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO outreach_messages (
			run_id, lead_id, step, subject, body, source_type,
			session_id, node_id, parent_message_id, generation_meta, scheduled_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+messageColumns,
		p.RunID, p.LeadID, p.Step, p.Subject, p.Body, string(p.SourceType),
		p.SessionID, p.NodeID, p.ParentMessageID, meta, p.ScheduledAt.UTC())

	msg, err := scanMessage(row)
	if err != nil {
		if IsUniqueViolation(err) {
			return domain.Message{}, ErrDuplicateSessionNode
		}
		return domain.Message{}, err
	}
	return msg, nil
}

// GetMessage loads one message by id.
func (r *Repository) GetMessage(ctx context.Context, id uuid.UUID) (domain.Message, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+messageColumns+` FROM outreach_messages WHERE id = $1`, id)
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Message{}, ErrNotFound
	}
	return msg, err
}

// ListDueMessages returns scheduled messages whose send time has arrived,
// oldest first, capped at limit.
func (r *Repository) ListDueMessages(ctx context.Context, runID uuid.UUID, now time.Time, limit int) ([]domain.Message, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM outreach_messages
		WHERE run_id = $1 AND status = 'scheduled' AND scheduled_at <= $2
		ORDER BY scheduled_at ASC
		LIMIT $3`,
		runID, now.UTC(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectMessages(rows)
}

// CountSentSince counts messages sent for the run at or after the cutoff.
// Caps are recomputed from this on every dispatch pass rather than kept as a
// counter, so a crashed worker cannot leave the window inflated.
func (r *Repository) CountSentSince(ctx context.Context, runID uuid.UUID, cutoff time.Time) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM outreach_messages
		WHERE run_id = $1 AND status = 'sent' AND sent_at >= $2`,
		runID, cutoff.UTC()).Scan(&n)
	return n, err
}

// LastSentAt returns the most recent send timestamp for the run, or nil when
// nothing has been sent yet.
func (r *Repository) LastSentAt(ctx context.Context, runID uuid.UUID) (*time.Time, error) {
	var last *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT max(sent_at) FROM outreach_messages
		WHERE run_id = $1 AND status = 'sent'`,
		runID).Scan(&last)
	return last, err
}

// MarkMessageSent records a successful provider handoff. The transition is
// conditional on the message still being scheduled.
func (r *Repository) MarkMessageSent(ctx context.Context, id uuid.UUID, providerMessageID string, sentAt time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE outreach_messages
		SET status = 'sent', provider_message_id = $2, sent_at = $3, last_error = NULL, updated_at = now()
		WHERE id = $1 AND status = 'scheduled'`,
		id, nullIfEmpty(providerMessageID), sentAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleTransition
	}
	return nil
}

// MarkMessageFailed records a provider failure. Hard bounces are stored as
// bounced so delivery-rate analysis can tell them apart from transient errors.
func (r *Repository) MarkMessageFailed(ctx context.Context, id uuid.UUID, reason string, hardBounce bool) error {
	status := domain.MessageFailed
	if hardBounce {
		status = domain.MessageBounced
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE outreach_messages
		SET status = $2, last_error = $3, updated_at = now()
		WHERE id = $1 AND status = 'scheduled'`,
		id, string(status), reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrStaleTransition
	}
	return nil
}

// CancelScheduledMessages cancels every pending message for a lead, typically
// after an unsubscribe or bounce. Returns how many were cancelled.
func (r *Repository) CancelScheduledMessages(ctx context.Context, runID, leadID uuid.UUID, reason string) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE outreach_messages
		SET status = 'canceled', last_error = $3, updated_at = now()
		WHERE run_id = $1 AND lead_id = $2 AND status = 'scheduled'`,
		runID, leadID, reason)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// CancelRunMessages cancels all pending messages for a run, used when the run
// itself is canceled or paused hard.
func (r *Repository) CancelRunMessages(ctx context.Context, runID uuid.UUID, reason string) (int, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE outreach_messages
		SET status = 'canceled', last_error = $2, updated_at = now()
		WHERE run_id = $1 AND status = 'scheduled'`,
		runID, reason)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// ExistsSessionNodeMessage reports whether a node already produced a message
// within the session.
func (r *Repository) ExistsSessionNodeMessage(ctx context.Context, sessionID uuid.UUID, nodeID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM outreach_messages WHERE session_id = $1 AND node_id = $2
		)`, sessionID, nodeID).Scan(&exists)
	return exists, err
}

// NextScheduledAt returns the earliest pending send time for the run, or nil
// when the schedule is drained.
func (r *Repository) NextScheduledAt(ctx context.Context, runID uuid.UUID) (*time.Time, error) {
	var next *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT min(scheduled_at) FROM outreach_messages
		WHERE run_id = $1 AND status = 'scheduled'`,
		runID).Scan(&next)
	return next, err
}

// CountPendingScheduled counts messages still waiting to go out for the run.
func (r *Repository) CountPendingScheduled(ctx context.Context, runID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM outreach_messages
		WHERE run_id = $1 AND status = 'scheduled'`,
		runID).Scan(&n)
	return n, err
}

// FindMessageByProviderID resolves a provider message id back to the message,
// used to thread inbound replies.
func (r *Repository) FindMessageByProviderID(ctx context.Context, runID uuid.UUID, providerMessageID string) (domain.Message, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+messageColumns+` FROM outreach_messages
		WHERE run_id = $1 AND provider_message_id = $2`,
		runID, providerMessageID)
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Message{}, ErrNotFound
	}
	return msg, err
}

func scanMessage(row pgx.Row) (domain.Message, error) {
	var (
		m    domain.Message
		meta []byte
	)
	err := row.Scan(
		&m.ID, &m.RunID, &m.LeadID, &m.Step, &m.Subject, &m.Body, &m.Status, &m.SourceType,
		&m.SessionID, &m.NodeID, &m.ParentMessageID, &m.ProviderMessageID, &meta,
		&m.ScheduledAt, &m.SentAt, &m.LastError, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Message{}, err
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &m.GenerationMeta); err != nil {
			return domain.Message{}, err
		}
	}
	return m, nil
}

func collectMessages(rows pgx.Rows) ([]domain.Message, error) {
	var out []domain.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
