package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"outreach_backend/internal/outreach/domain"
)

const replyColumns = `id, run_id, lead_id, provider_message_id, from_address,
	to_address, subject, body, sentiment, intent, confidence, created_at`

// ErrDuplicateReply is returned when the same provider message was already
// ingested for the run. Webhook retries and IMAP re-polls both hit this.
var ErrDuplicateReply = errors.New("reply already ingested")

// InsertReplyParams captures one inbound reply.
type InsertReplyParams struct {
	RunID             uuid.UUID
	LeadID            *uuid.UUID
	ProviderMessageID string
	FromAddress       string
	ToAddress         string
	Subject           string
	Body              string
	Sentiment         string
	Intent            string
	Confidence        float64
}

// InsertReply stores the reply, deduplicating on (run, providerMessageID).
func (r *Repository) InsertReply(ctx context.Context, p InsertReplyParams) (domain.Reply, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO outreach_replies (
			run_id, lead_id, provider_message_id, from_address, to_address,
			subject, body, sentiment, intent, confidence
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (run_id, provider_message_id) DO NOTHING
		RETURNING `+replyColumns,
		p.RunID, p.LeadID, p.ProviderMessageID, p.FromAddress, p.ToAddress,
		p.Subject, p.Body, p.Sentiment, p.Intent, p.Confidence)

	reply, err := scanReply(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Reply{}, ErrDuplicateReply
	}
	return reply, err
}

// UpdateReplyClassification backfills sentiment and intent once the
// classifier has run.
func (r *Repository) UpdateReplyClassification(ctx context.Context, id uuid.UUID, sentiment, intent string, confidence float64) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE outreach_replies
		SET sentiment = $2, intent = $3, confidence = $4
		WHERE id = $1`,
		id, sentiment, intent, confidence)
	return err
}

// ListRepliesByRun returns the run's replies, oldest first.
func (r *Repository) ListRepliesByRun(ctx context.Context, runID uuid.UUID) ([]domain.Reply, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+replyColumns+`
		FROM outreach_replies
		WHERE run_id = $1
		ORDER BY created_at ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Reply
	for rows.Next() {
		reply, err := scanReply(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, reply)
	}
	return out, rows.Err()
}

// CountNegativeReplies counts replies classified negative for a run.
func (r *Repository) CountNegativeReplies(ctx context.Context, runID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM outreach_replies
		WHERE run_id = $1 AND sentiment = 'negative'`,
		runID).Scan(&n)
	return n, err
}

func scanReply(row pgx.Row) (domain.Reply, error) {
	var rep domain.Reply
	err := row.Scan(
		&rep.ID, &rep.RunID, &rep.LeadID, &rep.ProviderMessageID, &rep.FromAddress,
		&rep.ToAddress, &rep.Subject, &rep.Body, &rep.Sentiment, &rep.Intent,
		&rep.Confidence, &rep.CreatedAt,
	)
	if err != nil {
		return domain.Reply{}, err
	}
	return rep, nil
}
