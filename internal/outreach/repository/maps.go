package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"outreach_backend/internal/outreach/domain"
)

const mapColumns = `id, campaign_id, revision, status, graph, created_at`

// GetPublishedMap returns the highest published revision for a campaign.
func (r *Repository) GetPublishedMap(ctx context.Context, campaignID uuid.UUID) (domain.ConversationMap, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+mapColumns+`
		FROM conversation_maps
		WHERE campaign_id = $1 AND status = 'published'
		ORDER BY revision DESC
		LIMIT 1`, campaignID)
	m, err := scanMap(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ConversationMap{}, ErrNotFound
	}
	return m, err
}

// GetMap loads a specific map revision by id.
func (r *Repository) GetMap(ctx context.Context, id uuid.UUID) (domain.ConversationMap, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+mapColumns+` FROM conversation_maps WHERE id = $1`, id)
	m, err := scanMap(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ConversationMap{}, ErrNotFound
	}
	return m, err
}

// InsertMap stores a new revision. Revision numbering is the caller's
// responsibility; seeding assigns 1, publishing tools bump it.
func (r *Repository) InsertMap(ctx context.Context, campaignID uuid.UUID, revision int, status domain.MapStatus, graph []byte) (domain.ConversationMap, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO conversation_maps (campaign_id, revision, status, graph)
		VALUES ($1, $2, $3, $4)
		RETURNING `+mapColumns,
		campaignID, revision, string(status), graph)
	return scanMap(row)
}

// HasPublishedMap reports whether any published revision exists for the
// campaign, used by launch preflight.
func (r *Repository) HasPublishedMap(ctx context.Context, campaignID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM conversation_maps WHERE campaign_id = $1 AND status = 'published'
		)`, campaignID).Scan(&exists)
	return exists, err
}

func scanMap(row pgx.Row) (domain.ConversationMap, error) {
	var m domain.ConversationMap
	err := row.Scan(&m.ID, &m.CampaignID, &m.Revision, &m.Status, &m.Graph, &m.CreatedAt)
	if err != nil {
		return domain.ConversationMap{}, err
	}
	return m, nil
}
