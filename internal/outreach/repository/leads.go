package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"outreach_backend/internal/outreach/domain"
)

const leadColumns = `id, run_id, email, name, company, title, domain, source_url,
	status, confidence, created_at, updated_at`

// InsertLeadParams carries one accepted lead.
type InsertLeadParams struct {
	RunID      uuid.UUID
	Email      string
	Name       string
	Company    string
	Title      string
	Domain     string
	SourceURL  string
	Confidence float64
}

// InsertLeads persists a batch of accepted leads. Duplicate emails within the
// run are skipped silently. Returns the number actually inserted.
func (r *Repository) InsertLeads(ctx context.Context, leads []InsertLeadParams) (int, error) {
	inserted := 0
	for _, lead := range leads {
		tag, err := r.pool.Exec(ctx, `
			INSERT INTO outreach_leads (run_id, email, name, company, title, domain, source_url, confidence)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (run_id, email) DO NOTHING`,
			lead.RunID, lead.Email, lead.Name, lead.Company, lead.Title,
			lead.Domain, lead.SourceURL, lead.Confidence)
		if err != nil {
			return inserted, err
		}
		inserted += int(tag.RowsAffected())
	}
	return inserted, nil
}

// ListLeadsByRun returns all leads of a run.
func (r *Repository) ListLeadsByRun(ctx context.Context, runID uuid.UUID) ([]domain.Lead, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+leadColumns+` FROM outreach_leads WHERE run_id = $1 ORDER BY created_at ASC`,
		runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectLeads(rows)
}

// GetLead fetches one lead by id.
func (r *Repository) GetLead(ctx context.Context, id uuid.UUID) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+leadColumns+` FROM outreach_leads WHERE id = $1`, id)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

// FindLeadByEmail locates a run's lead by normalized email.
func (r *Repository) FindLeadByEmail(ctx context.Context, runID uuid.UUID, email string) (domain.Lead, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+leadColumns+` FROM outreach_leads WHERE run_id = $1 AND email = $2`,
		runID, email)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Lead{}, ErrNotFound
	}
	return lead, err
}

// UpdateLeadStatus moves a lead to a new status.
func (r *Repository) UpdateLeadStatus(ctx context.Context, id uuid.UUID, status domain.LeadStatus) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE outreach_leads SET status = $2, updated_at = now() WHERE id = $1`,
		id, string(status))
	return err
}

// RecentlyContactedEmails returns the emails of leads from the campaign's
// prior runs that were already engaged within the window. Used for the
// cross-run duplicate floor.
func (r *Repository) RecentlyContactedEmails(ctx context.Context, campaignID, excludeRunID uuid.UUID, window time.Duration) (map[string]bool, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT l.email
		FROM outreach_leads l
		JOIN outreach_runs r ON r.id = l.run_id
		WHERE r.campaign_id = $1
		  AND l.run_id <> $2
		  AND l.created_at >= now() - $3::interval
		  AND l.status IN ('scheduled', 'sent', 'replied', 'bounced', 'unsubscribed')`,
		campaignID, excludeRunID, intervalSeconds(window))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	emails := make(map[string]bool)
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, err
		}
		emails[email] = true
	}
	return emails, rows.Err()
}

func collectLeads(rows pgx.Rows) ([]domain.Lead, error) {
	var leads []domain.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

func scanLead(row pgx.Row) (domain.Lead, error) {
	var lead domain.Lead
	var status string
	err := row.Scan(
		&lead.ID, &lead.RunID, &lead.Email, &lead.Name, &lead.Company, &lead.Title,
		&lead.Domain, &lead.SourceURL, &status, &lead.Confidence,
		&lead.CreatedAt, &lead.UpdatedAt,
	)
	if err != nil {
		return domain.Lead{}, err
	}
	lead.Status = domain.LeadStatus(status)
	return lead, nil
}

func intervalSeconds(d time.Duration) string {
	return fmt.Sprintf("%d seconds", int64(d.Seconds()))
}
