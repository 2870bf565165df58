package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"outreach_backend/internal/outreach/domain"
)

const accountColumns = `id, brand_id, label, from_name, from_address, reply_to_address,
	messaging_credential_ref, marketplace_token_ref, created_at, updated_at`

// GetAccount loads a sending account by id.
func (r *Repository) GetAccount(ctx context.Context, id uuid.UUID) (domain.Account, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM outreach_accounts WHERE id = $1`, id)
	acct, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Account{}, ErrNotFound
	}
	return acct, err
}

// CreateAccountParams registers a sending identity.
type CreateAccountParams struct {
	BrandID                uuid.UUID
	Label                  string
	FromName               string
	FromAddress            string
	ReplyToAddress         string
	MessagingCredentialRef *string
	MarketplaceTokenRef    *string
}

// CreateAccount inserts an account record.
func (r *Repository) CreateAccount(ctx context.Context, p CreateAccountParams) (domain.Account, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO outreach_accounts (
			brand_id, label, from_name, from_address, reply_to_address,
			messaging_credential_ref, marketplace_token_ref
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+accountColumns,
		p.BrandID, p.Label, p.FromName, p.FromAddress, p.ReplyToAddress,
		p.MessagingCredentialRef, p.MarketplaceTokenRef)
	return scanAccount(row)
}

// ListAccountsByBrand returns all sending identities for a brand.
func (r *Repository) ListAccountsByBrand(ctx context.Context, brandID uuid.UUID) ([]domain.Account, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+accountColumns+`
		FROM outreach_accounts
		WHERE brand_id = $1
		ORDER BY created_at ASC`, brandID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

func scanAccount(row pgx.Row) (domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.ID, &a.BrandID, &a.Label, &a.FromName, &a.FromAddress, &a.ReplyToAddress,
		&a.MessagingCredentialRef, &a.MarketplaceTokenRef, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, err
	}
	return a, nil
}
