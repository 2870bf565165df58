// Package transport defines the request and response shapes of the outreach
// HTTP API. Handlers bind and validate these; services consume and produce
// them without touching gin.
package transport

import (
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/outreach/domain"
)

// ── Requests ──────────────────────────────────────────────────────────────────

// LaunchRunRequest is the request body for launching an outreach run.
type LaunchRunRequest struct {
	BrandID           uuid.UUID  `json:"brandId" validate:"required"`
	CampaignID        uuid.UUID  `json:"campaignId" validate:"required"`
	ExperimentID      uuid.UUID  `json:"experimentId" validate:"required"`
	HypothesisID      *uuid.UUID `json:"hypothesisId"`
	AccountID         *uuid.UUID `json:"accountId"`
	TargetAudience    string     `json:"targetAudience" validate:"required,min=10,max=2000"`
	DailyCap          int        `json:"dailyCap" validate:"min=0,max=2000"`
	HourlyCap         int        `json:"hourlyCap" validate:"min=0,max=500"`
	MinSpacingMinutes int        `json:"minSpacingMinutes" validate:"min=0,max=240"`
	Timezone          string     `json:"timezone" validate:"omitempty,max=64"`
}

// IngestReplyRequest is the inbound reply webhook body.
type IngestReplyRequest struct {
	RunID             uuid.UUID `json:"runId" validate:"required"`
	From              string    `json:"from" validate:"required,email"`
	To                string    `json:"to" validate:"omitempty,email"`
	Subject           string    `json:"subject" validate:"max=1000"`
	Body              string    `json:"body" validate:"required,max=100000"`
	ProviderMessageID string    `json:"providerMessageId" validate:"required,max=500"`
}

// SeedMapRequest installs the default conversation map for a campaign when
// none is published yet.
type SeedMapRequest struct {
	CampaignID uuid.UUID `json:"campaignId" validate:"required"`
}

// ── Responses ─────────────────────────────────────────────────────────────────

// RunResponse is the external view of a run.
type RunResponse struct {
	ID                   uuid.UUID         `json:"id"`
	BrandID              uuid.UUID         `json:"brandId"`
	CampaignID           uuid.UUID         `json:"campaignId"`
	ExperimentID         uuid.UUID         `json:"experimentId"`
	HypothesisID         *uuid.UUID        `json:"hypothesisId,omitempty"`
	AccountID            *uuid.UUID        `json:"accountId,omitempty"`
	Status               string            `json:"status"`
	DailyCap             int               `json:"dailyCap"`
	HourlyCap            int               `json:"hourlyCap"`
	MinSpacingMinutes    int               `json:"minSpacingMinutes"`
	Timezone             string            `json:"timezone"`
	TargetAudience       string            `json:"targetAudience"`
	Metrics              domain.RunMetrics `json:"metrics"`
	LastError            *string           `json:"lastError,omitempty"`
	Hint                 *string           `json:"hint,omitempty"`
	Debug                map[string]any    `json:"debug,omitempty"`
	PauseReason          *string           `json:"pauseReason,omitempty"`
	CompletedAt          *time.Time        `json:"completedAt,omitempty"`
	SourcingTraceSummary map[string]any    `json:"sourcingTraceSummary,omitempty"`
	CreatedAt            time.Time         `json:"createdAt"`
	UpdatedAt            time.Time         `json:"updatedAt"`
}

// ToRunResponse maps the domain run to its external view.
func ToRunResponse(run domain.Run) RunResponse {
	return RunResponse{
		ID:                   run.ID,
		BrandID:              run.BrandID,
		CampaignID:           run.CampaignID,
		ExperimentID:         run.ExperimentID,
		HypothesisID:         run.HypothesisID,
		AccountID:            run.AccountID,
		Status:               string(run.Status),
		DailyCap:             run.DailyCap,
		HourlyCap:            run.HourlyCap,
		MinSpacingMinutes:    run.MinSpacingMinutes,
		Timezone:             run.Timezone,
		TargetAudience:       run.TargetAudience,
		Metrics:              run.Metrics,
		LastError:            run.LastError,
		Hint:                 run.Hint,
		Debug:                run.Debug,
		PauseReason:          run.PauseReason,
		CompletedAt:          run.CompletedAt,
		SourcingTraceSummary: run.SourcingTraceSummary,
		CreatedAt:            run.CreatedAt,
		UpdatedAt:            run.UpdatedAt,
	}
}

// AnomalyResponse is the external view of one pause-condition record.
type AnomalyResponse struct {
	ID        uuid.UUID      `json:"id"`
	Type      string         `json:"type"`
	Severity  string         `json:"severity"`
	Threshold float64        `json:"threshold"`
	Observed  float64        `json:"observed"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// ToAnomalyResponse maps the domain anomaly record.
func ToAnomalyResponse(a domain.RunAnomaly) AnomalyResponse {
	return AnomalyResponse{
		ID:        a.ID,
		Type:      a.Type,
		Severity:  a.Severity,
		Threshold: a.Threshold,
		Observed:  a.Observed,
		Details:   a.Details,
		CreatedAt: a.CreatedAt,
	}
}

// LeadResponse is the external view of one per-run prospect.
type LeadResponse struct {
	ID         uuid.UUID `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name,omitempty"`
	Company    string    `json:"company,omitempty"`
	Title      string    `json:"title,omitempty"`
	Domain     string    `json:"domain,omitempty"`
	Status     string    `json:"status"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ToLeadResponse maps the domain lead.
func ToLeadResponse(l domain.Lead) LeadResponse {
	return LeadResponse{
		ID:         l.ID,
		Email:      l.Email,
		Name:       l.Name,
		Company:    l.Company,
		Title:      l.Title,
		Domain:     l.Domain,
		Status:     string(l.Status),
		Confidence: l.Confidence,
		CreatedAt:  l.CreatedAt,
	}
}

// ReplyIngestResponse reports what reply ingestion did.
type ReplyIngestResponse struct {
	ReplyID    uuid.UUID `json:"replyId"`
	Duplicate  bool      `json:"duplicate"`
	Intent     string    `json:"intent,omitempty"`
	Sentiment  string    `json:"sentiment,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
}
