// Package marketplace provides the HTTP client for the external
// lead-sourcing tool marketplace. Every method returns a structured result
// with an OK flag; errors never cross the boundary as panics, and transport
// failures are folded into the result.
package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

const (
	defaultHTTPTimeout = 30 * time.Second

	// RunSucceeded and friends are the provider-side run states.
	RunSucceeded = "SUCCEEDED"
	RunFailed    = "FAILED"
	RunAborted   = "ABORTED"
	RunTimedOut  = "TIMED-OUT"
	RunRunning   = "RUNNING"
	RunReady     = "READY"
)

// Credentials is the explicit sourcing credential value resolved once per
// run at preflight time and threaded through the planner/prober/executor.
type Credentials struct {
	Token string
}

// Budget bounds one provider run invocation.
type Budget struct {
	MaxCostUSD float64
	MaxItems   int
}

// ActorCandidate is one marketplace tool returned by search.
type ActorCandidate struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Categories    []string `json:"categories"`
	TotalUsers    int      `json:"totalUsers"`
	Rating        float64  `json:"rating"`
	PricingModel  string   `json:"pricingModel"`
	PricePerEvent float64  `json:"pricePerEvent"`
}

// SearchResult is the outcome of a marketplace search.
type SearchResult struct {
	OK             bool
	QuotaExhausted bool
	Error          string
	Candidates     []ActorCandidate
}

// SchemaResult describes an actor's declared input schema.
type SchemaResult struct {
	OK             bool
	QuotaExhausted bool
	Error          string
	RequiredKeys   []string
	KnownKeys      []string
}

// StartResult is the outcome of starting an actor run.
type StartResult struct {
	OK             bool
	QuotaExhausted bool
	Error          string
	RunID          string
	DatasetID      string
}

// PollResult is the outcome of one run status poll.
type PollResult struct {
	OK             bool
	QuotaExhausted bool
	Error          string
	Status         string
	CostUSD        float64
}

// ItemsResult carries fetched dataset rows.
type ItemsResult struct {
	OK             bool
	QuotaExhausted bool
	Error          string
	Items          []map[string]any
}

// Client is the HTTP marketplace gateway.
type Client struct {
	baseURL     string
	fallback    Credentials
	pollTimeout time.Duration
	httpClient  *http.Client
	log         *logger.Logger
}

// New creates a marketplace client. The config token is the fallback when a
// run's own credentials carry no token.
func New(cfg config.MarketplaceConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.GetMarketplaceBaseURL(), "/"),
		fallback:    Credentials{Token: cfg.GetMarketplaceToken()},
		pollTimeout: cfg.GetMarketplacePollTimeout(),
		httpClient:  &http.Client{Timeout: defaultHTTPTimeout},
		log:         log,
	}
}

// PollTimeout returns the configured per-run polling deadline.
func (c *Client) PollTimeout() time.Duration {
	if c.pollTimeout <= 0 {
		return 10 * time.Minute
	}
	return c.pollTimeout
}

func (c *Client) token(creds Credentials) string {
	if creds.Token != "" {
		return creds.Token
	}
	return c.fallback.Token
}

// SearchActors queries the marketplace store for candidate tools.
func (c *Client) SearchActors(ctx context.Context, creds Credentials, query string) SearchResult {
	endpoint := fmt.Sprintf("%s/store?search=%s&limit=25", c.baseURL, url.QueryEscape(query))

	var payload struct {
		Data struct {
			Items []struct {
				ID          string   `json:"id"`
				Name        string   `json:"name"`
				Title       string   `json:"title"`
				Description string   `json:"description"`
				Categories  []string `json:"categories"`
				Stats       struct {
					TotalUsers int `json:"totalUsers"`
				} `json:"stats"`
				ActorReviewRating float64 `json:"actorReviewRating"`
				CurrentPricingInfo struct {
					PricingModel  string  `json:"pricingModel"`
					PricePerUnitUSD float64 `json:"pricePerUnitUsd"`
				} `json:"currentPricingInfo"`
			} `json:"items"`
		} `json:"data"`
	}

	status, err := c.getJSON(ctx, creds, endpoint, &payload)
	if err != nil {
		return SearchResult{Error: err.Error(), QuotaExhausted: isQuotaStatus(status)}
	}

	candidates := make([]ActorCandidate, 0, len(payload.Data.Items))
	for _, item := range payload.Data.Items {
		candidates = append(candidates, ActorCandidate{
			ID:            item.ID,
			Name:          item.Name,
			Title:         item.Title,
			Description:   item.Description,
			Categories:    item.Categories,
			TotalUsers:    item.Stats.TotalUsers,
			Rating:        item.ActorReviewRating,
			PricingModel:  item.CurrentPricingInfo.PricingModel,
			PricePerEvent: item.CurrentPricingInfo.PricePerUnitUSD,
		})
	}
	return SearchResult{OK: true, Candidates: candidates}
}

// FetchSchema fetches an actor's input schema and flattens it into required
// and known top-level keys.
func (c *Client) FetchSchema(ctx context.Context, creds Credentials, actorID string) SchemaResult {
	endpoint := fmt.Sprintf("%s/acts/%s?fields=inputSchema", c.baseURL, url.PathEscape(actorID))

	var payload struct {
		Data struct {
			InputSchema json.RawMessage `json:"inputSchema"`
		} `json:"data"`
	}

	status, err := c.getJSON(ctx, creds, endpoint, &payload)
	if err != nil {
		return SchemaResult{Error: err.Error(), QuotaExhausted: isQuotaStatus(status)}
	}

	var schema struct {
		Required   []string                   `json:"required"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if len(payload.Data.InputSchema) > 0 {
		// Some actors publish the schema as a JSON-encoded string.
		raw := payload.Data.InputSchema
		var asString string
		if json.Unmarshal(raw, &asString) == nil {
			raw = json.RawMessage(asString)
		}
		if err := json.Unmarshal(raw, &schema); err != nil {
			return SchemaResult{Error: fmt.Sprintf("malformed input schema: %v", err)}
		}
	}

	known := make([]string, 0, len(schema.Properties))
	for key := range schema.Properties {
		known = append(known, key)
	}
	return SchemaResult{OK: true, RequiredKeys: schema.Required, KnownKeys: known}
}

// StartRun starts an actor run with the given input and budget.
func (c *Client) StartRun(ctx context.Context, creds Credentials, actorID string, input map[string]any, budget Budget) StartResult {
	endpoint := fmt.Sprintf("%s/acts/%s/runs", c.baseURL, url.PathEscape(actorID))
	if budget.MaxItems > 0 {
		endpoint += fmt.Sprintf("?maxItems=%d&maxTotalChargeUsd=%.2f", budget.MaxItems, budget.MaxCostUSD)
	}

	body, err := json.Marshal(input)
	if err != nil {
		return StartResult{Error: fmt.Sprintf("encode input: %v", err)}
	}

	var payload struct {
		Data struct {
			ID               string `json:"id"`
			DefaultDatasetID string `json:"defaultDatasetId"`
		} `json:"data"`
	}

	status, err := c.postJSON(ctx, creds, endpoint, body, &payload)
	if err != nil {
		return StartResult{Error: err.Error(), QuotaExhausted: isQuotaStatus(status)}
	}
	if payload.Data.ID == "" {
		return StartResult{Error: "provider returned no run id"}
	}
	return StartResult{OK: true, RunID: payload.Data.ID, DatasetID: payload.Data.DefaultDatasetID}
}

// PollRun fetches the current status and accrued cost of an actor run.
func (c *Client) PollRun(ctx context.Context, creds Credentials, runID string) PollResult {
	endpoint := fmt.Sprintf("%s/actor-runs/%s", c.baseURL, url.PathEscape(runID))

	var payload struct {
		Data struct {
			Status    string `json:"status"`
			UsageTotalUSD float64 `json:"usageTotalUsd"`
		} `json:"data"`
	}

	status, err := c.getJSON(ctx, creds, endpoint, &payload)
	if err != nil {
		return PollResult{Error: err.Error(), QuotaExhausted: isQuotaStatus(status)}
	}
	return PollResult{OK: true, Status: payload.Data.Status, CostUSD: payload.Data.UsageTotalUSD}
}

// FetchDatasetItems retrieves up to limit rows from a dataset.
func (c *Client) FetchDatasetItems(ctx context.Context, creds Credentials, datasetID string, limit int) ItemsResult {
	endpoint := fmt.Sprintf("%s/datasets/%s/items?clean=true&limit=%d",
		c.baseURL, url.PathEscape(datasetID), limit)

	var items []map[string]any
	status, err := c.getJSON(ctx, creds, endpoint, &items)
	if err != nil {
		return ItemsResult{Error: err.Error(), QuotaExhausted: isQuotaStatus(status)}
	}
	return ItemsResult{OK: true, Items: items}
}

func (c *Client) getJSON(ctx context.Context, creds Credentials, endpoint string, into any) (int, error) {
	return c.doJSON(ctx, creds, http.MethodGet, endpoint, nil, into)
}

func (c *Client) postJSON(ctx context.Context, creds Credentials, endpoint string, body []byte, into any) (int, error) {
	return c.doJSON(ctx, creds, http.MethodPost, endpoint, body, into)
}

func (c *Client) doJSON(ctx context.Context, creds Credentials, method, endpoint string, body []byte, into any) (int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token(creds))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("marketplace request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if c.log != nil {
			c.log.GatewayError("marketplace", method+" "+endpoint,
				fmt.Errorf("status %d: %s", resp.StatusCode, truncate(string(raw), 500)))
		}
		return resp.StatusCode, fmt.Errorf("provider status %d: %s", resp.StatusCode, truncate(string(raw), 500))
	}

	if err := json.Unmarshal(raw, into); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

// isQuotaStatus flags provider responses that indicate exhausted credit or
// rate quota; the prober short-circuits remaining work on these.
// IsTerminalRunStatus reports whether the provider run can no longer change.
func IsTerminalRunStatus(status string) bool {
	switch status {
	case RunSucceeded, RunFailed, RunAborted, RunTimedOut:
		return true
	}
	return false
}

func isQuotaStatus(status int) bool {
	return status == http.StatusPaymentRequired || status == http.StatusTooManyRequests
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
