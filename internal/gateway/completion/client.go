// Package completion provides the LLM completion gateway: prompt in, strictly
// parsed JSON out. Malformed model output is a hard failure, never silently
// defaulted.
package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

// ErrDisabled is returned when no completion API key is configured.
var ErrDisabled = errors.New("completion gateway is not configured")

// Completer executes one JSON-producing prompt. Implementations must either
// fill `into` with validated output or return an error.
type Completer interface {
	CompleteJSON(ctx context.Context, prompt string, into any) error
	CompleteText(ctx context.Context, prompt string) (string, error)
}

// Client is the genai-backed Completer.
type Client struct {
	client *genai.Client
	model  string
	log    *logger.Logger
}

// New creates the completion client. Returns ErrDisabled when no API key is
// configured so callers can decide between hard failure and degraded mode.
func New(ctx context.Context, cfg config.CompletionConfig, log *logger.Logger) (*Client, error) {
	if !cfg.IsCompletionEnabled() {
		return nil, ErrDisabled
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: cfg.GetCompletionAPIKey(),
	})
	if err != nil {
		return nil, fmt.Errorf("create completion client: %w", err)
	}

	return &Client{client: client, model: cfg.GetCompletionModel(), log: log}, nil
}

// CompleteJSON runs the prompt, requests a JSON response, and decodes it
// strictly into the target. Unknown fields are tolerated; unparseable output
// is an error.
func (c *Client) CompleteJSON(ctx context.Context, prompt string, into any) error {
	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		genai.Text(prompt),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		if c.log != nil {
			c.log.GatewayError("completion", "generate_content", err)
		}
		return fmt.Errorf("completion request: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return errors.New("completion returned empty output")
	}

	cleaned := StripFences(text)
	if err := json.Unmarshal([]byte(cleaned), into); err != nil {
		return fmt.Errorf("completion output is not valid JSON: %w", err)
	}
	return nil
}

// CompleteText runs the prompt and returns the raw text output.
func (c *Client) CompleteText(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		if c.log != nil {
			c.log.GatewayError("completion", "generate_content", err)
		}
		return "", fmt.Errorf("completion request: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("completion returned empty output")
	}
	return text, nil
}

// StripFences removes a markdown code fence wrapper from model output.
// Models occasionally fence JSON despite the response MIME type.
func StripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
