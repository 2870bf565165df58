package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
)

// ProviderSender delivers events through the hosted transactional messaging
// provider's track API.
type ProviderSender struct {
	baseURL   string
	apiKey    string
	fromName  string
	fromEmail string
	replyTo   string
	client    *http.Client
	log       *logger.Logger
}

// NewSender builds the configured Sender: the hosted provider when an API key
// is present, otherwise a Noop.
func NewSender(cfg config.MessagingConfig, log *logger.Logger) Sender {
	if !cfg.GetMessagingEnabled() {
		return NoopSender{}
	}
	return &ProviderSender{
		baseURL:   strings.TrimRight(cfg.GetMessagingBaseURL(), "/"),
		apiKey:    cfg.GetMessagingAPIKey(),
		fromName:  cfg.GetMessagingFromName(),
		fromEmail: cfg.GetMessagingFromAddress(),
		replyTo:   cfg.GetMessagingReplyToAddress(),
		client:    &http.Client{Timeout: 15 * time.Second},
		log:       log,
	}
}

type providerEventRequest struct {
	Name string            `json:"name"`
	Data map[string]string `json:"data"`
}

type providerEventResponse struct {
	MessageID string `json:"message_id"`
	Meta      struct {
		Error string `json:"error"`
	} `json:"meta"`
}

// SendEvent posts one event for the customer. The account's from/reply-to
// override the configured defaults when set.
func (s *ProviderSender) SendEvent(ctx context.Context, account domain.Account, customerID, eventName string, data map[string]string) SendResult {
	payload := make(map[string]string, len(data)+3)
	for k, v := range data {
		payload[k] = v
	}
	if payload[FieldFromAddress] == "" {
		if account.FromAddress != "" {
			payload[FieldFromAddress] = account.FromAddress
		} else {
			payload[FieldFromAddress] = s.fromEmail
		}
	}
	if payload[FieldReplyTo] == "" {
		if account.ReplyToAddress != "" {
			payload[FieldReplyTo] = account.ReplyToAddress
		} else {
			payload[FieldReplyTo] = s.replyTo
		}
	}

	if missing := ValidateReservedFields(payload); missing != "" {
		return SendResult{Error: fmt.Sprintf("missing reserved field %q", missing)}
	}

	body, err := json.Marshal(providerEventRequest{Name: eventName, Data: payload})
	if err != nil {
		return SendResult{Error: fmt.Sprintf("encode event: %v", err)}
	}

	endpoint := fmt.Sprintf("%s/customers/%s/events", s.baseURL, customerID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return SendResult{Error: fmt.Sprintf("build request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return SendResult{Error: fmt.Sprintf("messaging request: %v", err)}
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if s.log != nil {
			s.log.GatewayError("messaging", "send_event",
				fmt.Errorf("status %d: %s", resp.StatusCode, string(raw)))
		}
		return SendResult{
			Error: fmt.Sprintf("provider status %d: %s", resp.StatusCode, string(raw)),
			// 4xx on the recipient means the address itself was rejected.
			HardBounce: resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity,
		}
	}

	var decoded providerEventResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		// Provider accepted the event; treat an undecodable body as success
		// with an empty id rather than failing a delivered send.
		return SendResult{OK: true}
	}
	if decoded.Meta.Error != "" {
		return SendResult{Error: decoded.Meta.Error}
	}
	return SendResult{OK: true, ProviderMessageID: decoded.MessageID}
}
