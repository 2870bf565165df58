// Package messaging provides the outbound transactional message gateway.
// All implementations return a structured SendResult and never raise across
// the boundary.
package messaging

import (
	"context"

	"outreach_backend/internal/outreach/domain"
)

// Reserved event-data fields that must be present on every outbound send.
const (
	FieldRecipient   = "recipient"
	FieldFromAddress = "from_address"
	FieldReplyTo     = "reply_to"
	FieldSubject     = "subject"
	FieldBody        = "body"
)

// SendResult is the outcome of one delivery handoff.
type SendResult struct {
	OK                bool
	ProviderMessageID string
	// HardBounce marks a permanent recipient failure (bad address), as
	// opposed to a transient provider error.
	HardBounce bool
	Error      string
}

// Sender delivers one transactional event on behalf of an account.
// customerID identifies the recipient inside the provider; data carries the
// reserved fields plus arbitrary template variables.
type Sender interface {
	SendEvent(ctx context.Context, account domain.Account, customerID, eventName string, data map[string]string) SendResult
}

// ValidateReservedFields checks that the reserved outbound fields are set.
// Returns the name of the first missing field, or "".
func ValidateReservedFields(data map[string]string) string {
	for _, field := range []string{FieldRecipient, FieldFromAddress, FieldReplyTo} {
		if data[field] == "" {
			return field
		}
	}
	return ""
}

// NoopSender accepts every send without delivering. Used when messaging is
// disabled in configuration.
type NoopSender struct{}

func (NoopSender) SendEvent(ctx context.Context, account domain.Account, customerID, eventName string, data map[string]string) SendResult {
	return SendResult{OK: true, ProviderMessageID: "noop-" + customerID}
}
