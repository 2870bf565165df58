package messaging

import (
	"context"
	"fmt"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/platform/config"
)

// SMTPSender delivers messages over a direct SMTP connection via go-mail.
// Used when a brand sends from its own mailbox instead of the hosted
// messaging provider.
type SMTPSender struct {
	host     string
	port     int
	username string
	password string
}

// NewSMTPSender creates an SMTPSender from configuration.
func NewSMTPSender(cfg config.SMTPConfig) *SMTPSender {
	return &SMTPSender{
		host:     cfg.GetSMTPHost(),
		port:     cfg.GetSMTPPort(),
		username: cfg.GetSMTPUsername(),
		password: cfg.GetSMTPPassword(),
	}
}

// SendEvent renders the reserved fields into a plain email and delivers it.
// The eventName is carried as a header for provider-side analytics parity.
func (s *SMTPSender) SendEvent(ctx context.Context, account domain.Account, customerID, eventName string, data map[string]string) SendResult {
	if missing := ValidateReservedFields(data); missing != "" {
		return SendResult{Error: fmt.Sprintf("missing reserved field %q", missing)}
	}

	msg := gomail.NewMsg()
	if err := msg.FromFormat(account.FromName, data[FieldFromAddress]); err != nil {
		return SendResult{Error: fmt.Sprintf("smtp from: %v", err)}
	}
	if err := msg.To(data[FieldRecipient]); err != nil {
		// A malformed recipient is a permanent failure, not a retryable one.
		return SendResult{Error: fmt.Sprintf("smtp to: %v", err), HardBounce: true}
	}
	if err := msg.ReplyTo(data[FieldReplyTo]); err != nil {
		return SendResult{Error: fmt.Sprintf("smtp reply-to: %v", err)}
	}
	msg.Subject(data[FieldSubject])
	msg.SetBodyString(gomail.TypeTextPlain, data[FieldBody])
	msg.SetGenHeader("X-Outreach-Event", eventName)
	msg.SetMessageID()

	client, err := gomail.NewClient(s.host,
		gomail.WithPort(s.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(s.username),
		gomail.WithPassword(s.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return SendResult{Error: fmt.Sprintf("smtp client: %v", err)}
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return SendResult{Error: fmt.Sprintf("smtp send: %v", err)}
	}

	return SendResult{OK: true, ProviderMessageID: msg.GetMessageID()}
}
