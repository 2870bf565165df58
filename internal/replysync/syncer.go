// Package replysync polls the sending account's mailbox over IMAP and feeds
// inbound replies into the same ingestion path as the webhook. It exists for
// providers that deliver replies to a mailbox instead of a callback.
package replysync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	imap "github.com/BrianLeishman/go-imap"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/transport"
	"outreach_backend/platform/config"
	"outreach_backend/platform/logger"
	"outreach_backend/platform/sanitize"
)

// maxEmailsPerSync bounds one polling pass so a flooded mailbox cannot stall
// the job past its attempt budget.
const maxEmailsPerSync = 50

// ReplyIngester is the slice of the outreach service the syncer needs.
type ReplyIngester interface {
	IngestInboundReply(ctx context.Context, req transport.IngestReplyRequest) (*transport.ReplyIngestResponse, error)
}

// Syncer polls one deployment mailbox and ingests replies per run.
type Syncer struct {
	cfg      config.ReplySyncConfig
	ingester ReplyIngester
	log      *logger.Logger

	// dial is swapped in tests.
	dial func() (mailbox, error)
}

// mailbox is the narrow IMAP surface the syncer uses.
type mailbox interface {
	SelectFolder(folder string) error
	GetUIDs(search string) ([]int, error)
	GetEmails(uids ...int) (map[int]*imap.Email, error)
	Close() error
}

// New creates a reply syncer. Returns an error when IMAP is not configured;
// callers then run without reply sync.
func New(cfg config.ReplySyncConfig, ingester ReplyIngester, log *logger.Logger) (*Syncer, error) {
	if !cfg.IsReplySyncEnabled() {
		return nil, errors.New("imap reply sync is not configured")
	}
	s := &Syncer{cfg: cfg, ingester: ingester, log: log}
	s.dial = func() (mailbox, error) {
		return imap.New(cfg.GetIMAPUsername(), cfg.GetIMAPPassword(), cfg.GetIMAPHost(), cfg.GetIMAPPort())
	}
	return s, nil
}

// Sync ingests replies with UID above sinceUID addressed to the run's
// account and returns the new high-water UID. Duplicate provider message ids
// are absorbed downstream, so overlapping scans are harmless.
func (s *Syncer) Sync(ctx context.Context, run domain.Run, account domain.Account, sinceUID int) (int, error) {
	box, err := s.dial()
	if err != nil {
		return sinceUID, fmt.Errorf("imap connect: %w", err)
	}
	defer func() { _ = box.Close() }()

	folder := s.cfg.GetIMAPFolder()
	if folder == "" {
		folder = "INBOX"
	}
	if err := box.SelectFolder(folder); err != nil {
		return sinceUID, fmt.Errorf("select folder %q: %w", folder, err)
	}

	uids, err := box.GetUIDs("ALL")
	if err != nil {
		return sinceUID, fmt.Errorf("list uids: %w", err)
	}

	var fresh []int
	for _, uid := range uids {
		if uid > sinceUID {
			fresh = append(fresh, uid)
		}
	}
	if len(fresh) == 0 {
		return sinceUID, nil
	}
	if len(fresh) > maxEmailsPerSync {
		fresh = fresh[:maxEmailsPerSync]
	}

	emails, err := box.GetEmails(fresh...)
	if err != nil {
		return sinceUID, fmt.Errorf("fetch emails: %w", err)
	}

	log := s.log.WithRunID(run.ID.String())
	highWater := sinceUID
	ingested := 0
	for uid, email := range emails {
		if email == nil {
			continue
		}
		if uid > highWater {
			highWater = uid
		}
		if !addressedTo(email, account.FromAddress, account.ReplyToAddress) {
			continue
		}
		from := firstAddress(email.From)
		if from == "" {
			continue
		}

		req := transport.IngestReplyRequest{
			RunID:             run.ID,
			From:              from,
			To:                account.ReplyToAddress,
			Subject:           email.Subject,
			Body:              replyBody(email),
			ProviderMessageID: providerID(email, uid),
		}
		if _, err := s.ingester.IngestInboundReply(ctx, req); err != nil {
			// Leave the high-water mark behind this message so the next
			// pass retries it.
			log.Error("reply ingestion failed", "uid", uid, "from", from, "error", err)
			return minInt(highWater, uid-1), err
		}
		ingested++
	}

	if ingested > 0 {
		log.Info("mailbox replies ingested", "count", ingested, "highWaterUid", highWater)
	}
	return highWater, nil
}

// addressedTo reports whether any recipient matches one of the account's
// addresses. Mailboxes shared across accounts stay partitioned this way.
func addressedTo(email *imap.Email, addresses ...string) bool {
	for _, addr := range addresses {
		if addr == "" {
			continue
		}
		lower := strings.ToLower(addr)
		for to := range email.To {
			if strings.ToLower(to) == lower {
				return true
			}
		}
		for cc := range email.CC {
			if strings.ToLower(cc) == lower {
				return true
			}
		}
	}
	return false
}

func firstAddress(addrs imap.EmailAddresses) string {
	for addr := range addrs {
		return strings.ToLower(strings.TrimSpace(addr))
	}
	return ""
}

func replyBody(email *imap.Email) string {
	if strings.TrimSpace(email.Text) != "" {
		return email.Text
	}
	return sanitize.StripHTML(email.HTML)
}

func providerID(email *imap.Email, uid int) string {
	if id := strings.TrimSpace(email.MessageID); id != "" {
		return id
	}
	return fmt.Sprintf("imap-uid-%d", uid)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
