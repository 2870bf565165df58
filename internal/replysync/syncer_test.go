package replysync

import (
	"context"
	"errors"
	"testing"

	imap "github.com/BrianLeishman/go-imap"
	"github.com/google/uuid"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/transport"
	"outreach_backend/platform/logger"
)

type fakeMailbox struct {
	folder string
	emails map[int]*imap.Email
}

func (f *fakeMailbox) SelectFolder(folder string) error {
	f.folder = folder
	return nil
}

func (f *fakeMailbox) GetUIDs(search string) ([]int, error) {
	uids := make([]int, 0, len(f.emails))
	for uid := range f.emails {
		uids = append(uids, uid)
	}
	return uids, nil
}

func (f *fakeMailbox) GetEmails(uids ...int) (map[int]*imap.Email, error) {
	out := make(map[int]*imap.Email, len(uids))
	for _, uid := range uids {
		if email, ok := f.emails[uid]; ok {
			out[uid] = email
		}
	}
	return out, nil
}

func (f *fakeMailbox) Close() error { return nil }

type fakeIngester struct {
	requests []transport.IngestReplyRequest
	fail     map[string]error
}

func (f *fakeIngester) IngestInboundReply(_ context.Context, req transport.IngestReplyRequest) (*transport.ReplyIngestResponse, error) {
	if err := f.fail[req.ProviderMessageID]; err != nil {
		return nil, err
	}
	f.requests = append(f.requests, req)
	return &transport.ReplyIngestResponse{ReplyID: uuid.New()}, nil
}

type syncTestConfig struct {
	folder string
}

func (c syncTestConfig) GetIMAPHost() string      { return "imap.example.com" }
func (c syncTestConfig) GetIMAPPort() int         { return 993 }
func (c syncTestConfig) GetIMAPUsername() string  { return "runs@example.com" }
func (c syncTestConfig) GetIMAPPassword() string  { return "secret" }
func (c syncTestConfig) GetIMAPFolder() string    { return c.folder }
func (c syncTestConfig) IsReplySyncEnabled() bool { return true }

func newTestSyncer(t *testing.T, box *fakeMailbox, ingester *fakeIngester, folder string) *Syncer {
	t.Helper()
	s, err := New(syncTestConfig{folder: folder}, ingester, logger.New("test"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.dial = func() (mailbox, error) { return box, nil }
	return s
}

func testEmail(to, from, subject, text string) *imap.Email {
	return &imap.Email{
		To:        imap.EmailAddresses{to: ""},
		From:      imap.EmailAddresses{from: ""},
		Subject:   subject,
		Text:      text,
		MessageID: "<" + subject + "@example.com>",
	}
}

func TestSyncIngestsFreshAddressedMail(t *testing.T) {
	account := domain.Account{FromAddress: "runs@example.com", ReplyToAddress: "replies@example.com"}
	run := domain.Run{ID: uuid.New()}

	box := &fakeMailbox{emails: map[int]*imap.Email{
		3: testEmail("runs@example.com", "old@lead.com", "old", "seen before"),
		7: testEmail("REPLIES@example.com", "alice@lead.com", "re: intro", "sounds good"),
		9: testEmail("someone-else@example.com", "bob@lead.com", "misdelivered", "wrong box"),
	}}
	ingester := &fakeIngester{}
	s := newTestSyncer(t, box, ingester, "")

	highWater, err := s.Sync(context.Background(), run, account, 3)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if box.folder != "INBOX" {
		t.Errorf("folder = %q, want INBOX default", box.folder)
	}
	if highWater != 9 {
		t.Errorf("high-water uid = %d, want 9", highWater)
	}
	if len(ingester.requests) != 1 {
		t.Fatalf("ingested %d replies, want 1", len(ingester.requests))
	}
	got := ingester.requests[0]
	if got.From != "alice@lead.com" {
		t.Errorf("from = %q, want alice@lead.com", got.From)
	}
	if got.RunID != run.ID {
		t.Errorf("run id = %s, want %s", got.RunID, run.ID)
	}
	if got.Body != "sounds good" {
		t.Errorf("body = %q", got.Body)
	}
}

func TestSyncNoFreshMail(t *testing.T) {
	box := &fakeMailbox{emails: map[int]*imap.Email{
		2: testEmail("runs@example.com", "a@lead.com", "a", "x"),
	}}
	ingester := &fakeIngester{}
	s := newTestSyncer(t, box, ingester, "Archive")

	highWater, err := s.Sync(context.Background(), domain.Run{ID: uuid.New()}, domain.Account{FromAddress: "runs@example.com"}, 2)
	if err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if box.folder != "Archive" {
		t.Errorf("folder = %q, want Archive", box.folder)
	}
	if highWater != 2 {
		t.Errorf("high-water uid = %d, want unchanged 2", highWater)
	}
	if len(ingester.requests) != 0 {
		t.Errorf("ingested %d replies, want 0", len(ingester.requests))
	}
}

func TestSyncIngestionFailureHoldsBackHighWater(t *testing.T) {
	email := testEmail("runs@example.com", "alice@lead.com", "re: intro", "body")
	box := &fakeMailbox{emails: map[int]*imap.Email{5: email}}
	ingester := &fakeIngester{fail: map[string]error{
		email.MessageID: errors.New("db unavailable"),
	}}
	s := newTestSyncer(t, box, ingester, "")

	highWater, err := s.Sync(context.Background(), domain.Run{ID: uuid.New()}, domain.Account{FromAddress: "runs@example.com"}, 0)
	if err == nil {
		t.Fatal("expected ingestion error")
	}
	if highWater >= 5 {
		t.Errorf("high-water uid = %d, want below 5 so the message retries", highWater)
	}
}

func TestSyncFallbackProviderID(t *testing.T) {
	email := testEmail("runs@example.com", "alice@lead.com", "re: intro", "body")
	email.MessageID = ""
	box := &fakeMailbox{emails: map[int]*imap.Email{12: email}}
	ingester := &fakeIngester{}
	s := newTestSyncer(t, box, ingester, "")

	if _, err := s.Sync(context.Background(), domain.Run{ID: uuid.New()}, domain.Account{FromAddress: "runs@example.com"}, 0); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(ingester.requests) != 1 {
		t.Fatalf("ingested %d replies, want 1", len(ingester.requests))
	}
	if got := ingester.requests[0].ProviderMessageID; got != "imap-uid-12" {
		t.Errorf("provider message id = %q, want imap-uid-12", got)
	}
}
