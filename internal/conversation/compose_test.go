package conversation

import (
	"context"
	"strings"
	"testing"

	"outreach_backend/internal/outreach/domain"
	"outreach_backend/platform/logger"
)

func testLead() domain.Lead {
	return domain.Lead{
		Email:   "jane@acme.io",
		Name:    "Jane Doe",
		Company: "Acme",
		Title:   "CTO",
	}
}

func TestComposeTemplate(t *testing.T) {
	c := NewComposer(nil, logger.New("test"))
	node := Node{
		ID:           "opener",
		AutoSend:     true,
		Subject:      "Quick question, {{.FirstName}}",
		BodyTemplate: "Hi {{.FirstName}}, I came across {{.Company}}.",
	}

	content, err := c.Compose(context.Background(), node, testLead(), "")
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	if content.Subject != "Quick question, Jane" {
		t.Errorf("subject = %q", content.Subject)
	}
	if !strings.Contains(content.Body, "Hi Jane, I came across Acme.") {
		t.Errorf("body = %q", content.Body)
	}
	if content.Meta["source"] != "template" {
		t.Errorf("meta source = %v, want template", content.Meta["source"])
	}
}

func TestComposeFailsWithoutContent(t *testing.T) {
	c := NewComposer(nil, logger.New("test"))

	if _, err := c.Compose(context.Background(), Node{ID: "empty"}, testLead(), ""); err == nil {
		t.Error("expected an error for a node with neither template nor prompt")
	}
	if _, err := c.Compose(context.Background(), Node{ID: "p", Prompt: "write something"}, testLead(), ""); err == nil {
		t.Error("expected an error for a prompt node without a completion gateway")
	}
	if _, err := c.Compose(context.Background(), Node{ID: "bad", BodyTemplate: "{{.Missing}}"}, testLead(), ""); err == nil {
		t.Error("expected an error for an unresolvable template field")
	}
}

func TestComposeWhitespaceBodyRejected(t *testing.T) {
	c := NewComposer(nil, logger.New("test"))
	node := Node{ID: "blank", BodyTemplate: "   "}
	if _, err := c.Compose(context.Background(), node, testLead(), ""); err == nil {
		t.Error("expected an error for a template that renders blank")
	}
}
