package conversation

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"outreach_backend/internal/gateway/completion"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/platform/logger"
)

// Content is one composed outbound turn.
type Content struct {
	Subject string
	Body    string
	Meta    map[string]any
}

// TemplateData is what node templates may reference.
type TemplateData struct {
	Name      string
	FirstName string
	Company   string
	Title     string
	Email     string
}

// Composer produces message content for flow nodes: template rendering for
// templated nodes, model generation for prompt nodes.
type Composer struct {
	completer completion.Completer
	log       *logger.Logger
}

func NewComposer(completer completion.Completer, log *logger.Logger) *Composer {
	return &Composer{completer: completer, log: log}
}

// Compose builds the content for a node. Prompt nodes without a reachable
// model, and templates that render empty, are generation failures; the caller
// records the rejection and leaves the session untouched.
func (c *Composer) Compose(ctx context.Context, node Node, lead domain.Lead, replyContext string) (Content, error) {
	data := templateData(lead)

	if node.Prompt != "" {
		return c.composeFromPrompt(ctx, node, data, replyContext)
	}
	if node.BodyTemplate == "" {
		return Content{}, fmt.Errorf("node %q has neither a template nor a prompt", node.ID)
	}

	subject, err := renderTemplate("subject", node.Subject, data)
	if err != nil {
		return Content{}, fmt.Errorf("subject template for node %q: %w", node.ID, err)
	}
	body, err := renderTemplate("body", node.BodyTemplate, data)
	if err != nil {
		return Content{}, fmt.Errorf("body template for node %q: %w", node.ID, err)
	}
	if strings.TrimSpace(body) == "" {
		return Content{}, fmt.Errorf("node %q rendered an empty body", node.ID)
	}

	return Content{
		Subject: subject,
		Body:    body,
		Meta:    map[string]any{"source": "template", "nodeId": node.ID},
	}, nil
}

type generatedContent struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (c *Composer) composeFromPrompt(ctx context.Context, node Node, data TemplateData, replyContext string) (Content, error) {
	if c.completer == nil {
		return Content{}, fmt.Errorf("node %q requires generation but no completion gateway is configured", node.ID)
	}

	prompt, err := renderTemplate("prompt", node.Prompt, data)
	if err != nil {
		return Content{}, fmt.Errorf("prompt template for node %q: %w", node.ID, err)
	}

	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nRecipient: ")
	b.WriteString(data.Name)
	if data.Title != "" {
		b.WriteString(", ")
		b.WriteString(data.Title)
	}
	if data.Company != "" {
		b.WriteString(" at ")
		b.WriteString(data.Company)
	}
	if replyContext != "" {
		b.WriteString("\n\nTheir last reply:\n")
		b.WriteString(replyContext)
	}
	b.WriteString("\n\nRespond with only a JSON object: {\"subject\": \"...\", \"body\": \"...\"}")

	var gen generatedContent
	if err := c.completer.CompleteJSON(ctx, b.String(), &gen); err != nil {
		return Content{}, fmt.Errorf("generation for node %q failed: %w", node.ID, err)
	}
	if strings.TrimSpace(gen.Body) == "" {
		return Content{}, fmt.Errorf("generation for node %q returned an empty body", node.ID)
	}

	return Content{
		Subject: gen.Subject,
		Body:    gen.Body,
		Meta:    map[string]any{"source": "generated", "nodeId": node.ID},
	}, nil
}

func templateData(lead domain.Lead) TemplateData {
	first := lead.Name
	if i := strings.IndexByte(first, ' '); i > 0 {
		first = first[:i]
	}
	return TemplateData{
		Name:      lead.Name,
		FirstName: first,
		Company:   lead.Company,
		Title:     lead.Title,
		Email:     lead.Email,
	}
}

func renderTemplate(name, text string, data TemplateData) (string, error) {
	if text == "" {
		return "", nil
	}
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", err
	}
	var out strings.Builder
	if err := tmpl.Execute(&out, data); err != nil {
		return "", err
	}
	return out.String(), nil
}
