package conversation

import (
	"context"
	"strings"

	"outreach_backend/internal/gateway/completion"
	"outreach_backend/platform/logger"
)

// Classification is the sentiment and intent read from a reply body.
type Classification struct {
	Sentiment  string  `json:"sentiment"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

// unsubscribeConfidence is assigned when the rule-based pre-check fires; it
// clears any reasonable edge threshold so opt-outs never depend on the model.
const unsubscribeConfidence = 0.95

var unsubscribePhrases = []string{
	"unsubscribe",
	"remove me",
	"take me off",
	"stop emailing",
	"stop contacting",
	"opt out",
	"opt-out",
	"do not contact",
	"don't contact me",
}

// Classifier reads sentiment and intent from inbound reply bodies.
type Classifier struct {
	completer completion.Completer
	log       *logger.Logger
}

func NewClassifier(completer completion.Completer, log *logger.Logger) *Classifier {
	return &Classifier{completer: completer, log: log}
}

// Classify runs the rule-based unsubscribe pre-check, then the model. When
// the model is unavailable the reply is treated as a neutral, low-confidence
// "other" so the fallback edge decides.
func (c *Classifier) Classify(ctx context.Context, body string) Classification {
	if isUnsubscribe(body) {
		return Classification{Sentiment: "negative", Intent: IntentUnsubscribe, Confidence: unsubscribeConfidence}
	}

	if c.completer == nil {
		return neutralClassification()
	}

	var result Classification
	prompt := buildClassifyPrompt(body)
	if err := c.completer.CompleteJSON(ctx, prompt, &result); err != nil {
		c.log.GatewayError("completion", "classify_reply", err)
		return neutralClassification()
	}
	return normalizeClassification(result)
}

func isUnsubscribe(body string) bool {
	lower := strings.ToLower(body)
	for _, phrase := range unsubscribePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

func neutralClassification() Classification {
	return Classification{Sentiment: "neutral", Intent: "other", Confidence: 0.3}
}

var knownIntents = map[string]bool{
	"interested":      true,
	"not_interested":  true,
	"question":        true,
	"objection":       true,
	"out_of_office":   true,
	"wrong_person":    true,
	"meeting_request": true,
	IntentUnsubscribe: true,
	"other":           true,
}

var knownSentiments = map[string]bool{
	"positive": true,
	"neutral":  true,
	"negative": true,
}

func normalizeClassification(c Classification) Classification {
	c.Intent = strings.ToLower(strings.TrimSpace(c.Intent))
	c.Sentiment = strings.ToLower(strings.TrimSpace(c.Sentiment))
	if !knownIntents[c.Intent] {
		c.Intent = "other"
	}
	if !knownSentiments[c.Sentiment] {
		c.Sentiment = "neutral"
	}
	if c.Confidence < 0 {
		c.Confidence = 0
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}
	// The model never outranks the rule on opt-outs, but when it does call
	// unsubscribe, hold it to the same floor.
	if c.Intent == IntentUnsubscribe && c.Confidence < unsubscribeConfidence {
		c.Confidence = unsubscribeConfidence
	}
	return c
}

func buildClassifyPrompt(body string) string {
	var b strings.Builder
	b.WriteString(`Classify this email reply from a cold-outreach recipient.

Sentiments: positive, neutral, negative.
Intents: interested, not_interested, question, objection, out_of_office, wrong_person, meeting_request, unsubscribe, other.

Respond with only a JSON object:
{"sentiment": "...", "intent": "...", "confidence": 0.0}

Reply body:
`)
	if len(body) > 4000 {
		body = body[:4000]
	}
	b.WriteString(body)
	return b.String()
}
