package conversation

import (
	"context"
	"testing"

	"outreach_backend/platform/logger"
)

func TestClassifyUnsubscribeRule(t *testing.T) {
	c := NewClassifier(nil, logger.New("test"))

	tests := []struct {
		body string
		want bool
	}{
		{"please unsubscribe", true},
		{"UNSUBSCRIBE ME NOW", true},
		{"could you remove me from this list", true},
		{"stop emailing me", true},
		{"I'd like to opt out of these", true},
		{"sounds interesting, tell me more", false},
		{"who is this?", false},
	}

	for _, tt := range tests {
		got := c.Classify(context.Background(), tt.body)
		if (got.Intent == IntentUnsubscribe) != tt.want {
			t.Errorf("Classify(%q).Intent = %q, want unsubscribe=%v", tt.body, got.Intent, tt.want)
		}
		if tt.want && got.Confidence != unsubscribeConfidence {
			t.Errorf("Classify(%q).Confidence = %v, want %v", tt.body, got.Confidence, unsubscribeConfidence)
		}
		if tt.want && got.Sentiment != "negative" {
			t.Errorf("Classify(%q).Sentiment = %q, want negative", tt.body, got.Sentiment)
		}
	}
}

func TestClassifyWithoutModelIsNeutral(t *testing.T) {
	c := NewClassifier(nil, logger.New("test"))
	got := c.Classify(context.Background(), "thanks, let me think about it")
	if got.Intent != "other" || got.Sentiment != "neutral" {
		t.Errorf("expected neutral fallback, got %+v", got)
	}
	if got.Confidence >= 0.5 {
		t.Errorf("fallback confidence %v should stay below edge thresholds", got.Confidence)
	}
}

func TestNormalizeClassification(t *testing.T) {
	tests := []struct {
		name string
		in   Classification
		want Classification
	}{
		{
			"unknown intent collapses to other",
			Classification{Sentiment: "positive", Intent: "curious", Confidence: 0.7},
			Classification{Sentiment: "positive", Intent: "other", Confidence: 0.7},
		},
		{
			"confidence clamped",
			Classification{Sentiment: "negative", Intent: "objection", Confidence: 1.7},
			Classification{Sentiment: "negative", Intent: "objection", Confidence: 1},
		},
		{
			"model unsubscribe held to the floor",
			Classification{Sentiment: "negative", Intent: "Unsubscribe", Confidence: 0.4},
			Classification{Sentiment: "negative", Intent: "unsubscribe", Confidence: unsubscribeConfidence},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeClassification(tt.in); got != tt.want {
				t.Errorf("normalizeClassification(%+v) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}
