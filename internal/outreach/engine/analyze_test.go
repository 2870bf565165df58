package engine

import (
	"testing"

	"outreach_backend/internal/outreach/domain"
)

func TestDetectAnomaly(t *testing.T) {
	tests := []struct {
		name     string
		metrics  domain.RunMetrics
		wantType string
	}{
		{
			name:     "healthy run",
			metrics:  domain.RunMetrics{Sent: 200, Bounced: 2, Failed: 3, Replies: 20, Negative: 2},
			wantType: "",
		},
		{
			name:     "bounce rate above threshold with enough bounces",
			metrics:  domain.RunMetrics{Sent: 50, Bounced: 5},
			wantType: "bounce_rate",
		},
		{
			name:     "high bounce rate but below minimum count",
			metrics:  domain.RunMetrics{Sent: 10, Bounced: 4},
			wantType: "",
		},
		{
			name:     "error rate above threshold",
			metrics:  domain.RunMetrics{Sent: 70, Failed: 30},
			wantType: "error_rate",
		},
		{
			name:     "bounce check wins over error check",
			metrics:  domain.RunMetrics{Sent: 40, Bounced: 10, Failed: 30},
			wantType: "bounce_rate",
		},
		{
			name:     "negative replies above threshold with enough samples",
			metrics:  domain.RunMetrics{Sent: 100, Replies: 10, Negative: 4},
			wantType: "negative_reply_rate",
		},
		{
			name:     "negative rate high but too few negatives",
			metrics:  domain.RunMetrics{Sent: 100, Replies: 6, Negative: 3},
			wantType: "",
		},
		{
			name:     "exactly at bounce threshold does not fire",
			metrics:  domain.RunMetrics{Sent: 95, Bounced: 5},
			wantType: "",
		},
		{
			name:     "no activity",
			metrics:  domain.RunMetrics{},
			wantType: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectAnomaly(tt.metrics)
			if tt.wantType == "" {
				if got != nil {
					t.Fatalf("expected no anomaly, got %q", got.Type)
				}
				return
			}
			if got == nil {
				t.Fatalf("expected anomaly %q, got none", tt.wantType)
			}
			if got.Type != tt.wantType {
				t.Errorf("anomaly type = %q, want %q", got.Type, tt.wantType)
			}
		})
	}
}

func TestDetectAnomalySeverity(t *testing.T) {
	if a := detectAnomaly(domain.RunMetrics{Sent: 50, Bounced: 5}); a == nil || a.Severity != "critical" {
		t.Errorf("bounce anomaly severity = %v, want critical", a)
	}
	if a := detectAnomaly(domain.RunMetrics{Sent: 100, Replies: 10, Negative: 4}); a == nil || a.Severity != "warning" {
		t.Errorf("negative reply anomaly severity = %v, want warning", a)
	}
}

func TestRetryableClassification(t *testing.T) {
	plain := errTest("transient")
	if !retryable(plain) {
		t.Error("plain error should be retryable")
	}
	if retryable(permanent(plain)) {
		t.Error("wrapped permanent error should not be retryable")
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }
