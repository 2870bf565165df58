package conversation

import (
	"testing"

	"outreach_backend/internal/outreach/domain"
)

func TestAdvanceOutcome(t *testing.T) {
	tests := []struct {
		name       string
		target     Node
		nextTurn   int
		maxDepth   int
		wantState  domain.SessionState
		wantReason string
	}{
		{
			name:       "terminal target completes",
			target:     Node{ID: "closed", Terminal: true},
			nextTurn:   2,
			maxDepth:   6,
			wantState:  domain.SessionCompleted,
			wantReason: ReasonTerminalNode,
		},
		{
			name:       "depth bound forces completion",
			target:     Node{ID: "follow_up_3", AutoSend: true},
			nextTurn:   6,
			maxDepth:   6,
			wantState:  domain.SessionCompleted,
			wantReason: ReasonMaxDepth,
		},
		{
			name:       "terminal target at depth bound keeps terminal reason",
			target:     Node{ID: "closed", Terminal: true},
			nextTurn:   6,
			maxDepth:   6,
			wantState:  domain.SessionCompleted,
			wantReason: ReasonTerminalNode,
		},
		{
			name:      "manual target parks the session",
			target:    Node{ID: "handoff"},
			nextTurn:  2,
			maxDepth:  6,
			wantState: domain.SessionWaitingManual,
		},
		{
			name:      "auto send target stays active",
			target:    Node{ID: "follow_up_1", AutoSend: true},
			nextTurn:  2,
			maxDepth:  6,
			wantState: domain.SessionActive,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, reason := advanceOutcome(tt.target, tt.nextTurn, tt.maxDepth)
			if state != tt.wantState {
				t.Errorf("state = %s, want %s", state, tt.wantState)
			}
			switch {
			case tt.wantReason == "" && reason != nil:
				t.Errorf("reason = %q, want none", *reason)
			case tt.wantReason != "" && (reason == nil || *reason != tt.wantReason):
				t.Errorf("reason = %v, want %q", reason, tt.wantReason)
			}
		})
	}
}

func TestParkedSessionIsNotTerminal(t *testing.T) {
	if domain.SessionWaitingManual.Terminal() {
		t.Error("waiting_manual must keep the session open for a human")
	}
	if !domain.SessionFailed.Terminal() {
		t.Error("failed must be terminal")
	}
}
