package domain

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from RunStatus
		to   RunStatus
		want bool
	}{
		{"queued starts sourcing", RunQueued, RunSourcing, true},
		{"queued cannot skip to sending", RunQueued, RunSending, false},
		{"sourcing to scheduled", RunSourcing, RunScheduled, true},
		{"sending self loop", RunSending, RunSending, true},
		{"sending to monitoring", RunSending, RunMonitoring, true},
		{"monitoring back to sending", RunMonitoring, RunSending, true},
		{"monitoring to completed", RunMonitoring, RunCompleted, true},
		{"paused resumes to sending", RunPaused, RunSending, true},
		{"paused resumes to monitoring", RunPaused, RunMonitoring, true},
		{"completed is final", RunCompleted, RunSending, false},
		{"canceled is final", RunCanceled, RunMonitoring, false},
		{"failed is final", RunFailed, RunQueued, false},
		{"preflight failed is final", RunPreflightFailed, RunQueued, false},
		{"cancel allowed mid sourcing", RunSourcing, RunCanceled, true},
		{"pause not allowed before scheduling", RunSourcing, RunPaused, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestTerminalStatesAreNotOpen(t *testing.T) {
	for _, s := range []RunStatus{RunQueued, RunSourcing, RunScheduled, RunSending, RunMonitoring, RunPaused, RunCompleted, RunCanceled, RunFailed, RunPreflightFailed} {
		if s.IsOpen() && s.IsTerminal() {
			t.Errorf("status %s is both open and terminal", s)
		}
		if !s.IsOpen() && !s.IsTerminal() {
			t.Errorf("status %s is neither open nor terminal", s)
		}
	}
}

func TestTransitionsStayWithinOpenStates(t *testing.T) {
	// Only terminal states and pauses may leave the open set, and nothing
	// leaves a terminal state.
	for from, targets := range runTransitions {
		if from.IsTerminal() {
			t.Errorf("terminal status %s has outgoing transitions", from)
		}
		for _, to := range targets {
			if !to.IsOpen() && !to.IsTerminal() {
				t.Errorf("transition %s -> %s leaves the state machine", from, to)
			}
		}
	}
}

func TestApplyMetricsDelta(t *testing.T) {
	m := RunMetrics{Sent: 10, Bounced: 1, Replies: 2}
	got := ApplyMetricsDelta(m, MetricsDelta{Sent: 3, Bounced: 1, Replies: 1, Positive: 1})
	if got.Sent != 13 || got.Bounced != 2 || got.Replies != 3 || got.Positive != 1 {
		t.Errorf("ApplyMetricsDelta = %+v", got)
	}
	// Input value is not mutated.
	if m.Sent != 10 {
		t.Errorf("input metrics mutated: %+v", m)
	}
}
