package quality

import "testing"

func TestEvaluateLeadAgainstPolicy(t *testing.T) {
	policy := DefaultPolicy()

	cases := []struct {
		name       string
		candidate  Candidate
		policy     Policy
		wantAccept bool
		wantReason string
	}{
		{
			name:       "full lead accepted",
			candidate:  Candidate{Email: "jane@acme.io", Name: "Jane Doe", Company: "Acme", Title: "CTO"},
			policy:     policy,
			wantAccept: true,
		},
		{
			name:       "name only clears default floor",
			candidate:  Candidate{Email: "jane@acme.io", Name: "Jane Doe"},
			policy:     policy,
			wantAccept: true,
		},
		{
			name:       "suppressed email is a hard floor",
			candidate:  Candidate{Email: "info@example.com", Name: "Jane", Company: "Acme", Title: "CTO"},
			policy:     policy,
			wantReason: "placeholder_domain",
		},
		{
			name:       "role inbox rejected by default",
			candidate:  Candidate{Email: "sales@acme.io", Name: "Jane", Company: "Acme"},
			policy:     policy,
			wantReason: "role_account",
		},
		{
			name: "role inbox allowed when policy permits",
			candidate: Candidate{
				Email: "sales@acme.io", Name: "Jane", Company: "Acme", Title: "CTO",
			},
			policy: Policy{AllowRoleInboxes: true, MinConfidenceScore: 0.5},
			wantAccept: true,
		},
		{
			name:       "free domain rejected by default",
			candidate:  Candidate{Email: "jane@gmail.com", Name: "Jane", Company: "Acme"},
			policy:     policy,
			wantReason: "free_domain",
		},
		{
			name:       "missing required name",
			candidate:  Candidate{Email: "jane@acme.io", Company: "Acme"},
			policy:     policy,
			wantReason: "missing_name",
		},
		{
			name:       "confidence below floor",
			candidate:  Candidate{Email: "jane@acme.io"},
			policy:     Policy{MinConfidenceScore: 0.5},
			wantReason: "low_confidence",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := EvaluateLeadAgainstPolicy(tc.candidate, tc.policy)
			if got.Accepted != tc.wantAccept {
				t.Fatalf("Accepted = %v, want %v (reason %q)", got.Accepted, tc.wantAccept, got.Reason)
			}
			if !tc.wantAccept && got.Reason != tc.wantReason {
				t.Errorf("Reason = %q, want %q", got.Reason, tc.wantReason)
			}
			if got.Accepted && got.Confidence < tc.policy.MinConfidenceScore {
				t.Errorf("accepted verdict below floor: %v", got.Confidence)
			}
		})
	}
}
