package sourcing

import "testing"

func TestValidateStageOrder(t *testing.T) {
	tests := []struct {
		name    string
		stages  []Stage
		wantErr bool
	}{
		{"email only", []Stage{StageEmailDiscovery}, false},
		{"prospect then email", []Stage{StageProspectDiscovery, StageEmailDiscovery}, false},
		{"full chain", []Stage{StageProspectDiscovery, StageWebsiteEnrichment, StageEmailDiscovery}, false},
		{"empty", nil, true},
		{"enrichment then email", []Stage{StageWebsiteEnrichment, StageEmailDiscovery}, true},
		{"wrong final stage", []Stage{StageProspectDiscovery}, true},
		{"repeated stage", []Stage{StageEmailDiscovery, StageEmailDiscovery}, true},
		{"reversed", []Stage{StageEmailDiscovery, StageProspectDiscovery}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStageOrder(tt.stages)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateStageOrder(%v) error = %v, wantErr %v", tt.stages, err, tt.wantErr)
			}
		})
	}
}

func TestSelectCandidatePrefersQualityOverVolume(t *testing.T) {
	candidates := []ChainCandidate{
		{ID: "a", Steps: []ChainStep{{Stage: StageEmailDiscovery, ActorID: "x"}}},
		{ID: "b", Steps: []ChainStep{{Stage: StageEmailDiscovery, ActorID: "y"}}},
	}
	outcomes := []ProbeOutcome{
		{CandidateID: "a", Completed: true, AcceptedLeads: 8, RejectedLeads: 12, QualityRate: 0.4},
		{CandidateID: "b", Completed: true, AcceptedLeads: 5, RejectedLeads: 1, QualityRate: 0.83},
	}

	selected, ok := SelectCandidate(candidates, outcomes)
	if !ok {
		t.Fatal("expected a selection")
	}
	if selected.ID != "b" {
		t.Errorf("selected %q, want high-quality candidate b", selected.ID)
	}
}

func TestSelectCandidateSkipsFailedAndUnprobed(t *testing.T) {
	candidates := []ChainCandidate{
		{ID: "a"}, {ID: "b"}, {ID: "c"},
	}
	outcomes := []ProbeOutcome{
		{CandidateID: "a", Completed: true, AcceptedLeads: 0},
		{CandidateID: "b", FailReason: "probe budget exhausted before candidate could run"},
		{CandidateID: "c", Completed: true, AcceptedLeads: 3, QualityRate: 0.6},
	}

	selected, ok := SelectCandidate(candidates, outcomes)
	if !ok || selected.ID != "c" {
		t.Errorf("selected %q ok=%v, want c", selected.ID, ok)
	}
}

func TestSelectCandidateNoneViable(t *testing.T) {
	outcomes := []ProbeOutcome{
		{CandidateID: "a", FailReason: "step failed"},
		{CandidateID: "b", FailReason: "probe budget exhausted"},
	}
	if _, ok := SelectCandidate([]ChainCandidate{{ID: "a"}, {ID: "b"}}, outcomes); ok {
		t.Error("expected no selection when every candidate failed")
	}
}
