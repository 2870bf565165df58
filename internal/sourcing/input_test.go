package sourcing

import "testing"

func TestSchemaCompatible(t *testing.T) {
	tests := []struct {
		name     string
		stage    Stage
		required []string
		want     bool
	}{
		{"no required keys", StageEmailDiscovery, nil, true},
		{"satisfiable", StageEmailDiscovery, []string{"domains", "maxItems"}, true},
		{"case insensitive", StageProspectDiscovery, []string{"Queries"}, true},
		{"unsatisfiable key", StageEmailDiscovery, []string{"apiToken"}, false},
		{"wrong stage data", StageProspectDiscovery, []string{"domains"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason := SchemaCompatible(tt.stage, tt.required)
			if got != tt.want {
				t.Errorf("SchemaCompatible(%s, %v) = %v (%s), want %v", tt.stage, tt.required, got, reason, tt.want)
			}
		})
	}
}

func TestBuildStageInputEmailDiscoveryPrefersDomains(t *testing.T) {
	signals := SignalSnapshot{Domains: []string{"acme.io", "beta.dev"}}
	input := BuildStageInput(StageEmailDiscovery, []string{"domains", "maxItems"}, "saas founders", signals, 10)

	domains, ok := input["domains"].([]string)
	if !ok || len(domains) != 2 {
		t.Fatalf("expected domains list, got %v", input)
	}
	if input["maxItems"] != 10 {
		t.Errorf("expected maxItems=10, got %v", input["maxItems"])
	}
}

func TestBuildStageInputFallsBackToAudienceQuery(t *testing.T) {
	input := BuildStageInput(StageProspectDiscovery, nil, "plumbing companies in texas", SignalSnapshot{}, 10)
	if input["query"] != "plumbing companies in texas" {
		t.Errorf("expected audience as query, got %v", input)
	}
}

func TestRepairInputAppliesBoundedRules(t *testing.T) {
	input := map[string]any{"domains": []string{"acme.io", "beta.dev"}}
	fixed, applied, changed := RepairInput(input)
	if !changed {
		t.Fatal("expected a repair to apply")
	}
	if len(applied) > maxRepairRules {
		t.Errorf("applied %d rules, cap is %d", len(applied), maxRepairRules)
	}
	if fixed["domain"] != "acme.io" {
		t.Errorf("expected list key singularized, got %v", fixed)
	}
}

func TestRepairInputNoChange(t *testing.T) {
	input := map[string]any{"maxItems": 10}
	_, _, changed := RepairInput(input)
	if changed {
		t.Error("expected no repair for a purely numeric input")
	}
}
