package sourcing

import "testing"

func TestParseLeads(t *testing.T) {
	items := []map[string]any{
		{
			"email":    "Jane@Acme.io",
			"fullName": "Jane Doe",
			"company":  "Acme",
			"jobTitle": "CTO",
			"url":      "https://linkedin.com/in/janedoe",
		},
		{
			"first_name": "John",
			"last_name":  "Smith",
			"contact":    map[string]any{"workEmail": "john@beta.dev"},
			"organization": map[string]any{
				"companyName": "Beta Labs",
			},
		},
		{"name": "No Email Person"},
		{"email": "jane@acme.io", "fullName": "Duplicate Jane"},
	}

	leads := ParseLeads(items)
	if len(leads) != 2 {
		t.Fatalf("expected 2 leads, got %d", len(leads))
	}

	first := leads[0]
	if first.Email != "jane@acme.io" {
		t.Errorf("email = %q, want normalized jane@acme.io", first.Email)
	}
	if first.Name != "Jane Doe" || first.Company != "Acme" || first.Title != "CTO" {
		t.Errorf("unexpected first lead: %+v", first)
	}
	if first.Domain != "acme.io" {
		t.Errorf("domain = %q, want acme.io", first.Domain)
	}

	second := leads[1]
	if second.Email != "john@beta.dev" {
		t.Errorf("nested email = %q, want john@beta.dev", second.Email)
	}
	if second.Name != "John Smith" {
		t.Errorf("composed name = %q, want John Smith", second.Name)
	}
	if second.Company != "Beta Labs" {
		t.Errorf("nested company = %q, want Beta Labs", second.Company)
	}
}
