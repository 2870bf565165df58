package sourcing

import "testing"

func TestSignalSetAbsorb(t *testing.T) {
	s := NewSignalSet()
	s.Absorb([]map[string]any{
		{
			"email":   "jane@acme.io",
			"website": "https://www.acme.io/about",
			"company": "Acme Corp",
			"contact": map[string]any{
				"workEmail": "john@beta.dev",
			},
		},
		{
			"description": "reach out at sales-contact sarah@gamma.co for details",
		},
	})

	for _, email := range []string{"jane@acme.io", "john@beta.dev", "sarah@gamma.co"} {
		if !s.Emails[email] {
			t.Errorf("expected email %q to be collected", email)
		}
	}
	if !s.Domains["acme.io"] {
		t.Error("expected domain acme.io from email and website")
	}
	if !s.Companies["Acme Corp"] {
		t.Error("expected company name to be collected")
	}
	if !s.Websites["https://www.acme.io/about"] {
		t.Error("expected website URL to be collected")
	}
}

func TestSignalSetAbsorbHTML(t *testing.T) {
	s := NewSignalSet()
	s.Absorb([]map[string]any{
		{"pageContent": `<div><a href="mailto:ceo@delta.org">Contact</a> <a href="https://delta.org/team">Team</a></div>`},
	})

	if !s.Emails["ceo@delta.org"] {
		t.Error("expected mailto link to yield an email")
	}
	if !s.Domains["delta.org"] {
		t.Error("expected delta.org domain")
	}
}

func TestSignalSetDepthBound(t *testing.T) {
	deep := map[string]any{"email": "deep@nested.io"}
	for i := 0; i < maxWalkDepth+3; i++ {
		deep = map[string]any{"wrap": deep}
	}
	s := NewSignalSet()
	s.Absorb([]map[string]any{deep})

	if s.Emails["deep@nested.io"] {
		t.Error("expected values beyond the depth bound to be ignored")
	}
}
