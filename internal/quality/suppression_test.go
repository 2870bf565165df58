package quality

import "testing"

func TestGetLeadEmailSuppressionReason(t *testing.T) {
	cases := []struct {
		email string
		want  SuppressionReason
	}{
		{"jane@acme.io", SuppressionNone},
		{"jane.doe@northwind-partners.co.uk", SuppressionNone},
		{"JANE@ACME.IO", SuppressionNone},
		{"  jane@acme.io  ", SuppressionNone},

		{"", SuppressionInvalidEmail},
		{"not-an-email", SuppressionInvalidEmail},
		{"jane@", SuppressionInvalidEmail},
		{"@acme.io", SuppressionInvalidEmail},
		{"jane doe@acme.io", SuppressionInvalidEmail},
		{"jane@acme", SuppressionInvalidEmail},

		{"info@example.com", SuppressionPlaceholderDomain},
		{"jane@test.com", SuppressionPlaceholderDomain},
		{"jane@yourdomain.com", SuppressionPlaceholderDomain},

		{"info@acme.io", SuppressionRoleAccount},
		{"support@acme.io", SuppressionRoleAccount},
		{"sales-team@acme.io", SuppressionRoleAccount},
		{"uk.sales@acme.io", SuppressionRoleAccount},
		{"no-reply@acme.io", SuppressionRoleAccount},
		{"customersupport@acme.io", SuppressionRoleAccount},
		{"info+tag@acme.io", SuppressionRoleAccount},
	}

	for _, tc := range cases {
		if got := GetLeadEmailSuppressionReason(tc.email); got != tc.want {
			t.Errorf("GetLeadEmailSuppressionReason(%q) = %q, want %q", tc.email, got, tc.want)
		}
	}
}

func TestFuzzyRoleMatchSkipsShortTokens(t *testing.T) {
	// "hr" is a role inbox but must not match inside a person's name.
	if got := GetLeadEmailSuppressionReason("hr@acme.io"); got != SuppressionRoleAccount {
		t.Errorf("exact short token: got %q, want role_account", got)
	}
	if got := GetLeadEmailSuppressionReason("christina@acme.io"); got != SuppressionNone {
		t.Errorf("short token containment: got %q, want none", got)
	}
}

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail(" Jane@Acme.IO "); got != "jane@acme.io" {
		t.Errorf("NormalizeEmail = %q", got)
	}
	if got := NormalizeEmail("nonsense"); got != "" {
		t.Errorf("NormalizeEmail(nonsense) = %q, want empty", got)
	}
}
