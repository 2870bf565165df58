package quality

import "strings"

// Policy holds the thresholds a sourced lead must clear before it is
// persisted and messaged.
type Policy struct {
	AllowFreeDomains   bool    `json:"allowFreeDomains"`
	AllowRoleInboxes   bool    `json:"allowRoleInboxes"`
	RequireName        bool    `json:"requireName"`
	RequireCompany     bool    `json:"requireCompany"`
	RequireTitle       bool    `json:"requireTitle"`
	MinConfidenceScore float64 `json:"minConfidenceScore"`
}

// DefaultPolicy is the baseline used when a run carries no adaptive policy.
func DefaultPolicy() Policy {
	return Policy{
		AllowFreeDomains:   false,
		AllowRoleInboxes:   false,
		RequireName:        true,
		RequireCompany:     false,
		RequireTitle:       false,
		MinConfidenceScore: 0.5,
	}
}

// Candidate is the subset of a lead the policy evaluates.
type Candidate struct {
	Email   string
	Name    string
	Company string
	Title   string
}

// Verdict is the outcome of a policy evaluation.
type Verdict struct {
	Accepted   bool
	Reason     string
	Confidence float64
}

var freeEmailDomains = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
	"yahoo.com":      true,
	"yahoo.co.uk":    true,
	"hotmail.com":    true,
	"hotmail.co.uk":  true,
	"outlook.com":    true,
	"live.com":       true,
	"msn.com":        true,
	"aol.com":        true,
	"icloud.com":     true,
	"me.com":         true,
	"proton.me":      true,
	"protonmail.com": true,
	"gmx.com":        true,
	"gmx.de":         true,
	"mail.com":       true,
	"yandex.com":     true,
	"yandex.ru":      true,
	"zoho.com":       true,
}

// EvaluateLeadAgainstPolicy decides whether a candidate lead is acceptable.
// The suppression check is a hard floor: a suppressed email never passes,
// except role inboxes when the policy explicitly allows them. The confidence
// score is derived from field presence and gated by MinConfidenceScore.
func EvaluateLeadAgainstPolicy(c Candidate, p Policy) Verdict {
	email := NormalizeEmail(c.Email)
	reason := GetLeadEmailSuppressionReason(email)
	switch reason {
	case SuppressionNone:
	case SuppressionRoleAccount:
		if !p.AllowRoleInboxes {
			return Verdict{Reason: string(reason)}
		}
	default:
		return Verdict{Reason: string(reason)}
	}

	if !p.AllowFreeDomains && freeEmailDomains[EmailDomain(email)] {
		return Verdict{Reason: "free_domain"}
	}

	hasName := strings.TrimSpace(c.Name) != ""
	hasCompany := strings.TrimSpace(c.Company) != ""
	hasTitle := strings.TrimSpace(c.Title) != ""

	if p.RequireName && !hasName {
		return Verdict{Reason: "missing_name"}
	}
	if p.RequireCompany && !hasCompany {
		return Verdict{Reason: "missing_company"}
	}
	if p.RequireTitle && !hasTitle {
		return Verdict{Reason: "missing_title"}
	}

	confidence := 0.4
	if hasName {
		confidence += 0.25
	}
	if hasCompany {
		confidence += 0.2
	}
	if hasTitle {
		confidence += 0.15
	}
	if reason == SuppressionRoleAccount {
		confidence -= 0.2
	}
	if confidence > 1 {
		confidence = 1
	}

	if confidence < p.MinConfidenceScore {
		return Verdict{Reason: "low_confidence", Confidence: confidence}
	}

	return Verdict{Accepted: true, Confidence: confidence}
}
