// Package quality contains the lead quality and suppression engine: pure
// decision functions over candidate emails and leads. No I/O and no
// persistence; callers apply the verdicts.
package quality

import (
	"net/mail"
	"strings"
)

// SuppressionReason explains why an email must never be contacted.
type SuppressionReason string

const (
	SuppressionNone              SuppressionReason = ""
	SuppressionInvalidEmail      SuppressionReason = "invalid_email"
	SuppressionPlaceholderDomain SuppressionReason = "placeholder_domain"
	SuppressionRoleAccount       SuppressionReason = "role_account"
)

var placeholderDomains = map[string]bool{
	"example.com":    true,
	"example.org":    true,
	"example.net":    true,
	"test.com":       true,
	"email.com":      true,
	"domain.com":     true,
	"yourdomain.com": true,
	"company.com":    true,
	"acme.test":      true,
	"localhost":      true,
	"invalid.com":    true,
	"sentry.io":      true,
	"wixpress.com":   true,
}

var roleLocalParts = []string{
	"info", "admin", "administrator", "support", "sales", "contact",
	"hello", "hi", "team", "office", "billing", "accounts", "invoices",
	"hr", "careers", "jobs", "recruiting", "marketing", "press", "media",
	"help", "helpdesk", "service", "services", "enquiries", "inquiries",
	"noreply", "no-reply", "donotreply", "webmaster", "postmaster",
	"hostmaster", "abuse", "privacy", "legal", "security", "compliance",
	"feedback", "newsletter", "subscriptions", "orders", "booking",
	"bookings", "reception", "general", "mail", "email", "enquiry",
}

// fuzzy containment skips tokens this short to avoid matching "hr" inside
// "christina" and similar false positives.
const fuzzyMinTokenLen = 4

// GetLeadEmailSuppressionReason returns the first reason the email must not
// be contacted, or SuppressionNone if it is acceptable. Checks run in order:
// address syntax, placeholder domains, role-account local parts.
func GetLeadEmailSuppressionReason(email string) SuppressionReason {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return SuppressionInvalidEmail
	}

	addr, err := mail.ParseAddress(normalized)
	if err != nil || addr.Address != normalized {
		return SuppressionInvalidEmail
	}

	at := strings.LastIndex(normalized, "@")
	local := normalized[:at]
	domain := normalized[at+1:]

	if local == "" || domain == "" || !strings.Contains(domain, ".") {
		return SuppressionInvalidEmail
	}

	if placeholderDomains[domain] {
		return SuppressionPlaceholderDomain
	}

	if isRoleLocalPart(local) {
		return SuppressionRoleAccount
	}

	return SuppressionNone
}

func isRoleLocalPart(local string) bool {
	// Strip plus-addressing before matching.
	if plus := strings.Index(local, "+"); plus > 0 {
		local = local[:plus]
	}

	for _, role := range roleLocalParts {
		if local == role {
			return true
		}
		if strings.HasPrefix(local, role+".") || strings.HasPrefix(local, role+"-") ||
			strings.HasPrefix(local, role+"_") {
			return true
		}
		if strings.HasSuffix(local, "."+role) || strings.HasSuffix(local, "-"+role) ||
			strings.HasSuffix(local, "_"+role) {
			return true
		}
		if len(role) >= fuzzyMinTokenLen && strings.Contains(local, role) {
			return true
		}
	}
	return false
}

// NormalizeEmail lower-cases and trims an email address. Returns "" for
// values that cannot possibly be an address.
func NormalizeEmail(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" || !strings.Contains(normalized, "@") {
		return ""
	}
	if strings.ContainsAny(normalized, " \t\n") {
		return ""
	}
	return normalized
}

// EmailDomain returns the domain part of a normalized email, or "".
func EmailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return ""
	}
	return email[at+1:]
}
