package sourcing

import (
	"strings"

	"outreach_backend/internal/quality"
)

// ParsedLead is one person-level record extracted from a dataset row.
type ParsedLead struct {
	Email     string
	Name      string
	Company   string
	Title     string
	Domain    string
	SourceURL string
}

var (
	emailKeys   = []string{"email", "emailaddress", "contactemail", "workemail"}
	nameKeys    = []string{"fullname", "name", "contactname"}
	firstKeys   = []string{"firstname", "first_name"}
	lastKeys    = []string{"lastname", "last_name"}
	companyKeys = []string{"company", "companyname", "organization", "organizationname", "employer"}
	titleKeys   = []string{"title", "jobtitle", "position", "role", "headline"}
	urlKeys     = []string{"url", "profileurl", "sourceurl", "website", "linkedinurl"}
)

// ParseLeads extracts person-level leads from provider rows. Rows without a
// parseable email are dropped; suppression and policy checks come later.
func ParseLeads(items []map[string]any) []ParsedLead {
	var out []ParsedLead
	seen := map[string]bool{}
	for _, item := range items {
		flat := flatten(item, 0)

		email := quality.NormalizeEmail(pick(flat, emailKeys))
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true

		name := pick(flat, nameKeys)
		if name == "" {
			first, last := pick(flat, firstKeys), pick(flat, lastKeys)
			name = strings.TrimSpace(first + " " + last)
		}

		out = append(out, ParsedLead{
			Email:     email,
			Name:      name,
			Company:   pick(flat, companyKeys),
			Title:     pick(flat, titleKeys),
			Domain:    quality.EmailDomain(email),
			SourceURL: pick(flat, urlKeys),
		})
	}
	return out
}

// Candidate converts the lead to its quality-evaluation form.
func (l ParsedLead) Candidate() quality.Candidate {
	return quality.Candidate{Email: l.Email, Name: l.Name, Company: l.Company, Title: l.Title}
}

// flatten lowers nested maps into a single key space, keeping the leaf key.
// Outer values win on collision so top-level fields beat nested ones.
func flatten(item map[string]any, depth int) map[string]string {
	out := map[string]string{}
	if depth > maxWalkDepth {
		return out
	}
	for key, value := range item {
		lk := strings.ToLower(strings.ReplaceAll(key, "_", ""))
		switch v := value.(type) {
		case string:
			if _, exists := out[lk]; !exists {
				out[lk] = strings.TrimSpace(v)
			}
		case map[string]any:
			for nk, nv := range flatten(v, depth+1) {
				if _, exists := out[nk]; !exists {
					out[nk] = nv
				}
			}
		}
	}
	return out
}

func pick(flat map[string]string, candidates []string) string {
	for _, key := range candidates {
		if v := flat[strings.ReplaceAll(key, "_", "")]; v != "" {
			return v
		}
	}
	return ""
}
