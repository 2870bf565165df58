package sourcing

import (
	"net/mail"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// maxWalkDepth bounds the recursive descent into provider payloads. Dataset
// rows from unknown actors nest arbitrarily; anything deeper carries no
// usable signal.
const maxWalkDepth = 6

var emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

// SignalSet accumulates everything the probe phase learns about the target
// audience across chain steps. Later steps draw their inputs from it.
type SignalSet struct {
	Emails    map[string]bool
	Domains   map[string]bool
	Websites  map[string]bool
	Companies map[string]bool
	Queries   map[string]bool
}

func NewSignalSet() *SignalSet {
	return &SignalSet{
		Emails:    map[string]bool{},
		Domains:   map[string]bool{},
		Websites:  map[string]bool{},
		Companies: map[string]bool{},
		Queries:   map[string]bool{},
	}
}

func (s *SignalSet) AddQuery(q string) {
	q = strings.TrimSpace(q)
	if q != "" {
		s.Queries[q] = true
	}
}

// Absorb walks every row and collects emails, domains, websites, and company
// names wherever they appear in the structure.
func (s *SignalSet) Absorb(items []map[string]any) {
	for _, item := range items {
		for key, value := range item {
			s.absorbValue(strings.ToLower(key), value, 0)
		}
	}
}

func (s *SignalSet) absorbValue(key string, value any, depth int) {
	if depth > maxWalkDepth {
		return
	}
	switch v := value.(type) {
	case string:
		s.absorbString(key, v)
	case map[string]any:
		for k, nested := range v {
			s.absorbValue(strings.ToLower(k), nested, depth+1)
		}
	case []any:
		for _, nested := range v {
			s.absorbValue(key, nested, depth+1)
		}
	}
}

func (s *SignalSet) absorbString(key, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}

	if looksLikeHTML(value) {
		s.absorbHTML(value)
		return
	}

	for _, match := range emailPattern.FindAllString(value, -1) {
		s.addEmail(match)
	}

	switch {
	case strings.Contains(key, "website") || strings.Contains(key, "url") || strings.HasPrefix(value, "http"):
		s.addWebsite(value)
	case strings.Contains(key, "company") || strings.Contains(key, "organization") || strings.Contains(key, "employer"):
		if len(value) < 120 {
			s.Companies[value] = true
		}
	case strings.Contains(key, "domain"):
		s.Domains[strings.ToLower(value)] = true
	}
}

// absorbHTML scans markup fields for mailto links, hrefs, and visible text.
func (s *SignalSet) absorbHTML(markup string) {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return
	}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if strings.HasPrefix(attr.Val, "mailto:") {
					s.addEmail(strings.TrimPrefix(attr.Val, "mailto:"))
				} else if strings.HasPrefix(attr.Val, "http") {
					s.addWebsite(attr.Val)
				}
			}
		}
		if n.Type == html.TextNode {
			for _, match := range emailPattern.FindAllString(n.Data, -1) {
				s.addEmail(match)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
}

func (s *SignalSet) addEmail(raw string) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return
	}
	email := strings.ToLower(addr.Address)
	s.Emails[email] = true
	if at := strings.LastIndex(email, "@"); at > 0 {
		s.Domains[email[at+1:]] = true
	}
}

func (s *SignalSet) addWebsite(raw string) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return
	}
	s.Websites[u.String()] = true
	s.Domains[strings.TrimPrefix(strings.ToLower(u.Host), "www.")] = true
}

// Snapshot returns sorted-insensitive slices for building provider inputs.
func (s *SignalSet) Snapshot() SignalSnapshot {
	return SignalSnapshot{
		Emails:    keys(s.Emails),
		Domains:   keys(s.Domains),
		Websites:  keys(s.Websites),
		Companies: keys(s.Companies),
		Queries:   keys(s.Queries),
	}
}

// SignalSnapshot is an immutable view of the signal set.
type SignalSnapshot struct {
	Emails    []string `json:"emails"`
	Domains   []string `json:"domains"`
	Websites  []string `json:"websites"`
	Companies []string `json:"companies"`
	Queries   []string `json:"queries"`
}

func looksLikeHTML(s string) bool {
	return strings.Contains(s, "</") || strings.Contains(s, "/>") ||
		(strings.Contains(s, "<a ") && strings.Contains(s, "href"))
}

func keys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
