package sourcing

import (
	"fmt"
	"strings"
)

// stage input builders: each knows which schema keys it can satisfy from the
// audience string and the accumulated signals.

type inputBuilder struct {
	stage Stage
}

// satisfiable keys per stage, lowercase. A required schema key outside this
// set means the actor is incompatible with the stage's driving data.
var stageSatisfiableKeys = map[Stage]map[string]bool{
	StageProspectDiscovery: {
		"query": true, "queries": true, "search": true, "searchterms": true,
		"keyword": true, "keywords": true, "location": true, "maxitems": true,
		"maxresults": true, "limit": true,
	},
	StageWebsiteEnrichment: {
		"url": true, "urls": true, "starturls": true, "website": true,
		"websites": true, "domain": true, "domains": true, "maxitems": true,
		"maxdepth": true, "limit": true,
	},
	StageEmailDiscovery: {
		"domain": true, "domains": true, "company": true, "companies": true,
		"url": true, "urls": true, "website": true, "websites": true,
		"query": true, "queries": true, "name": true, "names": true,
		"maxitems": true, "limit": true,
	},
}

// SchemaCompatible reports whether every required key can be produced for the
// stage. An empty required list is always compatible.
func SchemaCompatible(stage Stage, requiredKeys []string) (bool, string) {
	satisfiable := stageSatisfiableKeys[stage]
	for _, key := range requiredKeys {
		if !satisfiable[strings.ToLower(key)] {
			return false, fmt.Sprintf("required input %q cannot be satisfied for stage %s", key, stage)
		}
	}
	return true, ""
}

// BuildStageInput assembles the actor input from the audience and signals,
// shaping values to the schema's known keys where possible.
func BuildStageInput(stage Stage, knownKeys []string, audience string, signals SignalSnapshot, maxItems int) map[string]any {
	known := make(map[string]bool, len(knownKeys))
	for _, k := range knownKeys {
		known[strings.ToLower(k)] = true
	}
	has := func(k string) bool { return len(known) == 0 || known[k] }

	input := map[string]any{}
	switch stage {
	case StageProspectDiscovery:
		switch {
		case has("queries"):
			input["queries"] = nonEmpty(signals.Queries, audience)
		case has("searchterms"):
			input["searchTerms"] = nonEmpty(signals.Queries, audience)
		case has("keywords"):
			input["keywords"] = nonEmpty(signals.Queries, audience)
		default:
			input["query"] = audience
		}
	case StageWebsiteEnrichment:
		urls := signals.Websites
		if len(urls) == 0 {
			urls = domainsToURLs(signals.Domains)
		}
		switch {
		case has("starturls"):
			input["startUrls"] = wrapStartURLs(urls)
		case has("urls"):
			input["urls"] = urls
		case has("domains"):
			input["domains"] = signals.Domains
		default:
			if len(urls) > 0 {
				input["url"] = urls[0]
			}
		}
	case StageEmailDiscovery:
		switch {
		case len(signals.Domains) > 0 && has("domains"):
			input["domains"] = signals.Domains
		case len(signals.Domains) > 0 && has("domain"):
			input["domain"] = signals.Domains[0]
		case len(signals.Websites) > 0 && has("urls"):
			input["urls"] = signals.Websites
		case len(signals.Companies) > 0 && has("companies"):
			input["companies"] = signals.Companies
		case has("queries"):
			input["queries"] = nonEmpty(signals.Queries, audience)
		default:
			input["query"] = audience
		}
	}

	switch {
	case has("maxitems"):
		input["maxItems"] = maxItems
	case has("maxresults"):
		input["maxResults"] = maxItems
	case has("limit"):
		input["limit"] = maxItems
	}
	return input
}

// repairRule rewrites an input after a provider input-shape rejection.
type repairRule struct {
	name  string
	apply func(map[string]any) (map[string]any, bool)
}

// repairRules are alternative rewrites tried in order after a provider
// rejects the input shape. Only one rewrite is ever applied.
var repairRules = []repairRule{
	{
		name: "singularize_list_keys",
		apply: func(in map[string]any) (map[string]any, bool) {
			out, changed := map[string]any{}, false
			for k, v := range in {
				if list, ok := v.([]string); ok && len(list) > 0 && strings.HasSuffix(k, "s") {
					out[strings.TrimSuffix(k, "s")] = list[0]
					changed = true
					continue
				}
				out[k] = v
			}
			return out, changed
		},
	},
	{
		name: "wrap_scalars_in_lists",
		apply: func(in map[string]any) (map[string]any, bool) {
			out, changed := map[string]any{}, false
			for k, v := range in {
				if s, ok := v.(string); ok && k != "query" {
					out[k+"s"] = []string{s}
					changed = true
					continue
				}
				out[k] = v
			}
			return out, changed
		},
	},
}

const maxRepairRules = 2

// RepairInput tries the rewrite rules in order and returns the first rewrite
// that changed the input. At most maxRepairRules rules are considered.
func RepairInput(input map[string]any) (map[string]any, []string, bool) {
	rules := repairRules
	if len(rules) > maxRepairRules {
		rules = rules[:maxRepairRules]
	}
	for _, rule := range rules {
		if next, changed := rule.apply(input); changed {
			return next, []string{rule.name}, true
		}
	}
	return input, nil, false
}

func nonEmpty(list []string, fallback string) []string {
	if len(list) > 0 {
		return list
	}
	return []string{fallback}
}

func domainsToURLs(domains []string) []string {
	out := make([]string, 0, len(domains))
	for _, d := range domains {
		out = append(out, "https://"+d)
	}
	return out
}

func wrapStartURLs(urls []string) []map[string]string {
	out := make([]map[string]string, 0, len(urls))
	for _, u := range urls {
		out = append(out, map[string]string{"url": u})
	}
	return out
}
