package sourcing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"outreach_backend/internal/gateway/completion"
)

// maxChainCandidates bounds how many plans the prober will consider.
const maxChainCandidates = 4

type generatedChain struct {
	Strategy  string   `json:"strategy"`
	Rationale string   `json:"rationale"`
	Stages    []string `json:"stages"`
	// ActorIndex picks the nth ranked actor per stage, letting the model
	// diversify without inventing actor ids.
	ActorIndex int `json:"actorIndex"`
}

// GenerateChainCandidates asks the completion gateway for distinct plans over
// the ranked pool, validates each, and falls back to deterministic chains
// when the model is unavailable or returns nothing usable.
func (e *Engine) GenerateChainCandidates(ctx context.Context, audience string, pool *ActorPool) []ChainCandidate {
	candidates := e.generateViaCompletion(ctx, audience, pool)
	if len(candidates) == 0 {
		candidates = fallbackCandidates(pool)
	}
	if len(candidates) > maxChainCandidates {
		candidates = candidates[:maxChainCandidates]
	}
	return candidates
}

func (e *Engine) generateViaCompletion(ctx context.Context, audience string, pool *ActorPool) []ChainCandidate {
	if e.completer == nil {
		return nil
	}

	prompt := buildChainPrompt(audience, pool)
	var chains []generatedChain
	if err := e.completer.CompleteJSON(ctx, prompt, &chains); err != nil {
		if !errors.Is(err, completion.ErrDisabled) {
			e.log.GatewayError("completion", "chain_candidates", err)
		}
		return nil
	}

	var out []ChainCandidate
	for i, chain := range chains {
		stages := make([]Stage, len(chain.Stages))
		for j, s := range chain.Stages {
			stages[j] = Stage(strings.TrimSpace(s))
		}
		if err := ValidateStageOrder(stages); err != nil {
			e.log.Warn("discarding generated chain", "error", err)
			continue
		}
		steps, ok := bindSteps(stages, pool, chain.ActorIndex)
		if !ok {
			continue
		}
		out = append(out, ChainCandidate{
			ID:        fmt.Sprintf("gen-%d", i+1),
			Strategy:  chain.Strategy,
			Rationale: chain.Rationale,
			Steps:     steps,
		})
	}
	return dedupeCandidates(out)
}

// fallbackCandidates builds one candidate per allowed shape from the top of
// each stage pool, plus a second-choice email-only chain when available.
func fallbackCandidates(pool *ActorPool) []ChainCandidate {
	var out []ChainCandidate
	for i, order := range validOrders {
		steps, ok := bindSteps(order, pool, 0)
		if !ok {
			continue
		}
		out = append(out, ChainCandidate{
			ID:        fmt.Sprintf("fallback-%d", i+1),
			Strategy:  "ranked",
			Rationale: "top-ranked actor per stage",
			Steps:     steps,
		})
	}
	if steps, ok := bindSteps([]Stage{StageEmailDiscovery}, pool, 1); ok {
		out = append(out, ChainCandidate{
			ID:        "fallback-alt",
			Strategy:  "ranked",
			Rationale: "second-ranked email discovery actor",
			Steps:     steps,
		})
	}
	return dedupeCandidates(out)
}

func bindSteps(stages []Stage, pool *ActorPool, actorIndex int) ([]ChainStep, bool) {
	if actorIndex < 0 {
		actorIndex = 0
	}
	steps := make([]ChainStep, len(stages))
	for i, stage := range stages {
		ranked := pool.ByStage[stage]
		if len(ranked) == 0 {
			return nil, false
		}
		idx := actorIndex
		if idx >= len(ranked) {
			idx = len(ranked) - 1
		}
		steps[i] = ChainStep{Stage: stage, ActorID: ranked[idx].ID, Actor: ranked[idx].Name}
	}
	return steps, true
}

func dedupeCandidates(in []ChainCandidate) []ChainCandidate {
	seen := map[string]bool{}
	var out []ChainCandidate
	for _, c := range in {
		var sig strings.Builder
		for _, s := range c.Steps {
			sig.WriteString(string(s.Stage))
			sig.WriteString(":")
			sig.WriteString(s.ActorID)
			sig.WriteString("|")
		}
		if seen[sig.String()] {
			continue
		}
		seen[sig.String()] = true
		out = append(out, c)
	}
	return out
}

func buildChainPrompt(audience string, pool *ActorPool) string {
	var b strings.Builder
	b.WriteString("You plan data-sourcing pipelines that end in person-level email discovery.\n")
	b.WriteString("Target audience: ")
	b.WriteString(audience)
	b.WriteString("\n\nAvailable tools per stage (index 0 is best ranked):\n")
	for _, stage := range AllStages {
		fmt.Fprintf(&b, "- %s:\n", stage)
		for i, actor := range pool.ByStage[stage] {
			fmt.Fprintf(&b, "  %d. %s (%s)\n", i, actor.Title, actor.ID)
		}
	}
	b.WriteString(`
Propose up to 3 distinct pipelines as a JSON array. Allowed stage orders are
exactly ["email_discovery"], ["prospect_discovery","email_discovery"], or
["prospect_discovery","website_enrichment","email_discovery"]. Each entry:
{"strategy": "...", "rationale": "...", "stages": [...], "actorIndex": 0}
Respond with only the JSON array.`)
	return b.String()
}
