package sourcing

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"outreach_backend/internal/gateway/marketplace"
	"outreach_backend/internal/outreach/domain"
)

// poolSizePerStage caps how many ranked actors each stage keeps.
const poolSizePerStage = 8

var stageQueries = map[Stage]string{
	StageProspectDiscovery: "lead scraper prospect company search",
	StageWebsiteEnrichment: "website contact scraper enrichment",
	StageEmailDiscovery:    "email finder contact email discovery",
}

var stageKeywords = map[Stage][]string{
	StageProspectDiscovery: {"lead", "prospect", "company", "linkedin", "b2b"},
	StageWebsiteEnrichment: {"website", "crawl", "contact", "enrich", "scrape"},
	StageEmailDiscovery:    {"email", "finder", "verify", "contact"},
}

// BuildActorPool searches the marketplace for each stage in parallel and
// ranks the results. A quota-exhausted search aborts the whole build.
func (e *Engine) BuildActorPool(ctx context.Context, creds marketplace.Credentials, memories map[string]domain.ActorMemory) (*ActorPool, error) {
	pool := &ActorPool{ByStage: make(map[Stage][]RankedActor, len(AllStages))}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, stage := range AllStages {
		g.Go(func() error {
			res := e.market.SearchActors(gctx, creds, stageQueries[stage])
			if !res.OK {
				if res.QuotaExhausted {
					return fmt.Errorf("%w: %s", ErrQuotaExhausted, res.Error)
				}
				return fmt.Errorf("marketplace search for %s failed: %s", stage, res.Error)
			}
			ranked := rankCandidates(stage, res.Candidates, memories)
			mu.Lock()
			pool.ByStage[stage] = ranked
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pool, nil
}

// rankCandidates scores actors for a stage. Usage and rating dominate,
// stage-fit keywords nudge, subscription-only pricing and a bad track record
// push down.
func rankCandidates(stage Stage, candidates []marketplace.ActorCandidate, memories map[string]domain.ActorMemory) []RankedActor {
	ranked := make([]RankedActor, 0, len(candidates))
	for _, c := range candidates {
		score := math.Log10(float64(c.TotalUsers)+1) + c.Rating

		haystack := strings.ToLower(c.Title + " " + c.Description + " " + strings.Join(c.Categories, " "))
		for _, kw := range stageKeywords[stage] {
			if strings.Contains(haystack, kw) {
				score += 0.5
			}
		}

		if strings.EqualFold(c.PricingModel, "FLAT_PRICE_PER_MONTH") {
			score -= 2.0
		}

		if mem, ok := memories[c.ID]; ok {
			score += memoryBias(mem)
		}

		ranked = append(ranked, RankedActor{
			ID:            c.ID,
			Name:          c.Name,
			Title:         c.Title,
			Description:   c.Description,
			Stage:         stage,
			Score:         score,
			TotalUsers:    c.TotalUsers,
			Rating:        c.Rating,
			PricingModel:  c.PricingModel,
			PricePerEvent: c.PricePerEvent,
		})
	}

	sortRanked(ranked)
	if len(ranked) > poolSizePerStage {
		ranked = ranked[:poolSizePerStage]
	}
	return ranked
}

func sortRanked(ranked []RankedActor) {
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
}

// memoryBias converts historical outcomes into a score adjustment. Actors
// that keep failing compatibility or deliver poor leads sink; proven ones
// float.
func memoryBias(m domain.ActorMemory) float64 {
	runs := m.Runs()
	if runs == 0 {
		return 0
	}
	bias := 0.0
	failRate := float64(m.FailureCount) / float64(runs)
	bias -= 3.0 * failRate
	if m.CompatFailureCount >= 2 {
		bias -= 1.5
	}
	if m.QualitySamples > 0 {
		bias += 2.0 * (m.QualityAvg - 0.5)
	}
	return bias
}
