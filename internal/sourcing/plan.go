package sourcing

import (
	"fmt"
)

// Stage is one step kind in a sourcing chain.
type Stage string

const (
	StageProspectDiscovery Stage = "prospect_discovery"
	StageWebsiteEnrichment Stage = "website_enrichment"
	StageEmailDiscovery    Stage = "email_discovery"
)

// AllStages in pipeline order.
var AllStages = []Stage{StageProspectDiscovery, StageWebsiteEnrichment, StageEmailDiscovery}

// validOrders are the only chain shapes that end in person-level emails.
var validOrders = [][]Stage{
	{StageEmailDiscovery},
	{StageProspectDiscovery, StageEmailDiscovery},
	{StageProspectDiscovery, StageWebsiteEnrichment, StageEmailDiscovery},
}

// ValidateStageOrder rejects any chain that repeats a stage, ends on
// something other than email discovery, or uses an order outside the three
// allowed shapes.
func ValidateStageOrder(stages []Stage) error {
	if len(stages) == 0 {
		return fmt.Errorf("chain has no stages")
	}
	for _, valid := range validOrders {
		if stagesEqual(stages, valid) {
			return nil
		}
	}
	if stages[len(stages)-1] != StageEmailDiscovery {
		return fmt.Errorf("chain must end with %s, got %s", StageEmailDiscovery, stages[len(stages)-1])
	}
	return fmt.Errorf("stage order %v is not an allowed chain shape", stages)
}

func stagesEqual(a, b []Stage) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// RankedActor is one marketplace tool scored for a stage.
type RankedActor struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Title         string  `json:"title"`
	Description   string  `json:"description"`
	Stage         Stage   `json:"stage"`
	Score         float64 `json:"score"`
	TotalUsers    int     `json:"totalUsers"`
	Rating        float64 `json:"rating"`
	PricingModel  string  `json:"pricingModel"`
	PricePerEvent float64 `json:"pricePerEvent"`
}

// ActorPool holds the ranked candidates per stage.
type ActorPool struct {
	ByStage map[Stage][]RankedActor
}

// ChainStep binds a stage to a concrete actor.
type ChainStep struct {
	Stage   Stage  `json:"stage"`
	ActorID string `json:"actorId"`
	Actor   string `json:"actor"`
}

// ChainCandidate is one ordered plan produced by candidate generation.
type ChainCandidate struct {
	ID        string      `json:"id"`
	Strategy  string      `json:"strategy"`
	Rationale string      `json:"rationale"`
	Steps     []ChainStep `json:"steps"`
}

// Stages returns the candidate's stage order.
func (c ChainCandidate) Stages() []Stage {
	out := make([]Stage, len(c.Steps))
	for i, s := range c.Steps {
		out[i] = s.Stage
	}
	return out
}

// StepProbe is the recorded outcome of probing one step.
type StepProbe struct {
	Stage         Stage   `json:"stage"`
	ActorID       string  `json:"actorId"`
	Passed        bool    `json:"passed"`
	FailReason    string  `json:"failReason,omitempty"`
	CostUSD       float64 `json:"costUsd"`
	ItemCount     int     `json:"itemCount"`
	RepairApplied bool    `json:"repairApplied,omitempty"`
}

// ProbeOutcome aggregates one candidate's probe.
type ProbeOutcome struct {
	CandidateID   string      `json:"candidateId"`
	Steps         []StepProbe `json:"steps"`
	Completed     bool        `json:"completed"`
	FailReason    string      `json:"failReason,omitempty"`
	AcceptedLeads int         `json:"acceptedLeads"`
	RejectedLeads int         `json:"rejectedLeads"`
	QualityRate   float64     `json:"qualityRate"`
	CostUSD       float64     `json:"costUsd"`
}
