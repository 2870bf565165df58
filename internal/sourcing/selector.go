package sourcing

// SelectCandidate chooses the winning chain among probed candidates. Only
// candidates that completed with accepted leads qualify. Quality rate beats
// raw acceptance count; cost breaks remaining ties downward.
func SelectCandidate(candidates []ChainCandidate, outcomes []ProbeOutcome) (ChainCandidate, bool) {
	byID := make(map[string]ChainCandidate, len(candidates))
	for _, c := range candidates {
		byID[c.ID] = c
	}

	var (
		best      ChainCandidate
		bestScore float64
		found     bool
	)
	for _, o := range outcomes {
		if !o.Completed || o.AcceptedLeads == 0 || o.FailReason != "" {
			continue
		}
		candidate, ok := byID[o.CandidateID]
		if !ok {
			continue
		}
		score := selectionScore(o)
		if !found || score > bestScore {
			best, bestScore, found = candidate, score, true
		}
	}
	return best, found
}

func selectionScore(o ProbeOutcome) float64 {
	score := 10*o.QualityRate + float64(o.AcceptedLeads)
	// A cheaper probe predicts a cheaper execution; small nudge only.
	score -= o.CostUSD
	return score
}
