package engine

import (
	"context"
	"fmt"
	"time"

	"outreach_backend/internal/events"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
)

// analyzeInterval is how often a monitored run is re-examined.
const analyzeInterval = time.Hour

// Anomaly thresholds. Checks run in declaration order and the first breach
// pauses the run; later checks are not evaluated.
const (
	bounceRateThreshold   = 0.05
	bounceMinCount        = 5
	errorRateThreshold    = 0.20
	negativeRateThreshold = 0.25
	negativeMinCount      = 4
)

type anomaly struct {
	Type      string
	Severity  string
	Threshold float64
	Observed  float64
	Details   map[string]any
}

// handleAnalyzeRun inspects run health, pauses on anomalies, completes the
// run once all messages and sessions are settled, and otherwise re-arms.
func (e *Engine) handleAnalyzeRun(ctx context.Context, run domain.Run) error {
	switch run.Status {
	case domain.RunMonitoring, domain.RunSending:
	default:
		return permanent(fmt.Errorf("analyze_run job on run in state %s", run.Status))
	}

	if found := detectAnomaly(run.Metrics); found != nil {
		if _, err := e.repo.InsertAnomaly(ctx, repository.InsertAnomalyParams{
			RunID:     run.ID,
			Type:      found.Type,
			Severity:  found.Severity,
			Threshold: found.Threshold,
			Observed:  found.Observed,
			Details:   found.Details,
		}); err != nil {
			return err
		}
		reason := fmt.Sprintf("%s %.1f%% exceeded %.1f%%", found.Type, found.Observed*100, found.Threshold*100)
		if err := e.transition(ctx, run, domain.RunPaused, repository.WithPauseReason(reason)); err != nil {
			return err
		}
		e.bus.Publish(ctx, events.RunPaused{
			BaseEvent:   events.NewBaseEvent(),
			RunID:       run.ID,
			AnomalyType: found.Type,
			Severity:    found.Severity,
			Observed:    found.Observed,
			Threshold:   found.Threshold,
		})
		return nil
	}

	pending, err := e.repo.CountPendingScheduled(ctx, run.ID)
	if err != nil {
		return err
	}
	open, err := e.repo.CountOpenSessions(ctx, run.ID)
	if err != nil {
		return err
	}

	if pending == 0 && open == 0 && run.Status == domain.RunMonitoring {
		return e.transition(ctx, run, domain.RunCompleted)
	}

	now := time.Now().UTC()
	if pending > 0 {
		// Conversation turns landed while monitoring; get them moving again.
		if err := e.enqueueOnce(ctx, run.ID, domain.JobDispatchMessages, now, nil); err != nil {
			return err
		}
	}
	return e.enqueueOnce(ctx, run.ID, domain.JobAnalyzeRun, now.Add(analyzeInterval), nil)
}

// detectAnomaly applies the pause checks to the run's counters. Rates are
// recomputed from persisted counts, never carried between passes.
func detectAnomaly(m domain.RunMetrics) *anomaly {
	if delivered := m.Sent + m.Bounced; delivered > 0 && m.Bounced >= bounceMinCount {
		rate := float64(m.Bounced) / float64(delivered)
		if rate > bounceRateThreshold {
			return &anomaly{
				Type:      "bounce_rate",
				Severity:  "critical",
				Threshold: bounceRateThreshold,
				Observed:  rate,
				Details:   map[string]any{"sent": m.Sent, "bounced": m.Bounced},
			}
		}
	}
	if attempted := m.Sent + m.Failed + m.Bounced; attempted > 0 {
		rate := float64(m.Failed) / float64(attempted)
		if rate > errorRateThreshold {
			return &anomaly{
				Type:      "error_rate",
				Severity:  "critical",
				Threshold: errorRateThreshold,
				Observed:  rate,
				Details:   map[string]any{"attempted": attempted, "failed": m.Failed},
			}
		}
	}
	if m.Replies > 0 && m.Negative >= negativeMinCount {
		rate := float64(m.Negative) / float64(m.Replies)
		if rate > negativeRateThreshold {
			return &anomaly{
				Type:      "negative_reply_rate",
				Severity:  "warning",
				Threshold: negativeRateThreshold,
				Observed:  rate,
				Details:   map[string]any{"replies": m.Replies, "negative": m.Negative},
			}
		}
	}
	return nil
}
