package conversation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"outreach_backend/internal/events"
	"outreach_backend/internal/outreach/domain"
	"outreach_backend/internal/outreach/repository"
	"outreach_backend/platform/logger"
)

// Ended reasons recorded on terminal sessions.
const (
	ReasonStartNodeTerminal = "start_node_terminal"
	ReasonTerminalNode      = "terminal_node"
	ReasonMaxDepth          = "max_depth_reached"
	ReasonUnsubscribed      = "unsubscribed"
)

// Flow drives conversation sessions: opening them when a run schedules its
// leads, advancing them on timers and classified replies, and composing the
// outbound turns.
type Flow struct {
	repo       *repository.Repository
	composer   *Composer
	classifier *Classifier
	bus        events.Bus
	log        *logger.Logger
}

func NewFlow(repo *repository.Repository, composer *Composer, classifier *Classifier, bus events.Bus, log *logger.Logger) *Flow {
	return &Flow{repo: repo, composer: composer, classifier: classifier, bus: bus, log: log}
}

// Classifier exposes the reply classifier for ingestion paths that classify
// before they know whether a session exists.
func (f *Flow) Classifier() *Classifier {
	return f.classifier
}

// StartSession anchors a lead at the graph's start node. A terminal start
// node completes immediately; a manual start node waits for human action;
// otherwise the first turn is composed and scheduled.
func (f *Flow) StartSession(ctx context.Context, run domain.Run, lead domain.Lead, cm domain.ConversationMap) error {
	graph, err := ParseGraph(cm.Graph)
	if err != nil {
		return err
	}

	session, err := f.repo.CreateSession(ctx, repository.CreateSessionParams{
		RunID:       run.ID,
		LeadID:      lead.ID,
		MapID:       cm.ID,
		MapRevision: cm.Revision,
		StartNodeID: graph.StartNodeID,
	})
	if err != nil {
		return fmt.Errorf("failed to open session for lead %s: %w", lead.ID, err)
	}
	if session.State.Terminal() || session.TurnCount > 0 {
		return nil
	}

	start, _ := graph.NodeByID(graph.StartNodeID)
	switch {
	case start.Terminal:
		return f.repo.EndSession(ctx, session.ID, domain.SessionCompleted, ReasonStartNodeTerminal)
	case !start.AutoSend:
		if err := f.repo.MarkSessionWaitingManual(ctx, session.ID); err != nil && !errors.Is(err, repository.ErrStaleTransition) {
			return err
		}
		f.publishDraft(ctx, run.ID, session, lead)
		return nil
	default:
		return f.scheduleTurn(ctx, run, lead, session, start, 0)
	}
}

// TickResult reports one timer pass over a run's sessions.
type TickResult struct {
	Evaluated int
	Advanced  int
	Completed int
}

// TickTimers evaluates every open session against its graph's timer edges.
// Per-session failures are logged and skipped so one bad session cannot
// stall the tick.
func (f *Flow) TickTimers(ctx context.Context, run domain.Run, now time.Time) (TickResult, error) {
	sessions, err := f.repo.ListOpenSessions(ctx, run.ID, 0)
	if err != nil {
		return TickResult{}, err
	}

	var result TickResult
	graphs := map[uuid.UUID]Graph{}
	for _, session := range sessions {
		result.Evaluated++

		// Parked for manual action; timers never advance past a human.
		if session.State != domain.SessionActive {
			continue
		}

		graph, ok := graphs[session.MapID]
		if !ok {
			cm, err := f.repo.GetMap(ctx, session.MapID)
			if err != nil {
				f.log.Error("failed to load conversation map", "mapId", session.MapID, "error", err)
				continue
			}
			if graph, err = ParseGraph(cm.Graph); err != nil {
				f.log.Error("stored conversation map is invalid", "mapId", session.MapID, "error", err)
				continue
			}
			graphs[session.MapID] = graph
		}

		elapsed := int(now.Sub(session.LastNodeEnteredAt).Minutes())
		edge, ok := graph.SelectTimerEdge(session.CurrentNodeID, elapsed)
		if !ok {
			continue
		}

		completed, err := f.advance(ctx, run, session, graph, edge, nil, nil)
		if err != nil {
			if !errors.Is(err, repository.ErrStaleTransition) {
				f.log.Error("timer advance failed", "sessionId", session.ID, "error", err)
			}
			continue
		}
		result.Advanced++
		if completed {
			result.Completed++
		}
	}
	return result, nil
}

// AdvanceOnReply classifies the reply and applies the matching intent edge.
// An unsubscribe intent forces completion no matter where the matched edge
// points. Returns the classification for the caller to persist.
func (f *Flow) AdvanceOnReply(ctx context.Context, run domain.Run, lead domain.Lead, body string) (Classification, error) {
	classification := f.classifier.Classify(ctx, body)

	session, err := f.repo.FindSessionByLead(ctx, run.ID, lead.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return classification, nil
		}
		return classification, err
	}
	if session.State.Terminal() {
		return classification, nil
	}

	if classification.Intent == IntentUnsubscribe {
		if err := f.repo.EndSession(ctx, session.ID, domain.SessionCompleted, ReasonUnsubscribed); err != nil &&
			!errors.Is(err, repository.ErrStaleTransition) {
			return classification, err
		}
		return classification, nil
	}

	cm, err := f.repo.GetMap(ctx, session.MapID)
	if err != nil {
		return classification, err
	}
	graph, err := ParseGraph(cm.Graph)
	if err != nil {
		return classification, err
	}

	edge, ok := graph.SelectIntentEdge(session.CurrentNodeID, classification.Intent, classification.Confidence)
	if !ok {
		return classification, nil
	}

	_, err = f.advance(ctx, run, session, graph, edge, &classification.Intent, &classification.Confidence)
	if err != nil && !errors.Is(err, repository.ErrStaleTransition) {
		return classification, err
	}
	return classification, nil
}

// advanceOutcome decides where a session lands after taking an edge to the
// target node at the given turn. Terminal targets and the depth bound
// complete the session; manual targets park it for a human.
func advanceOutcome(target Node, nextTurn, maxDepth int) (domain.SessionState, *string) {
	switch {
	case target.Terminal:
		reason := ReasonTerminalNode
		return domain.SessionCompleted, &reason
	case nextTurn >= maxDepth:
		reason := ReasonMaxDepth
		return domain.SessionCompleted, &reason
	case !target.AutoSend:
		return domain.SessionWaitingManual, nil
	default:
		return domain.SessionActive, nil
	}
}

// advance applies one edge: completes the session when the target is
// terminal or the depth bound is reached, otherwise enters the target node
// and schedules or drafts its turn. Content is composed before the session
// moves so a generation failure leaves it unchanged.
func (f *Flow) advance(ctx context.Context, run domain.Run, session domain.Session, graph Graph, edge Edge, intent *string, confidence *float64) (completed bool, err error) {
	target, ok := graph.NodeByID(edge.To)
	if !ok {
		return false, fmt.Errorf("edge target %q does not exist", edge.To)
	}

	state, endedReason := advanceOutcome(target, session.TurnCount+1, graph.EffectiveMaxDepth())
	ends := state == domain.SessionCompleted

	var lead domain.Lead
	var content Content
	sends := !ends && target.AutoSend
	if sends {
		already, err := f.repo.ExistsSessionNodeMessage(ctx, session.ID, target.ID)
		if err != nil {
			return false, err
		}
		if already {
			sends = false
		}
	}
	if sends {
		if lead, err = f.repo.GetLead(ctx, session.LeadID); err != nil {
			return false, err
		}
		if !lead.Status.Sendable() {
			sends = false
		} else if content, err = f.composer.Compose(ctx, target, lead, ""); err != nil {
			f.publishRejection(ctx, run.ID, session, target.ID, err)
			return false, err
		}
	}

	advanced, err := f.repo.AdvanceSession(ctx, repository.AdvanceSessionParams{
		SessionID:     session.ID,
		FromNodeID:    session.CurrentNodeID,
		FromTurnCount: session.TurnCount,
		ToNodeID:      target.ID,
		State:         state,
		Intent:        intent,
		Confidence:    confidence,
		EndedReason:   endedReason,
	})
	if err != nil {
		return false, err
	}

	switch {
	case ends:
		return true, nil
	case sends:
		return false, f.insertTurn(ctx, run, lead, advanced, target, edge.WaitMinutes, content)
	case !target.AutoSend:
		if lead.ID == uuid.Nil {
			if lead, err = f.repo.GetLead(ctx, session.LeadID); err != nil {
				return false, err
			}
		}
		f.publishDraft(ctx, run.ID, advanced, lead)
	}
	return false, nil
}

// scheduleTurn composes and schedules a node's message for a freshly opened
// session.
func (f *Flow) scheduleTurn(ctx context.Context, run domain.Run, lead domain.Lead, session domain.Session, node Node, edgeWaitMinutes int) error {
	already, err := f.repo.ExistsSessionNodeMessage(ctx, session.ID, node.ID)
	if err != nil || already {
		return err
	}

	content, err := f.composer.Compose(ctx, node, lead, "")
	if err != nil {
		f.publishRejection(ctx, run.ID, session, node.ID, err)
		return err
	}
	return f.insertTurn(ctx, run, lead, session, node, edgeWaitMinutes, content)
}

func (f *Flow) insertTurn(ctx context.Context, run domain.Run, lead domain.Lead, session domain.Session, node Node, edgeWaitMinutes int, content Content) error {
	delay := time.Duration(node.DelayMinutes+edgeWaitMinutes) * time.Minute
	_, err := f.repo.InsertMessage(ctx, repository.InsertMessageParams{
		RunID:          run.ID,
		LeadID:         lead.ID,
		Step:           session.TurnCount + 1,
		Subject:        content.Subject,
		Body:           content.Body,
		SourceType:     domain.SourceConversation,
		SessionID:      &session.ID,
		NodeID:         &node.ID,
		GenerationMeta: content.Meta,
		ScheduledAt:    time.Now().UTC().Add(delay),
	})
	if errors.Is(err, repository.ErrDuplicateSessionNode) {
		return nil
	}
	return err
}

func (f *Flow) publishRejection(ctx context.Context, runID uuid.UUID, session domain.Session, nodeID string, cause error) {
	f.bus.Publish(ctx, events.GenerationRejected{
		BaseEvent: events.NewBaseEvent(),
		RunID:     runID,
		SessionID: session.ID,
		NodeID:    nodeID,
		Reason:    cause.Error(),
	})
}

func (f *Flow) publishDraft(ctx context.Context, runID uuid.UUID, session domain.Session, lead domain.Lead) {
	f.bus.Publish(ctx, events.DraftCreated{
		BaseEvent: events.NewBaseEvent(),
		RunID:     runID,
		SessionID: session.ID,
		LeadID:    lead.ID,
		NodeID:    session.CurrentNodeID,
	})
}
