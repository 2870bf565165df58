// Package conversation implements the per-lead flow state machine over an
// immutable published graph: parsing and validating flow graphs, classifying
// inbound replies, selecting edges, and composing outbound turns.
package conversation

import (
	"encoding/json"
	"fmt"
	"sort"
)

// EdgeTrigger names what fires a transition.
type EdgeTrigger string

const (
	TriggerTimer    EdgeTrigger = "timer"
	TriggerIntent   EdgeTrigger = "intent"
	TriggerFallback EdgeTrigger = "fallback"
)

// IntentUnsubscribe always forces session completion regardless of the
// matched edge's target.
const IntentUnsubscribe = "unsubscribe"

// defaultMaxDepth bounds sessions whose graph does not set one.
const defaultMaxDepth = 10

// Node is one state in the flow. Auto-send nodes compose and schedule a
// message on entry; manual nodes synthesize a draft for human approval.
type Node struct {
	ID           string `json:"id" yaml:"id"`
	Label        string `json:"label,omitempty" yaml:"label,omitempty"`
	Terminal     bool   `json:"terminal,omitempty" yaml:"terminal,omitempty"`
	AutoSend     bool   `json:"autoSend,omitempty" yaml:"autoSend,omitempty"`
	DelayMinutes int    `json:"delayMinutes,omitempty" yaml:"delayMinutes,omitempty"`
	Subject      string `json:"subject,omitempty" yaml:"subject,omitempty"`
	BodyTemplate string `json:"bodyTemplate,omitempty" yaml:"bodyTemplate,omitempty"`
	Prompt       string `json:"prompt,omitempty" yaml:"prompt,omitempty"`
}

// Edge is one transition between nodes.
type Edge struct {
	From                string      `json:"from" yaml:"from"`
	To                  string      `json:"to" yaml:"to"`
	Trigger             EdgeTrigger `json:"trigger" yaml:"trigger"`
	WaitMinutes         int         `json:"waitMinutes,omitempty" yaml:"waitMinutes,omitempty"`
	Intent              string      `json:"intent,omitempty" yaml:"intent,omitempty"`
	ConfidenceThreshold float64     `json:"confidenceThreshold,omitempty" yaml:"confidenceThreshold,omitempty"`
	Priority            int         `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// Graph is one immutable revision of a campaign's flow.
type Graph struct {
	StartNodeID string `json:"startNodeId" yaml:"startNodeId"`
	MaxDepth    int    `json:"maxDepth,omitempty" yaml:"maxDepth,omitempty"`
	Nodes       []Node `json:"nodes" yaml:"nodes"`
	Edges       []Edge `json:"edges" yaml:"edges"`
}

// ParseGraph decodes and validates a stored graph payload.
func ParseGraph(data []byte) (Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return Graph{}, fmt.Errorf("invalid graph payload: %w", err)
	}
	if err := g.Validate(); err != nil {
		return Graph{}, err
	}
	return g, nil
}

// Validate checks structural integrity: resolvable node references, sensible
// trigger parameters, and at most one fallback edge per node.
func (g Graph) Validate() error {
	if len(g.Nodes) == 0 {
		return fmt.Errorf("graph has no nodes")
	}
	nodes := make(map[string]Node, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.ID == "" {
			return fmt.Errorf("graph contains a node without an id")
		}
		if _, dup := nodes[n.ID]; dup {
			return fmt.Errorf("duplicate node id %q", n.ID)
		}
		nodes[n.ID] = n
	}
	if _, ok := nodes[g.StartNodeID]; !ok {
		return fmt.Errorf("start node %q does not exist", g.StartNodeID)
	}
	if g.MaxDepth < 0 {
		return fmt.Errorf("maxDepth must not be negative")
	}

	fallbacks := map[string]int{}
	for i, e := range g.Edges {
		if _, ok := nodes[e.From]; !ok {
			return fmt.Errorf("edge %d references unknown source node %q", i, e.From)
		}
		if _, ok := nodes[e.To]; !ok {
			return fmt.Errorf("edge %d references unknown target node %q", i, e.To)
		}
		switch e.Trigger {
		case TriggerTimer:
			if e.WaitMinutes < 0 {
				return fmt.Errorf("edge %d: waitMinutes must not be negative", i)
			}
		case TriggerIntent:
			if e.Intent == "" {
				return fmt.Errorf("edge %d: intent edges require an intent", i)
			}
			if e.ConfidenceThreshold < 0 || e.ConfidenceThreshold > 1 {
				return fmt.Errorf("edge %d: confidenceThreshold must be within [0,1]", i)
			}
		case TriggerFallback:
			fallbacks[e.From]++
			if fallbacks[e.From] > 1 {
				return fmt.Errorf("node %q has more than one fallback edge", e.From)
			}
		default:
			return fmt.Errorf("edge %d: unknown trigger %q", i, e.Trigger)
		}
	}
	return nil
}

// NodeByID resolves a node; the boolean is false for unknown ids.
func (g Graph) NodeByID(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// EffectiveMaxDepth returns the graph's depth bound, defaulted when unset.
func (g Graph) EffectiveMaxDepth() int {
	if g.MaxDepth > 0 {
		return g.MaxDepth
	}
	return defaultMaxDepth
}

// SelectTimerEdge picks the timer edge to fire for a session that has sat on
// nodeID for elapsedMinutes. Among edges past their wait, the lowest priority
// wins.
func (g Graph) SelectTimerEdge(nodeID string, elapsedMinutes int) (Edge, bool) {
	var candidates []Edge
	for _, e := range g.Edges {
		if e.From == nodeID && e.Trigger == TriggerTimer && elapsedMinutes >= e.WaitMinutes {
			candidates = append(candidates, e)
		}
	}
	return lowestPriority(candidates)
}

// SelectIntentEdge picks the transition for a classified reply: the matching
// intent edge whose confidence threshold is met (lowest priority tie-break),
// else the node's fallback edge.
func (g Graph) SelectIntentEdge(nodeID, intent string, confidence float64) (Edge, bool) {
	var matched []Edge
	var fallback []Edge
	for _, e := range g.Edges {
		if e.From != nodeID {
			continue
		}
		switch e.Trigger {
		case TriggerIntent:
			if e.Intent == intent && confidence >= e.ConfidenceThreshold {
				matched = append(matched, e)
			}
		case TriggerFallback:
			fallback = append(fallback, e)
		}
	}
	if edge, ok := lowestPriority(matched); ok {
		return edge, true
	}
	return lowestPriority(fallback)
}

func lowestPriority(edges []Edge) (Edge, bool) {
	if len(edges) == 0 {
		return Edge{}, false
	}
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].Priority < edges[j].Priority })
	return edges[0], true
}
