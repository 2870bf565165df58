package conversation

import "testing"

func testGraph() Graph {
	return Graph{
		StartNodeID: "opener",
		MaxDepth:    5,
		Nodes: []Node{
			{ID: "opener", AutoSend: true, BodyTemplate: "hi"},
			{ID: "bump", AutoSend: true, BodyTemplate: "bump"},
			{ID: "meeting", AutoSend: true, BodyTemplate: "slots"},
			{ID: "closed", Terminal: true},
		},
		Edges: []Edge{
			{From: "opener", To: "bump", Trigger: TriggerTimer, WaitMinutes: 60, Priority: 10},
			{From: "opener", To: "closed", Trigger: TriggerTimer, WaitMinutes: 10080, Priority: 20},
			{From: "opener", To: "meeting", Trigger: TriggerIntent, Intent: "interested", ConfidenceThreshold: 0.6, Priority: 1},
			{From: "opener", To: "bump", Trigger: TriggerIntent, Intent: "interested", ConfidenceThreshold: 0.3, Priority: 5},
			{From: "opener", To: "closed", Trigger: TriggerFallback},
		},
	}
}

func TestGraphValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Graph)
		wantErr bool
	}{
		{"valid", func(g *Graph) {}, false},
		{"missing start node", func(g *Graph) { g.StartNodeID = "nope" }, true},
		{"duplicate node id", func(g *Graph) { g.Nodes = append(g.Nodes, Node{ID: "opener"}) }, true},
		{"edge to unknown node", func(g *Graph) {
			g.Edges = append(g.Edges, Edge{From: "opener", To: "ghost", Trigger: TriggerTimer})
		}, true},
		{"intent edge without intent", func(g *Graph) {
			g.Edges = append(g.Edges, Edge{From: "bump", To: "closed", Trigger: TriggerIntent})
		}, true},
		{"confidence out of range", func(g *Graph) {
			g.Edges = append(g.Edges, Edge{From: "bump", To: "closed", Trigger: TriggerIntent, Intent: "x", ConfidenceThreshold: 1.5})
		}, true},
		{"second fallback on node", func(g *Graph) {
			g.Edges = append(g.Edges, Edge{From: "opener", To: "bump", Trigger: TriggerFallback})
		}, true},
		{"unknown trigger", func(g *Graph) {
			g.Edges = append(g.Edges, Edge{From: "bump", To: "closed", Trigger: "manual"})
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := testGraph()
			tt.mutate(&g)
			err := g.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSelectTimerEdge(t *testing.T) {
	g := testGraph()

	if _, ok := g.SelectTimerEdge("opener", 30); ok {
		t.Error("no timer edge should fire before its wait elapses")
	}

	edge, ok := g.SelectTimerEdge("opener", 90)
	if !ok || edge.To != "bump" {
		t.Errorf("expected bump edge at 90 minutes, got %+v ok=%v", edge, ok)
	}

	// Both timer edges are past their wait; the lower priority wins.
	edge, ok = g.SelectTimerEdge("opener", 20000)
	if !ok || edge.To != "bump" {
		t.Errorf("expected lowest-priority edge, got %+v ok=%v", edge, ok)
	}
}

func TestSelectIntentEdge(t *testing.T) {
	g := testGraph()

	tests := []struct {
		name       string
		intent     string
		confidence float64
		wantTo     string
		wantOK     bool
	}{
		{"high confidence picks lowest priority", "interested", 0.9, "meeting", true},
		{"mid confidence only clears lower threshold", "interested", 0.4, "bump", true},
		{"unmatched intent falls back", "out_of_office", 0.8, "closed", true},
		{"below every threshold falls back", "interested", 0.1, "closed", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			edge, ok := g.SelectIntentEdge("opener", tt.intent, tt.confidence)
			if ok != tt.wantOK || edge.To != tt.wantTo {
				t.Errorf("SelectIntentEdge(%s, %v) = %q ok=%v, want %q ok=%v",
					tt.intent, tt.confidence, edge.To, ok, tt.wantTo, tt.wantOK)
			}
		})
	}

	if _, ok := g.SelectIntentEdge("bump", "interested", 0.9); ok {
		t.Error("node without intent or fallback edges should not advance")
	}
}

func TestLoadSeedGraphs(t *testing.T) {
	graphs, err := LoadSeedGraphs()
	if err != nil {
		t.Fatalf("LoadSeedGraphs() error = %v", err)
	}
	g, ok := graphs["seeds/cold_outreach.yaml"]
	if !ok {
		t.Fatal("expected the default seed flow")
	}
	if g.StartNodeID != "opener" {
		t.Errorf("start node = %q, want opener", g.StartNodeID)
	}
	if _, ok := g.SelectIntentEdge("opener", "interested", 0.7); !ok {
		t.Error("seed flow should route interested replies")
	}
}
