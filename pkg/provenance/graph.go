// Package provenance builds the per-turn provenance graph: a dense,
// append-only record of every node that contributed to a turn's context,
// with a monotone high-water taint mark derived from it.
package provenance

import (
	"encoding/json"
	"time"

	"github.com/openclaw/provenance-core/pkg/trust"
)

// NodeKind classifies what a node represents.
type NodeKind string

const (
	KindSystemPrompt    NodeKind = "system_prompt"
	KindHistory         NodeKind = "history"
	KindLLMCall         NodeKind = "llm_call"
	KindToolCall        NodeKind = "tool_call"
	KindPolicyDecision  NodeKind = "policy_decision"
	KindOutput          NodeKind = "output"
)

// RelationKind classifies an edge between two nodes.
type RelationKind string

const (
	RelationTriggers   RelationKind = "triggers"
	RelationProduces   RelationKind = "produces"
	RelationConsumes   RelationKind = "consumes"
	RelationDerivesFrom RelationKind = "derives_from"
	RelationBlockedBy  RelationKind = "blocked_by"
)

// NodeID is a local, monotonically increasing identifier within a graph.
type NodeID int

// Node is one entry in the provenance graph.
type Node struct {
	ID        NodeID         `json:"id"`
	Kind      NodeKind       `json:"kind"`
	Trust     trust.Level    `json:"trust"`
	Tool      string         `json:"tool,omitempty"`
	Iteration int            `json:"iteration,omitempty"`
	Blocked   bool           `json:"blocked,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Edge connects two nodes by id.
type Edge struct {
	From     NodeID       `json:"from"`
	To       NodeID       `json:"to"`
	Relation RelationKind `json:"relation"`
}

// Graph is the per-(session, turn) provenance record. Nodes are stored in a
// dense slice keyed by NodeID; there are no back-pointers, and the graph
// exclusively owns its nodes and edges. Callers only ever see Summary
// snapshots, never a live Graph reference.
type Graph struct {
	Session   string
	nodes     []Node
	edges     []Edge
	maxTaint  trust.Level
	sealed    bool
	toolTrust *trust.Table
}

// New creates an unsealed graph for session, using table to classify
// tool-call output trust.
func New(session string, table *trust.Table) *Graph {
	return &Graph{
		Session:   session,
		maxTaint:  trust.LevelSystem,
		toolTrust: table,
	}
}

// Sealed reports whether the graph has been sealed.
func (g *Graph) Sealed() bool {
	return g.sealed
}

// MaxTaint returns the current high-water taint mark.
func (g *Graph) MaxTaint() trust.Level {
	return g.maxTaint
}

func (g *Graph) nextID() NodeID {
	return NodeID(len(g.nodes))
}

func (g *Graph) raiseTaint(level trust.Level) {
	g.maxTaint = trust.MinTrust(g.maxTaint, level)
}

func (g *Graph) insert(kind NodeKind, level trust.Level, fields func(*Node)) NodeID {
	if g.sealed {
		panic("provenance: mutation of sealed graph")
	}
	n := Node{
		ID:        g.nextID(),
		Kind:      kind,
		Trust:     level,
		Timestamp: time.Now(),
	}
	if fields != nil {
		fields(&n)
	}
	g.nodes = append(g.nodes, n)
	g.raiseTaint(level)
	return n.ID
}

func (g *Graph) addEdge(from, to NodeID, relation RelationKind) {
	if g.sealed {
		panic("provenance: mutation of sealed graph")
	}
	g.edges = append(g.edges, Edge{From: from, To: to, Relation: relation})
}

// RecordContextAssembled inserts a system_prompt node (trust=system) and,
// if messageCount > 0, a history node at initialTrust.
func (g *Graph) RecordContextAssembled(systemPromptLen, messageCount int, initialTrust trust.Level) {
	g.insert(KindSystemPrompt, trust.LevelSystem, func(n *Node) {
		n.Metadata = map[string]any{"system_prompt_len": systemPromptLen}
	})
	if messageCount > 0 {
		g.insert(KindHistory, initialTrust, func(n *Node) {
			n.Metadata = map[string]any{"message_count": messageCount}
		})
	}
}

// RecordInheritedTaint inserts a history node carrying a watermark inherited
// from a prior turn, raising taint to level.
func (g *Graph) RecordInheritedTaint(level trust.Level, reason string) NodeID {
	return g.insert(KindHistory, level, func(n *Node) {
		n.Metadata = map[string]any{"inherited": true, "reason": reason}
	})
}

// RecordLLMCall inserts an llm_call node at the current max taint.
func (g *Graph) RecordLLMCall(iteration, toolCount int) NodeID {
	return g.insert(KindLLMCall, g.maxTaint, func(n *Node) {
		n.Iteration = iteration
		n.Metadata = map[string]any{"tool_count": toolCount}
	})
}

// RecordToolCall inserts a tool_call node whose trust is the tool's output
// trust (via the table, or overrides if provided), raising the high-water
// mark, and links it from parentLLMNode with a triggers edge.
func (g *Graph) RecordToolCall(name string, iteration int, parentLLMNode *NodeID, overrides map[string]trust.Level) NodeID {
	level := g.toolTrust.ToolTrust(name)
	if overrides != nil {
		if ov, ok := overrides[name]; ok {
			level = ov
		}
	}
	id := g.insert(KindToolCall, level, func(n *Node) {
		n.Tool = name
		n.Iteration = iteration
	})
	if parentLLMNode != nil {
		g.addEdge(*parentLLMNode, id, RelationTriggers)
	}
	return id
}

// RecordBlockedTool inserts a policy_decision node at system trust marking
// a tool as blocked, with its reason recorded in metadata.
func (g *Graph) RecordBlockedTool(name, reason string, iteration int) NodeID {
	return g.insert(KindPolicyDecision, trust.LevelSystem, func(n *Node) {
		n.Tool = name
		n.Iteration = iteration
		n.Blocked = true
		n.Metadata = map[string]any{"reason": reason}
	})
}

// RecordOutput inserts an output node at the current max taint.
func (g *Graph) RecordOutput(contentLen int) NodeID {
	return g.insert(KindOutput, g.maxTaint, func(n *Node) {
		n.Metadata = map[string]any{"content_len": contentLen}
	})
}

// ResetTaint lowers the high-water mark to level. This is the only
// operation allowed to lower max_taint, and is reachable only from the
// enforcement driver in response to an owner .reset-trust command.
func (g *Graph) ResetTaint(level trust.Level) {
	if g.sealed {
		panic("provenance: reset-taint on sealed graph")
	}
	g.maxTaint = level
}

// Summary is an immutable snapshot of graph state; callers never get a live
// reference into the owning Graph.
type Summary struct {
	MaxTaint       trust.Level `json:"max_taint"`
	ExternalSources int        `json:"external_sources"`
	ToolsUsed      []string    `json:"tools_used"`
	ToolsBlocked   []string    `json:"tools_blocked"`
	IterationCount int         `json:"iteration_count"`
	NodeCount      int         `json:"node_count"`
	EdgeCount      int         `json:"edge_count"`
	Sealed         bool        `json:"sealed"`
}

// Summary computes the current derived view of the graph.
func (g *Graph) Summary() Summary {
	s := Summary{
		MaxTaint:  g.maxTaint,
		NodeCount: len(g.nodes),
		EdgeCount: len(g.edges),
		Sealed:    g.sealed,
	}
	seenTools := make(map[string]bool)
	seenBlocked := make(map[string]bool)
	maxIteration := 0
	for _, n := range g.nodes {
		switch n.Kind {
		case KindToolCall:
			if n.Tool != "" && !seenTools[n.Tool] {
				seenTools[n.Tool] = true
				s.ToolsUsed = append(s.ToolsUsed, n.Tool)
			}
			if n.Iteration > maxIteration {
				maxIteration = n.Iteration
			}
		case KindPolicyDecision:
			if n.Blocked && n.Tool != "" && !seenBlocked[n.Tool] {
				seenBlocked[n.Tool] = true
				s.ToolsBlocked = append(s.ToolsBlocked, n.Tool)
			}
		case KindLLMCall:
			if n.Iteration > maxIteration {
				maxIteration = n.Iteration
			}
		}
		if n.Trust == trust.LevelExternal || n.Trust == trust.LevelUntrusted {
			s.ExternalSources++
		}
	}
	s.IterationCount = maxIteration
	return s
}

// Seal finalizes the graph. It is idempotent: calling it repeatedly returns
// the same summary without mutating state again.
func (g *Graph) Seal() Summary {
	g.sealed = true
	return g.Summary()
}

// jsonGraph is the canonical wire shape for ToJSON/FromJSON. MaxTaint is
// persisted directly rather than left to be recomputed from node trust: a
// graph that had ResetTaint applied before Seal would otherwise round-trip
// to a higher mark than the one it was sealed with, since a reconstruction
// that re-scans nodes has no way to see that the mark was ever lowered.
type jsonGraph struct {
	Session  string      `json:"session"`
	Nodes    []Node      `json:"nodes"`
	Edges    []Edge      `json:"edges"`
	Sealed   bool        `json:"sealed"`
	MaxTaint trust.Level `json:"max_taint"`
}

// ToJSON serializes the graph for archival.
func (g *Graph) ToJSON() ([]byte, error) {
	return json.Marshal(jsonGraph{
		Session:  g.Session,
		Nodes:    g.nodes,
		Edges:    g.edges,
		Sealed:   g.sealed,
		MaxTaint: g.maxTaint,
	})
}

// FromJSON reconstructs a sealed graph from archival JSON. The resulting
// graph has no tool-trust table since archived graphs are never mutated
// further; RecordToolCall must not be called on it.
func FromJSON(data []byte) (*Graph, error) {
	var jg jsonGraph
	if err := json.Unmarshal(data, &jg); err != nil {
		return nil, err
	}
	g := &Graph{
		Session:  jg.Session,
		nodes:    jg.Nodes,
		edges:    jg.Edges,
		sealed:   jg.Sealed,
		maxTaint: jg.MaxTaint,
	}
	return g, nil
}
