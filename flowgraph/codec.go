package flowgraph

import (
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// jsonGraph is the serialized form of a Graph. It is intentionally
// flat so graphs exported by frontends in other languages are easy to
// produce.
type jsonGraph struct {
	Nodes []jsonNode `json:"nodes"`
	Edges []jsonEdge `json:"edges"`
}

type jsonNode struct {
	ID    NodeID `json:"id"`
	Kind  string `json:"kind"`
	Label string `json:"label,omitempty"`
	File  string `json:"file,omitempty"`
	Line  int    `json:"line,omitempty"`
	Col   int    `json:"col,omitempty"`
}

type jsonEdge struct {
	From   NodeID `json:"from"`
	To     NodeID `json:"to"`
	Kind   string `json:"kind"`
	Cond   NodeID `json:"cond,omitempty"`
	Branch string `json:"branch,omitempty"`
}

// Encode writes the graph to the given io.Writer as JSON.
func Encode(w io.Writer, g *Graph) error {
	jg := jsonGraph{
		Nodes: make([]jsonNode, 0, g.NumNodes()),
		Edges: make([]jsonEdge, 0, g.NumEdges()),
	}

	for _, n := range g.Nodes() {
		jg.Nodes = append(jg.Nodes, jsonNode{
			ID:    n.ID,
			Kind:  n.Kind.String(),
			Label: n.Label,
			File:  n.Pos.File,
			Line:  n.Pos.Line,
			Col:   n.Pos.Col,
		})
	}

	for _, n := range g.Nodes() {
		for _, e := range g.Out(n.ID) {
			je := jsonEdge{
				From: e.From,
				To:   e.To,
				Kind: e.Kind.String(),
			}
			if e.Guarded() {
				je.Cond = e.Cond
				je.Branch = e.Branch.String()
			}
			jg.Edges = append(jg.Edges, je)
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jg); err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	return nil
}

// Decode reads a graph from the given io.Reader, validating it before
// returning. Node IDs in the input must be sequential starting at 1,
// matching what Encode produces.
func Decode(r io.Reader) (*Graph, error) {
	var jg jsonGraph
	if err := json.NewDecoder(r).Decode(&jg); err != nil {
		return nil, fmt.Errorf("failed to decode graph: %w", err)
	}

	g := New()
	for i, jn := range jg.Nodes {
		if jn.ID != NodeID(i+1) {
			return nil, fmt.Errorf("node %d has id %d, want %d", i, jn.ID, i+1)
		}
		kind, err := ParseNodeKind(jn.Kind)
		if err != nil {
			return nil, fmt.Errorf("node #%d: %w", jn.ID, err)
		}
		g.AddNode(kind, jn.Label, Position{File: jn.File, Line: jn.Line, Col: jn.Col})
	}

	for _, je := range jg.Edges {
		kind, err := ParseEdgeKind(je.Kind)
		if err != nil {
			return nil, fmt.Errorf("edge #%d→#%d: %w", je.From, je.To, err)
		}
		e := &Edge{From: je.From, To: je.To, Kind: kind}
		if je.Cond != None {
			e.Cond = je.Cond
			switch je.Branch {
			case "true":
				e.Branch = BranchTrue
			case "false":
				e.Branch = BranchFalse
			default:
				return nil, fmt.Errorf("edge #%d→#%d: unknown branch %q", je.From, je.To, je.Branch)
			}
		}
		g.addEdge(e)
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}
