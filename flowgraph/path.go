package flowgraph

import (
	"bytes"
	"fmt"
)

// Path is a sequence of edges, where each edge represents one step of
// data movement, making up a "chain" of flow, e.g.: source → x → y → sink.
type Path []*Edge

// Empty returns true if the path is empty, false otherwise.
func (p Path) Empty() bool {
	return len(p) == 0
}

// First returns the first edge in the path, or nil if the path is empty.
func (p Path) First() *Edge {
	if len(p) == 0 {
		return nil
	}
	return p[0]
}

// Last returns the last edge in the path, or nil if the path is empty.
func (p Path) Last() *Edge {
	if len(p) == 0 {
		return nil
	}
	return p[len(p)-1]
}

// NodeIDs returns the sequence of node IDs visited by the path,
// starting with the first edge's origin.
func (p Path) NodeIDs() []NodeID {
	if len(p) == 0 {
		return nil
	}
	ids := make([]NodeID, 0, len(p)+1)
	ids = append(ids, p[0].From)
	for _, e := range p {
		ids = append(ids, e.To)
	}
	return ids
}

// String returns a string representation of the path which is a
// sequence of node IDs separated by " → ".
//
// Intended to be used while debugging.
func (p Path) String() string {
	var buf bytes.Buffer
	for i, e := range p {
		if i == 0 {
			fmt.Fprintf(&buf, "#%d", e.From)
		}
		fmt.Fprintf(&buf, " → #%d", e.To)
	}
	return buf.String()
}

// Format returns a readable representation of the path using the
// node labels from the given graph.
func (p Path) Format(g *Graph) string {
	var buf bytes.Buffer
	for i, e := range p {
		if i == 0 {
			buf.WriteString(formatNode(g.Node(e.From)))
		}
		buf.WriteString(" → ")
		buf.WriteString(formatNode(g.Node(e.To)))
	}
	return buf.String()
}

func formatNode(n *Node) string {
	if n == nil {
		return "?"
	}
	if n.Label == "" {
		return fmt.Sprintf("#%d", n.ID)
	}
	return n.Label
}

// Paths is a collection of paths, which may be logically grouped
// together, e.g.: all paths from one source to a given sink.
type Paths []Path

// Shortest returns the shortest path in the collection of paths.
//
// If there are no paths, this returns nil. If there are multiple
// paths of the same length, this returns the first path found.
func (p Paths) Shortest() Path {
	if len(p) == 0 {
		return nil
	}

	shortest := p[0]
	for _, path := range p {
		if len(path) < len(shortest) {
			shortest = path
		}
	}

	return shortest
}
