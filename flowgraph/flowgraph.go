package flowgraph

import (
	"fmt"
	"sort"
)

// NodeID identifies a node within a single graph. IDs are assigned
// sequentially starting at 1; the zero value means "no node" and is
// used for unguarded edges.
type NodeID int

// None is the zero NodeID, used where a node reference is optional.
const None NodeID = 0

// NodeKind classifies what kind of program value a node represents.
type NodeKind uint8

const (
	// KindExpression is a plain expression value.
	KindExpression NodeKind = iota

	// KindParameter is a function or method parameter.
	KindParameter

	// KindReturn is a function's return value position.
	KindReturn

	// KindPropertyAccess is a read of a property, field, or attribute.
	// The node label is the property or attribute name.
	KindPropertyAccess

	// KindCallResult is the result of a call. The node label is the
	// callee name.
	KindCallResult
)

func (k NodeKind) String() string {
	switch k {
	case KindExpression:
		return "expression"
	case KindParameter:
		return "parameter"
	case KindReturn:
		return "return"
	case KindPropertyAccess:
		return "property-access"
	case KindCallResult:
		return "call-result"
	default:
		return fmt.Sprintf("node-kind(%d)", uint8(k))
	}
}

// ParseNodeKind returns the NodeKind named by s, as produced by
// NodeKind.String.
func ParseNodeKind(s string) (NodeKind, error) {
	switch s {
	case "expression":
		return KindExpression, nil
	case "parameter":
		return KindParameter, nil
	case "return":
		return KindReturn, nil
	case "property-access":
		return KindPropertyAccess, nil
	case "call-result":
		return KindCallResult, nil
	default:
		return 0, fmt.Errorf("unknown node kind %q", s)
	}
}

// EdgeKind classifies a single step of possible data movement.
type EdgeKind uint8

const (
	// EdgeAssign is a local assignment or operand step.
	EdgeAssign EdgeKind = iota

	// EdgeCallArg passes a value as a call argument.
	EdgeCallArg

	// EdgeCallReturn returns a value from a callee to a call result.
	EdgeCallReturn

	// EdgePropertyRead reads a property of the source value.
	EdgePropertyRead

	// EdgePropertyWrite writes the source value into a property.
	EdgePropertyWrite

	// EdgeReceiver propagates a value through a method receiver.
	EdgeReceiver
)

func (k EdgeKind) String() string {
	switch k {
	case EdgeAssign:
		return "assign"
	case EdgeCallArg:
		return "call-arg"
	case EdgeCallReturn:
		return "call-return"
	case EdgePropertyRead:
		return "property-read"
	case EdgePropertyWrite:
		return "property-write"
	case EdgeReceiver:
		return "receiver"
	default:
		return fmt.Sprintf("edge-kind(%d)", uint8(k))
	}
}

// ParseEdgeKind returns the EdgeKind named by s, as produced by
// EdgeKind.String.
func ParseEdgeKind(s string) (EdgeKind, error) {
	switch s {
	case "assign":
		return EdgeAssign, nil
	case "call-arg":
		return EdgeCallArg, nil
	case "call-return":
		return EdgeCallReturn, nil
	case "property-read":
		return EdgePropertyRead, nil
	case "property-write":
		return EdgePropertyWrite, nil
	case "receiver":
		return EdgeReceiver, nil
	default:
		return 0, fmt.Errorf("unknown edge kind %q", s)
	}
}

// Branch is the control-flow outcome under which a guarded edge is
// taken.
type Branch uint8

const (
	// BranchNone marks an edge that is not control-dependent on a
	// condition node.
	BranchNone Branch = iota

	// BranchTrue marks an edge taken only when the condition holds.
	BranchTrue

	// BranchFalse marks an edge taken only when the condition does
	// not hold.
	BranchFalse
)

func (b Branch) String() string {
	switch b {
	case BranchNone:
		return "none"
	case BranchTrue:
		return "true"
	case BranchFalse:
		return "false"
	default:
		return fmt.Sprintf("branch(%d)", uint8(b))
	}
}

// Position is an opaque reference back into the program representation
// that built the graph. It is never interpreted by the engine, only
// reported.
type Position struct {
	File string
	Line int
	Col  int
}

func (p Position) String() string {
	if p.File == "" {
		return "-"
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Col)
}

// A Node is a flow-graph vertex: a program value at a specific
// syntactic position. Nodes are immutable once created and owned by
// their Graph for the lifetime of one analysis run.
type Node struct {
	ID    NodeID
	Kind  NodeKind
	Label string
	Pos   Position
}

func (n *Node) String() string {
	if n.Label == "" {
		return fmt.Sprintf("#%d %s", n.ID, n.Kind)
	}
	return fmt.Sprintf("#%d %s %q", n.ID, n.Kind, n.Label)
}

// An Edge is a directed link between two nodes, representing a single
// step of possible data movement. An edge with a non-zero Cond is only
// taken when the condition node evaluated to the given Branch outcome;
// this is the control-flow successor information the guard evaluator
// relies on.
type Edge struct {
	From NodeID
	To   NodeID
	Kind EdgeKind

	Cond   NodeID
	Branch Branch
}

func (e *Edge) String() string {
	if e.Cond != None {
		return fmt.Sprintf("#%d -%s→ #%d [#%d=%s]", e.From, e.Kind, e.To, e.Cond, e.Branch)
	}
	return fmt.Sprintf("#%d -%s→ #%d", e.From, e.Kind, e.To)
}

// Guarded reports whether the edge is control-dependent on a
// condition node.
func (e *Edge) Guarded() bool {
	return e.Cond != None
}

// A Graph is a flow graph over which taint is propagated. It is built
// once by a program-representation layer, then read-only for the
// remainder of an analysis run.
type Graph struct {
	nodes []*Node
	out   map[NodeID][]*Edge
	in    map[NodeID][]*Edge

	numEdges int
}

// New returns a new, empty flow graph.
func New() *Graph {
	return &Graph{
		out: make(map[NodeID][]*Edge),
		in:  make(map[NodeID][]*Edge),
	}
}

// AddNode creates a new node with the given kind, label, and position,
// assigning it the next free ID.
func (g *Graph) AddNode(kind NodeKind, label string, pos Position) *Node {
	n := &Node{
		ID:    NodeID(len(g.nodes) + 1),
		Kind:  kind,
		Label: label,
		Pos:   pos,
	}
	g.nodes = append(g.nodes, n)
	return n
}

// AddEdge creates an unguarded edge from one node to another.
func (g *Graph) AddEdge(from, to *Node, kind EdgeKind) *Edge {
	return g.addEdge(&Edge{From: from.ID, To: to.ID, Kind: kind})
}

// AddGuardedEdge creates an edge that is only taken when cond
// evaluated to the given branch outcome.
func (g *Graph) AddGuardedEdge(from, to *Node, kind EdgeKind, cond *Node, branch Branch) *Edge {
	return g.addEdge(&Edge{
		From:   from.ID,
		To:     to.ID,
		Kind:   kind,
		Cond:   cond.ID,
		Branch: branch,
	})
}

func (g *Graph) addEdge(e *Edge) *Edge {
	// Successor lists are kept sorted by successor ID at insertion so
	// that reads need no synchronization during concurrent traversal.
	out := g.out[e.From]
	i := sort.Search(len(out), func(i int) bool { return out[i].To > e.To })
	out = append(out, nil)
	copy(out[i+1:], out[i:])
	out[i] = e
	g.out[e.From] = out

	g.in[e.To] = append(g.in[e.To], e)
	g.numEdges++
	return e
}

// Node returns the node with the given ID, or nil if no such node
// exists.
func (g *Graph) Node(id NodeID) *Node {
	if id < 1 || int(id) > len(g.nodes) {
		return nil
	}
	return g.nodes[id-1]
}

// Nodes returns all nodes in ascending ID order. The returned slice
// is shared with the graph and must not be modified.
func (g *Graph) Nodes() []*Node {
	return g.nodes
}

// Out returns the edges leaving the given node, sorted by successor
// ID for deterministic traversal. The returned slice is shared with
// the graph and must not be modified.
func (g *Graph) Out(id NodeID) []*Edge {
	return g.out[id]
}

// In returns the edges entering the given node.
func (g *Graph) In(id NodeID) []*Edge {
	return g.in[id]
}

// NumNodes returns the number of nodes in the graph.
func (g *Graph) NumNodes() int {
	return len(g.nodes)
}

// NumEdges returns the number of edges in the graph.
func (g *Graph) NumEdges() int {
	return g.numEdges
}

// Validation errors returned by Validate. These indicate a caller
// contract violation in the supplied graph, reported before any
// propagation starts.
var (
	ErrDanglingEdge = fmt.Errorf("flowgraph: edge references a node outside the graph")
	ErrBadGuardRef  = fmt.Errorf("flowgraph: guarded edge is malformed")
)

// Validate checks that every edge connects two nodes that exist in the
// graph, and that every guarded edge references an existing condition
// node together with a definite branch outcome. A graph built only
// through AddNode/AddEdge/AddGuardedEdge is valid by construction;
// decoded or hand-assembled graphs may not be.
func (g *Graph) Validate() error {
	for _, edges := range g.out {
		for _, e := range edges {
			if g.Node(e.From) == nil || g.Node(e.To) == nil {
				return fmt.Errorf("%w: %s", ErrDanglingEdge, e)
			}
			if e.Cond != None {
				if g.Node(e.Cond) == nil {
					return fmt.Errorf("%w: condition node #%d does not exist: %s", ErrBadGuardRef, e.Cond, e)
				}
				if e.Branch == BranchNone {
					return fmt.Errorf("%w: no branch outcome: %s", ErrBadGuardRef, e)
				}
			} else if e.Branch != BranchNone {
				return fmt.Errorf("%w: branch outcome without condition node: %s", ErrBadGuardRef, e)
			}
		}
	}
	return nil
}
