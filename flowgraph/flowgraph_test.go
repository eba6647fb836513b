package flowgraph

import (
	"errors"
	"testing"
)

func buildDiamond(t *testing.T) (*Graph, []*Node) {
	t.Helper()

	g := New()
	src := g.AddNode(KindPropertyAccess, "location.hash", Position{File: "app.js", Line: 3, Col: 12})
	left := g.AddNode(KindExpression, "", Position{})
	right := g.AddNode(KindExpression, "", Position{})
	sink := g.AddNode(KindCallResult, "document.write", Position{File: "app.js", Line: 9, Col: 4})

	g.AddEdge(src, left, EdgeAssign)
	g.AddEdge(src, right, EdgeAssign)
	g.AddEdge(left, sink, EdgeCallArg)
	g.AddEdge(right, sink, EdgeCallArg)

	return g, []*Node{src, left, right, sink}
}

func TestGraphBuild(t *testing.T) {
	g, nodes := buildDiamond(t)

	if g.NumNodes() != 4 {
		t.Errorf("NumNodes() = %d, want 4", g.NumNodes())
	}
	if g.NumEdges() != 4 {
		t.Errorf("NumEdges() = %d, want 4", g.NumEdges())
	}
	for i, n := range nodes {
		if n.ID != NodeID(i+1) {
			t.Errorf("node %d has ID %d, want sequential assignment", i, n.ID)
		}
		if g.Node(n.ID) != n {
			t.Errorf("Node(%d) did not return the created node", n.ID)
		}
	}
	if g.Node(0) != nil || g.Node(99) != nil {
		t.Error("out-of-range lookup should return nil")
	}
	if err := g.Validate(); err != nil {
		t.Errorf("built graph should validate, got %v", err)
	}
}

func TestGraphOutSorted(t *testing.T) {
	g := New()
	a := g.AddNode(KindExpression, "a", Position{})
	// Successors created and linked in descending order.
	var want []NodeID
	succs := make([]*Node, 4)
	for i := range succs {
		succs[i] = g.AddNode(KindExpression, "", Position{})
	}
	for i := len(succs) - 1; i >= 0; i-- {
		g.AddEdge(a, succs[i], EdgeAssign)
	}
	for _, s := range succs {
		want = append(want, s.ID)
	}

	out := g.Out(a.ID)
	if len(out) != len(want) {
		t.Fatalf("Out() returned %d edges, want %d", len(out), len(want))
	}
	for i, e := range out {
		if e.To != want[i] {
			t.Errorf("Out()[%d].To = %d, want %d", i, e.To, want[i])
		}
	}
}

func TestGraphValidate(t *testing.T) {
	t.Run("dangling edge", func(t *testing.T) {
		g := New()
		a := g.AddNode(KindExpression, "", Position{})
		g.addEdge(&Edge{From: a.ID, To: 42, Kind: EdgeAssign})
		if err := g.Validate(); !errors.Is(err, ErrDanglingEdge) {
			t.Errorf("expected ErrDanglingEdge, got %v", err)
		}
	})

	t.Run("missing condition node", func(t *testing.T) {
		g := New()
		a := g.AddNode(KindExpression, "", Position{})
		b := g.AddNode(KindExpression, "", Position{})
		g.addEdge(&Edge{From: a.ID, To: b.ID, Kind: EdgeAssign, Cond: 42, Branch: BranchTrue})
		if err := g.Validate(); !errors.Is(err, ErrBadGuardRef) {
			t.Errorf("expected ErrBadGuardRef, got %v", err)
		}
	})

	t.Run("condition without branch", func(t *testing.T) {
		g := New()
		a := g.AddNode(KindExpression, "", Position{})
		b := g.AddNode(KindExpression, "", Position{})
		g.addEdge(&Edge{From: a.ID, To: b.ID, Kind: EdgeAssign, Cond: a.ID})
		if err := g.Validate(); !errors.Is(err, ErrBadGuardRef) {
			t.Errorf("expected ErrBadGuardRef, got %v", err)
		}
	})

	t.Run("branch without condition", func(t *testing.T) {
		g := New()
		a := g.AddNode(KindExpression, "", Position{})
		b := g.AddNode(KindExpression, "", Position{})
		g.addEdge(&Edge{From: a.ID, To: b.ID, Kind: EdgeAssign, Branch: BranchFalse})
		if err := g.Validate(); !errors.Is(err, ErrBadGuardRef) {
			t.Errorf("expected ErrBadGuardRef, got %v", err)
		}
	})
}

func TestParseKinds(t *testing.T) {
	for k := KindExpression; k <= KindCallResult; k++ {
		got, err := ParseNodeKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseNodeKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseNodeKind("bogus"); err == nil {
		t.Error("expected error for unknown node kind")
	}

	for k := EdgeAssign; k <= EdgeReceiver; k++ {
		got, err := ParseEdgeKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseEdgeKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseEdgeKind("bogus"); err == nil {
		t.Error("expected error for unknown edge kind")
	}
}

func TestPath(t *testing.T) {
	g, nodes := buildDiamond(t)
	src, left, sink := nodes[0], nodes[1], nodes[3]

	path := Path{
		g.Out(src.ID)[0],  // src → left
		g.Out(left.ID)[0], // left → sink
	}

	if path.Empty() {
		t.Error("path should not be empty")
	}
	if path.First().From != src.ID || path.Last().To != sink.ID {
		t.Errorf("unexpected endpoints in %s", path)
	}

	ids := path.NodeIDs()
	want := []NodeID{src.ID, left.ID, sink.ID}
	if len(ids) != len(want) {
		t.Fatalf("NodeIDs() = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("NodeIDs() = %v, want %v", ids, want)
		}
	}

	if got, want := path.String(), "#1 → #2 → #4"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got, want := path.Format(g), "location.hash → #2 → document.write"; got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestPathsShortest(t *testing.T) {
	g, nodes := buildDiamond(t)
	src, left, sink := nodes[0], nodes[1], nodes[3]
	direct := g.AddEdge(src, sink, EdgeAssign)

	long := Path{g.Out(src.ID)[0], g.Out(left.ID)[0]}
	short := Path{direct}

	if got := (Paths{long, short}).Shortest(); len(got) != 1 {
		t.Errorf("Shortest() returned path of %d edges, want 1", len(got))
	}
	if got := (Paths{}).Shortest(); got != nil {
		t.Errorf("Shortest() of no paths = %v, want nil", got)
	}
}
