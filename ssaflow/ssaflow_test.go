package ssaflow_test

import (
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"sort"
	"testing"

	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/taintflow/taint"
	"github.com/taintflow/taint/flowgraph"
	"github.com/taintflow/taint/ssaflow"
)

// buildGraph compiles the given source to SSA and builds its flow
// graph.
func buildGraph(t *testing.T, src string) *flowgraph.Graph {
	t.Helper()

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, "p.go", src, parser.SkipObjectResolution)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	pkg := types.NewPackage("p", "")
	ssapkg, _, err := ssautil.BuildPackage(&types.Config{}, fset, pkg, []*ast.File{f}, ssa.SanityCheckFunctions)
	if err != nil {
		t.Fatalf("ssa build failed: %v", err)
	}

	var fns []*ssa.Function
	for fn := range ssautil.AllFunctions(ssapkg.Prog) {
		if fn.Blocks != nil {
			fns = append(fns, fn)
		}
	}
	sort.Slice(fns, func(i, j int) bool { return fns[i].String() < fns[j].String() })

	g, err := ssaflow.Build(fns...)
	if err != nil {
		t.Fatalf("graph build failed: %v", err)
	}
	return g
}

func findNode(g *flowgraph.Graph, kind flowgraph.NodeKind, label string) *flowgraph.Node {
	for _, n := range g.Nodes() {
		if n.Kind == kind && n.Label == label {
			return n
		}
	}
	return nil
}

func TestBuildEmpty(t *testing.T) {
	if _, err := ssaflow.Build(); err == nil {
		t.Error("expected error for no functions")
	}
}

func TestBuildNodes(t *testing.T) {
	g := buildGraph(t, `package p

type record struct {
	name string
}

func describe(r *record) string {
	return r.name
}

func build(name string) string {
	rec := &record{}
	rec.name = name
	return describe(rec)
}
`)

	if findNode(g, flowgraph.KindParameter, "string") == nil {
		t.Error("missing parameter node labeled with its type")
	}
	if findNode(g, flowgraph.KindParameter, "*p.record") == nil {
		t.Error("missing pointer parameter node")
	}
	if findNode(g, flowgraph.KindCallResult, "p.describe") == nil {
		t.Error("missing call-result node labeled with its callee")
	}
	if findNode(g, flowgraph.KindPropertyAccess, "name") == nil {
		t.Error("missing property-access node labeled with the field name")
	}
	if err := g.Validate(); err != nil {
		t.Errorf("built graph should validate, got %v", err)
	}
}

func TestTaintThroughFunctionCall(t *testing.T) {
	g := buildGraph(t, `package p

func quote(s string) string {
	return "'" + s + "'"
}

func handle(input string) string {
	return quote(input)
}
`)

	cfg := &taint.PredicateConfig{
		QueryName: "test",
		Source: func(n *flowgraph.Node) bool {
			return n.Kind == flowgraph.KindParameter && n.Label == "string"
		},
		Sink: func(n *flowgraph.Node) bool {
			return n.Kind == flowgraph.KindCallResult && n.Label == "p.quote"
		},
	}

	report, err := taint.Check(g, cfg)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if len(report.Findings) == 0 {
		t.Fatal("expected tainted parameter to reach the call result")
	}
}

func TestTaintThroughFieldAndMethod(t *testing.T) {
	g := buildGraph(t, `package p

type record struct {
	name string
}

func (r *record) describe() string {
	return r.name
}

func render(name string) string {
	rec := &record{}
	rec.name = name
	return rec.describe()
}
`)

	cfg := &taint.PredicateConfig{
		QueryName: "test",
		Source: func(n *flowgraph.Node) bool {
			return n.Kind == flowgraph.KindParameter && n.Label == "string"
		},
		Sink: func(n *flowgraph.Node) bool {
			return n.Kind == flowgraph.KindCallResult && n.Label == "(*p.record).describe"
		},
	}

	report, err := taint.Check(g, cfg)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if len(report.Findings) == 0 {
		t.Fatal("expected field write to taint the receiver's method call")
	}
}

func TestTaintThroughReturnValue(t *testing.T) {
	// The only route to the sink is the value extract returns; the
	// callee sorts before its caller, so its returns must still see
	// the caller's call site.
	g := buildGraph(t, `package p

type box struct {
	s string
}

func extract(b *box) string {
	return b.s
}

func render(b *box) string {
	return "<" + extract(b) + ">"
}
`)

	cfg := &taint.PredicateConfig{
		QueryName: "test",
		Source: func(n *flowgraph.Node) bool {
			return n.Kind == flowgraph.KindPropertyAccess && n.Label == "s"
		},
		Sink: func(n *flowgraph.Node) bool {
			return n.Kind == flowgraph.KindCallResult && n.Label == "p.extract"
		},
	}

	report, err := taint.Check(g, cfg)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if len(report.Findings) == 0 {
		t.Fatal("expected returned field read to taint the call result")
	}
}

func TestReturnFlowsToCallSite(t *testing.T) {
	g := buildGraph(t, `package p

func id(s string) string {
	return s
}

func use(in string) string {
	out := id(in)
	return out
}
`)

	call := findNode(g, flowgraph.KindCallResult, "p.id")
	if call == nil {
		t.Fatal("missing call-result node for p.id")
	}

	// The callee's returned value must flow back into the call result.
	found := false
	for _, e := range g.In(call.ID) {
		if e.Kind == flowgraph.EdgeCallReturn {
			found = true
		}
	}
	if !found {
		t.Error("expected a call-return edge into the call result")
	}
}
