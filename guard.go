package taint

import (
	"sync"

	"github.com/taintflow/taint/flowgraph"
)

// A Guard is a conditional barrier: it removes taint from a target
// expression, but only along the control-flow successor edge that is
// consistent with its required outcome. A guard never adds taint.
type Guard struct {
	// Cond is the condition node being tested.
	Cond flowgraph.NodeID

	// Target is the expression node whose taint is affected.
	Target flowgraph.NodeID

	// Outcome is the branch on which the target becomes clean.
	Outcome flowgraph.Branch
}

// comparisonOps are the operator labels recognized by the
// type-narrowing guard family.
var comparisonOps = NewLabelSet("===", "==", "!==", "!=")

// shapeWitnessProperties are properties known to exist only on
// non-text, node-like values. Reading one of them in a condition
// witnesses that the base expression is not plain text.
var shapeWitnessProperties = NewLabelSet("nodeType", "tagName")

// IsComparison reports whether n is a comparison condition that may
// carry a type-narrowing guard. Query configurations typically use
// this, together with the shape-witness properties, to implement
// their IsGuard predicate.
func IsComparison(n *flowgraph.Node) bool {
	return comparisonOps.Includes(n.Label)
}

// IsShapeWitness reports whether n reads a property that witnesses a
// node-like, non-text value.
func IsShapeWitness(n *flowgraph.Node) bool {
	return n.Kind == flowgraph.KindPropertyAccess && shapeWitnessProperties.Includes(n.Label)
}

// guardEvaluator derives and caches the guards implied by condition
// nodes. Derivation only depends on the immutable graph, so the cache
// is shared by all worklist workers of one run.
type guardEvaluator struct {
	graph *flowgraph.Graph
	cfg   Config

	mu    sync.Mutex
	cache map[flowgraph.NodeID][]Guard
}

func newGuardEvaluator(g *flowgraph.Graph, cfg Config) *guardEvaluator {
	return &guardEvaluator{
		graph: g,
		cfg:   cfg,
		cache: make(map[flowgraph.NodeID][]Guard),
	}
}

// sanitizes reports whether traversing edge e would carry the tainted
// value at e.From across a branch on which a guard proves it clean.
// It is the only question the propagation engine asks about guards.
func (ev *guardEvaluator) sanitizes(e *flowgraph.Edge) bool {
	if !e.Guarded() {
		return false
	}

	cond := ev.graph.Node(e.Cond)
	if cond == nil || !ev.cfg.IsGuard(cond) {
		return false
	}

	for _, gd := range ev.guardsFor(cond) {
		if gd.Target == e.From && gd.Outcome == e.Branch {
			return true
		}
	}
	return false
}

func (ev *guardEvaluator) guardsFor(cond *flowgraph.Node) []Guard {
	ev.mu.Lock()
	defer ev.mu.Unlock()

	if guards, ok := ev.cache[cond.ID]; ok {
		return guards
	}

	var guards []Guard
	if IsComparison(cond) {
		guards = ev.typeNarrowingGuards(cond)
	} else {
		guards = ev.shapeWitnessGuards(cond)
	}
	ev.cache[cond.ID] = guards
	return guards
}

// typeNarrowingGuards recognizes conditions of the form
//
//	typeof x <op> <literal>
//
// and returns a guard sanitizing x on the branch where x is provably
// not a string. When the compared literal is "string", that is the
// false branch of an equality; for any other literal it is the true
// branch. Negated operators flip the outcome. Conditions that do not
// statically resolve to this shape yield no guards.
func (ev *guardEvaluator) typeNarrowingGuards(cond *flowgraph.Node) []Guard {
	var (
		target  *flowgraph.Node
		literal string
		haveLit bool
	)

	for _, e := range ev.graph.In(cond.ID) {
		if e.Kind != flowgraph.EdgeAssign {
			continue
		}
		operand := ev.graph.Node(e.From)
		if operand == nil {
			continue
		}
		if operand.Label == "typeof" {
			target = ev.operandOf(operand)
			continue
		}
		if lit, ok := stringLiteral(operand.Label); ok {
			literal = lit
			haveLit = true
		}
	}

	if target == nil || !haveLit {
		// Not a typeof comparison we can resolve. No sanitization.
		return nil
	}

	outcome := flowgraph.BranchTrue
	if literal == "string" {
		outcome = flowgraph.BranchFalse
	}
	if cond.Label == "!==" || cond.Label == "!=" {
		outcome = negate(outcome)
	}

	return []Guard{{Cond: cond.ID, Target: target.ID, Outcome: outcome}}
}

// shapeWitnessGuards recognizes conditions that truth-test a read of a
// node-witnessing property (nodeType or tagName). The base expression
// of the read is sanitized on the true branch only: if the property
// exists, the value is node-like rather than text.
func (ev *guardEvaluator) shapeWitnessGuards(cond *flowgraph.Node) []Guard {
	read := cond
	if !IsShapeWitness(read) {
		// The condition may wrap the read, e.g. a Boolean(...) truth
		// test. Look one assignment step back.
		read = nil
		for _, e := range ev.graph.In(cond.ID) {
			if e.Kind != flowgraph.EdgeAssign {
				continue
			}
			operand := ev.graph.Node(e.From)
			if operand != nil && IsShapeWitness(operand) {
				read = operand
				break
			}
		}
		if read == nil {
			return nil
		}
	}

	for _, e := range ev.graph.In(read.ID) {
		if e.Kind != flowgraph.EdgePropertyRead {
			continue
		}
		base := ev.graph.Node(e.From)
		if base == nil {
			continue
		}
		return []Guard{{Cond: cond.ID, Target: base.ID, Outcome: flowgraph.BranchTrue}}
	}

	// Base expression could not be resolved. No sanitization.
	return nil
}

// operandOf returns the single assignment operand of n, or nil if it
// cannot be determined.
func (ev *guardEvaluator) operandOf(n *flowgraph.Node) *flowgraph.Node {
	for _, e := range ev.graph.In(n.ID) {
		if e.Kind == flowgraph.EdgeAssign {
			return ev.graph.Node(e.From)
		}
	}
	return nil
}

// stringLiteral reports whether label is a quoted string literal,
// returning its unquoted value. Both double and single quoted forms
// are accepted.
func stringLiteral(label string) (string, bool) {
	if len(label) < 2 {
		return "", false
	}
	first, last := label[0], label[len(label)-1]
	if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
		return label[1 : len(label)-1], true
	}
	return "", false
}

func negate(b flowgraph.Branch) flowgraph.Branch {
	if b == flowgraph.BranchTrue {
		return flowgraph.BranchFalse
	}
	return flowgraph.BranchTrue
}
