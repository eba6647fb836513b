package taint

import (
	"github.com/taintflow/taint/flowgraph"
)

// Config is a named bundle of the four predicates that together define
// one vulnerability query. Exactly one Config is active per analysis
// run, supplied by the caller before the run starts and read-only for
// its duration.
//
// Predicates must be total and side-effect-free. They are evaluated
// on demand during propagation; because nodes are immutable, a Config
// may cache per-node answers internally, but the engine never reuses
// results across runs.
type Config interface {
	// Name identifies the query, e.g. "dom-xss".
	Name() string

	// IsSource reports whether n may originate tainted data.
	IsSource(n *flowgraph.Node) bool

	// IsSink reports whether n is a location where tainted data
	// becomes dangerous if it flows there.
	IsSink(n *flowgraph.Node) bool

	// IsBarrier reports whether data observed at n must be treated
	// as clean regardless of how it got there. A node that is both
	// source and barrier is never tainted: barrier wins.
	IsBarrier(n *flowgraph.Node) bool

	// IsGuard reports whether n is a condition node that acts as a
	// branch-sensitive barrier. The guard evaluator inspects the
	// condition's operand structure to decide which branch, if any,
	// sanitizes which expression.
	IsGuard(n *flowgraph.Node) bool
}

// LabelSet is a set of unique node labels that express the names of
// sources, sinks, barriers, or guards being tracked.
type LabelSet map[string]struct{}

// NewLabelSet returns a new LabelSet with the given labels.
func NewLabelSet(labels ...string) LabelSet {
	set := LabelSet{}

	for _, label := range labels {
		set[label] = struct{}{}
	}

	return set
}

// Includes returns true if the label is in the set.
func (s LabelSet) Includes(label string) bool {
	if s == nil {
		return false
	}
	_, ok := s[label]
	return ok
}

// PredicateConfig is a Config assembled from plain predicate
// functions. A nil predicate never matches, which keeps every
// predicate total.
type PredicateConfig struct {
	QueryName string
	Source    func(n *flowgraph.Node) bool
	Sink      func(n *flowgraph.Node) bool
	Barrier   func(n *flowgraph.Node) bool
	Guard     func(n *flowgraph.Node) bool
}

// Name implements Config.
func (c *PredicateConfig) Name() string {
	return c.QueryName
}

// IsSource implements Config.
func (c *PredicateConfig) IsSource(n *flowgraph.Node) bool {
	return c.Source != nil && c.Source(n)
}

// IsSink implements Config.
func (c *PredicateConfig) IsSink(n *flowgraph.Node) bool {
	return c.Sink != nil && c.Sink(n)
}

// IsBarrier implements Config.
func (c *PredicateConfig) IsBarrier(n *flowgraph.Node) bool {
	return c.Barrier != nil && c.Barrier(n)
}

// IsGuard implements Config.
func (c *PredicateConfig) IsGuard(n *flowgraph.Node) bool {
	return c.Guard != nil && c.Guard(n)
}
