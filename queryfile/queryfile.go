// Package queryfile loads taint query configurations from YAML files.
//
// A query file names one vulnerability query and lists node patterns
// for its sources, sinks, and barriers, each matching on node kind
// and a label regular expression:
//
//	name: sql-injection
//	sources:
//	  - kind: parameter
//	    label: '\*net/http\.Request'
//	sinks:
//	  - kind: call-result
//	    label: 'database/sql.*Query'
//	barriers:
//	  - kind: call-result
//	    label: 'Sanitize'
//	guards: true
//
// This makes the engine usable for query definitions that live next to
// the code under analysis rather than in a compiled-in package like
// domxss.
package queryfile

import (
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/taintflow/taint"
	"github.com/taintflow/taint/flowgraph"
)

// A Pattern matches flow-graph nodes by kind and label. An empty kind
// matches any kind; the label is a regular expression, and an empty
// label matches any label.
type Pattern struct {
	Kind  string `yaml:"kind"`
	Label string `yaml:"label"`

	kind      flowgraph.NodeKind
	anyKind   bool
	labelExpr *regexp.Regexp
}

func (p *Pattern) compile() error {
	if p.Kind == "" {
		p.anyKind = true
	} else {
		kind, err := flowgraph.ParseNodeKind(p.Kind)
		if err != nil {
			return err
		}
		p.kind = kind
	}

	expr, err := regexp.Compile(p.Label)
	if err != nil {
		return fmt.Errorf("invalid label pattern %q: %w", p.Label, err)
	}
	p.labelExpr = expr
	return nil
}

func (p *Pattern) matches(n *flowgraph.Node) bool {
	if !p.anyKind && n.Kind != p.kind {
		return false
	}
	return p.labelExpr.MatchString(n.Label)
}

// A Query is a YAML-defined taint query. It implements taint.Config
// once compiled by Load.
type Query struct {
	QueryName string    `yaml:"name"`
	Sources   []Pattern `yaml:"sources"`
	Sinks     []Pattern `yaml:"sinks"`
	Barriers  []Pattern `yaml:"barriers"`

	// Guards enables the engine's built-in guard families
	// (typeof narrowing and node-shape witnesses).
	Guards bool `yaml:"guards"`
}

// Name implements taint.Config.
func (q *Query) Name() string {
	return q.QueryName
}

// IsSource implements taint.Config.
func (q *Query) IsSource(n *flowgraph.Node) bool {
	return matchesAny(q.Sources, n)
}

// IsSink implements taint.Config.
func (q *Query) IsSink(n *flowgraph.Node) bool {
	return matchesAny(q.Sinks, n)
}

// IsBarrier implements taint.Config.
func (q *Query) IsBarrier(n *flowgraph.Node) bool {
	return matchesAny(q.Barriers, n)
}

// IsGuard implements taint.Config.
func (q *Query) IsGuard(n *flowgraph.Node) bool {
	if !q.Guards {
		return false
	}
	return taint.IsComparison(n) || taint.IsShapeWitness(n)
}

func matchesAny(patterns []Pattern, n *flowgraph.Node) bool {
	for i := range patterns {
		if patterns[i].matches(n) {
			return true
		}
	}
	return false
}

// Load reads and compiles a query from the given io.Reader.
func Load(r io.Reader) (*Query, error) {
	var q Query
	if err := yaml.NewDecoder(r).Decode(&q); err != nil {
		return nil, fmt.Errorf("failed to decode query: %w", err)
	}

	if q.QueryName == "" {
		return nil, fmt.Errorf("query has no name")
	}
	if len(q.Sources) == 0 {
		return nil, fmt.Errorf("query %q has no sources", q.QueryName)
	}
	if len(q.Sinks) == 0 {
		return nil, fmt.Errorf("query %q has no sinks", q.QueryName)
	}

	for _, patterns := range [][]Pattern{q.Sources, q.Sinks, q.Barriers} {
		for i := range patterns {
			if err := patterns[i].compile(); err != nil {
				return nil, fmt.Errorf("query %q: %w", q.QueryName, err)
			}
		}
	}

	return &q, nil
}

// LoadFile reads and compiles a query from the named YAML file.
func LoadFile(path string) (*Query, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open query file: %w", err)
	}
	defer f.Close()

	q, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return q, nil
}
