package taint

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/taintflow/taint/flowgraph"
)

// A Finding is an individual finding from a taint check. It records
// the source node whose value reached a sink node, along with one
// witness path within the flow graph as evidence. Exactly one finding
// is produced per reachable (source, sink) pair.
type Finding struct {
	// Source is the node where the tainted value originated.
	Source *flowgraph.Node

	// Sink is the node the tainted value reached.
	Sink *flowgraph.Node

	// Path is the witness path from source to sink. It is empty when
	// the source is itself a sink.
	Path flowgraph.Path
}

func (f Finding) String() string {
	if f.Path.Empty() {
		return fmt.Sprintf("%s ⇒ %s", f.Source, f.Sink)
	}
	return fmt.Sprintf("%s ⇒ %s via %s", f.Source, f.Sink, f.Path)
}

// Findings is a collection of unique findings from a taint check,
// ordered by (source, sink) node ID.
type Findings []Finding

// A Report is the terminal output of one analysis run.
type Report struct {
	// Findings are the surviving (source, sink, witness path)
	// triples.
	Findings Findings

	// Truncated is set when the run stopped early because its
	// context was canceled or its step budget was exhausted. The
	// findings gathered up to that point are still returned.
	Truncated bool
}

// Options tune a single analysis run. The zero value is a sequential,
// unbudgeted, silent run.
type Options struct {
	// MaxSteps bounds the number of worklist pops across the whole
	// run. Zero means no bound.
	MaxSteps int

	// Workers is the number of seeds propagated concurrently.
	// Values below one mean sequential.
	Workers int

	// Logger, if set, receives debug output for the run.
	Logger *zap.Logger
}

// Errors reported before propagation starts.
var (
	ErrNoGraph  = fmt.Errorf("taint: no flow graph")
	ErrNoConfig = fmt.Errorf("taint: no configuration")
)

// Check is the primary function users of this package will use.
//
// It computes the set of findings for one configuration over one flow
// graph: a worklist-based reachability search seeded with every node
// the configuration classifies as a source, following edges forward,
// never through barrier nodes, and never across an edge a guard proves
// infeasible for the tainted value it carries.
//
//	Diagram
//	             ╭─────────────────────────────────────────────╮
//	             │ ╭───────╮    ╭───────────╮    ╭─────────────╮│
//	╭───────╮    │ │ seeds ├──▶ │ propagate ├──▶ │ guard check ││
//	│ Check ├──▶ │ ╰───────╯    ╰─────┬─────╯    ╰─────────────╯│
//	╰───────╯    ╰───────────────────┬┴──────────────────────────╯
//	                                 │
//	                                 ▼
//	                            ╭────────╮
//	                            │ Report │
//	                            ╰────────╯
//
// The graph is validated before propagation starts; an ill-formed
// graph is a caller contract violation and returns an error rather
// than a partial answer.
func Check(g *flowgraph.Graph, cfg Config) (*Report, error) {
	return CheckContext(context.Background(), g, cfg, nil)
}

// CheckContext is Check with cancellation and run options. A canceled
// context or exhausted step budget is not an error: it yields a
// partial report with its Truncated flag set.
func CheckContext(ctx context.Context, g *flowgraph.Graph, cfg Config, opts *Options) (*Report, error) {
	if g == nil {
		return nil, ErrNoGraph
	}
	if cfg == nil {
		return nil, ErrNoConfig
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flow graph: %w", err)
	}

	if opts == nil {
		opts = &Options{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("taint").With(zap.String("query", cfg.Name()))

	r := &run{
		graph:  g,
		cfg:    cfg,
		guards: newGuardEvaluator(g, cfg),
		logger: logger,
	}
	if opts.MaxSteps > 0 {
		r.budget = int64(opts.MaxSteps)
	}

	// Seed with every source node. Barriers take precedence over
	// sources: a node that is both is never tainted.
	var seeds []*flowgraph.Node
	for _, n := range g.Nodes() {
		if !cfg.IsSource(n) {
			continue
		}
		if cfg.IsBarrier(n) {
			logger.Debug("barrier wins over source", zap.Stringer("node", n))
			continue
		}
		seeds = append(seeds, n)
	}
	logger.Debug("seeded sources",
		zap.Int("seeds", len(seeds)),
		zap.Int("nodes", g.NumNodes()),
		zap.Int("edges", g.NumEdges()))

	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	// Each seed is an independent unit of work over the read-only
	// graph. Results are gathered per seed and merged in seed order
	// so the report does not depend on scheduling.
	perSeed := make([]Findings, len(seeds))
	truncated := make([]bool, len(seeds))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, seed := range seeds {
		i, seed := i, seed
		eg.Go(func() error {
			perSeed[i], truncated[i] = r.propagate(egCtx, seed)
			return nil
		})
	}
	// Workers only report through perSeed; the group is used for
	// limiting and context plumbing.
	_ = eg.Wait()

	report := &Report{}
	for i := range perSeed {
		report.Findings = append(report.Findings, perSeed[i]...)
		report.Truncated = report.Truncated || truncated[i]
	}
	sort.SliceStable(report.Findings, func(i, j int) bool {
		a, b := report.Findings[i], report.Findings[j]
		if a.Source.ID != b.Source.ID {
			return a.Source.ID < b.Source.ID
		}
		return a.Sink.ID < b.Sink.ID
	})

	logger.Debug("check complete",
		zap.Int("findings", len(report.Findings)),
		zap.Bool("truncated", report.Truncated))

	return report, nil
}

// run holds the per-run state shared by all propagation workers. The
// graph and configuration are read-only; steps is the only mutable
// shared word.
type run struct {
	graph  *flowgraph.Graph
	cfg    Config
	guards *guardEvaluator
	logger *zap.Logger

	budget int64 // 0 = unlimited
	steps  int64 // atomically incremented worklist pops
}

// exhausted performs the cooperative budget check done at each
// worklist pop.
func (r *run) exhausted() bool {
	if r.budget == 0 {
		return false
	}
	return atomic.AddInt64(&r.steps, 1) > r.budget
}

// propagate runs the taint reachability search for a single seed. It
// is a breadth-first traversal, so the first path reaching a sink is a
// shortest witness path; successors are visited in ascending node ID
// order, which breaks ties between equal-length paths toward the
// lowest node IDs and keeps the result deterministic.
//
// A node is marked visited the moment it transitions to tainted and is
// never re-enqueued, so propagation through cycles converges.
func (r *run) propagate(ctx context.Context, seed *flowgraph.Node) (Findings, bool) {
	var findings Findings

	// A source that is also a sink is a self-reachable pair,
	// reported once with an empty witness path.
	if r.cfg.IsSink(seed) {
		findings = append(findings, Finding{Source: seed, Sink: seed})
	}

	visited := map[flowgraph.NodeID]bool{seed.ID: true}
	parent := map[flowgraph.NodeID]*flowgraph.Edge{}
	queue := []flowgraph.NodeID{seed.ID}

	for len(queue) > 0 {
		select {
		case <-ctx.Done():
			return findings, true
		default:
		}
		if r.exhausted() {
			r.logger.Debug("step budget exhausted", zap.Stringer("seed", seed))
			return findings, true
		}

		id := queue[0]
		queue = queue[1:]

		for _, e := range r.graph.Out(id) {
			if visited[e.To] {
				continue
			}
			next := r.graph.Node(e.To)
			if r.cfg.IsBarrier(next) {
				// Barrier nodes are never marked tainted,
				// terminating propagation through them.
				continue
			}
			if r.guards.sanitizes(e) {
				r.logger.Debug("guard pruned edge", zap.Stringer("edge", e))
				continue
			}

			visited[e.To] = true
			parent[e.To] = e
			queue = append(queue, e.To)

			if r.cfg.IsSink(next) {
				findings = append(findings, Finding{
					Source: seed,
					Sink:   next,
					Path:   witnessPath(parent, seed.ID, e.To),
				})
			}
		}
	}

	return findings, false
}

// witnessPath reconstructs the path from seed to node by walking the
// parent edges recorded during the search.
func witnessPath(parent map[flowgraph.NodeID]*flowgraph.Edge, seed, node flowgraph.NodeID) flowgraph.Path {
	var rev flowgraph.Path
	for node != seed {
		e := parent[node]
		if e == nil {
			break
		}
		rev = append(rev, e)
		node = e.From
	}

	path := make(flowgraph.Path, 0, len(rev))
	for i := len(rev) - 1; i >= 0; i-- {
		path = append(path, rev[i])
	}
	return path
}
