// Package ssaflow builds flow graphs from the SSA form of Go
// programs, so the taint engine and YAML-defined queries can be run
// against Go code. It is one implementation of the
// program-representation layer the engine expects; graphs for other
// languages can be produced externally and loaded through the
// flowgraph JSON codec.
//
// Parameter nodes are labeled with their type (e.g.
// "*net/http.Request") and call-result nodes with their callee (e.g.
// "(*database/sql.DB).Query"), so query patterns read the same way
// sources and sinks are usually named for Go taint checking.
package ssaflow

import (
	"fmt"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/ssa"

	"github.com/taintflow/taint/flowgraph"
)

// Build constructs a flow graph from the given SSA functions. All
// functions must belong to the same program.
func Build(fns ...*ssa.Function) (*flowgraph.Graph, error) {
	if len(fns) == 0 {
		return nil, fmt.Errorf("ssaflow: no functions")
	}

	b := &builder{
		graph:  flowgraph.New(),
		fset:   fns[0].Prog.Fset,
		values: make(map[ssa.Value]*flowgraph.Node),
		params: make(map[*ssa.Function][]*flowgraph.Node),
		calls:  make(map[*ssa.Function][]*flowgraph.Node),
	}

	// First pass: create nodes for parameters and value-producing
	// instructions. Constants, functions, and globals are assumed
	// safe, as they carry no run-specific data flow worth tracking.
	for _, fn := range fns {
		b.addFunction(fn)
	}

	// Second pass: connect operands and arguments. This also records
	// every static call site, so it must complete for all functions
	// before returns are wired up.
	for _, fn := range fns {
		b.connectFunction(fn)
	}

	// Third pass: flow return operands back to the call results of
	// their recorded call sites.
	for _, fn := range fns {
		b.connectReturns(fn)
	}

	if err := b.graph.Validate(); err != nil {
		return nil, fmt.Errorf("ssaflow: %w", err)
	}
	return b.graph, nil
}

type builder struct {
	graph  *flowgraph.Graph
	fset   *token.FileSet
	values map[ssa.Value]*flowgraph.Node
	params map[*ssa.Function][]*flowgraph.Node
	calls  map[*ssa.Function][]*flowgraph.Node
}

func (b *builder) addFunction(fn *ssa.Function) {
	for _, param := range fn.Params {
		n := b.graph.AddNode(flowgraph.KindParameter, param.Type().String(), b.position(param.Pos()))
		b.values[param] = n
		b.params[fn] = append(b.params[fn], n)
	}

	for _, block := range fn.Blocks {
		for _, instr := range block.Instrs {
			v, ok := instr.(ssa.Value)
			if !ok {
				continue
			}
			switch v := v.(type) {
			case *ssa.Call:
				b.values[v] = b.graph.AddNode(flowgraph.KindCallResult, calleeName(v.Common()), b.position(v.Pos()))
			case *ssa.FieldAddr:
				b.values[v] = b.graph.AddNode(flowgraph.KindPropertyAccess, fieldAddrName(v), b.position(v.Pos()))
			case *ssa.Field:
				b.values[v] = b.graph.AddNode(flowgraph.KindPropertyAccess, fieldName(v.X.Type(), v.Field), b.position(v.Pos()))
			default:
				b.values[v] = b.graph.AddNode(flowgraph.KindExpression, "", b.position(v.Pos()))
			}
		}
	}
}

func (b *builder) connectFunction(fn *ssa.Function) {
	for _, block := range fn.Blocks {
		for _, instr := range block.Instrs {
			switch instr := instr.(type) {
			case *ssa.Call:
				b.connectCall(instr)
			case *ssa.FieldAddr:
				b.connect(instr.X, instr, flowgraph.EdgePropertyRead)
			case *ssa.Field:
				b.connect(instr.X, instr, flowgraph.EdgePropertyRead)
			case *ssa.Store:
				if fa, ok := instr.Addr.(*ssa.FieldAddr); ok {
					// A field write taints the whole base object, so
					// later reads through other references see it.
					b.connect(instr.Val, fa, flowgraph.EdgePropertyWrite)
					b.connect(instr.Val, fa.X, flowgraph.EdgePropertyWrite)
					continue
				}
				b.connect(instr.Val, instr.Addr, flowgraph.EdgeAssign)
			case *ssa.Return:
				// Handled by connectReturns once all call sites are
				// recorded.
			default:
				v, ok := instr.(ssa.Value)
				if !ok {
					continue
				}
				to, ok := b.values[v]
				if !ok {
					continue
				}
				for _, opr := range instr.Operands(nil) {
					if opr == nil || *opr == nil {
						continue
					}
					if from, ok := b.values[*opr]; ok {
						b.graph.AddEdge(from, to, flowgraph.EdgeAssign)
					}
				}
			}
		}
	}
}

// connectReturns flows the operands of fn's return instructions to
// the call results of every static call site of fn.
func (b *builder) connectReturns(fn *ssa.Function) {
	callNodes := b.calls[fn]
	if len(callNodes) == 0 {
		return
	}
	for _, block := range fn.Blocks {
		for _, instr := range block.Instrs {
			ret, ok := instr.(*ssa.Return)
			if !ok {
				continue
			}
			for _, res := range ret.Results {
				from, ok := b.values[res]
				if !ok {
					continue
				}
				for _, callNode := range callNodes {
					b.graph.AddEdge(from, callNode, flowgraph.EdgeCallReturn)
				}
			}
		}
	}
}

func (b *builder) connectCall(call *ssa.Call) {
	callNode := b.values[call]
	common := call.Common()

	args := common.Args
	callee := common.StaticCallee()

	// For static callees, Params lines up with Args including the
	// receiver, keeping the argument-to-parameter mapping aligned.
	paramIdx := 0
	if common.IsInvoke() || (common.Signature() != nil && common.Signature().Recv() != nil) {
		// The receiver propagates taint into the call result: a
		// method called on a tainted object generally yields
		// tainted data.
		recv := common.Value
		if !common.IsInvoke() && len(args) > 0 {
			recv = args[0]
			args = args[1:]
			paramIdx = 1
		}
		b.connect(recv, call, flowgraph.EdgeReceiver)
		if from, ok := b.values[recv]; ok && callee != nil && len(b.params[callee]) > 0 {
			b.graph.AddEdge(from, b.params[callee][0], flowgraph.EdgeReceiver)
		}
	}

	for i, arg := range args {
		b.connect(arg, call, flowgraph.EdgeCallArg)

		// Map arguments onto the parameters of static callees so
		// taint crosses function boundaries.
		if callee == nil {
			continue
		}
		if from, ok := b.values[arg]; ok && paramIdx+i < len(b.params[callee]) {
			b.graph.AddEdge(from, b.params[callee][paramIdx+i], flowgraph.EdgeCallArg)
		}
	}

	if callee != nil && callNode != nil {
		b.calls[callee] = append(b.calls[callee], callNode)
	}
}

// connect adds an edge between the nodes for two SSA values, if both
// have nodes.
func (b *builder) connect(from, to ssa.Value, kind flowgraph.EdgeKind) {
	fromNode, ok := b.values[from]
	if !ok {
		return
	}
	toNode, ok := b.values[to]
	if !ok {
		return
	}
	b.graph.AddEdge(fromNode, toNode, kind)
}

func (b *builder) position(pos token.Pos) flowgraph.Position {
	if !pos.IsValid() {
		return flowgraph.Position{}
	}
	p := b.fset.Position(pos)
	return flowgraph.Position{File: p.Filename, Line: p.Line, Col: p.Column}
}

// calleeName builds the label for a call result, e.g. "fmt.Sprintf"
// or "(*database/sql.DB).Query" for methods.
func calleeName(common *ssa.CallCommon) string {
	if common.IsInvoke() {
		return fmt.Sprintf("(%s).%s", types.TypeString(common.Value.Type(), nil), common.Method.Name())
	}
	if fn := common.StaticCallee(); fn != nil {
		if sig := fn.Signature; sig != nil && sig.Recv() != nil {
			return fmt.Sprintf("(%s).%s", types.TypeString(sig.Recv().Type(), nil), fn.Name())
		}
		return fn.String()
	}
	if common.Value != nil {
		return common.Value.Name()
	}
	return ""
}

func fieldAddrName(fa *ssa.FieldAddr) string {
	return fieldName(fa.X.Type(), fa.Field)
}

func fieldName(t types.Type, index int) string {
	if ptr, ok := t.Underlying().(*types.Pointer); ok {
		t = ptr.Elem()
	}
	if st, ok := t.Underlying().(*types.Struct); ok && index < st.NumFields() {
		return st.Field(index).Name()
	}
	return ""
}
