package flowgraph

import (
	"bufio"
	"fmt"
	"io"
)

// WriteDOT writes the given graph to the given io.Writer in the DOT
// format, which can be used to generate a visual representation of the
// flow graph using Graphviz.
func WriteDOT(w io.Writer, g *Graph) error {
	b := bufio.NewWriter(w)
	defer b.Flush()

	b.WriteString("digraph flowgraph {\n")
	b.WriteString("\tgraph [fontname=\"Helvetica\"];\n")
	b.WriteString("\tnode [fontname=\"Helvetica\"];\n")
	b.WriteString("\tedge [fontname=\"Helvetica\"];\n")

	// Write nodes.
	for _, n := range g.Nodes() {
		label := n.Label
		if label == "" {
			label = n.Kind.String()
		}
		b.WriteString(fmt.Sprintf("\t%q [label=%q];\n", fmt.Sprintf("%d", n.ID), label))
	}

	// Write edges. Guarded edges are dashed and annotated with their
	// condition node and branch outcome.
	for _, n := range g.Nodes() {
		for _, e := range g.Out(n.ID) {
			if e.Guarded() {
				b.WriteString(fmt.Sprintf("\t%q -> %q [label=%q, style=dashed];\n",
					fmt.Sprintf("%d", e.From), fmt.Sprintf("%d", e.To),
					fmt.Sprintf("%s (#%d=%s)", e.Kind, e.Cond, e.Branch)))
				continue
			}
			b.WriteString(fmt.Sprintf("\t%q -> %q [label=%q];\n",
				fmt.Sprintf("%d", e.From), fmt.Sprintf("%d", e.To), e.Kind.String()))
		}
	}

	b.WriteString("}\n")

	return nil
}
