package passgraph

import (
	"fmt"
	"io"
)

// WriteDOT renders the graph in Graphviz format. Culled passes are drawn
// dashed, and each edge is labelled with its hazard kinds.
func (g *Graph) WriteDOT(w io.Writer, names []string, active []bool) error {
	name := func(p int) string {
		if p < len(names) {
			return names[p]
		}
		return fmt.Sprintf("pass_%d", p)
	}

	if _, err := fmt.Fprintln(w, "digraph rendergraph {"); err != nil {
		return err
	}
	for p := range g.passCount {
		style := "solid"
		if p < len(active) && !active[p] {
			style = "dashed"
		}
		if _, err := fmt.Fprintf(w, "  p%d [label=%q style=%s];\n", p, fmt.Sprintf("%s (L%d)", name(p), g.levels[p]), style); err != nil {
			return err
		}
	}
	for src := range g.passCount {
		for _, dst := range g.dependants[src] {
			f := g.DependencyFlags(PassID(src), dst)
			if _, err := fmt.Fprintf(w, "  p%d -> p%d [label=%q];\n", src, dst, f.String()); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}
