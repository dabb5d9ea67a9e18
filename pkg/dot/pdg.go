package dot

import (
	"fmt"
	"io"
	"strings"

	"github.com/oUaTEnCi/tsar/pkg/pdg"
)

// WritePDG renders a program dependence graph. Edge styling encodes the
// dependence kind: def-use solid blue, memory solid green, mixed data
// solid purple, control dotted, complex data solid orchid with the
// ordinal pair of every inlined edge, complex control dashed.
func WritePDG(w io.Writer, p *pdg.PDG) error {
	pw := &writer{w: w}
	pw.open("Program Dependency Graph")
	for _, id := range p.G.Nodes() {
		pw.printf("\tn%d [label=%q];\n", id, escape(p.G.Node(id).Label()))
	}
	for _, id := range p.G.Nodes() {
		for _, e := range p.G.EdgesOf(id) {
			attrs, label := edgeStyle(e.Data)
			if label != "" {
				attrs = append(attrs, fmt.Sprintf("label=%q", escape(label)))
			}
			pw.printf("\tn%d -> n%d [%s];\n", id, e.Target, strings.Join(attrs, ","))
		}
	}
	pw.close()
	return pw.err
}

func edgeStyle(e *pdg.Edge) (attrs []string, label string) {
	switch e.Kind {
	case pdg.EdgeDefUse:
		return []string{"style=solid", "color=blue"}, ""
	case pdg.EdgeMemory:
		return []string{"style=solid", "color=green"}, e.Mem.Label()
	case pdg.EdgeMixed:
		return []string{"style=solid", "color=purple"}, e.Mem.Label()
	case pdg.EdgeControl:
		return []string{"style=dotted"}, ""
	case pdg.EdgeComplexData:
		return []string{"style=solid", "color=orchid"}, handleLabel(e.Handles)
	case pdg.EdgeComplexControl:
		return []string{"style=dashed"}, handleLabel(e.Handles)
	default:
		return []string{"style=solid"}, ""
	}
}

// handleLabel lists the ordinal pair of every inlined edge.
func handleLabel(handles []pdg.EdgeHandle) string {
	var pairs []string
	for _, h := range handles {
		pairs = append(pairs, fmt.Sprintf("(%s,%s)", ordinal(h.SrcOrdinal), ordinal(h.TgtOrdinal)))
	}
	return strings.Join(pairs, " ")
}

func ordinal(n int) string {
	if n < 0 {
		return "ext"
	}
	return fmt.Sprintf("%d", n)
}
