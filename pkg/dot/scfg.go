package dot

import (
	"io"

	"github.com/oUaTEnCi/tsar/pkg/scfg"
)

// WriteSCFG renders a source control flow graph.
func WriteSCFG(w io.Writer, s *scfg.SCFG) error {
	p := &writer{w: w}
	p.open("Source Control Flow Graph")
	for _, id := range s.G.Nodes() {
		p.printf("\tn%d [label=%q];\n", id, escape(s.Node(id).String()))
	}
	for _, id := range s.G.Nodes() {
		for _, e := range s.G.EdgesOf(id) {
			label := e.Data.Label()
			if label == "" {
				p.printf("\tn%d -> n%d;\n", id, e.Target)
			} else {
				p.printf("\tn%d -> n%d [label=%q];\n", id, e.Target, label)
			}
		}
	}
	p.close()
	return p.err
}
