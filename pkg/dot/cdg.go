package dot

import (
	"io"

	"github.com/oUaTEnCi/tsar/pkg/cdg"
	"github.com/oUaTEnCi/tsar/pkg/postdom"
)

// WriteCDG renders a control dependence graph; label supplies the node
// captions so the printer stays generic over the CFG node type.
func WriteCDG[N comparable](w io.Writer, g *cdg.Graph[N], label func(N) string) error {
	p := &writer{w: w}
	p.open("Control Dependence Graph")
	index := make(map[N]int)
	p.printf("\tentry [label=\"ENTRY\"];\n")
	for i, n := range g.Nodes() {
		index[n] = i
		p.printf("\tn%d [label=%q];\n", i, escape(label(n)))
	}
	for _, n := range g.EntryDependents() {
		p.printf("\tentry -> n%d;\n", index[n])
	}
	for _, u := range g.Nodes() {
		for _, v := range g.DependentsOf(u) {
			p.printf("\tn%d -> n%d;\n", index[u], index[v])
		}
	}
	p.close()
	return p.err
}

// WritePostDomTree renders a post-dominator tree.
func WritePostDomTree[N comparable](w io.Writer, t *postdom.Tree[N], label func(N) string) error {
	p := &writer{w: w}
	p.open("Post-Dominator Tree")
	index := make(map[N]int)
	i := 0
	t.Walk(func(n N) {
		index[n] = i
		p.printf("\tn%d [label=%q];\n", i, escape(label(n)))
		i++
	})
	t.Walk(func(n N) {
		for _, c := range t.Children(n) {
			p.printf("\tn%d -> n%d;\n", index[n], index[c])
		}
	})
	p.close()
	return p.err
}
