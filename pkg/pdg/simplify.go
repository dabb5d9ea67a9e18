package pdg

import (
	"sort"

	"github.com/oUaTEnCi/tsar/pkg/graph"
	"github.com/oUaTEnCi/tsar/pkg/ir"
)

// Simplify merges def-use chains: a node with exactly one outgoing
// register def-use edge is folded into that edge's target when the
// target has no other non-control predecessor, is not control-dependent,
// and the merge would not close a cycle. Edges of other kinds travel
// with the merged node; edges that end up inside it disappear. Running
// simplification a second time is a no-op.
func Simplify(p *PDG) {
	g := p.G
	for {
		merged := false
		inDeg := effectiveInDegrees(p)
		for _, s := range g.Nodes() {
			if !g.Contains(s) {
				continue
			}
			e, ok := candidateEdge(p, s)
			if !ok {
				continue
			}
			t := e.Target
			if t == s || inDeg[t] != 1 {
				continue
			}
			if !mergeCompatible(g.Node(s), g.Node(t)) {
				continue
			}
			if g.HasEdge(t, s) {
				continue
			}
			mergeInto(p, s, t)
			merged = true
			inDeg = effectiveInDegrees(p)
		}
		if !merged {
			return
		}
	}
}

// candidateEdge returns s's merge edge: s qualifies when exactly one of
// its outgoing edges is a register def-use edge. Other edge kinds do not
// disqualify the node; they move along with the merge.
func candidateEdge(p *PDG, s graph.NodeID) (*graph.Edge[*Edge], bool) {
	var found *graph.Edge[*Edge]
	for _, e := range p.G.EdgesOf(s) {
		if e.Data.Kind != EdgeDefUse {
			continue
		}
		if found != nil {
			return nil, false
		}
		found = e
	}
	return found, found != nil
}

// effectiveInDegrees counts, per node, the distinct predecessors
// reaching it through non-control edges; a node targeted by a control
// edge of a real branch gets an extra bump so control-dependent nodes
// never merge into their predecessor. Entry-level control covers every
// instruction alike and does not block merging.
func effectiveInDegrees(p *PDG) map[graph.NodeID]int {
	preds := make(map[graph.NodeID]map[graph.NodeID]bool)
	ctrl := make(map[graph.NodeID]bool)
	for _, u := range p.G.Nodes() {
		for _, e := range p.G.EdgesOf(u) {
			if e.Data.Kind.Class() == ClassControl {
				if u != p.Entry {
					ctrl[e.Target] = true
				}
				continue
			}
			if preds[e.Target] == nil {
				preds[e.Target] = make(map[graph.NodeID]bool)
			}
			preds[e.Target][u] = true
		}
	}
	deg := make(map[graph.NodeID]int)
	for id, set := range preds {
		deg[id] = len(set)
	}
	for id := range ctrl {
		deg[id]++
	}
	return deg
}

func mergeCompatible(s, t *Node) bool {
	okKind := func(k NodeKind) bool { return k == KindSingle || k == KindMulti }
	return okKind(s.Kind) && okKind(t.Kind)
}

// mergeInto folds s into t: instructions concatenate in program order,
// s's incoming edges retarget to t, s's outgoing edges transfer to t,
// and edges now internal to the merged node disappear.
func mergeInto(p *PDG, s, t graph.NodeID) {
	g := p.G
	sn, tn := g.Node(s), g.Node(t)
	tn.Instrs = append(tn.Instrs, sn.Instrs...)
	sort.SliceStable(tn.Instrs, func(i, j int) bool {
		return p.ordinalOf(tn.Instrs[i]) < p.ordinalOf(tn.Instrs[j])
	})
	tn.Kind = KindMulti
	if p.nodeOf != nil {
		for _, inst := range sn.Instrs {
			p.nodeOf[inst] = t
		}
	}

	// Incoming edges of s move to t, collapsing duplicates of one kind
	// from the same predecessor.
	for _, u := range g.Nodes() {
		if u == s {
			continue
		}
		for _, e := range g.FindEdges(u, s) {
			if hasKind(g.FindEdges(u, t), e.Data.Kind) {
				g.RemoveEdge(u, e)
				continue
			}
			e.Target = t
		}
	}

	// Outgoing edges of s transfer to t; edges ending at t itself are
	// now internal and disappear.
	for _, e := range g.EdgesOf(s) {
		if e.Target == t {
			continue
		}
		if hasKind(g.FindEdges(t, e.Target), e.Data.Kind) {
			continue
		}
		g.Connect(t, e.Target, e.Data)
	}
	g.RemoveNode(s)
}

func hasKind(edges []*graph.Edge[*Edge], kind EdgeKind) bool {
	for _, e := range edges {
		if e.Data.Kind == kind {
			return true
		}
	}
	return false
}

// ordinalOf returns the program-order ordinal of inst; once the ordinal
// maps are cleared the creation order of instruction IDs stands in.
func (p *PDG) ordinalOf(inst *ir.Instruction) int {
	if p.instrOrd != nil {
		if ord, ok := p.instrOrd[inst]; ok {
			return ord
		}
	}
	return inst.ID
}
