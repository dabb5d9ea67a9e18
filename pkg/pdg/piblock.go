package pdg

import (
	"sort"

	"github.com/oUaTEnCi/tsar/pkg/graph"
)

// FormPiBlocks collapses every non-trivial strongly connected component
// (two or more nodes) into a pi-block node. Member nodes leave the
// graph's active node list but stay alive inside the pi-block, in
// program order; edges crossing the component boundary coalesce into at
// most one complex data and one complex control edge per external peer
// and direction. Running it a second time is a no-op.
func FormPiBlocks(p *PDG) {
	for _, comp := range p.G.NontrivialSCCs() {
		formOne(p, comp)
	}
	// The ordinal maps only serve simplification and pi-block ordering.
	p.instrOrd = nil
	p.nodeOf = nil
}

func formOne(p *PDG, comp []graph.NodeID) {
	g := p.G

	// Canonical member order: by the smallest instruction ordinal.
	sort.SliceStable(comp, func(i, j int) bool {
		return minOrdinal(p, comp[i]) < minOrdinal(p, comp[j])
	})
	ord := make(map[graph.NodeID]int, len(comp))
	for i, id := range comp {
		ord[id] = i
	}

	pi := Node{Kind: KindPi}
	for _, id := range comp {
		pi.Members = append(pi.Members, PiMember{Node: *g.Node(id)})
	}
	for _, id := range comp {
		for _, e := range g.EdgesOf(id) {
			if tgt, inside := ord[e.Target]; inside {
				pi.Internal = append(pi.Internal, EdgeHandle{
					SrcOrdinal: ord[id],
					TgtOrdinal: tgt,
					Edge:       e.Data,
				})
			}
		}
	}
	piID := g.AddNode(pi)

	// Incoming edges: per external source, coalesce by dependence class.
	for _, x := range g.Nodes() {
		if _, inside := ord[x]; inside || x == piID {
			continue
		}
		var dataHandles, ctrlHandles []EdgeHandle
		var absorbed []*graph.Edge[*Edge]
		for _, e := range g.EdgesOf(x) {
			tgt, inside := ord[e.Target]
			if !inside {
				continue
			}
			h := EdgeHandle{SrcOrdinal: -1, TgtOrdinal: tgt, Edge: e.Data}
			if e.Data.Kind.Class() == ClassControl {
				ctrlHandles = append(ctrlHandles, h)
			} else {
				dataHandles = append(dataHandles, h)
			}
			absorbed = append(absorbed, e)
		}
		for _, e := range absorbed {
			g.RemoveEdge(x, e)
		}
		if len(dataHandles) > 0 {
			g.Connect(x, piID, &Edge{Kind: EdgeComplexData, Handles: dataHandles})
		}
		if len(ctrlHandles) > 0 {
			g.Connect(x, piID, &Edge{Kind: EdgeComplexControl, Handles: ctrlHandles})
		}
	}

	// Outgoing edges: per external target, coalesce by dependence class,
	// visiting members in canonical order.
	type outKey struct {
		target graph.NodeID
		class  DependenceClass
	}
	outHandles := make(map[outKey][]EdgeHandle)
	var outOrder []outKey
	for _, id := range comp {
		for _, e := range g.EdgesOf(id) {
			if _, inside := ord[e.Target]; inside {
				continue
			}
			key := outKey{target: e.Target, class: e.Data.Kind.Class()}
			if _, seen := outHandles[key]; !seen {
				outOrder = append(outOrder, key)
			}
			outHandles[key] = append(outHandles[key], EdgeHandle{
				SrcOrdinal: ord[id],
				TgtOrdinal: -1,
				Edge:       e.Data,
			})
		}
	}
	for _, key := range outOrder {
		kind := EdgeComplexData
		if key.class == ClassControl {
			kind = EdgeComplexControl
		}
		g.Connect(piID, key.target, &Edge{Kind: kind, Handles: outHandles[key]})
	}

	// Members stop being peers of the graph; the pi-block keeps them.
	for _, id := range comp {
		g.RemoveNode(id)
	}
	if p.nodeOf != nil {
		for i := range pi.Members {
			for _, inst := range pi.Members[i].Node.Instructions() {
				p.nodeOf[inst] = piID
			}
		}
	}
}

// minOrdinal returns the smallest instruction ordinal inside a node.
func minOrdinal(p *PDG, id graph.NodeID) int {
	min := int(^uint(0) >> 1)
	for _, inst := range p.G.Node(id).Instructions() {
		if ord := p.ordinalOf(inst); ord < min {
			min = ord
		}
	}
	return min
}
