package scfg

import (
	"github.com/oUaTEnCi/tsar/pkg/graph"
	"github.com/oUaTEnCi/tsar/pkg/postdom"
)

// view adapts an SCFG to the generic CFG capability set consumed by the
// post-dominator and control dependence builders.
type view struct {
	s *SCFG
}

// View exposes the SCFG through the generic CFG interface.
func (s *SCFG) View() postdom.CFG[graph.NodeID] {
	return view{s: s}
}

func (v view) Nodes() []graph.NodeID { return v.s.G.Nodes() }

func (v view) Succs(id graph.NodeID) []graph.NodeID { return v.s.G.Successors(id) }

func (v view) Entry() graph.NodeID { return v.s.EntryNode() }
