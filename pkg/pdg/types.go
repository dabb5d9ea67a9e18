// Package pdg builds Program Dependence Graphs over low-level functions:
// register def-use edges, memory dependence edges disambiguated through
// the dependence tester and debug-metadata traits, and control edges
// derived from a control dependence graph. Optional passes merge def-use
// chains into multi-instruction nodes and collapse non-trivial strongly
// connected components into pi-blocks.
package pdg

import (
	"strings"

	"github.com/oUaTEnCi/tsar/pkg/graph"
	"github.com/oUaTEnCi/tsar/pkg/ir"
)

// NodeKind discriminates PDG node shapes.
type NodeKind string

const (
	KindEntry  NodeKind = "entry"
	KindSingle NodeKind = "single"
	KindMulti  NodeKind = "multi"
	KindPi     NodeKind = "pi_block"
)

// Node is the payload of a PDG graph node.
type Node struct {
	Kind   NodeKind
	Instrs []*ir.Instruction // single: one; multi: program order

	// Pi-blocks keep their inlined members (program order) and the edges
	// that ran between them before absorption.
	Members  []PiMember
	Internal []EdgeHandle
}

// PiMember is one inlined node of a pi-block.
type PiMember struct {
	Node Node
}

// Instructions returns every instruction the node contains, descending
// into pi-block members.
func (n *Node) Instructions() []*ir.Instruction {
	if n.Kind != KindPi {
		return n.Instrs
	}
	var res []*ir.Instruction
	for i := range n.Members {
		res = append(res, n.Members[i].Node.Instructions()...)
	}
	return res
}

// Label renders the node for printers, hiding shadowed debug intrinsics.
func (n *Node) Label() string {
	switch n.Kind {
	case KindEntry:
		return "ENTRY"
	case KindPi:
		var lines []string
		for i := range n.Members {
			lines = append(lines, n.Members[i].Node.Label())
		}
		return "PI[" + strings.Join(lines, " | ") + "]"
	default:
		var lines []string
		for _, inst := range n.Instrs {
			if inst.IsDebug() {
				continue
			}
			lines = append(lines, inst.String())
		}
		return strings.Join(lines, "\n")
	}
}

// EdgeKind discriminates PDG edge shapes.
type EdgeKind string

const (
	EdgeDefUse         EdgeKind = "def_use"
	EdgeMemory         EdgeKind = "memory"
	EdgeMixed          EdgeKind = "mixed_data"
	EdgeControl        EdgeKind = "control"
	EdgeComplexData    EdgeKind = "complex_data"
	EdgeComplexControl EdgeKind = "complex_control"
)

// DependenceClass splits edge kinds into data and control for pi-block
// absorption.
type DependenceClass string

const (
	ClassData    DependenceClass = "data"
	ClassControl DependenceClass = "control"
)

// Class returns the dependence class of an edge kind.
func (k EdgeKind) Class() DependenceClass {
	switch k {
	case EdgeControl, EdgeComplexControl:
		return ClassControl
	default:
		return ClassData
	}
}

// DITraitRef names one debug-metadata trait backing a memory edge.
type DITraitRef struct {
	Memory *ir.DIMemory
	Trait  *ir.DIMemoryTrait
}

// MemPayload carries the evidence behind a memory (or mixed) edge:
// either the raw low-level dependence or a list of debug-level traits.
type MemPayload struct {
	Dep      *ir.Dependence
	Traits   []DITraitRef
	Reversed bool // the edge runs from the dependence's destination back to its source
}

// Label renders the payload for edge labels: trait names when present,
// otherwise the direction vector of the raw dependence.
func (p *MemPayload) Label() string {
	if p == nil {
		return ""
	}
	if len(p.Traits) > 0 {
		var names []string
		for _, ref := range p.Traits {
			names = append(names, string(ref.Trait.Kind))
		}
		return strings.Join(names, ",")
	}
	if p.Dep != nil && len(p.Dep.Dirs) > 0 {
		var dirs []string
		for _, d := range p.Dep.Dirs {
			dirs = append(dirs, string(d))
		}
		return strings.Join(dirs, "")
	}
	return ""
}

// EdgeHandle records one inlined original edge of a complex edge. The
// ordinals index into the source and target SCC member lists; an ordinal
// is -1 when that endpoint is external to the SCC.
type EdgeHandle struct {
	SrcOrdinal int
	TgtOrdinal int
	Edge       *Edge
}

// Edge is the payload of a PDG graph edge.
type Edge struct {
	Kind    EdgeKind
	Mem     *MemPayload  // memory and mixed edges
	Handles []EdgeHandle // complex edges: inlined originals in order
}

// PDG is the program dependence graph of one function.
type PDG struct {
	FunctionName string
	G            *graph.Graph[Node, *Edge]
	Entry        graph.NodeID

	// EdgeReversals counts memory edges whose first non-'=' direction
	// component was '>'.
	EdgeReversals int

	// Ordinal maps used during construction; cleared once pi-block
	// formation no longer needs them.
	instrOrd map[*ir.Instruction]int
	nodeOf   map[*ir.Instruction]graph.NodeID
}

// NodeOfInstr returns the node currently containing inst. It is only
// available until pi-block formation clears the construction maps.
func (p *PDG) NodeOfInstr(inst *ir.Instruction) (graph.NodeID, bool) {
	if p.nodeOf == nil {
		return graph.InvalidNode, false
	}
	id, ok := p.nodeOf[inst]
	return id, ok
}

// Options selects the optional construction stages.
type Options struct {
	SolveReachability bool
	Simplify          bool
	CreatePiBlocks    bool
}

// Inputs bundles the external analyses the builder consumes.
type Inputs struct {
	DI          ir.DependenceOracle
	Alias       *ir.AliasTree
	ServerAlias *ir.AliasTree
	Loops       *ir.LoopInfo
	TLI         *ir.TargetLibraryInfo
	DIDeps      ir.DIDependenceInfo
}
