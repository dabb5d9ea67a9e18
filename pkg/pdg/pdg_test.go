package pdg

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oUaTEnCi/tsar/pkg/graph"
	"github.com/oUaTEnCi/tsar/pkg/ir"
)

// edgesBetween returns the edges between the nodes holding s and t.
func edgesBetween(t *testing.T, p *PDG, s, d *ir.Instruction) []*Edge {
	t.Helper()
	from, ok := p.NodeOfInstr(s)
	require.True(t, ok)
	to, ok := p.NodeOfInstr(d)
	require.True(t, ok)
	var res []*Edge
	for _, e := range p.G.FindEdges(from, to) {
		res = append(res, e.Data)
	}
	return res
}

func kindsBetween(t *testing.T, p *PDG, s, d *ir.Instruction) []EdgeKind {
	t.Helper()
	var kinds []EdgeKind
	for _, e := range edgesBetween(t, p, s, d) {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// findPiNodes returns the IDs of all pi-block nodes.
func findPiNodes(p *PDG) []graph.NodeID {
	var res []graph.NodeID
	for _, id := range p.G.Nodes() {
		if p.G.Node(id).Kind == KindPi {
			res = append(res, id)
		}
	}
	return res
}

// straightLine builds the S1 function: a = load p; b = a + 1; store b, p.
func straightLine() (*ir.Function, *ir.Instruction, *ir.Instruction, *ir.Instruction, *ir.PairOracle) {
	f := ir.NewFunction("s1")
	b0 := f.NewBlock("entry")
	ld := f.Append(b0, ir.Instruction{Op: ir.OpLoad, Name: "%a", MayRead: true, Mem: &ir.MemoryLocation{Base: "p"}})
	add := f.Append(b0, ir.Instruction{Op: ir.OpAdd, Name: "%b", Operands: []*ir.Instruction{ld}})
	st := f.Append(b0, ir.Instruction{Op: ir.OpStore, Operands: []*ir.Instruction{add, ld}, MayWrite: true, Mem: &ir.MemoryLocation{Base: "p"}})
	oracle := &ir.PairOracle{}
	oracle.Set(ld, st, &ir.Dependence{Ordered: true, LoopIndependent: true})
	return f, ld, add, st, oracle
}

func TestS1StraightLineEdges(t *testing.T) {
	f, ld, add, st, oracle := straightLine()
	p := Build(f, Inputs{DI: oracle}, Options{})

	// One entry node plus one node per instruction.
	assert.Equal(t, 4, p.G.Size())

	assert.Equal(t, []EdgeKind{EdgeDefUse}, kindsBetween(t, p, ld, add))
	assert.Equal(t, []EdgeKind{EdgeDefUse}, kindsBetween(t, p, add, st))
	// The def-use between load and store upgrades to mixed data when the
	// memory edge of the same pair arrives.
	assert.Equal(t, []EdgeKind{EdgeMixed}, kindsBetween(t, p, ld, st))
	assert.Zero(t, p.EdgeReversals)
}

func TestS1SimplifyCollapsesToOneNode(t *testing.T) {
	f, ld, add, st, oracle := straightLine()
	p := Build(f, Inputs{DI: oracle}, Options{Simplify: true})

	// Entry plus a single multi-instruction node.
	require.Equal(t, 2, p.G.Size())
	id, ok := p.NodeOfInstr(ld)
	require.True(t, ok)
	n := p.G.Node(id)
	assert.Equal(t, KindMulti, n.Kind)
	assert.Equal(t, []*ir.Instruction{ld, add, st}, n.Instrs)
	// No data edge survives; only entry-level control remains.
	for _, e := range p.G.EdgesOf(p.Entry) {
		assert.Equal(t, EdgeControl, e.Data.Kind)
	}
	assert.Empty(t, p.G.EdgesOf(id))
}

func TestSimplifyIdempotent(t *testing.T) {
	f, _, _, _, oracle := straightLine()
	p := Build(f, Inputs{DI: oracle}, Options{Simplify: true})
	before := signature(p)
	Simplify(p)
	assert.Equal(t, before, signature(p))
}

func TestDeferredStagesMatchBuildFlags(t *testing.T) {
	build := func(opts Options) *PDG {
		f, _, _, _, oracle := straightLine()
		return Build(f, Inputs{DI: oracle}, opts)
	}
	direct := build(Options{Simplify: true, CreatePiBlocks: true})
	deferred := build(Options{})
	Simplify(deferred)
	FormPiBlocks(deferred)
	assert.Equal(t, signature(direct), signature(deferred))
}

func TestS2SelfCycleNoPiBlock(t *testing.T) {
	f := ir.NewFunction("s2")
	b0 := f.NewBlock("loop")
	f.Connect(b0, b0)
	upd := f.Append(b0, ir.Instruction{
		Op: ir.OpAdd, Name: "%x", MayRead: true, MayWrite: true,
		Mem: &ir.MemoryLocation{Base: "x"},
	})
	oracle := &ir.PairOracle{}
	oracle.Set(upd, upd, &ir.Dependence{Ordered: true, Dirs: []ir.Direction{ir.DirGT}})

	p := Build(f, Inputs{DI: oracle}, Options{CreatePiBlocks: true})

	assert.Equal(t, 1, p.EdgeReversals)
	assert.Empty(t, findPiNodes(p), "an SCC of size one must not form a pi-block")
}

// twoNodeCycle builds the S3 shape: a pre-loop store, a loop whose store
// feeds the next iteration's load, and a post-loop load.
func twoNodeCycle() (f *ir.Function, w, ld, st, r *ir.Instruction, oracle *ir.PairOracle) {
	f = ir.NewFunction("s3")
	b0 := f.NewBlock("entry")
	b1 := f.NewBlock("loop")
	b2 := f.NewBlock("exit")
	f.Connect(b0, b1)
	f.Connect(b1, b1)
	f.Connect(b1, b2)

	loc := &ir.MemoryLocation{Base: "a"}
	w = f.Append(b0, ir.Instruction{Op: ir.OpStore, MayWrite: true, Mem: loc})
	ld = f.Append(b1, ir.Instruction{Op: ir.OpLoad, Name: "%v", MayRead: true, Mem: loc})
	st = f.Append(b1, ir.Instruction{Op: ir.OpStore, Operands: []*ir.Instruction{ld}, MayWrite: true, Mem: loc})
	r = f.Append(b2, ir.Instruction{Op: ir.OpLoad, Name: "%r", MayRead: true, Mem: loc})

	oracle = &ir.PairOracle{}
	oracle.Set(w, ld, &ir.Dependence{Ordered: true, LoopIndependent: true})
	oracle.Set(ld, st, &ir.Dependence{Ordered: true, Dirs: []ir.Direction{ir.DirAll}})
	oracle.Set(st, r, &ir.Dependence{Ordered: true, LoopIndependent: true})
	return f, w, ld, st, r, oracle
}

func TestS3CycleEdgesBeforePiBlocks(t *testing.T) {
	f, w, ld, st, r, oracle := twoNodeCycle()
	p := Build(f, Inputs{DI: oracle}, Options{})

	// Forward edge carries the def-use as mixed data; the loop-carried
	// reverse direction stays a plain memory edge.
	assert.Equal(t, []EdgeKind{EdgeMixed}, kindsBetween(t, p, ld, st))
	assert.Equal(t, []EdgeKind{EdgeMemory}, kindsBetween(t, p, st, ld))
	assert.Equal(t, []EdgeKind{EdgeMemory}, kindsBetween(t, p, w, ld))
	assert.Equal(t, []EdgeKind{EdgeMemory}, kindsBetween(t, p, st, r))
}

func TestS3PiBlockFormation(t *testing.T) {
	f, w, ld, st, r, oracle := twoNodeCycle()
	p := Build(f, Inputs{DI: oracle}, Options{CreatePiBlocks: true})

	pis := findPiNodes(p)
	require.Len(t, pis, 1)
	pi := p.G.Node(pis[0])
	require.Len(t, pi.Members, 2)
	assert.Equal(t, []*ir.Instruction{ld}, pi.Members[0].Node.Instrs)
	assert.Equal(t, []*ir.Instruction{st}, pi.Members[1].Node.Instrs)
	// Both directions of the cycle live on as internal handles.
	assert.Len(t, pi.Internal, 2)

	var wNode, rNode graph.NodeID = graph.InvalidNode, graph.InvalidNode
	for _, id := range p.G.Nodes() {
		n := p.G.Node(id)
		if n.Kind != KindSingle {
			continue
		}
		switch n.Instrs[0] {
		case w:
			wNode = id
		case r:
			rNode = id
		}
	}
	require.NotEqual(t, graph.InvalidNode, wNode)
	require.NotEqual(t, graph.InvalidNode, rNode)

	// Exactly one complex data edge in from the pre-loop write, with the
	// inlined original pointing at the load member.
	var inEdges []*Edge
	for _, e := range p.G.FindEdges(wNode, pis[0]) {
		inEdges = append(inEdges, e.Data)
	}
	require.Len(t, inEdges, 1)
	assert.Equal(t, EdgeComplexData, inEdges[0].Kind)
	require.Len(t, inEdges[0].Handles, 1)
	assert.Equal(t, -1, inEdges[0].Handles[0].SrcOrdinal)
	assert.Equal(t, 0, inEdges[0].Handles[0].TgtOrdinal)

	// Exactly one complex data edge out to the post-loop read, inlining
	// the store-to-read original.
	var outEdges []*Edge
	for _, e := range p.G.FindEdges(pis[0], rNode) {
		outEdges = append(outEdges, e.Data)
	}
	require.Len(t, outEdges, 1)
	assert.Equal(t, EdgeComplexData, outEdges[0].Kind)
	require.Len(t, outEdges[0].Handles, 1)
	assert.Equal(t, 1, outEdges[0].Handles[0].SrcOrdinal)
	assert.Equal(t, -1, outEdges[0].Handles[0].TgtOrdinal)
}

func TestPiBlocksIdempotent(t *testing.T) {
	f, _, _, _, _, oracle := twoNodeCycle()
	p := Build(f, Inputs{DI: oracle}, Options{CreatePiBlocks: true})
	before := signature(p)
	FormPiBlocks(p)
	assert.Equal(t, before, signature(p))
}

func TestNoNontrivialSCCAfterFormation(t *testing.T) {
	f, _, _, _, _, oracle := twoNodeCycle()
	p := Build(f, Inputs{DI: oracle}, Options{CreatePiBlocks: true})
	assert.Empty(t, p.G.NontrivialSCCs())
}

func TestS6ReductionChain(t *testing.T) {
	f := ir.NewFunction("s6")
	b0 := f.NewBlock("entry")
	b1 := f.NewBlock("loop")
	b2 := f.NewBlock("exit")
	f.Connect(b0, b1)
	f.Connect(b1, b1)
	f.Connect(b1, b2)

	loc := &ir.MemoryLocation{Base: "s"}
	init := f.Append(b0, ir.Instruction{Op: ir.OpStore, MayWrite: true, Mem: loc})
	ld := f.Append(b1, ir.Instruction{Op: ir.OpLoad, Name: "%s", MayRead: true, Mem: loc})
	add := f.Append(b1, ir.Instruction{Op: ir.OpAdd, Name: "%t", Operands: []*ir.Instruction{ld}})
	st := f.Append(b1, ir.Instruction{Op: ir.OpStore, Operands: []*ir.Instruction{add}, MayWrite: true, Mem: loc})
	use := f.Append(b2, ir.Instruction{Op: ir.OpLoad, Name: "%u", MayRead: true, Mem: loc})

	oracle := &ir.PairOracle{}
	oracle.Set(init, ld, &ir.Dependence{Ordered: true, LoopIndependent: true})
	oracle.Set(ld, st, &ir.Dependence{Ordered: true, Dirs: []ir.Direction{ir.DirAll}})
	oracle.Set(st, use, &ir.Dependence{Ordered: true, LoopIndependent: true})

	p := Build(f, Inputs{DI: oracle}, Options{Simplify: true, CreatePiBlocks: true})

	pis := findPiNodes(p)
	require.Len(t, pis, 1)
	pi := p.G.Node(pis[0])
	assert.ElementsMatch(t, []*ir.Instruction{ld, add, st}, pi.Instructions())

	// Exactly one inlined incoming and one inlined outgoing complex data
	// edge per external peer.
	var complexIn, complexOut int
	for _, id := range p.G.Nodes() {
		for _, e := range p.G.EdgesOf(id) {
			if e.Data.Kind != EdgeComplexData {
				continue
			}
			if e.Target == pis[0] {
				complexIn++
			}
			if id == pis[0] {
				complexOut++
			}
		}
	}
	assert.Equal(t, 1, complexIn)
	assert.Equal(t, 1, complexOut)
}

func TestS4ControlEdges(t *testing.T) {
	f := ir.NewFunction("s4")
	b0 := f.NewBlock("cond")
	b1 := f.NewBlock("then")
	b2 := f.NewBlock("else")
	b3 := f.NewBlock("join")
	f.Connect(b0, b1)
	f.Connect(b0, b2)
	f.Connect(b1, b3)
	f.Connect(b2, b3)

	cmp := f.Append(b0, ir.Instruction{Op: ir.OpCmp, Name: "%c"})
	br := f.Append(b0, ir.Instruction{Op: ir.OpCondBr, Operands: []*ir.Instruction{cmp}})
	s1 := f.Append(b1, ir.Instruction{Op: ir.OpStore, MayWrite: true, Mem: &ir.MemoryLocation{Base: "x"}})
	s2 := f.Append(b2, ir.Instruction{Op: ir.OpStore, MayWrite: true, Mem: &ir.MemoryLocation{Base: "y"}})
	s3 := f.Append(b3, ir.Instruction{Op: ir.OpStore, MayWrite: true, Mem: &ir.MemoryLocation{Base: "z"}})

	p := Build(f, Inputs{DI: &ir.PairOracle{}}, Options{})

	assert.Contains(t, kindsBetween(t, p, br, s1), EdgeControl)
	assert.Contains(t, kindsBetween(t, p, br, s2), EdgeControl)
	assert.NotContains(t, kindsBetween(t, p, br, s3), EdgeControl)

	// Entry dependences cover the post-dominator path from the entry
	// block to the real root: condition and join, not the arms.
	entryTargets := map[graph.NodeID]bool{}
	for _, e := range p.G.EdgesOf(p.Entry) {
		entryTargets[e.Target] = true
	}
	for _, inst := range []*ir.Instruction{cmp, br, s3} {
		id, _ := p.NodeOfInstr(inst)
		assert.True(t, entryTargets[id], "entry should control %s", inst)
	}
	for _, inst := range []*ir.Instruction{s1, s2} {
		id, _ := p.NodeOfInstr(inst)
		assert.False(t, entryTargets[id], "entry should not control %s", inst)
	}
}

func TestControlDependentNodesNeverMerge(t *testing.T) {
	f := ir.NewFunction("ctl")
	b0 := f.NewBlock("cond")
	b1 := f.NewBlock("then")
	b2 := f.NewBlock("join")
	f.Connect(b0, b1)
	f.Connect(b0, b2)
	f.Connect(b1, b2)

	cmp := f.Append(b0, ir.Instruction{Op: ir.OpCmp, Name: "%c"})
	f.Append(b0, ir.Instruction{Op: ir.OpCondBr, Operands: []*ir.Instruction{cmp}})
	// A producer-consumer chain entirely inside the controlled block:
	// without the control bump it would merge.
	a := f.Append(b1, ir.Instruction{Op: ir.OpConst, Name: "%a"})
	u := f.Append(b1, ir.Instruction{Op: ir.OpAdd, Name: "%u", Operands: []*ir.Instruction{a}})

	p := Build(f, Inputs{DI: &ir.PairOracle{}}, Options{Simplify: true})

	aID, ok := p.NodeOfInstr(a)
	require.True(t, ok)
	uID, ok := p.NodeOfInstr(u)
	require.True(t, ok)
	assert.NotEqual(t, aID, uID)
	assert.Equal(t, KindSingle, p.G.Node(aID).Kind)
	assert.Equal(t, KindSingle, p.G.Node(uID).Kind)
}

func TestShadowedDebugIntrinsics(t *testing.T) {
	f := ir.NewFunction("dbg")
	b0 := f.NewBlock("entry")
	dbg := f.Append(b0, ir.Instruction{Op: ir.OpDbg, Text: "dbg.declare x"})
	st := f.Append(b0, ir.Instruction{Op: ir.OpStore, MayWrite: true, Mem: &ir.MemoryLocation{Base: "x"}})

	p := Build(f, Inputs{DI: &ir.PairOracle{}}, Options{})

	// The intrinsic occupies a node but is hidden from rendering.
	id, ok := p.NodeOfInstr(dbg)
	require.True(t, ok)
	assert.Equal(t, "", p.G.Node(id).Label())
	stID, _ := p.NodeOfInstr(st)
	assert.NotEqual(t, "", p.G.Node(stID).Label())
}

func TestMemoryIntrinsicCallsJoinMemoryStage(t *testing.T) {
	f := ir.NewFunction("intrinsic")
	b0 := f.NewBlock("entry")
	st := f.Append(b0, ir.Instruction{Op: ir.OpStore, MayWrite: true, Mem: &ir.MemoryLocation{Base: "buf"}})
	call := f.Append(b0, ir.Instruction{Op: ir.OpCall, Name: "%c", Callee: "memset"})

	oracle := &ir.PairOracle{}
	oracle.Set(st, call, &ir.Dependence{Ordered: true, LoopIndependent: true})

	// Without target library info the call has no known memory
	// behaviour and the pair is never queried.
	p := Build(f, Inputs{DI: oracle}, Options{})
	assert.Empty(t, kindsBetween(t, p, st, call))

	p = Build(f, Inputs{DI: oracle, TLI: ir.NewTargetLibraryInfo()}, Options{})
	assert.Equal(t, []EdgeKind{EdgeMemory}, kindsBetween(t, p, st, call))
}

func TestEveryInstructionInExactlyOneNode(t *testing.T) {
	f, _, _, _, _, oracle := twoNodeCycle()
	p := Build(f, Inputs{DI: oracle}, Options{Simplify: true, CreatePiBlocks: true})

	seen := map[*ir.Instruction]int{}
	for _, id := range p.G.Nodes() {
		for _, inst := range p.G.Node(id).Instructions() {
			seen[inst]++
		}
	}
	assert.Equal(t, f.NumInstructions(), len(seen))
	for inst, count := range seen {
		assert.Equal(t, 1, count, "instruction %s", inst)
	}
}

// signature produces a canonical description of the graph for equality
// checks across construction orders.
func signature(p *PDG) []string {
	nodeSig := make(map[graph.NodeID]string)
	for _, id := range p.G.Nodes() {
		n := p.G.Node(id)
		sig := string(n.Kind) + ":"
		for _, inst := range n.Instructions() {
			sig += inst.String() + ";"
		}
		nodeSig[id] = sig
	}
	var lines []string
	for _, id := range p.G.Nodes() {
		lines = append(lines, "node "+nodeSig[id])
		for _, e := range p.G.EdgesOf(id) {
			lines = append(lines, "edge "+nodeSig[id]+" -"+string(e.Data.Kind)+"-> "+nodeSig[e.Target])
		}
	}
	sort.Strings(lines)
	return lines
}
