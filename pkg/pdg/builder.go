package pdg

import (
	"github.com/oUaTEnCi/tsar/pkg/cdg"
	"github.com/oUaTEnCi/tsar/pkg/graph"
	"github.com/oUaTEnCi/tsar/pkg/ir"
	"github.com/oUaTEnCi/tsar/pkg/postdom"
)

// Build constructs the PDG of f using the analyses in, then runs the
// optional simplification and pi-block stages.
func Build(f *ir.Function, in Inputs, opts Options) *PDG {
	b := &builder{
		f:    f,
		in:   in,
		opts: opts,
		p: &PDG{
			FunctionName: f.Name,
			G:            graph.New[Node, *Edge](),
			Entry:        graph.InvalidNode,
			instrOrd:     make(map[*ir.Instruction]int),
			nodeOf:       make(map[*ir.Instruction]graph.NodeID),
		},
	}
	b.orderBlocks()
	b.createFineGrainedNodes()
	b.createDefUseEdges()
	b.createMemoryEdges()
	b.createControlEdges()
	if opts.Simplify {
		Simplify(b.p)
	}
	if opts.CreatePiBlocks {
		FormPiBlocks(b.p)
	}
	return b.p
}

type builder struct {
	f    *ir.Function
	in   Inputs
	opts Options
	p    *PDG

	rpo   []*ir.BasicBlock
	reach map[*ir.BasicBlock]map[*ir.BasicBlock]bool
}

// Stage 1: enumerate blocks in reverse post-order and, when requested,
// solve block-to-block reachability with a successor worklist.
func (b *builder) orderBlocks() {
	entry := b.f.Entry()
	if entry == nil {
		return
	}
	visited := make(map[*ir.BasicBlock]bool)
	var post []*ir.BasicBlock
	var dfs func(*ir.BasicBlock)
	dfs = func(bb *ir.BasicBlock) {
		visited[bb] = true
		for _, succ := range bb.Succs {
			if !visited[succ] {
				dfs(succ)
			}
		}
		post = append(post, bb)
	}
	dfs(entry)
	for _, bb := range b.f.Blocks {
		if !visited[bb] {
			dfs(bb)
		}
	}
	for i := len(post) - 1; i >= 0; i-- {
		b.rpo = append(b.rpo, post[i])
	}

	if !b.opts.SolveReachability {
		return
	}
	b.reach = make(map[*ir.BasicBlock]map[*ir.BasicBlock]bool, len(b.rpo))
	for _, bb := range b.rpo {
		b.reach[bb] = make(map[*ir.BasicBlock]bool)
	}
	work := make([]*ir.BasicBlock, len(b.rpo))
	copy(work, b.rpo)
	for len(work) > 0 {
		bb := work[len(work)-1]
		work = work[:len(work)-1]
		for _, succ := range bb.Succs {
			changed := false
			if !b.reach[bb][succ] {
				b.reach[bb][succ] = true
				changed = true
			}
			for to := range b.reach[succ] {
				if !b.reach[bb][to] {
					b.reach[bb][to] = true
					changed = true
				}
			}
			if changed {
				for _, pred := range bb.Preds {
					work = append(work, pred)
				}
				work = append(work, bb)
			}
		}
	}
}

// reachable reports whether the pair qualifies for a memory dependence
// query: same block, or one block reaches the other. Without solved
// reachability every pair qualifies.
func (b *builder) reachable(s, t *ir.Instruction) bool {
	if s.Block == t.Block {
		return true
	}
	if b.reach == nil {
		return true
	}
	return b.reach[s.Block][t.Block] || b.reach[t.Block][s.Block]
}

// Stage 2: one SingleInstruction node per instruction. Debug intrinsics
// are kept but render as shadowed. Ordinals fix the program order used
// by simplification and pi-block formation.
func (b *builder) createFineGrainedNodes() {
	ord := 0
	for _, bb := range b.rpo {
		for _, inst := range bb.Instrs {
			id := b.p.G.AddNode(Node{Kind: KindSingle, Instrs: []*ir.Instruction{inst}})
			b.p.instrOrd[inst] = ord
			b.p.nodeOf[inst] = id
			ord++
		}
	}
}

// Stage 3: def-use edges from every operand producer to its consumer.
// Self-edges are dropped; duplicate (source, target) pairs collapse to
// one edge; operands produced outside the scope are ignored.
func (b *builder) createDefUseEdges() {
	for _, bb := range b.rpo {
		for _, inst := range bb.Instrs {
			to := b.p.nodeOf[inst]
			for _, op := range inst.Operands {
				from, ok := b.p.nodeOf[op]
				if !ok || from == to {
					continue
				}
				if b.hasEdgeOfKind(from, to, EdgeDefUse) {
					continue
				}
				b.p.G.Connect(from, to, &Edge{Kind: EdgeDefUse})
			}
		}
	}
}

func (b *builder) hasEdgeOfKind(from, to graph.NodeID, kind EdgeKind) bool {
	for _, e := range b.p.G.FindEdges(from, to) {
		if e.Data.Kind == kind {
			return true
		}
	}
	return false
}

// Stage 4: memory edges over every qualifying ordered pair of
// memory-touching instructions, in program order, including an
// instruction against itself when it both reads and writes.
func (b *builder) createMemoryEdges() {
	var mem []*ir.Instruction
	for _, bb := range b.rpo {
		for _, inst := range bb.Instrs {
			if b.touchesMemory(inst) {
				mem = append(mem, inst)
			}
		}
	}
	for i, s := range mem {
		if r, w := b.memAccess(s); r && w {
			b.addMemoryDependence(s, s)
		}
		for _, t := range mem[i+1:] {
			if !b.reachable(s, t) {
				continue
			}
			b.addMemoryDependence(s, t)
		}
	}
}

// memAccess resolves the memory behaviour of an instruction; calls with
// unset flags are classified through the target library info.
func (b *builder) memAccess(inst *ir.Instruction) (reads, writes bool) {
	reads, writes = inst.MayRead, inst.MayWrite
	if inst.Op == ir.OpCall && !reads && !writes && b.in.TLI != nil {
		reads, writes = b.in.TLI.MemoryAccess(inst.Callee)
	}
	return reads, writes
}

func (b *builder) touchesMemory(inst *ir.Instruction) bool {
	if inst.IsDebug() {
		return false
	}
	r, w := b.memAccess(inst)
	return r || w
}

func (b *builder) addMemoryDependence(s, t *ir.Instruction) {
	if b.in.DI == nil {
		return
	}
	dep := b.in.DI.Depends(s, t)
	if dep == nil {
		return
	}
	switch {
	case dep.IsConfused():
		hasDep, fw, bw := b.confirmMemoryIntersect(s, t)
		if !hasDep {
			return
		}
		if len(fw) == 0 && len(bw) == 0 {
			// The debug-level lookup could not decide; fall back to the
			// raw dependence in both directions.
			b.connectMemory(s, t, &MemPayload{Dep: dep})
			b.connectMemory(t, s, &MemPayload{Dep: dep, Reversed: true})
			return
		}
		if len(fw) > 0 {
			b.connectMemory(s, t, &MemPayload{Traits: fw})
		}
		if len(bw) > 0 {
			b.connectMemory(t, s, &MemPayload{Traits: bw})
		}
	case dep.IsOrdered() && !dep.IsLoopIndependent():
		for level := 1; level <= dep.Levels(); level++ {
			switch dep.Direction(level) {
			case ir.DirEQ:
				continue
			case ir.DirLT:
				b.connectMemory(s, t, &MemPayload{Dep: dep})
			case ir.DirGT:
				b.p.EdgeReversals++
				b.connectMemory(t, s, &MemPayload{Dep: dep, Reversed: true})
			default:
				b.connectMemory(s, t, &MemPayload{Dep: dep})
				b.connectMemory(t, s, &MemPayload{Dep: dep, Reversed: true})
			}
			return
		}
		// Every component was '='.
		b.connectMemory(s, t, &MemPayload{Dep: dep})
	case dep.IsOrdered():
		b.connectMemory(s, t, &MemPayload{Dep: dep})
	default:
		// Neither confused nor ordered: keep both directions, like the
		// undecided confused case.
		b.connectMemory(s, t, &MemPayload{Dep: dep})
		b.connectMemory(t, s, &MemPayload{Dep: dep, Reversed: true})
	}
}

// connectMemory creates a memory edge, upgrading an existing def-use
// edge between the same pair to a mixed data edge.
func (b *builder) connectMemory(s, t *ir.Instruction, payload *MemPayload) {
	from, okF := b.p.nodeOf[s]
	to, okT := b.p.nodeOf[t]
	if !okF || !okT {
		return
	}
	for _, e := range b.p.G.FindEdges(from, to) {
		switch e.Data.Kind {
		case EdgeDefUse:
			b.p.G.RemoveEdge(from, e)
			b.p.G.Connect(from, to, &Edge{Kind: EdgeMixed, Mem: payload})
			return
		case EdgeMemory, EdgeMixed:
			// The pair already carries a memory edge in this direction.
			return
		}
	}
	b.p.G.Connect(from, to, &Edge{Kind: EdgeMemory, Mem: payload})
}

// Stage 5: build a CDG over the function's CFG and fan each control
// dependence out to every instruction node of the dependent block. The
// source endpoint is the terminator node of the controlling block, or
// the dedicated entry node for CDG entry dependences.
func (b *builder) createControlEdges() {
	b.p.Entry = b.p.G.AddNode(Node{Kind: KindEntry})
	if len(b.f.Blocks) == 0 {
		return
	}
	cfg := ir.CFGView(b.f)
	pdt := postdom.Build[*ir.BasicBlock](cfg)
	cd := cdg.Build[*ir.BasicBlock](cfg, pdt)

	for _, dep := range cd.EntryDependents() {
		b.connectControlToBlock(b.p.Entry, dep)
	}
	for _, u := range cd.Nodes() {
		deps := cd.DependentsOf(u)
		if len(deps) == 0 {
			continue
		}
		term := u.Terminator()
		if term == nil {
			continue
		}
		src, ok := b.p.nodeOf[term]
		if !ok {
			continue
		}
		for _, v := range deps {
			b.connectControlToBlock(src, v)
		}
	}
}

func (b *builder) connectControlToBlock(src graph.NodeID, bb *ir.BasicBlock) {
	for _, inst := range bb.Instrs {
		to, ok := b.p.nodeOf[inst]
		if !ok || to == src {
			continue
		}
		if b.hasEdgeOfKind(src, to, EdgeControl) {
			continue
		}
		b.p.G.Connect(src, to, &Edge{Kind: EdgeControl})
	}
}
