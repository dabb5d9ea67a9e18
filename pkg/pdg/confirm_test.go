package pdg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oUaTEnCi/tsar/pkg/ir"
)

// confusedPair builds two memory instructions in one loop block with a
// confused low-level dependence, wired to the given alias tree, loop
// info and trait map.
func confusedPair(base string) (f *ir.Function, src, dst *ir.Instruction, in Inputs) {
	f = ir.NewFunction("confirm")
	b0 := f.NewBlock("loop")
	f.Connect(b0, b0)
	loc := &ir.MemoryLocation{Base: base}
	src = f.Append(b0, ir.Instruction{Op: ir.OpStore, MayWrite: true, Mem: loc, Loc: ir.DebugLoc{Line: 5}})
	dst = f.Append(b0, ir.Instruction{Op: ir.OpLoad, Name: "%v", MayRead: true, Mem: loc, Loc: ir.DebugLoc{Line: 6}})

	oracle := &ir.PairOracle{}
	oracle.Set(src, dst, &ir.Dependence{Confused: true})

	alias := ir.NewAliasTree()
	alias.Add(base, nil)

	loops := ir.NewLoopInfo()
	loop := ir.NewLoop(b0, nil)
	loops.Assign(b0, loop)

	in = Inputs{
		DI:     oracle,
		Alias:  alias,
		Loops:  loops,
		DIDeps: ir.DIDependenceInfo{},
	}
	in.DIDeps[loop] = nil
	return f, src, dst, in
}

// traitFor swaps in a dependence set carrying the given traits for the
// shared memory.
func traitFor(in Inputs, base string, traits ...*ir.DIMemoryTrait) {
	em := in.Alias.Find(ir.MemoryLocation{Base: base})
	for loop := range in.DIDeps {
		in.DIDeps[loop] = ir.DIDependenceSet{
			&ir.DIAliasTrait{Memories: map[*ir.DIMemory][]*ir.DIMemoryTrait{em.DI: traits}},
		}
	}
}

func TestConfusedUnreachableAliasYieldsNoEdge(t *testing.T) {
	f := ir.NewFunction("confirm")
	b0 := f.NewBlock("entry")
	src := f.Append(b0, ir.Instruction{Op: ir.OpStore, MayWrite: true, Mem: &ir.MemoryLocation{Base: "a"}})
	dst := f.Append(b0, ir.Instruction{Op: ir.OpLoad, Name: "%v", MayRead: true, Mem: &ir.MemoryLocation{Base: "b"}})

	oracle := &ir.PairOracle{}
	oracle.Set(src, dst, &ir.Dependence{Confused: true})
	alias := ir.NewAliasTree()
	// Two separate roots: the spanning-tree relation proves disjointness.
	alias.Add("a", nil)
	alias.Add("b", nil)

	p := Build(f, Inputs{DI: oracle, Alias: alias}, Options{})

	assert.Empty(t, edgesBetween(t, p, src, dst))
	assert.Empty(t, edgesBetween(t, p, dst, src))
}

func TestConfusedPrivatizationContributesBothDirections(t *testing.T) {
	f, src, dst, in := confusedPair("s")
	traitFor(in, "s", &ir.DIMemoryTrait{Kind: ir.TraitPrivate})

	p := Build(f, in, Options{})

	fw := edgesBetween(t, p, src, dst)
	require.Len(t, fw, 1)
	require.Len(t, fw[0].Mem.Traits, 1)
	assert.Equal(t, ir.TraitPrivate, fw[0].Mem.Traits[0].Trait.Kind)

	bw := edgesBetween(t, p, dst, src)
	require.Len(t, bw, 1)
	require.Len(t, bw[0].Mem.Traits, 1)
}

func TestConfusedFlowCauseAttributesDirection(t *testing.T) {
	f, src, dst, in := confusedPair("s")
	traitFor(in, "s", &ir.DIMemoryTrait{Kind: ir.TraitFlow, Causes: []ir.DebugLoc{{Line: 5}}})

	p := Build(f, in, Options{})

	fw := edgesBetween(t, p, src, dst)
	require.Len(t, fw, 1)
	assert.Equal(t, EdgeMemory, fw[0].Kind)
	assert.Equal(t, ir.TraitFlow, fw[0].Mem.Traits[0].Trait.Kind)
	assert.Empty(t, edgesBetween(t, p, dst, src))
}

func TestConfusedFlowWithoutCauseFollowsDataMovement(t *testing.T) {
	// No cause matches either instruction; the writer-to-reader shape
	// attributes flow forward.
	f, src, dst, in := confusedPair("s")
	traitFor(in, "s", &ir.DIMemoryTrait{Kind: ir.TraitFlow, Causes: []ir.DebugLoc{{Line: 99}}})

	p := Build(f, in, Options{})

	fw := edgesBetween(t, p, src, dst)
	require.Len(t, fw, 1)
	assert.Equal(t, ir.TraitFlow, fw[0].Mem.Traits[0].Trait.Kind)
	assert.Empty(t, edgesBetween(t, p, dst, src))
}

func TestConfusedNoDependenceTraitsDropEdge(t *testing.T) {
	f, src, dst, in := confusedPair("s")
	traitFor(in, "s", &ir.DIMemoryTrait{Kind: ir.TraitReadonly})

	p := Build(f, in, Options{})

	assert.Empty(t, edgesBetween(t, p, src, dst))
	assert.Empty(t, edgesBetween(t, p, dst, src))
}

func TestConfusedWithoutTraitsFallsBackBothDirections(t *testing.T) {
	f, src, dst, in := confusedPair("s")
	// No trait information at all: the raw dependence goes both ways.

	p := Build(f, in, Options{})

	fw := edgesBetween(t, p, src, dst)
	require.Len(t, fw, 1)
	assert.Equal(t, EdgeMemory, fw[0].Kind)
	assert.NotNil(t, fw[0].Mem.Dep)
	bw := edgesBetween(t, p, dst, src)
	require.Len(t, bw, 1)
	assert.True(t, bw[0].Mem.Reversed)
}

func TestConfusedMissingAliasInfoStaysConservative(t *testing.T) {
	f := ir.NewFunction("confirm")
	b0 := f.NewBlock("entry")
	src := f.Append(b0, ir.Instruction{Op: ir.OpStore, MayWrite: true, Mem: &ir.MemoryLocation{Base: "a"}})
	dst := f.Append(b0, ir.Instruction{Op: ir.OpLoad, Name: "%v", MayRead: true, Mem: &ir.MemoryLocation{Base: "a"}})
	oracle := &ir.PairOracle{}
	oracle.Set(src, dst, &ir.Dependence{Confused: true})

	// Empty alias tree: the lookup fails, the edge is assumed to exist.
	p := Build(f, Inputs{DI: oracle, Alias: ir.NewAliasTree()}, Options{})

	assert.Len(t, edgesBetween(t, p, src, dst), 1)
	assert.Len(t, edgesBetween(t, p, dst, src), 1)
}
