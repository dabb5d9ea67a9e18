package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oUaTEnCi/tsar/pkg/astutil"
)

func lower(t *testing.T, src, fn string) *LowerResult {
	t.Helper()
	file := astutil.Parse([]byte(src))
	t.Cleanup(file.Close)
	res, err := Lower(file, fn)
	require.NoError(t, err)
	return res
}

func storesTo(f *Function, base string) []*Instruction {
	var res []*Instruction
	f.Instructions(func(i *Instruction) {
		if i.Op == OpStore && i.Mem != nil && i.Mem.Base == base {
			res = append(res, i)
		}
	})
	return res
}

func TestLowerStraightLine(t *testing.T) {
	res := lower(t, `
void f(void) {
	int a = 1;
	int b = a + 2;
}`, "f")
	f := res.Func

	require.Len(t, f.Blocks, 1)
	require.Len(t, storesTo(f, "a"), 1)
	stores := storesTo(f, "b")
	require.Len(t, stores, 1)

	// b's store consumes the a + 2 value, which consumes the load of a.
	require.Len(t, stores[0].Operands, 1)
	sum := stores[0].Operands[0]
	assert.Equal(t, OpAdd, sum.Op)
	var foundLoad bool
	for _, op := range sum.Operands {
		if op.Op == OpLoad && op.Mem.Base == "a" {
			foundLoad = true
		}
	}
	assert.True(t, foundLoad)

	// The alias tree knows both bases.
	assert.NotNil(t, res.Alias.Find(MemoryLocation{Base: "a"}))
	assert.NotNil(t, res.Alias.Find(MemoryLocation{Base: "b"}))

	// Declarations carry shadowed debug intrinsics.
	var dbgs int
	f.Instructions(func(i *Instruction) {
		if i.IsDebug() {
			dbgs++
		}
	})
	assert.Equal(t, 2, dbgs)
}

func TestLowerWhileLoop(t *testing.T) {
	res := lower(t, `
void f(int n) {
	while (n > 0) {
		n = n - 1;
	}
}`, "f")
	f := res.Func

	var header, body *BasicBlock
	for _, b := range f.Blocks {
		switch b.Name {
		case "while.cond":
			header = b
		case "while.body":
			body = b
		}
	}
	require.NotNil(t, header)
	require.NotNil(t, body)

	assert.Contains(t, header.Succs, body)
	assert.Contains(t, body.Succs, header)

	// The body belongs to a loop; the condition block is its header.
	loop := res.Loops.InnermostFor(body)
	require.NotNil(t, loop)
	assert.Equal(t, header, loop.Header)
	assert.True(t, loop.Contains(body))
}

func TestLowerIf(t *testing.T) {
	res := lower(t, `
void f(int c) {
	if (c > 0) {
		c = 1;
	} else {
		c = 2;
	}
}`, "f")
	f := res.Func

	entry := f.Entry()
	term := entry.Terminator()
	require.NotNil(t, term)
	assert.Equal(t, OpCondBr, term.Op)
	assert.Len(t, entry.Succs, 2)
	assert.Len(t, storesTo(f, "c"), 2)
}

func TestLowerCallRecordsCallee(t *testing.T) {
	res := lower(t, `
void f(char *p) {
	memset(p, 0, 8);
}`, "f")

	var call *Instruction
	res.Func.Instructions(func(i *Instruction) {
		if i.Op == OpCall {
			call = i
		}
	})
	require.NotNil(t, call)
	assert.Equal(t, "memset", call.Callee)
	// Memory classification of calls is left to the consumer.
	assert.False(t, call.MayRead)
	assert.False(t, call.MayWrite)
}

func TestLowerUnknownFunction(t *testing.T) {
	file := astutil.Parse([]byte(`void f(void) {}`))
	defer file.Close()
	_, err := Lower(file, "g")
	assert.Error(t, err)
}
