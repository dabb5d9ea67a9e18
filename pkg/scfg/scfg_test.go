package scfg

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oUaTEnCi/tsar/pkg/astutil"
	"github.com/oUaTEnCi/tsar/pkg/graph"
)

func build(t *testing.T, src, fn string) (*SCFG, []Diagnostic) {
	t.Helper()
	file := astutil.Parse([]byte(src))
	t.Cleanup(file.Close)
	g, diags, err := Build(file, fn)
	require.NoError(t, err)
	return g, diags
}

// findNode locates the unique default node whose label contains substr.
func findNode(t *testing.T, g *SCFG, substr string) graph.NodeID {
	t.Helper()
	found := graph.InvalidNode
	for _, id := range g.G.Nodes() {
		n := g.Node(id)
		if n.Kind != NodeDefault {
			continue
		}
		if strings.Contains(n.String(), substr) {
			require.Equal(t, graph.InvalidNode, found, "label %q matches several nodes", substr)
			found = id
		}
	}
	require.NotEqual(t, graph.InvalidNode, found, "no node contains %q", substr)
	return found
}

// findNodeExact locates the unique default node whose label equals label.
func findNodeExact(t *testing.T, g *SCFG, label string) graph.NodeID {
	t.Helper()
	found := graph.InvalidNode
	for _, id := range g.G.Nodes() {
		n := g.Node(id)
		if n.Kind != NodeDefault {
			continue
		}
		if n.String() == label {
			require.Equal(t, graph.InvalidNode, found, "label %q matches several nodes", label)
			found = id
		}
	}
	require.NotEqual(t, graph.InvalidNode, found, "no node labeled %q", label)
	return found
}

func edgeKinds(g *SCFG, src, tgt graph.NodeID) []EdgeKind {
	var kinds []EdgeKind
	for _, e := range g.G.FindEdges(src, tgt) {
		kinds = append(kinds, e.Data)
	}
	return kinds
}

func TestStraightLine(t *testing.T) {
	g, diags := build(t, `
int f(void) {
	int a = 1;
	int b = a + 2;
	return b;
}`, "f")
	assert.Empty(t, diags)

	// Entry with True->Start and False->Stop.
	require.NotEqual(t, graph.InvalidNode, g.Entry)
	assert.Equal(t, []EdgeKind{EdgeTrue}, edgeKinds(g, g.Entry, g.Start))
	assert.Equal(t, []EdgeKind{EdgeFalse}, edgeKinds(g, g.Entry, g.Stop))

	body := findNode(t, g, "int a = 1")
	assert.True(t, g.G.HasEdge(g.Start, body))
	assert.True(t, g.G.HasEdge(body, g.Stop))
	// All three statements land in one block.
	assert.Equal(t, 3, g.Block(body).Size())
}

func TestIfElse(t *testing.T) {
	g, _ := build(t, `
int f(int c) {
	int x;
	if (c) { x = 1; } else { x = 2; }
	x = 3;
	return x;
}`, "f")

	cond := findNode(t, g, "int x")
	then := findNode(t, g, "x = 1")
	els := findNode(t, g, "x = 2")
	join := findNode(t, g, "x = 3")

	assert.Equal(t, []EdgeKind{EdgeTrue}, edgeKinds(g, cond, then))
	assert.Equal(t, []EdgeKind{EdgeFalse}, edgeKinds(g, cond, els))
	assert.Equal(t, []EdgeKind{EdgeDefault}, edgeKinds(g, then, join))
	assert.Equal(t, []EdgeKind{EdgeDefault}, edgeKinds(g, els, join))
	assert.False(t, g.G.HasEdge(cond, join))
}

func TestIfWithoutElse(t *testing.T) {
	g, _ := build(t, `
void f(int c) {
	if (c > 0) { c = 1; }
	c = 2;
}`, "f")

	cond := findNode(t, g, "c > 0")
	then := findNode(t, g, "c = 1")
	join := findNode(t, g, "c = 2")

	assert.Equal(t, []EdgeKind{EdgeTrue}, edgeKinds(g, cond, then))
	assert.Equal(t, []EdgeKind{EdgeFalse}, edgeKinds(g, cond, join))
	assert.Equal(t, []EdgeKind{EdgeDefault}, edgeKinds(g, then, join))
}

func TestWhileLoop(t *testing.T) {
	g, _ := build(t, `
void f(int n) {
	int i = 0;
	while (i < n) {
		i = i + 1;
	}
	n = 0;
}`, "f")

	header := findNode(t, g, "i < n")
	body := findNode(t, g, "i = i + 1")
	exit := findNode(t, g, "n = 0")

	assert.Equal(t, []EdgeKind{EdgeTrue}, edgeKinds(g, header, body))
	assert.Equal(t, []EdgeKind{EdgeDefault}, edgeKinds(g, body, header))
	assert.Equal(t, []EdgeKind{EdgeFalse}, edgeKinds(g, header, exit))
}

func TestWhileBreakContinue(t *testing.T) {
	g, _ := build(t, `
void f(int n) {
	while (n > 0) {
		if (n == 1) { continue; }
		if (n == 2) { break; }
		n = n - 1;
	}
	n = 9;
}`, "f")

	header := findNode(t, g, "n > 0")
	exit := findNode(t, g, "n = 9")

	// One continue edge back to the header, one break edge to the exit.
	var continues, breaks int
	for _, id := range g.G.Nodes() {
		for _, e := range g.G.EdgesOf(id) {
			switch e.Data {
			case EdgeContinue:
				continues++
				assert.Equal(t, header, e.Target)
			case EdgeBreak:
				breaks++
				assert.Equal(t, exit, e.Target)
			}
		}
	}
	assert.Equal(t, 1, continues)
	assert.Equal(t, 1, breaks)
}

func TestForLoopContinueTargetsUpdate(t *testing.T) {
	g, _ := build(t, `
void f(int n) {
	int s = 0;
	for (int i = 0; i < n; i = i + 1) {
		if (i == 3) { continue; }
		s = s + i;
	}
	n = s;
}`, "f")

	header := findNode(t, g, "i < n")
	update := findNode(t, g, "i = i + 1")
	body := findNode(t, g, "s = s + i")
	exit := findNode(t, g, "n = s")

	assert.Equal(t, []EdgeKind{EdgeDefault}, edgeKinds(g, update, header))
	assert.Equal(t, []EdgeKind{EdgeDefault}, edgeKinds(g, body, update))
	assert.Equal(t, []EdgeKind{EdgeFalse}, edgeKinds(g, header, exit))

	// The continue flows through the block recorded inside the then
	// branch and targets the update block with a continue edge.
	cond := findNode(t, g, "i == 3")
	contSrc := graph.InvalidNode
	for _, id := range g.G.Nodes() {
		for _, e := range g.G.EdgesOf(id) {
			if e.Data == EdgeContinue {
				require.Equal(t, graph.InvalidNode, contSrc)
				contSrc = id
				assert.Equal(t, update, e.Target)
			}
		}
	}
	require.NotEqual(t, graph.InvalidNode, contSrc)
	assert.Equal(t, []EdgeKind{EdgeTrue}, edgeKinds(g, cond, contSrc))
}

func TestSwitchFallthrough(t *testing.T) {
	g, _ := build(t, `
void f(int x) {
	switch (x) {
	case 1:
		x = 10;
	case 2:
		x = 20;
		break;
	default:
		x = 30;
	}
	x = 40;
}`, "f")

	cond := findNode(t, g, "switch (x)")
	case1 := findNode(t, g, "case 1:")
	case2 := findNode(t, g, "case 2:")
	def := findNode(t, g, "default:")
	join := findNode(t, g, "x = 40")

	assert.Equal(t, []EdgeKind{EdgeToCase}, edgeKinds(g, cond, case1))
	assert.Equal(t, []EdgeKind{EdgeToCase}, edgeKinds(g, cond, case2))
	assert.Equal(t, []EdgeKind{EdgeFalse}, edgeKinds(g, cond, def))

	// Explicit fallthrough between consecutive cases; break to the join.
	assert.Equal(t, []EdgeKind{EdgeDefault}, edgeKinds(g, case1, case2))
	assert.Equal(t, []EdgeKind{EdgeBreak}, edgeKinds(g, case2, join))
	assert.Equal(t, []EdgeKind{EdgeDefault}, edgeKinds(g, def, join))
	assert.False(t, g.G.HasEdge(case2, def))
}

func TestReturnEdgesToStop(t *testing.T) {
	g, _ := build(t, `
int f(int c) {
	if (c) { return 1; }
	return 0;
}`, "f")

	r1 := findNode(t, g, "return 1")
	r0 := findNode(t, g, "return 0")
	assert.True(t, g.G.HasEdge(r1, g.Stop))
	assert.True(t, g.G.HasEdge(r0, g.Stop))
}

func TestGotoForward(t *testing.T) {
	g, _ := build(t, `
void f(int n) {
	n = 1;
	goto end;
	n = 2;
end:
	n = 3;
}`, "f")

	src := findNode(t, g, "goto end")
	target := findNode(t, g, "n = 3")
	assert.Equal(t, []EdgeKind{EdgeDefault}, edgeKinds(g, src, target))

	// The skipped statement is unreachable and eliminated.
	for _, id := range g.G.Nodes() {
		n := g.Node(id)
		if n.Kind == NodeDefault {
			assert.NotContains(t, n.String(), "n = 2")
		}
	}
}

func TestGotoBackward(t *testing.T) {
	g, _ := build(t, `
void f(int n) {
top:
	n = n - 1;
	if (n) { goto top; }
}`, "f")

	src := findNode(t, g, "goto top")
	target := findNode(t, g, "n = n - 1")
	assert.Equal(t, []EdgeKind{EdgeDefault}, edgeKinds(g, src, target))
}

func TestUnreachableAfterReturn(t *testing.T) {
	g, _ := build(t, `
int f(void) {
	return 1;
	return 2;
}`, "f")

	for _, id := range g.G.Nodes() {
		n := g.Node(id)
		if n.Kind == NodeDefault {
			assert.NotContains(t, n.String(), "return 2")
		}
	}
}

func TestShortCircuitCondition(t *testing.T) {
	g, _ := build(t, `
void f(int a, int b) {
	if (a && b) { a = 1; }
	b = 2;
}`, "f")

	first := findNodeExact(t, g, "a")
	second := findNodeExact(t, g, "b")
	then := findNode(t, g, "a = 1")
	join := findNode(t, g, "b = 2")

	// a true -> evaluate b; either condition false -> join.
	assert.Equal(t, []EdgeKind{EdgeTrue}, edgeKinds(g, first, second))
	assert.Equal(t, []EdgeKind{EdgeFalse}, edgeKinds(g, first, join))
	assert.Equal(t, []EdgeKind{EdgeTrue}, edgeKinds(g, second, then))
	assert.Equal(t, []EdgeKind{EdgeFalse}, edgeKinds(g, second, join))
}

func TestConditionalExprReferences(t *testing.T) {
	g, _ := build(t, `
void f(int a, int b) {
	b = a > 0 ? a : 1;
	a = 2;
}`, "f")

	// The consuming statement in the join block refers back to both arm
	// ops through reference ops.
	var refs int
	for _, id := range g.G.Nodes() {
		n := g.Node(id)
		if n.Kind != NodeDefault {
			continue
		}
		for _, op := range n.Block.Ops() {
			for _, leaf := range op.Leaves {
				if leaf.Type == OpReference {
					refs++
					assert.True(t, leaf.Target.Referred)
				}
			}
		}
	}
	assert.Equal(t, 2, refs)
}

func TestEveryPathTerminatesAtStop(t *testing.T) {
	srcs := map[string]string{
		"loop": `
void f(int n) {
	while (n) { n = n - 1; }
}`,
		"switch": `
void f(int x) {
	switch (x) { case 1: x = 2; break; }
}`,
		"nested": `
void f(int a) {
	if (a) { if (a > 1) { a = 2; } else { a = 3; } }
}`,
	}
	for name, src := range srcs {
		t.Run(name, func(t *testing.T) {
			g, _ := build(t, src, "f")
			// Every node reachable from Start reaches Stop.
			reach := g.Reachable()
			for id := range reach {
				if id == g.Stop {
					continue
				}
				assert.True(t, reachesStop(g, id), "node %d cannot reach STOP", id)
			}
		})
	}
}

func reachesStop(g *SCFG, from graph.NodeID) bool {
	seen := map[graph.NodeID]bool{}
	work := []graph.NodeID{from}
	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		if id == g.Stop {
			return true
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		work = append(work, g.G.Successors(id)...)
	}
	return false
}

func TestSplitNode(t *testing.T) {
	g := New("f")
	n := g.EmplaceDefault()
	opA, opB, opC := &NodeOp{Type: OpNative, Label: "a"}, &NodeOp{Type: OpNative, Label: "b"}, &NodeOp{Type: OpNative, Label: "c"}
	g.Block(n).Append(opA, opB, opC)
	g.Bind(g.Start, n, EdgeDefault)
	g.Bind(n, g.Stop, EdgeDefault)

	fresh := g.SplitNode(n, 1)

	assert.Equal(t, 1, g.Block(n).Size())
	assert.Equal(t, 2, g.Block(fresh).Size())
	assert.Equal(t, []EdgeKind{EdgeDefault}, edgeKinds(g, n, fresh))
	assert.True(t, g.G.HasEdge(fresh, g.Stop))
	assert.False(t, g.G.HasEdge(n, g.Stop))
}

func TestMergeNodes(t *testing.T) {
	g := New("f")
	a := g.EmplaceDefault()
	b := g.EmplaceDefault()
	g.Block(a).Append(&NodeOp{Type: OpNative, Label: "a"})
	g.Block(b).Append(&NodeOp{Type: OpNative, Label: "b"})
	g.Bind(g.Start, a, EdgeDefault)
	g.Bind(a, b, EdgeDefault)
	g.Bind(b, g.Stop, EdgeDefault)

	require.NoError(t, g.MergeNodes(a, b))
	assert.Equal(t, 2, g.Block(a).Size())
	assert.True(t, g.G.HasEdge(a, g.Stop))
	assert.False(t, g.G.Contains(b))
}

func TestMergeNodesRefusesDangling(t *testing.T) {
	g := New("f")
	a := g.EmplaceDefault()
	b := g.EmplaceDefault()
	other := g.EmplaceDefault()
	g.Bind(a, b, EdgeDefault)
	g.Bind(other, b, EdgeDefault)

	assert.ErrorIs(t, g.MergeNodes(a, b), ErrDanglingMerge)
	assert.True(t, g.G.Contains(b))
}
