// Package postdom builds post-dominator trees over arbitrary control flow
// graphs. The CFG is described through a small capability set instead of a
// concrete graph type, so the same construction serves both the source
// CFG and the low-level instruction CFG.
package postdom

// CFG is the capability set a flow graph exposes to the tree builder and
// the control dependence construction.
type CFG[N comparable] interface {
	// Nodes returns every node, in a deterministic order.
	Nodes() []N
	// Succs returns the control successors of n.
	Succs(n N) []N
	// Entry returns the entry node.
	Entry() N
}

// Tree is a post-dominator tree. Multiple exits are collapsed under a
// virtual root which is hidden from consumers: exit nodes (and nodes
// without a path to an exit) appear as roots.
type Tree[N comparable] struct {
	idom     map[N]N
	children map[N][]N
	roots    []N
	depth    map[N]int
	nodes    []N
}

// Build computes the post-dominator tree of cfg with the iterative
// Cooper-Harvey-Kennedy scheme on the reversed graph.
func Build[N comparable](cfg CFG[N]) *Tree[N] {
	nodes := cfg.Nodes()
	n := len(nodes)
	index := make(map[N]int, n)
	for i, node := range nodes {
		index[node] = i
	}

	vroot := n // virtual root collapsing all exits
	total := n + 1

	// Reversed CFG: edge u -> v becomes v -> u; the virtual root points
	// at every exit node.
	radj := make([][]int, total)
	hasSucc := make([]bool, n)
	for i, node := range nodes {
		for _, succ := range cfg.Succs(node) {
			j, ok := index[succ]
			if !ok {
				continue
			}
			radj[j] = append(radj[j], i)
			hasSucc[i] = true
		}
	}
	for i := 0; i < n; i++ {
		if !hasSucc[i] {
			radj[vroot] = append(radj[vroot], i)
		}
	}

	rpo := reversePostorder(radj, vroot, total)
	rpoPos := make([]int, total)
	for i := range rpoPos {
		rpoPos[i] = -1
	}
	for i, node := range rpo {
		rpoPos[node] = i
	}

	rpreds := make([][]int, total)
	for from, outs := range radj {
		for _, to := range outs {
			rpreds[to] = append(rpreds[to], from)
		}
	}

	idom := make([]int, total)
	for i := range idom {
		idom[i] = -1
	}
	idom[vroot] = vroot

	for changed := true; changed; {
		changed = false
		for _, v := range rpo {
			if v == vroot {
				continue
			}
			newIdom := -1
			for _, p := range rpreds[v] {
				if idom[p] != -1 && rpoPos[p] != -1 {
					newIdom = p
					break
				}
			}
			if newIdom == -1 {
				continue
			}
			for _, p := range rpreds[v] {
				if p == newIdom || idom[p] == -1 || rpoPos[p] == -1 {
					continue
				}
				newIdom = intersect(idom, rpoPos, p, newIdom)
			}
			if idom[v] != newIdom {
				idom[v] = newIdom
				changed = true
			}
		}
	}

	t := &Tree[N]{
		idom:     make(map[N]N),
		children: make(map[N][]N),
		depth:    make(map[N]int),
		nodes:    nodes,
	}
	for i, node := range nodes {
		d := idom[i]
		if d < 0 || d >= n {
			// Post-dominated only by the virtual root.
			t.roots = append(t.roots, node)
			continue
		}
		parent := nodes[d]
		t.idom[node] = parent
		t.children[parent] = append(t.children[parent], node)
	}
	for _, root := range t.roots {
		t.assignDepth(root, 0)
	}
	return t
}

func (t *Tree[N]) assignDepth(n N, d int) {
	t.depth[n] = d
	for _, c := range t.children[n] {
		t.assignDepth(c, d+1)
	}
}

// IDom returns the immediate post-dominator of n. ok is false when n is a
// root, i.e. its only post-dominator is the hidden virtual root.
func (t *Tree[N]) IDom(n N) (parent N, ok bool) {
	parent, ok = t.idom[n]
	return parent, ok
}

// Children returns the nodes immediately post-dominated by n.
func (t *Tree[N]) Children(n N) []N { return t.children[n] }

// Roots returns the children of the hidden virtual root: the real exit
// nodes plus any node with no path to an exit.
func (t *Tree[N]) Roots() []N { return t.roots }

// Dominates reports whether a post-dominates b (reflexively).
func (t *Tree[N]) Dominates(a, b N) bool {
	for {
		if a == b {
			return true
		}
		parent, ok := t.idom[b]
		if !ok {
			return false
		}
		b = parent
	}
}

// PathFromRoot returns the tree path ending at n, starting at its root.
func (t *Tree[N]) PathFromRoot(n N) []N {
	var rev []N
	cur := n
	for {
		rev = append(rev, cur)
		parent, ok := t.idom[cur]
		if !ok {
			break
		}
		cur = parent
	}
	for i, j := 0, len(rev)-1; i < j; i, j = i+1, j-1 {
		rev[i], rev[j] = rev[j], rev[i]
	}
	return rev
}

// Depth returns the depth of n in the tree; the roots (the children of the
// virtual root) have depth 0.
func (t *Tree[N]) Depth(n N) int { return t.depth[n] }

// Walk visits the tree in depth-first preorder starting at the roots.
func (t *Tree[N]) Walk(visit func(n N)) {
	var dfs func(n N)
	dfs = func(n N) {
		visit(n)
		for _, c := range t.children[n] {
			dfs(c)
		}
	}
	for _, root := range t.roots {
		dfs(root)
	}
}

// intersect finds the nearest common ancestor of a and b in the growing
// dominator tree, walking by reverse-postorder positions.
func intersect(idom, rpoPos []int, a, b int) int {
	for a != b {
		for rpoPos[a] > rpoPos[b] {
			a = idom[a]
		}
		for rpoPos[b] > rpoPos[a] {
			b = idom[b]
		}
	}
	return a
}

// reversePostorder computes RPO over adj starting at root.
func reversePostorder(adj [][]int, root, n int) []int {
	visited := make([]bool, n)
	order := make([]int, 0, n)
	var dfs func(int)
	dfs = func(v int) {
		visited[v] = true
		for _, w := range adj[v] {
			if !visited[w] {
				dfs(w)
			}
		}
		order = append(order, v)
	}
	dfs(root)
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}
