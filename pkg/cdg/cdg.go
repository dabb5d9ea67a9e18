// Package cdg derives control dependence graphs from a control flow graph
// and its post-dominator tree, following the Ferrante-Ottenstein-Warren
// construction. The builder is generic over the CFG node type and serves
// both the source CFG and the low-level instruction CFG.
package cdg

import (
	"github.com/oUaTEnCi/tsar/pkg/postdom"
)

// Graph is a control dependence graph: one Entry node plus one default
// node per CFG node. All edges mean the same thing, so they carry no kind.
type Graph[N comparable] struct {
	nodes     []N
	deps      map[N][]N // u -> nodes control-dependent on u
	entryDeps []N       // nodes control-dependent on function entry
	present   map[[2]int]bool
	index     map[N]int
}

// Build computes the CDG of cfg given its post-dominator tree.
//
// There is an edge u -> w iff the CFG has an edge u -> v such that w lies
// on the post-dominator tree path from v toward the immediate
// post-dominator of u, excluding both idom(u) and u itself. Entry
// dependences cover the CFG nodes on the tree path from the CFG entry up
// to the (hidden) virtual root.
func Build[N comparable](cfg postdom.CFG[N], pdt *postdom.Tree[N]) *Graph[N] {
	nodes := cfg.Nodes()
	g := &Graph[N]{
		nodes:   nodes,
		deps:    make(map[N][]N),
		present: make(map[[2]int]bool),
		index:   make(map[N]int, len(nodes)),
	}
	for i, n := range nodes {
		g.index[n] = i
	}

	entry := cfg.Entry()

	// Visit CFG nodes in depth-first order of the post-dominator tree so
	// edge lists come out deterministic regardless of map iteration.
	visit := func(u N) {
		if u == entry {
			w := entry
			for {
				g.addEntryDep(w)
				parent, ok := pdt.IDom(w)
				if !ok {
					break
				}
				w = parent
			}
		}
		stop, hasStop := pdt.IDom(u)
		for _, v := range cfg.Succs(u) {
			if _, known := g.index[v]; !known {
				continue
			}
			w := v
			for {
				if hasStop && w == stop {
					break
				}
				if w == u {
					// The walk reached u itself; the next step would be
					// idom(u), so nothing further is dependent.
					break
				}
				g.addDep(u, w)
				parent, ok := pdt.IDom(w)
				if !ok {
					break
				}
				w = parent
			}
		}
	}
	pdt.Walk(visit)
	// Nodes outside the tree (none in practice) would be skipped by Walk;
	// sweep the node list to keep the construction total.
	seen := make(map[N]bool, len(nodes))
	pdt.Walk(func(n N) { seen[n] = true })
	for _, u := range nodes {
		if !seen[u] {
			visit(u)
		}
	}
	return g
}

func (g *Graph[N]) addDep(u, w N) {
	key := [2]int{g.index[u], g.index[w]}
	if g.present[key] {
		return
	}
	g.present[key] = true
	g.deps[u] = append(g.deps[u], w)
}

func (g *Graph[N]) addEntryDep(w N) {
	key := [2]int{-1, g.index[w]}
	if g.present[key] {
		return
	}
	g.present[key] = true
	g.entryDeps = append(g.entryDeps, w)
}

// Nodes returns the underlying CFG nodes in their original order.
func (g *Graph[N]) Nodes() []N { return g.nodes }

// DependentsOf returns the nodes control-dependent on u, in discovery
// order.
func (g *Graph[N]) DependentsOf(u N) []N { return g.deps[u] }

// EntryDependents returns the nodes control-dependent on function entry.
func (g *Graph[N]) EntryDependents() []N { return g.entryDeps }

// HasDep reports whether w is control-dependent on u.
func (g *Graph[N]) HasDep(u, w N) bool {
	return g.present[[2]int{g.index[u], g.index[w]}]
}

// EdgeCount returns the number of distinct control dependence edges,
// entry dependences included.
func (g *Graph[N]) EdgeCount() int { return len(g.present) }
