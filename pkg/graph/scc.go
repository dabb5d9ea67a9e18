package graph

// SCCs computes the strongly connected components of the graph using
// Tarjan's algorithm. Components are returned in reverse topological
// completion order; node IDs inside a component appear in the order the
// algorithm popped them.
func (g *Graph[N, E]) SCCs() [][]NodeID {
	// low[i] == 0 means unvisited; a node off the stack with a non-zero
	// low value already belongs to a finished component.
	low := make([]uint, len(g.nodes))
	var stack []NodeID
	onStack := make([]bool, len(g.nodes))
	index := uint(1)
	var comps [][]NodeID

	var connect func(v NodeID) uint
	connect = func(v NodeID) uint {
		low[v] = index
		min := index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, e := range g.nodes[v].out {
			w := e.Target
			if !g.nodes[w].live {
				continue
			}
			if low[w] == 0 {
				if m := connect(w); m < min {
					min = m
				}
			} else if onStack[w] && low[w] < min {
				min = low[w]
			}
		}

		if min == low[v] {
			var comp []NodeID
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			comps = append(comps, comp)
		} else if min < low[v] {
			low[v] = min
		}
		return low[v]
	}

	for i := range g.nodes {
		if g.nodes[i].live && low[i] == 0 {
			connect(NodeID(i))
		}
	}
	return comps
}

// NontrivialSCCs returns only the components with at least two nodes.
// A single node with a self-edge is not considered non-trivial.
func (g *Graph[N, E]) NontrivialSCCs() [][]NodeID {
	var res [][]NodeID
	for _, comp := range g.SCCs() {
		if len(comp) >= 2 {
			res = append(res, comp)
		}
	}
	return res
}
