package scfg

import (
	"errors"
	"fmt"

	"github.com/oUaTEnCi/tsar/pkg/graph"
)

// NodeKind distinguishes default nodes from the service nodes.
type NodeKind string

const (
	NodeDefault NodeKind = "default"
	NodeStart   NodeKind = "start"
	NodeStop    NodeKind = "stop"
	NodeEntry   NodeKind = "entry"
)

// EdgeKind is the control kind of an SCFG edge.
type EdgeKind string

const (
	EdgeDefault  EdgeKind = "default"
	EdgeTrue     EdgeKind = "true"
	EdgeFalse    EdgeKind = "false"
	EdgeContinue EdgeKind = "continue"
	EdgeBreak    EdgeKind = "break"
	EdgeToCase   EdgeKind = "to_case"
)

// Label renders the kind the way edge labels are printed.
func (k EdgeKind) Label() string {
	switch k {
	case EdgeTrue:
		return "T"
	case EdgeFalse:
		return "F"
	case EdgeContinue:
		return "continue"
	case EdgeBreak:
		return "break"
	case EdgeToCase:
		return "case"
	default:
		return ""
	}
}

// Node is the payload of an SCFG graph node.
type Node struct {
	Kind  NodeKind
	Block *SourceBasicBlock // non-nil only for default nodes
}

// String renders the node label for printers.
func (n *Node) String() string {
	switch n.Kind {
	case NodeStart:
		return "START"
	case NodeStop:
		return "STOP"
	case NodeEntry:
		return "ENTRY"
	default:
		return n.Block.String()
	}
}

// ErrDanglingMerge is returned by MergeNodes when the merge would leave
// edges pointing at the absorbed node.
var ErrDanglingMerge = errors.New("scfg: merge would dangle incoming edges")

// SCFG is the source control flow graph of one function.
type SCFG struct {
	FunctionName string
	G            *graph.Graph[Node, EdgeKind]

	Start, Stop graph.NodeID
	Entry       graph.NodeID // InvalidNode until inserted

	preds map[graph.NodeID][]graph.NodeID
}

// New creates an SCFG holding only the Start and Stop service nodes.
func New(functionName string) *SCFG {
	g := graph.New[Node, EdgeKind]()
	s := &SCFG{
		FunctionName: functionName,
		G:            g,
		Entry:        graph.InvalidNode,
	}
	s.Start = g.AddNode(Node{Kind: NodeStart})
	s.Stop = g.AddNode(Node{Kind: NodeStop})
	return s
}

// EmplaceDefault adds an empty default node.
func (s *SCFG) EmplaceDefault() graph.NodeID {
	return s.G.AddNode(Node{Kind: NodeDefault, Block: &SourceBasicBlock{}})
}

// EmplaceEntry inserts the Entry service node with True->Start and
// False->Stop, per the SCFG shape invariant.
func (s *SCFG) EmplaceEntry() graph.NodeID {
	if s.Entry != graph.InvalidNode {
		panic("scfg: entry node already inserted")
	}
	s.Entry = s.G.AddNode(Node{Kind: NodeEntry})
	s.Bind(s.Entry, s.Start, EdgeTrue)
	s.Bind(s.Entry, s.Stop, EdgeFalse)
	return s.Entry
}

// EntryNode returns the Entry node, falling back to Start before the
// entry has been inserted.
func (s *SCFG) EntryNode() graph.NodeID {
	if s.Entry != graph.InvalidNode {
		return s.Entry
	}
	return s.Start
}

// Bind connects two nodes with an edge of the given kind.
func (s *SCFG) Bind(src, tgt graph.NodeID, kind EdgeKind) {
	s.G.Connect(src, tgt, kind)
}

// Node returns the payload of id.
func (s *SCFG) Node(id graph.NodeID) *Node { return s.G.Node(id) }

// Block returns the basic block of a default node.
func (s *SCFG) Block(id graph.NodeID) *SourceBasicBlock {
	n := s.G.Node(id)
	if n.Kind != NodeDefault {
		panic(fmt.Sprintf("scfg: node %d is not a default node", id))
	}
	return n.Block
}

// MergeNodes absorbs outgoing into absorb: ops are concatenated and the
// outgoing node's edges move to absorb. The merge is refused when nodes
// other than absorb still point at outgoing, since removing it would
// leave their edges dangling.
func (s *SCFG) MergeNodes(absorb, outgoing graph.NodeID) error {
	for _, pred := range s.G.Predecessors(outgoing) {
		if pred != absorb {
			return ErrDanglingMerge
		}
	}
	an, on := s.G.Node(absorb), s.G.Node(outgoing)
	if an.Kind != NodeDefault || on.Kind != NodeDefault {
		return fmt.Errorf("scfg: merge of non-default nodes %d <- %d", absorb, outgoing)
	}
	an.Block.Append(on.Block.Ops()...)
	for _, e := range s.G.FindEdges(absorb, outgoing) {
		s.G.RemoveEdge(absorb, e)
	}
	for _, e := range s.G.EdgesOf(outgoing) {
		s.G.Connect(absorb, e.Target, e.Data)
	}
	s.G.RemoveNode(outgoing)
	return nil
}

// SplitNode moves ops [index..] of node into a fresh default node,
// transfers the outgoing edges to it and connects node -> new with a
// default edge. It returns the new node.
func (s *SCFG) SplitNode(id graph.NodeID, index int) graph.NodeID {
	block := s.Block(id)
	if index < 0 || index > block.Size() {
		panic(fmt.Sprintf("scfg: split index %d out of range", index))
	}
	fresh := s.EmplaceDefault()
	s.Block(fresh).Append(block.Ops()[index:]...)
	block.Decrease(index)
	for _, e := range s.G.EdgesOf(id) {
		s.G.Connect(fresh, e.Target, e.Data)
	}
	for {
		edges := s.G.EdgesOf(id)
		if len(edges) == 0 {
			break
		}
		s.G.RemoveEdge(id, edges[0])
	}
	s.Bind(id, fresh, EdgeDefault)
	return fresh
}

// DeleteNode removes a node together with every edge pointing at it.
func (s *SCFG) DeleteNode(id graph.NodeID) {
	for _, pred := range s.G.Predecessors(id) {
		for _, e := range s.G.FindEdges(pred, id) {
			s.G.RemoveEdge(pred, e)
		}
	}
	s.G.RemoveNode(id)
}

// RecalculatePredMap rebuilds the explicit predecessor map used for
// inverse traversal.
func (s *SCFG) RecalculatePredMap() {
	s.preds = make(map[graph.NodeID][]graph.NodeID)
	for _, id := range s.G.Nodes() {
		for _, succ := range s.G.Successors(id) {
			s.preds[succ] = append(s.preds[succ], id)
		}
	}
}

// Preds returns the predecessors recorded by RecalculatePredMap.
func (s *SCFG) Preds(id graph.NodeID) []graph.NodeID { return s.preds[id] }

// Reachable returns the set of nodes reachable from Start.
func (s *SCFG) Reachable() map[graph.NodeID]bool {
	seen := map[graph.NodeID]bool{s.Start: true}
	work := []graph.NodeID{s.Start}
	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		for _, succ := range s.G.Successors(id) {
			if !seen[succ] {
				seen[succ] = true
				work = append(work, succ)
			}
		}
	}
	return seen
}
