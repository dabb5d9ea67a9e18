package ir

// Loop is one natural loop of the function.
type Loop struct {
	Header *BasicBlock
	Parent *Loop
	Depth  int
	blocks map[*BasicBlock]bool
}

// NewLoop creates a loop with the given header nested under parent.
func NewLoop(header *BasicBlock, parent *Loop) *Loop {
	depth := 1
	if parent != nil {
		depth = parent.Depth + 1
	}
	l := &Loop{Header: header, Parent: parent, Depth: depth, blocks: make(map[*BasicBlock]bool)}
	l.AddBlock(header)
	return l
}

// AddBlock records b as part of the loop body (and all enclosing loops).
func (l *Loop) AddBlock(b *BasicBlock) {
	for cur := l; cur != nil; cur = cur.Parent {
		cur.blocks[b] = true
	}
}

// Contains reports whether b belongs to the loop.
func (l *Loop) Contains(b *BasicBlock) bool { return l.blocks[b] }

// LoopInfo maps basic blocks to their innermost enclosing loop.
type LoopInfo struct {
	innermost map[*BasicBlock]*Loop
}

// NewLoopInfo creates empty loop information.
func NewLoopInfo() *LoopInfo {
	return &LoopInfo{innermost: make(map[*BasicBlock]*Loop)}
}

// Assign records l as the innermost loop of b.
func (li *LoopInfo) Assign(b *BasicBlock, l *Loop) {
	li.innermost[b] = l
	if l != nil {
		l.AddBlock(b)
	}
}

// InnermostFor returns the innermost loop containing b, or nil.
func (li *LoopInfo) InnermostFor(b *BasicBlock) *Loop {
	if li == nil {
		return nil
	}
	return li.innermost[b]
}

// CommonLoops returns the loops enclosing both blocks, innermost first.
func (li *LoopInfo) CommonLoops(a, b *BasicBlock) []*Loop {
	if li == nil {
		return nil
	}
	inA := make(map[*Loop]bool)
	for l := li.innermost[a]; l != nil; l = l.Parent {
		inA[l] = true
	}
	var res []*Loop
	for l := li.innermost[b]; l != nil; l = l.Parent {
		if inA[l] {
			res = append(res, l)
		}
	}
	return res
}
