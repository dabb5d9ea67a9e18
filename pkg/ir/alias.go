package ir

// DIMemory is a debug-metadata-level memory description: the source
// variable or aggregate an estimate memory corresponds to.
type DIMemory struct {
	Name string
}

// EstimateMemory is a node of the alias tree covering a concrete memory
// location, optionally backed by a debug-level memory.
type EstimateMemory struct {
	ID     int
	Loc    MemoryLocation
	DI     *DIMemory
	parent *EstimateMemory
}

// Parent returns the enclosing estimate memory, or nil at a tree root.
func (m *EstimateMemory) Parent() *EstimateMemory { return m.parent }

// AliasRelation classifies a pair of alias tree nodes.
type AliasRelation string

const (
	// RelationUnreachable means the spanning-tree walk proves the nodes
	// never alias.
	RelationUnreachable AliasRelation = "unreachable"
	// RelationAlias means the nodes may refer to overlapping memory.
	RelationAlias AliasRelation = "alias"
)

// AliasTree resolves memory locations to estimate memories and relates
// pairs of tree nodes. Client- and server-side trees share this shape.
type AliasTree struct {
	byBase map[string]*EstimateMemory
	nextID int
}

// NewAliasTree creates an empty tree.
func NewAliasTree() *AliasTree {
	return &AliasTree{byBase: make(map[string]*EstimateMemory)}
}

// Add registers an estimate memory for base, optionally below parent,
// and binds it to a debug-level memory of the same name.
func (t *AliasTree) Add(base string, parent *EstimateMemory) *EstimateMemory {
	m := &EstimateMemory{
		ID:     t.nextID,
		Loc:    MemoryLocation{Base: base},
		DI:     &DIMemory{Name: base},
		parent: parent,
	}
	t.nextID++
	t.byBase[base] = m
	return m
}

// Find resolves a memory location to its estimate memory, or nil when
// the tree holds no information about it.
func (t *AliasTree) Find(loc MemoryLocation) *EstimateMemory {
	return t.byBase[loc.Base]
}

// Relation relates two estimate memories over the spanning tree: nodes
// in disjoint subtrees are unreachable from one another and therefore
// cannot alias.
func (t *AliasTree) Relation(a, b *EstimateMemory) AliasRelation {
	if a == nil || b == nil {
		return RelationAlias // missing info stays conservative
	}
	if root(a) != root(b) {
		return RelationUnreachable
	}
	return RelationAlias
}

func root(m *EstimateMemory) *EstimateMemory {
	for m.parent != nil {
		m = m.parent
	}
	return m
}
