package ir

// TraitKind classifies how a loop treats a debug-level memory.
type TraitKind string

const (
	TraitNoAccess            TraitKind = "no_access"
	TraitReadonly            TraitKind = "readonly"
	TraitShared              TraitKind = "shared"
	TraitPrivate             TraitKind = "private"
	TraitFirstPrivate        TraitKind = "first_private"
	TraitSecondToLastPrivate TraitKind = "second_to_last_private"
	TraitLastPrivate         TraitKind = "last_private"
	TraitDynamicPrivate      TraitKind = "dynamic_private"
	TraitFlow                TraitKind = "flow"
	TraitAnti                TraitKind = "anti"
	TraitOutput              TraitKind = "output"
)

// IsPrivatization reports whether the kind is one of the privatization
// classifications.
func (k TraitKind) IsPrivatization() bool {
	switch k {
	case TraitPrivate, TraitFirstPrivate, TraitSecondToLastPrivate,
		TraitLastPrivate, TraitDynamicPrivate:
		return true
	}
	return false
}

// IsNoDependence reports whether the kind contributes no dependence.
func (k TraitKind) IsNoDependence() bool {
	switch k {
	case TraitNoAccess, TraitReadonly, TraitShared:
		return true
	}
	return false
}

// IsDependence reports whether the kind names a data dependence.
func (k TraitKind) IsDependence() bool {
	switch k {
	case TraitFlow, TraitAnti, TraitOutput:
		return true
	}
	return false
}

// DIMemoryTrait is one dependence classification of a debug-level memory
// inside a loop, with the source locations that caused it.
type DIMemoryTrait struct {
	Kind   TraitKind
	Causes []DebugLoc
}

// CausedBy reports whether any recorded cause matches loc.
func (tr *DIMemoryTrait) CausedBy(loc DebugLoc) bool {
	for _, c := range tr.Causes {
		if c == loc {
			return true
		}
	}
	return false
}

// DIAliasTrait groups the traits of the debug memories that share one
// alias tree node.
type DIAliasTrait struct {
	Memories map[*DIMemory][]*DIMemoryTrait
}

// Find returns the traits recorded for mem, or nil.
func (at *DIAliasTrait) Find(mem *DIMemory) []*DIMemoryTrait {
	if at == nil {
		return nil
	}
	return at.Memories[mem]
}

// Contains reports whether the trait set mentions mem at all.
func (at *DIAliasTrait) Contains(mem *DIMemory) bool {
	if at == nil {
		return false
	}
	_, ok := at.Memories[mem]
	return ok
}

// DIDependenceSet is the per-loop collection of alias traits.
type DIDependenceSet []*DIAliasTrait

// DIDependenceInfo maps each analysed loop to its dependence set.
type DIDependenceInfo map[*Loop]DIDependenceSet
