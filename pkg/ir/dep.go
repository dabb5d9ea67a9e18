package ir

// Direction is one component of a loop-level direction vector.
type Direction string

const (
	DirAll Direction = "*" // unknown or mixed
	DirLT  Direction = "<"
	DirEQ  Direction = "="
	DirGT  Direction = ">"
)

// Dependence is the result of a low-level dependence test between two
// memory instructions.
type Dependence struct {
	Confused        bool
	Ordered         bool
	LoopIndependent bool
	Dirs            []Direction // one component per common loop level
}

// IsConfused reports whether the tester could not disambiguate the pair.
func (d *Dependence) IsConfused() bool { return d.Confused }

// IsOrdered reports whether the tester produced a direction vector.
func (d *Dependence) IsOrdered() bool { return d.Ordered }

// IsLoopIndependent reports whether the dependence does not cross an
// iteration boundary.
func (d *Dependence) IsLoopIndependent() bool { return d.LoopIndependent }

// Levels returns the number of direction components.
func (d *Dependence) Levels() int { return len(d.Dirs) }

// Direction returns the component for a 1-based loop level.
func (d *Dependence) Direction(level int) Direction {
	if level < 1 || level > len(d.Dirs) {
		return DirAll
	}
	return d.Dirs[level-1]
}

// DependenceOracle answers dependence queries between instruction pairs.
// A nil result means the pair is independent.
type DependenceOracle interface {
	Depends(src, dst *Instruction) *Dependence
}

// PairOracle is a scripted oracle backed by an explicit pair table; the
// zero value reports independence for every pair.
type PairOracle struct {
	table map[[2]int]*Dependence
}

// Set records the dependence for the ordered pair (src, dst).
func (o *PairOracle) Set(src, dst *Instruction, dep *Dependence) {
	if o.table == nil {
		o.table = make(map[[2]int]*Dependence)
	}
	o.table[[2]int{src.ID, dst.ID}] = dep
}

// Depends implements DependenceOracle.
func (o *PairOracle) Depends(src, dst *Instruction) *Dependence {
	if o.table == nil {
		return nil
	}
	return o.table[[2]int{src.ID, dst.ID}]
}

// BaseOracle reports an ordered, loop-independent dependence for every
// pair of memory instructions that touch the same named base and at
// least one of which writes. It is the conservative default the CLI uses
// when no external dependence analysis is attached.
type BaseOracle struct{}

// Depends implements DependenceOracle.
func (BaseOracle) Depends(src, dst *Instruction) *Dependence {
	if src.Mem == nil || dst.Mem == nil {
		return nil
	}
	if src.Mem.Base != dst.Mem.Base {
		return nil
	}
	if !src.MayWrite && !dst.MayWrite {
		return nil
	}
	return &Dependence{Ordered: true, LoopIndependent: true}
}
