package pdg

import (
	"github.com/oUaTEnCi/tsar/pkg/ir"
)

// confirmMemoryIntersect cross-checks a confused low-level dependence
// against the debug-metadata traits. It returns whether a dependence
// exists at all and, when the trait lookup succeeded, the trait lists
// attributed to the forward (src -> dst) and backward direction.
//
// Empty lists with hasDep true mean the lookup was inconclusive and the
// caller should fall back to the raw dependence object.
func (b *builder) confirmMemoryIntersect(src, dst *ir.Instruction) (hasDep bool, fw, bw []DITraitRef) {
	if src.Mem == nil || dst.Mem == nil || b.in.Alias == nil {
		return true, nil, nil
	}

	srcEM := b.in.Alias.Find(*src.Mem)
	dstEM := b.in.Alias.Find(*dst.Mem)
	if srcEM == nil || dstEM == nil || srcEM.DI == nil || dstEM.DI == nil {
		// No backing debug memory: the edge is assumed to exist.
		return true, nil, nil
	}
	if b.in.Alias.Relation(srcEM, dstEM) == ir.RelationUnreachable {
		return false, nil, nil
	}
	if b.in.ServerAlias != nil {
		sSrc := b.in.ServerAlias.Find(*src.Mem)
		sDst := b.in.ServerAlias.Find(*dst.Mem)
		if sSrc != nil && sDst != nil &&
			b.in.ServerAlias.Relation(sSrc, sDst) == ir.RelationUnreachable {
			return false, nil, nil
		}
	}

	foundNoDep := false
	for _, loop := range b.in.Loops.CommonLoops(src.Block, dst.Block) {
		set, ok := b.in.DIDeps[loop]
		if !ok {
			continue
		}
		for _, aliasTrait := range set {
			if !aliasTrait.Contains(srcEM.DI) {
				continue
			}
			traits := aliasTrait.Find(dstEM.DI)
			if traits == nil {
				continue
			}
			for _, tr := range traits {
				switch {
				case tr.Kind.IsNoDependence():
					foundNoDep = true
				case tr.Kind.IsPrivatization():
					ref := DITraitRef{Memory: dstEM.DI, Trait: tr}
					fw = append(fw, ref)
					bw = append(bw, ref)
				case tr.Kind.IsDependence():
					fw, bw = b.attributeDependence(tr, src, dst, dstEM.DI, fw, bw)
				}
			}
		}
	}

	if len(fw) > 0 || len(bw) > 0 {
		return true, fw, bw
	}
	if foundNoDep {
		return false, nil, nil
	}
	return true, nil, nil
}

// attributeDependence decides which direction a flow/anti/output trait
// belongs to: by matching its causes against the instruction locations,
// or, failing that, by the direction the data moves between a disjoint
// reader/writer pair.
func (b *builder) attributeDependence(tr *ir.DIMemoryTrait, src, dst *ir.Instruction,
	mem *ir.DIMemory, fw, bw []DITraitRef) (outFw, outBw []DITraitRef) {
	ref := DITraitRef{Memory: mem, Trait: tr}
	matched := false
	if src.Loc.IsValid() && tr.CausedBy(src.Loc) {
		fw = append(fw, ref)
		matched = true
	}
	if dst.Loc.IsValid() && tr.CausedBy(dst.Loc) {
		bw = append(bw, ref)
		matched = true
	}
	if matched {
		return fw, bw
	}

	srcReadOnly := src.MayRead && !src.MayWrite
	srcWriteOnly := src.MayWrite && !src.MayRead
	dstReadOnly := dst.MayRead && !dst.MayWrite
	dstWriteOnly := dst.MayWrite && !dst.MayRead

	switch {
	case srcWriteOnly && dstReadOnly:
		// Writer feeds reader: flow goes with the data, anti against it.
		switch tr.Kind {
		case ir.TraitFlow:
			fw = append(fw, ref)
		case ir.TraitAnti:
			bw = append(bw, ref)
		}
	case srcReadOnly && dstWriteOnly:
		// Here the data moves from dst back to src.
		switch tr.Kind {
		case ir.TraitFlow:
			bw = append(bw, ref)
		case ir.TraitAnti:
			fw = append(fw, ref)
		}
	case srcWriteOnly && dstWriteOnly:
		if tr.Kind == ir.TraitOutput {
			fw = append(fw, ref)
			bw = append(bw, ref)
		}
	}
	return fw, bw
}
