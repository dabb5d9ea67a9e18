// Package ir models the low-level, instruction-addressed view of a
// function the PDG builder consumes, together with the analysis oracles
// (dependence tester, alias trees, loop info, target library info) that
// surrounding passes provide.
package ir

import (
	"fmt"
	"strings"
)

// Opcode names the operation an instruction performs.
type Opcode string

const (
	OpAlloca Opcode = "alloca"
	OpConst  Opcode = "const"
	OpLoad   Opcode = "load"
	OpStore  Opcode = "store"
	OpAdd    Opcode = "add"
	OpSub    Opcode = "sub"
	OpMul    Opcode = "mul"
	OpDiv    Opcode = "div"
	OpCmp    Opcode = "cmp"
	OpBr     Opcode = "br"
	OpCondBr Opcode = "condbr"
	OpRet    Opcode = "ret"
	OpCall   Opcode = "call"
	OpPhi    Opcode = "phi"
	OpDbg    Opcode = "dbg" // debug intrinsic, shadowed in rendering
)

// DebugLoc ties an instruction back to the source position it lowers.
type DebugLoc struct {
	Line int
	Col  int
}

// IsValid reports whether the location carries real position info.
func (l DebugLoc) IsValid() bool { return l.Line > 0 }

func (l DebugLoc) String() string {
	if l.Col > 0 {
		return fmt.Sprintf("%d:%d", l.Line, l.Col)
	}
	return fmt.Sprintf("%d", l.Line)
}

// MemoryLocation describes the memory an instruction touches.
type MemoryLocation struct {
	Base string // named base object (variable, array, pointer)
	Size int    // access size in bytes; 0 when unknown
}

// Instruction is one low-level operation. Operands reference producing
// instructions; that reference relation is the def-use information the
// PDG builder turns into register edges.
type Instruction struct {
	ID       int
	Op       Opcode
	Name     string // result register, "" for void operations
	Operands []*Instruction
	Block    *BasicBlock

	MayRead  bool
	MayWrite bool
	Callee   string // call instructions: the called function's name
	Loc      DebugLoc
	Mem      *MemoryLocation // nil when no memory is touched
	Text     string          // display form; derived when empty
}

// TouchesMemory reports whether the instruction may read or write memory.
func (i *Instruction) TouchesMemory() bool { return i.MayRead || i.MayWrite }

// IsDebug reports whether the instruction is a debug intrinsic.
func (i *Instruction) IsDebug() bool { return i.Op == OpDbg }

// IsTerminator reports whether the instruction ends its block.
func (i *Instruction) IsTerminator() bool {
	switch i.Op {
	case OpBr, OpCondBr, OpRet:
		return true
	}
	return false
}

func (i *Instruction) String() string {
	if i.Text != "" {
		return i.Text
	}
	var sb strings.Builder
	if i.Name != "" {
		sb.WriteString(i.Name + " = ")
	}
	sb.WriteString(string(i.Op))
	for idx, op := range i.Operands {
		if idx == 0 {
			sb.WriteString(" ")
		} else {
			sb.WriteString(", ")
		}
		if op.Name != "" {
			sb.WriteString(op.Name)
		} else {
			sb.WriteString(fmt.Sprintf("%%%d", op.ID))
		}
	}
	if i.Mem != nil {
		sb.WriteString(" !" + i.Mem.Base)
	}
	return sb.String()
}

// BasicBlock is a maximal straight-line instruction sequence.
type BasicBlock struct {
	Index  int
	Name   string
	Instrs []*Instruction
	Succs  []*BasicBlock
	Preds  []*BasicBlock
	fn     *Function
}

// Parent returns the owning function.
func (b *BasicBlock) Parent() *Function { return b.fn }

// Terminator returns the block's final instruction, or nil for an empty
// block.
func (b *BasicBlock) Terminator() *Instruction {
	if len(b.Instrs) == 0 {
		return nil
	}
	return b.Instrs[len(b.Instrs)-1]
}

func (b *BasicBlock) String() string {
	if b.Name != "" {
		return b.Name
	}
	return fmt.Sprintf("bb%d", b.Index)
}

// Function is a lowered function body.
type Function struct {
	Name   string
	Blocks []*BasicBlock
	nextID int
}

// NewFunction creates an empty function.
func NewFunction(name string) *Function {
	return &Function{Name: name}
}

// Entry returns the first block.
func (f *Function) Entry() *BasicBlock {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// NewBlock appends a fresh block.
func (f *Function) NewBlock(name string) *BasicBlock {
	b := &BasicBlock{Index: len(f.Blocks), Name: name, fn: f}
	f.Blocks = append(f.Blocks, b)
	return b
}

// Append creates an instruction inside block b.
func (f *Function) Append(b *BasicBlock, inst Instruction) *Instruction {
	inst.ID = f.nextID
	f.nextID++
	inst.Block = b
	clone := inst
	b.Instrs = append(b.Instrs, &clone)
	return &clone
}

// Connect records a control edge between blocks.
func (f *Function) Connect(from, to *BasicBlock) {
	from.Succs = append(from.Succs, to)
	to.Preds = append(to.Preds, from)
}

// Instructions iterates every instruction in block order.
func (f *Function) Instructions(visit func(*Instruction)) {
	for _, b := range f.Blocks {
		for _, inst := range b.Instrs {
			visit(inst)
		}
	}
}

// NumInstructions counts the instructions in the function.
func (f *Function) NumInstructions() int {
	n := 0
	for _, b := range f.Blocks {
		n += len(b.Instrs)
	}
	return n
}
