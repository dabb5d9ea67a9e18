// Package scfg builds Source Control Flow Graphs over C function bodies.
// Basic blocks hold ordered node-ops describing statements, declarations
// and references to ops evaluated in other blocks.
package scfg

import (
	"fmt"
	"strings"

	"github.com/oUaTEnCi/tsar/pkg/astutil"
)

// OpType discriminates the three node-op shapes.
type OpType string

const (
	OpNative    OpType = "native"    // a leaf statement
	OpWrapper   OpType = "wrapper"   // a statement with child leaves
	OpReference OpType = "reference" // a named back-reference to another op
)

// NodeOp is one operation inside a source basic block.
type NodeOp struct {
	Type   OpType
	Stmt   *astutil.Stmt // native and wrapper ops
	Label  string        // display override, e.g. "if (x > 0)"
	Leaves []*NodeOp     // wrapper ops: sub-expression evaluation order
	Target *NodeOp       // reference ops
	Name   string        // reference ops: display name

	// Referred marks ops that some reference op points back to.
	Referred bool
}

// NewNative creates a leaf op for a statement.
func NewNative(stmt *astutil.Stmt, label string) *NodeOp {
	return &NodeOp{Type: OpNative, Stmt: stmt, Label: label}
}

// NewWrapper creates a wrapper op for a statement with sub-expression
// leaves appended later.
func NewWrapper(stmt *astutil.Stmt, label string) *NodeOp {
	return &NodeOp{Type: OpWrapper, Stmt: stmt, Label: label}
}

// NewReference creates a reference op pointing at target and marks the
// target as referred.
func NewReference(target *NodeOp, name string) *NodeOp {
	target.Referred = true
	return &NodeOp{Type: OpReference, Target: target, Name: name}
}

// Addr returns a stable per-op identifier. Ops backed by an AST node use
// the node's position; synthetic ops use their own address.
func (op *NodeOp) Addr() string {
	if op.Stmt != nil {
		return op.Stmt.Addr()
	}
	return fmt.Sprintf("%p", op)
}

// String renders the op the way graph printers display it.
func (op *NodeOp) String() string {
	var sb strings.Builder
	if op.Referred {
		sb.WriteString("<ref_decl_" + op.Addr())
		switch op.Type {
		case OpNative:
			sb.WriteString("_NATIVE_> - ")
		case OpWrapper:
			sb.WriteString("_WRAPPER_> - ")
		case OpReference:
			sb.WriteString("_REFERENCE_> - ")
		}
	}
	switch op.Type {
	case OpReference:
		sb.WriteString("<" + op.Name + op.Target.Addr() + "_REFERENCE_>")
	default:
		sb.WriteString(op.display())
	}
	return sb.String()
}

func (op *NodeOp) display() string {
	if op.Label != "" {
		return op.Label
	}
	if op.Stmt != nil {
		return firstLine(op.Stmt.Text())
	}
	return "<empty>"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i]) + " ..."
	}
	return s
}

// SourceBasicBlock is an ordered op sequence owned by one default node.
type SourceBasicBlock struct {
	ops []*NodeOp
}

// Ops returns the op list in evaluation order.
func (b *SourceBasicBlock) Ops() []*NodeOp { return b.ops }

// Size returns the number of ops.
func (b *SourceBasicBlock) Size() int { return len(b.ops) }

// Append adds ops at the end of the block.
func (b *SourceBasicBlock) Append(ops ...*NodeOp) {
	b.ops = append(b.ops, ops...)
}

// Decrease truncates the block to n ops.
func (b *SourceBasicBlock) Decrease(n int) {
	b.ops = b.ops[:n]
}

// String renders the block as one line per op.
func (b *SourceBasicBlock) String() string {
	var lines []string
	for _, op := range b.ops {
		lines = append(lines, op.String())
	}
	return strings.Join(lines, "\n")
}
