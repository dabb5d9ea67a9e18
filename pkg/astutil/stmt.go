package astutil

import (
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
)

// Kind classifies a statement for CFG construction.
type Kind string

const (
	KindCompound Kind = "compound"
	KindIf       Kind = "if"
	KindWhile    Kind = "while"
	KindDo       Kind = "do"
	KindFor      Kind = "for"
	KindSwitch   Kind = "switch"
	KindCase     Kind = "case"
	KindBreak    Kind = "break"
	KindContinue Kind = "continue"
	KindReturn   Kind = "return"
	KindGoto     Kind = "goto"
	KindLabel    Kind = "label"
	KindDecl     Kind = "decl"
	KindExpr     Kind = "expr"
	KindOther    Kind = "other"
)

// Stmt is a statement or expression node of the C AST.
type Stmt struct {
	n   *sitter.Node
	src []byte
}

// Kind classifies the statement.
func (s *Stmt) Kind() Kind {
	switch s.n.Type() {
	case "compound_statement":
		return KindCompound
	case "if_statement":
		return KindIf
	case "while_statement":
		return KindWhile
	case "do_statement":
		return KindDo
	case "for_statement":
		return KindFor
	case "switch_statement":
		return KindSwitch
	case "case_statement":
		return KindCase
	case "break_statement":
		return KindBreak
	case "continue_statement":
		return KindContinue
	case "return_statement":
		return KindReturn
	case "goto_statement":
		return KindGoto
	case "labeled_statement":
		return KindLabel
	case "declaration":
		return KindDecl
	case "expression_statement":
		return KindExpr
	default:
		return KindOther
	}
}

// Type exposes the raw tree-sitter node type.
func (s *Stmt) Type() string { return s.n.Type() }

// Text returns the source text of the statement.
func (s *Stmt) Text() string { return text(s.n, s.src) }

// Line returns the 1-based source line the statement starts on.
func (s *Stmt) Line() int { return int(s.n.StartPoint().Row) + 1 }

// Addr returns a stable per-node identifier derived from the node's
// position in the source buffer.
func (s *Stmt) Addr() string { return fmt.Sprintf("0x%x", s.n.StartByte()) }

// NamedChildren returns the named child statements in source order.
func (s *Stmt) NamedChildren() []*Stmt {
	res := make([]*Stmt, 0, s.n.NamedChildCount())
	for i := 0; i < int(s.n.NamedChildCount()); i++ {
		res = append(res, &Stmt{n: s.n.NamedChild(i), src: s.src})
	}
	return res
}

// Field returns the named grammar field, or nil.
func (s *Stmt) Field(name string) *Stmt {
	child := s.n.ChildByFieldName(name)
	if child == nil {
		return nil
	}
	return &Stmt{n: child, src: s.src}
}

// Condition returns the controlling expression of if/while/do/for/switch.
func (s *Stmt) Condition() *Stmt {
	cond := s.Field("condition")
	if cond == nil {
		return nil
	}
	// Unwrap parenthesized_expression to the expression itself.
	if cond.n.Type() == "parenthesized_expression" && cond.n.NamedChildCount() > 0 {
		return &Stmt{n: cond.n.NamedChild(0), src: s.src}
	}
	return cond
}

// Then returns the consequence branch of an if statement.
func (s *Stmt) Then() *Stmt { return s.Field("consequence") }

// Else returns the alternative branch of an if statement, unwrapping the
// else_clause wrapper used by newer grammars.
func (s *Stmt) Else() *Stmt {
	alt := s.Field("alternative")
	if alt == nil {
		return nil
	}
	if alt.n.Type() == "else_clause" {
		for i := 0; i < int(alt.n.NamedChildCount()); i++ {
			child := alt.n.NamedChild(i)
			if child.IsNamed() {
				return &Stmt{n: child, src: s.src}
			}
		}
		return nil
	}
	return alt
}

// Body returns the body of a loop or switch. Older grammars do not mark
// the loop body as a field, so fall back to the last named child.
func (s *Stmt) Body() *Stmt {
	if body := s.Field("body"); body != nil {
		return body
	}
	count := int(s.n.NamedChildCount())
	if count == 0 {
		return nil
	}
	return &Stmt{n: s.n.NamedChild(count - 1), src: s.src}
}

// ForInit and ForUpdate return the init and update clauses of a for.
func (s *Stmt) ForInit() *Stmt   { return s.Field("initializer") }
func (s *Stmt) ForUpdate() *Stmt { return s.Field("update") }

// CaseValue returns the case expression; nil for a default label.
func (s *Stmt) CaseValue() *Stmt { return s.Field("value") }

// IsDefaultCase reports whether a case_statement is the default label.
func (s *Stmt) IsDefaultCase() bool {
	return s.n.Type() == "case_statement" && s.Field("value") == nil
}

// CaseBody returns the statements following a case label, excluding the
// value expression.
func (s *Stmt) CaseBody() []*Stmt {
	var res []*Stmt
	value := s.n.ChildByFieldName("value")
	for i := 0; i < int(s.n.NamedChildCount()); i++ {
		child := s.n.NamedChild(i)
		if value != nil && sameNode(child, value) {
			continue
		}
		res = append(res, &Stmt{n: child, src: s.src})
	}
	return res
}

// sameNode compares nodes by source extent; tree-sitter hands out fresh
// wrappers on every traversal, so pointer identity is useless.
func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

// LabelName returns the label of a labeled_statement or goto_statement.
func (s *Stmt) LabelName() string {
	if label := s.Field("label"); label != nil {
		return label.Text()
	}
	return ""
}

// LabeledStmt returns the statement a label is attached to, or nil for a
// bare label.
func (s *Stmt) LabeledStmt() []*Stmt {
	label := s.n.ChildByFieldName("label")
	var res []*Stmt
	for i := 0; i < int(s.n.NamedChildCount()); i++ {
		child := s.n.NamedChild(i)
		if label != nil && sameNode(child, label) {
			continue
		}
		res = append(res, &Stmt{n: child, src: s.src})
	}
	return res
}

// Expression kinds that impose evaluation-order structure.

// IsShortCircuit reports whether the expression is a && or || binary
// expression, returning the operator.
func (s *Stmt) IsShortCircuit() (string, bool) {
	n := s.unwrapExprStmt()
	if n.Type() != "binary_expression" {
		return "", false
	}
	op := n.ChildByFieldName("operator")
	if op == nil {
		return "", false
	}
	switch text(op, s.src) {
	case "&&":
		return "&&", true
	case "||":
		return "||", true
	}
	return "", false
}

// Left and Right return the operand expressions of a binary or comma
// expression.
func (s *Stmt) Left() *Stmt {
	n := s.unwrapExprStmt()
	if child := n.ChildByFieldName("left"); child != nil {
		return &Stmt{n: child, src: s.src}
	}
	return nil
}

func (s *Stmt) Right() *Stmt {
	n := s.unwrapExprStmt()
	if child := n.ChildByFieldName("right"); child != nil {
		return &Stmt{n: child, src: s.src}
	}
	return nil
}

// IsConditionalExpr reports whether the expression is a ?: expression.
func (s *Stmt) IsConditionalExpr() bool {
	return s.unwrapExprStmt().Type() == "conditional_expression"
}

// IsCommaExpr reports whether the expression is a comma expression.
func (s *Stmt) IsCommaExpr() bool {
	return s.unwrapExprStmt().Type() == "comma_expression"
}

// CondParts returns condition, consequence and alternative of a ?: node.
func (s *Stmt) CondParts() (cond, cons, alt *Stmt) {
	n := s.unwrapExprStmt()
	wrap := func(field string) *Stmt {
		if child := n.ChildByFieldName(field); child != nil {
			return &Stmt{n: child, src: s.src}
		}
		return nil
	}
	return wrap("condition"), wrap("consequence"), wrap("alternative")
}

// Expr returns the expression below an expression_statement, or s itself.
func (s *Stmt) Expr() *Stmt {
	return &Stmt{n: s.unwrapExprStmt(), src: s.src}
}

func (s *Stmt) unwrapExprStmt() *sitter.Node {
	n := s.n
	for n.Type() == "expression_statement" || n.Type() == "parenthesized_expression" {
		if n.NamedChildCount() == 0 {
			return n
		}
		n = n.NamedChild(0)
	}
	return n
}

// Equal reports node identity.
func (s *Stmt) Equal(other *Stmt) bool {
	if s == nil || other == nil {
		return s == other
	}
	return sameNode(s.n, other.n)
}
