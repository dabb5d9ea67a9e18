package scfg

import (
	"fmt"
	"sort"

	"github.com/oUaTEnCi/tsar/pkg/astutil"
	"github.com/oUaTEnCi/tsar/pkg/graph"
)

// Diagnostic records an input defect found during construction. Defects
// never abort the build; the affected construct degrades conservatively.
type Diagnostic struct {
	Line    int
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: %s", d.Line, d.Message)
}

// markedOut is a branch exit waiting to be connected to whichever block
// comes next.
type markedOut struct {
	node graph.NodeID
	kind EdgeKind
}

type labelSite struct {
	name    string
	node    graph.NodeID
	opIndex int
}

type gotoSite struct {
	node    graph.NodeID
	opIndex int
	label   string
	line    int
}

// Builder lowers one C function body into an SCFG in a single cooperative
// pass over the AST, followed by label patching, unreachable elimination
// and entry insertion.
type Builder struct {
	s *SCFG

	cur     graph.NodeID
	pending []markedOut

	continueOut [][]graph.NodeID
	breakOut    [][]graph.NodeID

	labels []labelSite
	gotos  []gotoSite

	diags []Diagnostic
}

// Build constructs the SCFG for the named function in file.
func Build(file *astutil.File, functionName string) (*SCFG, []Diagnostic, error) {
	body, ok := file.FunctionBody(functionName)
	if !ok {
		return nil, nil, fmt.Errorf("function %q not found", functionName)
	}
	b := &Builder{s: New(functionName), cur: graph.InvalidNode}
	b.pending = []markedOut{{b.s.Start, EdgeDefault}}
	b.parseStmt(body)

	// Every open path terminates at Stop.
	for _, out := range b.flush() {
		b.s.Bind(out.node, b.s.Stop, out.kind)
	}

	b.processLabels()
	b.eliminateUnreached()
	b.s.EmplaceEntry()
	b.s.RecalculatePredMap()
	return b.s, b.diags, nil
}

// ensureBlock returns the current default node, creating one and wiring
// all pending outs into it if the previous block was closed.
func (b *Builder) ensureBlock() graph.NodeID {
	if b.cur != graph.InvalidNode {
		return b.cur
	}
	id := b.s.EmplaceDefault()
	for _, out := range b.pending {
		b.s.Bind(out.node, id, out.kind)
	}
	b.pending = nil
	b.cur = id
	return id
}

// flush closes the current flow and returns every exit that still awaits
// a target: the pending outs plus the live current block.
func (b *Builder) flush() []markedOut {
	outs := b.pending
	if b.cur != graph.InvalidNode {
		outs = append(outs, markedOut{b.cur, EdgeDefault})
	}
	b.pending = nil
	b.cur = graph.InvalidNode
	return outs
}

func (b *Builder) parseStmt(stmt *astutil.Stmt) {
	switch stmt.Kind() {
	case astutil.KindCompound:
		for _, child := range stmt.NamedChildren() {
			b.parseStmt(child)
		}
	case astutil.KindIf:
		b.parseIf(stmt)
	case astutil.KindWhile:
		b.parseWhile(stmt)
	case astutil.KindDo:
		b.parseDo(stmt)
	case astutil.KindFor:
		b.parseFor(stmt)
	case astutil.KindSwitch:
		b.parseSwitch(stmt)
	case astutil.KindBreak:
		b.parseBreak(stmt)
	case astutil.KindContinue:
		b.parseContinue(stmt)
	case astutil.KindReturn:
		b.parseReturn(stmt)
	case astutil.KindGoto:
		b.parseGoto(stmt)
	case astutil.KindLabel:
		b.parseLabel(stmt)
	case astutil.KindDecl:
		b.parseDecl(stmt)
	case astutil.KindExpr:
		b.parseExprStmt(stmt)
	case astutil.KindCase:
		// Case labels outside a switch body (Duff-style devices).
		b.diag(stmt, "case label outside the enclosing switch body")
		b.appendWrapper(stmt)
	default:
		b.diag(stmt, "unsupported construct "+stmt.Type())
		b.appendWrapper(stmt)
	}
}

// parseCondition lowers a controlling expression, splitting short-circuit
// operators into separate blocks, and returns the branch exits for the
// true and false outcome of the whole expression.
func (b *Builder) parseCondition(expr *astutil.Stmt) (trueOuts, falseOuts []markedOut) {
	if op, ok := expr.IsShortCircuit(); ok {
		left, right := expr.Left(), expr.Right()
		if left != nil && right != nil {
			tL, fL := b.parseCondition(left)
			b.cur = graph.InvalidNode
			switch op {
			case "&&":
				b.pending = tL
				tR, fR := b.parseCondition(right)
				return tR, append(fL, fR...)
			case "||":
				b.pending = fL
				tR, fR := b.parseCondition(right)
				return append(tL, tR...), fR
			}
		}
	}
	id := b.ensureBlock()
	b.s.Block(id).Append(b.buildWrapper(expr))
	b.cur = id
	return []markedOut{{id, EdgeTrue}}, []markedOut{{id, EdgeFalse}}
}

func (b *Builder) parseIf(stmt *astutil.Stmt) {
	cond := stmt.Condition()
	if cond == nil {
		b.diag(stmt, "if statement without a condition")
		b.appendWrapper(stmt)
		return
	}
	trueOuts, falseOuts := b.parseCondition(cond)
	b.cur = graph.InvalidNode

	b.pending = trueOuts
	if then := stmt.Then(); then != nil {
		b.parseStmt(then)
	}
	thenOuts := b.flush()

	if els := stmt.Else(); els != nil {
		b.pending = falseOuts
		b.parseStmt(els)
		elseOuts := b.flush()
		b.pending = append(thenOuts, elseOuts...)
	} else {
		b.pending = append(thenOuts, falseOuts...)
	}
}

func (b *Builder) parseWhile(stmt *astutil.Stmt) {
	cond := stmt.Condition()
	if cond == nil {
		b.diag(stmt, "while statement without a condition")
		b.appendWrapper(stmt)
		return
	}
	b.pending = b.flush()
	header := b.ensureBlock()
	trueOuts, falseOuts := b.parseCondition(cond)
	b.cur = graph.InvalidNode

	b.pushLoop()
	b.pending = trueOuts
	if body := stmt.Body(); body != nil {
		b.parseStmt(body)
	}
	for _, out := range b.flush() {
		b.s.Bind(out.node, header, out.kind)
	}
	continues, breaks := b.popLoop()
	for _, c := range continues {
		b.s.Bind(c, header, EdgeContinue)
	}
	b.pending = falseOuts
	for _, br := range breaks {
		b.pending = append(b.pending, markedOut{br, EdgeBreak})
	}
}

func (b *Builder) parseDo(stmt *astutil.Stmt) {
	b.pushLoop()
	b.pending = b.flush()
	bodyStart := b.ensureBlock()
	if body := stmt.Body(); body != nil {
		b.parseStmt(body)
	}
	b.pending = b.flush()
	header := b.ensureBlock()
	var trueOuts, falseOuts []markedOut
	if cond := stmt.Condition(); cond != nil {
		trueOuts, falseOuts = b.parseCondition(cond)
	} else {
		b.diag(stmt, "do statement without a condition")
		falseOuts = []markedOut{{header, EdgeDefault}}
	}
	b.cur = graph.InvalidNode
	for _, out := range trueOuts {
		b.s.Bind(out.node, bodyStart, out.kind)
	}
	continues, breaks := b.popLoop()
	for _, c := range continues {
		b.s.Bind(c, header, EdgeContinue)
	}
	b.pending = falseOuts
	for _, br := range breaks {
		b.pending = append(b.pending, markedOut{br, EdgeBreak})
	}
}

func (b *Builder) parseFor(stmt *astutil.Stmt) {
	if init := stmt.ForInit(); init != nil {
		id := b.ensureBlock()
		b.s.Block(id).Append(b.buildWrapper(init))
	}
	b.pending = b.flush()
	header := b.ensureBlock()

	var trueOuts, falseOuts []markedOut
	if cond := stmt.Condition(); cond != nil {
		trueOuts, falseOuts = b.parseCondition(cond)
	} else {
		// for (;;) runs unconditionally; the only exits are breaks.
		trueOuts = []markedOut{{header, EdgeDefault}}
	}
	b.cur = graph.InvalidNode

	b.pushLoop()
	b.pending = trueOuts
	if body := stmt.Body(); body != nil {
		b.parseStmt(body)
	}
	bodyOuts := b.flush()
	continues, breaks := b.popLoop()

	backTarget := header
	if update := stmt.ForUpdate(); update != nil {
		b.pending = bodyOuts
		inc := b.ensureBlock()
		b.s.Block(inc).Append(b.buildWrapper(update))
		for _, out := range b.flush() {
			b.s.Bind(out.node, header, out.kind)
		}
		backTarget = inc
	} else {
		for _, out := range bodyOuts {
			b.s.Bind(out.node, header, out.kind)
		}
	}
	for _, c := range continues {
		b.s.Bind(c, backTarget, EdgeContinue)
	}
	b.pending = falseOuts
	for _, br := range breaks {
		b.pending = append(b.pending, markedOut{br, EdgeBreak})
	}
}

func (b *Builder) parseSwitch(stmt *astutil.Stmt) {
	cond := stmt.Condition()
	id := b.ensureBlock()
	label := "switch (?)"
	if cond != nil {
		label = "switch (" + cond.Text() + ")"
	}
	b.s.Block(id).Append(NewWrapper(stmt, label))
	condNode := id
	b.cur = graph.InvalidNode
	b.pending = nil

	b.breakOut = append(b.breakOut, nil)
	hasDefault := false

	body := stmt.Body()
	if body != nil {
		for _, child := range body.NamedChildren() {
			if child.Kind() != astutil.KindCase {
				// Statements between case labels keep the fallthrough flow.
				b.parseStmt(child)
				continue
			}
			// Close the previous case into the fallthrough edge, then open
			// the labelled block.
			b.pending = b.flush()
			caseBlock := b.ensureBlock()
			if child.IsDefaultCase() {
				b.s.Block(caseBlock).Append(NewNative(child, "default:"))
				b.s.Bind(condNode, caseBlock, EdgeFalse)
				hasDefault = true
			} else {
				caseLabel := "case ?:"
				if v := child.CaseValue(); v != nil {
					caseLabel = "case " + v.Text() + ":"
				}
				b.s.Block(caseBlock).Append(NewNative(child, caseLabel))
				b.s.Bind(condNode, caseBlock, EdgeToCase)
			}
			for _, sub := range child.CaseBody() {
				b.parseStmt(sub)
			}
		}
	}

	b.pending = b.flush()
	breaks := b.breakOut[len(b.breakOut)-1]
	b.breakOut = b.breakOut[:len(b.breakOut)-1]
	for _, br := range breaks {
		b.pending = append(b.pending, markedOut{br, EdgeBreak})
	}
	if !hasDefault {
		b.pending = append(b.pending, markedOut{condNode, EdgeFalse})
	}
}

func (b *Builder) parseBreak(stmt *astutil.Stmt) {
	if len(b.breakOut) == 0 {
		b.diag(stmt, "break outside of a loop or switch")
		return
	}
	id := b.ensureBlock()
	top := len(b.breakOut) - 1
	b.breakOut[top] = append(b.breakOut[top], id)
	b.cur = graph.InvalidNode
}

func (b *Builder) parseContinue(stmt *astutil.Stmt) {
	if len(b.continueOut) == 0 {
		b.diag(stmt, "continue outside of a loop")
		return
	}
	id := b.ensureBlock()
	top := len(b.continueOut) - 1
	b.continueOut[top] = append(b.continueOut[top], id)
	b.cur = graph.InvalidNode
}

func (b *Builder) parseReturn(stmt *astutil.Stmt) {
	id := b.ensureBlock()
	b.s.Block(id).Append(NewNative(stmt, ""))
	b.s.Bind(id, b.s.Stop, EdgeDefault)
	b.cur = graph.InvalidNode
	b.pending = nil
}

func (b *Builder) parseGoto(stmt *astutil.Stmt) {
	id := b.ensureBlock()
	b.s.Block(id).Append(NewNative(stmt, ""))
	b.gotos = append(b.gotos, gotoSite{
		node:    id,
		opIndex: b.s.Block(id).Size() - 1,
		label:   stmt.LabelName(),
		line:    stmt.Line(),
	})
	b.cur = graph.InvalidNode
	b.pending = nil
}

func (b *Builder) parseLabel(stmt *astutil.Stmt) {
	id := b.ensureBlock()
	b.labels = append(b.labels, labelSite{
		name:    stmt.LabelName(),
		node:    id,
		opIndex: b.s.Block(id).Size(),
	})
	for _, sub := range stmt.LabeledStmt() {
		b.parseStmt(sub)
	}
}

func (b *Builder) parseDecl(stmt *astutil.Stmt) {
	b.appendWrapper(stmt)
}

func (b *Builder) parseExprStmt(stmt *astutil.Stmt) {
	expr := stmt.Expr()
	if _, ok := expr.IsShortCircuit(); ok {
		// The value is unused; only the evaluation-order blocks matter.
		trueOuts, falseOuts := b.parseCondition(expr)
		b.cur = graph.InvalidNode
		b.pending = append(trueOuts, falseOuts...)
		return
	}
	if expr.IsConditionalExpr() {
		b.parseConditionalExpr(stmt, expr)
		return
	}
	// An assignment whose right side is a conditional still splits the
	// arm evaluation into separate blocks.
	if expr.Type() == "assignment_expression" {
		if r := expr.Right(); r != nil {
			if rr := r.Expr(); rr.IsConditionalExpr() {
				b.parseConditionalExpr(stmt, rr)
				return
			}
		}
	}
	b.appendWrapper(stmt)
}

// parseConditionalExpr lowers stmt whose expression is cond ? cons : alt.
// Each arm is evaluated in its own block; the consuming statement in the
// join block refers back to the arm ops through reference ops.
func (b *Builder) parseConditionalExpr(stmt, expr *astutil.Stmt) {
	cond, cons, alt := expr.CondParts()
	if cond == nil || cons == nil || alt == nil {
		b.appendWrapper(stmt)
		return
	}
	trueOuts, falseOuts := b.parseCondition(cond)
	b.cur = graph.InvalidNode

	b.pending = trueOuts
	consBlock := b.ensureBlock()
	consOp := b.buildWrapper(cons)
	b.s.Block(consBlock).Append(consOp)
	consOuts := b.flush()

	b.pending = falseOuts
	altBlock := b.ensureBlock()
	altOp := b.buildWrapper(alt)
	b.s.Block(altBlock).Append(altOp)
	altOuts := b.flush()

	b.pending = append(consOuts, altOuts...)
	join := b.ensureBlock()
	wrapper := NewWrapper(stmt, firstLine(stmt.Text()))
	wrapper.Leaves = []*NodeOp{
		NewReference(consOp, "cond_val_"),
		NewReference(altOp, "cond_val_"),
	}
	b.s.Block(join).Append(wrapper)
}

// appendWrapper appends a wrapper op for stmt to the current block.
func (b *Builder) appendWrapper(stmt *astutil.Stmt) {
	id := b.ensureBlock()
	b.s.Block(id).Append(b.buildWrapper(stmt))
}

// buildWrapper creates a wrapper op whose leaves mirror the evaluation
// order of the statement's sub-expressions. Comma expressions flatten
// into consecutive leaves.
func (b *Builder) buildWrapper(stmt *astutil.Stmt) *NodeOp {
	wrapper := NewWrapper(stmt, firstLine(stmt.Text()))
	expr := stmt.Expr()
	if expr.IsCommaExpr() {
		var flatten func(e *astutil.Stmt)
		flatten = func(e *astutil.Stmt) {
			if e == nil {
				return
			}
			if e.IsCommaExpr() {
				flatten(e.Left())
				flatten(e.Right())
				return
			}
			wrapper.Leaves = append(wrapper.Leaves, NewNative(e, firstLine(e.Text())))
		}
		flatten(expr)
		return wrapper
	}
	return wrapper
}

func (b *Builder) pushLoop() {
	b.continueOut = append(b.continueOut, nil)
	b.breakOut = append(b.breakOut, nil)
}

func (b *Builder) popLoop() (continues, breaks []graph.NodeID) {
	continues = b.continueOut[len(b.continueOut)-1]
	b.continueOut = b.continueOut[:len(b.continueOut)-1]
	breaks = b.breakOut[len(b.breakOut)-1]
	b.breakOut = b.breakOut[:len(b.breakOut)-1]
	return continues, breaks
}

func (b *Builder) diag(stmt *astutil.Stmt, msg string) {
	b.diags = append(b.diags, Diagnostic{Line: stmt.Line(), Message: msg})
}

// processLabels splits every label's host node at the recorded op index
// (largest index first, so earlier sites stay valid) and patches each
// goto with a default edge to its label's node.
func (b *Builder) processLabels() {
	sort.SliceStable(b.labels, func(i, j int) bool {
		return b.labels[i].opIndex > b.labels[j].opIndex
	})

	targets := make(map[string]graph.NodeID)
	for _, site := range b.labels {
		var target graph.NodeID
		if site.opIndex == 0 {
			target = site.node
		} else {
			fresh := b.s.SplitNode(site.node, site.opIndex)
			// Goto sites recorded past the split point moved with the ops.
			for i := range b.gotos {
				if b.gotos[i].node == site.node && b.gotos[i].opIndex >= site.opIndex {
					b.gotos[i].node = fresh
					b.gotos[i].opIndex -= site.opIndex
				}
			}
			for i := range b.labels {
				if b.labels[i].node == site.node && b.labels[i].opIndex > site.opIndex {
					b.labels[i].node = fresh
					b.labels[i].opIndex -= site.opIndex
				}
			}
			target = fresh
		}
		if _, dup := targets[site.name]; !dup {
			targets[site.name] = target
		}
	}

	for _, g := range b.gotos {
		target, ok := targets[g.label]
		if !ok {
			b.diags = append(b.diags, Diagnostic{
				Line:    g.line,
				Message: fmt.Sprintf("goto to undeclared label %q", g.label),
			})
			b.s.Bind(g.node, b.s.Stop, EdgeDefault)
			continue
		}
		b.s.Bind(g.node, target, EdgeDefault)
	}
}

// eliminateUnreached removes every node with no path from Start.
func (b *Builder) eliminateUnreached() {
	reach := b.s.Reachable()
	for _, id := range b.s.G.Nodes() {
		if reach[id] || id == b.s.Start || id == b.s.Stop {
			continue
		}
		b.s.DeleteNode(id)
	}
}
