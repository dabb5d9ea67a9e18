package ir

import (
	"fmt"

	"github.com/oUaTEnCi/tsar/pkg/astutil"
)

// LowerResult bundles the demo lowering output: the function plus the
// side information the PDG builder consumes.
type LowerResult struct {
	Func  *Function
	Alias *AliasTree
	Loops *LoopInfo
}

// Lower produces a deliberately small instruction-level rendition of a C
// function body: scalar and array assignments, arithmetic, calls, ifs
// and loops. It exists to drive the dependence pipeline end-to-end from
// source without an external compiler, not to be a compiler itself.
func Lower(file *astutil.File, functionName string) (*LowerResult, error) {
	body, ok := file.FunctionBody(functionName)
	if !ok {
		return nil, fmt.Errorf("function %q not found", functionName)
	}
	lw := &lowerer{
		fn:    NewFunction(functionName),
		alias: NewAliasTree(),
		li:    NewLoopInfo(),
		tmp:   0,
	}
	lw.cur = lw.fn.NewBlock("entry")
	lw.lowerStmt(body)
	if lw.cur != nil {
		lw.emit(Instruction{Op: OpRet})
	}
	return &LowerResult{Func: lw.fn, Alias: lw.alias, Loops: lw.li}, nil
}

type lowerer struct {
	fn    *Function
	alias *AliasTree
	li    *LoopInfo
	cur   *BasicBlock
	loop  *Loop
	tmp   int
}

func (lw *lowerer) emit(inst Instruction) *Instruction {
	if lw.cur == nil {
		lw.cur = lw.newBlock("dead")
	}
	return lw.fn.Append(lw.cur, inst)
}

func (lw *lowerer) newBlock(name string) *BasicBlock {
	b := lw.fn.NewBlock(name)
	if lw.loop != nil {
		lw.li.Assign(b, lw.loop)
	}
	return b
}

func (lw *lowerer) fresh() string {
	lw.tmp++
	return fmt.Sprintf("%%t%d", lw.tmp)
}

func (lw *lowerer) memFor(base string) *MemoryLocation {
	if lw.alias.Find(MemoryLocation{Base: base}) == nil {
		lw.alias.Add(base, nil)
	}
	return &MemoryLocation{Base: base}
}

func (lw *lowerer) lowerStmt(stmt *astutil.Stmt) {
	switch stmt.Kind() {
	case astutil.KindCompound:
		for _, child := range stmt.NamedChildren() {
			lw.lowerStmt(child)
		}
	case astutil.KindDecl:
		lw.lowerDecl(stmt)
	case astutil.KindExpr:
		lw.lowerExpr(stmt.Expr(), stmt.Line())
	case astutil.KindReturn:
		for _, child := range stmt.NamedChildren() {
			lw.lowerExpr(child, stmt.Line())
		}
		lw.emit(Instruction{Op: OpRet, Loc: DebugLoc{Line: stmt.Line()}})
		lw.cur = nil
	case astutil.KindIf:
		lw.lowerIf(stmt)
	case astutil.KindWhile:
		lw.lowerWhile(stmt)
	case astutil.KindFor:
		lw.lowerFor(stmt)
	default:
		// Constructs outside the demo subset become an opaque call so the
		// pipeline still sees their line.
		lw.emit(Instruction{
			Op:       OpCall,
			Name:     lw.fresh(),
			MayRead:  true,
			MayWrite: true,
			Loc:      DebugLoc{Line: stmt.Line()},
			Text:     "opaque " + firstWord(stmt.Type()),
		})
	}
}

func (lw *lowerer) lowerDecl(stmt *astutil.Stmt) {
	for _, child := range stmt.NamedChildren() {
		if child.Type() != "init_declarator" {
			continue
		}
		name := ""
		if d := child.Field("declarator"); d != nil {
			name = d.Text()
		}
		if name == "" {
			continue
		}
		lw.emit(Instruction{
			Op:   OpDbg,
			Loc:  DebugLoc{Line: stmt.Line()},
			Text: "dbg.declare " + name,
		})
		if v := child.Field("value"); v != nil {
			val := lw.lowerValue(v, stmt.Line())
			lw.emit(Instruction{
				Op:       OpStore,
				Operands: operandsOf(val),
				MayWrite: true,
				Mem:      lw.memFor(name),
				Loc:      DebugLoc{Line: stmt.Line()},
			})
		}
	}
}

func (lw *lowerer) lowerExpr(expr *astutil.Stmt, line int) {
	switch expr.Type() {
	case "assignment_expression":
		lhs, rhs := expr.Left(), expr.Right()
		var val *Instruction
		if rhs != nil {
			val = lw.lowerValue(rhs, line)
		}
		if lhs == nil {
			return
		}
		base := baseName(lhs)
		ops := operandsOf(val)
		if idx := subscriptIndex(lhs); idx != nil {
			ops = append(ops, lw.lowerValue(idx, line))
		}
		lw.emit(Instruction{
			Op:       OpStore,
			Operands: ops,
			MayWrite: true,
			Mem:      lw.memFor(base),
			Loc:      DebugLoc{Line: line},
		})
	case "update_expression": // i++ / --i
		base := baseName(expr)
		load := lw.emit(Instruction{
			Op:      OpLoad,
			Name:    lw.fresh(),
			MayRead: true,
			Mem:     lw.memFor(base),
			Loc:     DebugLoc{Line: line},
		})
		one := lw.emit(Instruction{Op: OpConst, Name: lw.fresh(), Text: "const 1"})
		sum := lw.emit(Instruction{
			Op:       OpAdd,
			Name:     lw.fresh(),
			Operands: []*Instruction{load, one},
			Loc:      DebugLoc{Line: line},
		})
		lw.emit(Instruction{
			Op:       OpStore,
			Operands: []*Instruction{sum},
			MayWrite: true,
			Mem:      lw.memFor(base),
			Loc:      DebugLoc{Line: line},
		})
	case "call_expression":
		lw.lowerValue(expr, line)
	default:
		lw.lowerValue(expr, line)
	}
}

// lowerValue lowers an expression for its value and returns the producing
// instruction (nil for expressions the subset cannot see through).
func (lw *lowerer) lowerValue(expr *astutil.Stmt, line int) *Instruction {
	if expr == nil {
		return nil
	}
	switch expr.Type() {
	case "identifier", "field_expression":
		base := baseName(expr)
		return lw.emit(Instruction{
			Op:      OpLoad,
			Name:    lw.fresh(),
			MayRead: true,
			Mem:     lw.memFor(base),
			Loc:     DebugLoc{Line: line},
		})
	case "subscript_expression":
		base := baseName(expr)
		var ops []*Instruction
		if idx := subscriptIndex(expr); idx != nil {
			if v := lw.lowerValue(idx, line); v != nil {
				ops = append(ops, v)
			}
		}
		return lw.emit(Instruction{
			Op:       OpLoad,
			Name:     lw.fresh(),
			Operands: ops,
			MayRead:  true,
			Mem:      lw.memFor(base),
			Loc:      DebugLoc{Line: line},
		})
	case "number_literal", "char_literal", "string_literal":
		return lw.emit(Instruction{Op: OpConst, Name: lw.fresh(), Text: "const " + expr.Text()})
	case "binary_expression":
		l := lw.lowerValue(expr.Left(), line)
		r := lw.lowerValue(expr.Right(), line)
		op := OpAdd
		if f := expr.Field("operator"); f != nil {
			switch f.Text() {
			case "-":
				op = OpSub
			case "*":
				op = OpMul
			case "/":
				op = OpDiv
			case "<", ">", "<=", ">=", "==", "!=":
				op = OpCmp
			}
		}
		var ops []*Instruction
		for _, v := range []*Instruction{l, r} {
			if v != nil {
				ops = append(ops, v)
			}
		}
		return lw.emit(Instruction{Op: op, Name: lw.fresh(), Operands: ops, Loc: DebugLoc{Line: line}})
	case "call_expression":
		callee := ""
		if f := expr.Field("function"); f != nil {
			callee = f.Text()
		}
		var ops []*Instruction
		if args := expr.Field("arguments"); args != nil {
			for _, arg := range args.NamedChildren() {
				if v := lw.lowerValue(arg, line); v != nil {
					ops = append(ops, v)
				}
			}
		}
		// Memory behaviour of calls is the PDG builder's business; it
		// classifies them through the target library info.
		return lw.emit(Instruction{
			Op:       OpCall,
			Name:     lw.fresh(),
			Operands: ops,
			Callee:   callee,
			Loc:      DebugLoc{Line: line},
			Text:     "call " + callee,
		})
	case "parenthesized_expression":
		children := expr.NamedChildren()
		if len(children) == 1 {
			return lw.lowerValue(children[0], line)
		}
		return nil
	default:
		return nil
	}
}

func (lw *lowerer) lowerIf(stmt *astutil.Stmt) {
	cond := lw.lowerValue(stmt.Condition(), stmt.Line())
	lw.emit(Instruction{
		Op:       OpCondBr,
		Operands: operandsOf(cond),
		Loc:      DebugLoc{Line: stmt.Line()},
	})
	condBlock := lw.cur

	thenBlock := lw.newBlock("if.then")
	lw.fn.Connect(condBlock, thenBlock)
	lw.cur = thenBlock
	if then := stmt.Then(); then != nil {
		lw.lowerStmt(then)
	}
	thenEnd := lw.cur

	var elseEnd *BasicBlock
	if els := stmt.Else(); els != nil {
		elseBlock := lw.newBlock("if.else")
		lw.fn.Connect(condBlock, elseBlock)
		lw.cur = elseBlock
		lw.lowerStmt(els)
		elseEnd = lw.cur
	}

	join := lw.newBlock("if.end")
	if thenEnd != nil {
		lw.fn.Append(thenEnd, Instruction{Op: OpBr})
		lw.fn.Connect(thenEnd, join)
	}
	if elseEnd != nil {
		lw.fn.Append(elseEnd, Instruction{Op: OpBr})
		lw.fn.Connect(elseEnd, join)
	} else if stmt.Else() == nil {
		lw.fn.Connect(condBlock, join)
	}
	lw.cur = join
}

func (lw *lowerer) lowerWhile(stmt *astutil.Stmt) {
	header := lw.newBlock("while.cond")
	if lw.cur != nil {
		lw.fn.Append(lw.cur, Instruction{Op: OpBr})
		lw.fn.Connect(lw.cur, header)
	}
	loop := NewLoop(header, lw.loop)
	lw.li.Assign(header, loop)

	lw.cur = header
	cond := lw.lowerValue(stmt.Condition(), stmt.Line())
	lw.emit(Instruction{Op: OpCondBr, Operands: operandsOf(cond), Loc: DebugLoc{Line: stmt.Line()}})

	prevLoop := lw.loop
	lw.loop = loop
	body := lw.newBlock("while.body")
	lw.fn.Connect(header, body)
	lw.cur = body
	if s := stmt.Body(); s != nil {
		lw.lowerStmt(s)
	}
	if lw.cur != nil {
		lw.fn.Append(lw.cur, Instruction{Op: OpBr})
		lw.fn.Connect(lw.cur, header)
	}
	lw.loop = prevLoop

	exit := lw.newBlock("while.end")
	lw.fn.Connect(header, exit)
	lw.cur = exit
}

func (lw *lowerer) lowerFor(stmt *astutil.Stmt) {
	if init := stmt.ForInit(); init != nil {
		if init.Kind() == astutil.KindDecl {
			lw.lowerDecl(init)
		} else {
			lw.lowerExpr(init.Expr(), stmt.Line())
		}
	}
	header := lw.newBlock("for.cond")
	if lw.cur != nil {
		lw.fn.Append(lw.cur, Instruction{Op: OpBr})
		lw.fn.Connect(lw.cur, header)
	}
	loop := NewLoop(header, lw.loop)
	lw.li.Assign(header, loop)

	lw.cur = header
	if cond := stmt.Condition(); cond != nil {
		v := lw.lowerValue(cond, stmt.Line())
		lw.emit(Instruction{Op: OpCondBr, Operands: operandsOf(v), Loc: DebugLoc{Line: stmt.Line()}})
	} else {
		lw.emit(Instruction{Op: OpBr, Loc: DebugLoc{Line: stmt.Line()}})
	}

	prevLoop := lw.loop
	lw.loop = loop
	body := lw.newBlock("for.body")
	lw.fn.Connect(header, body)
	lw.cur = body
	if s := stmt.Body(); s != nil {
		lw.lowerStmt(s)
	}
	if update := stmt.ForUpdate(); update != nil {
		lw.lowerExpr(update.Expr(), stmt.Line())
	}
	if lw.cur != nil {
		lw.fn.Append(lw.cur, Instruction{Op: OpBr})
		lw.fn.Connect(lw.cur, header)
	}
	lw.loop = prevLoop

	exit := lw.newBlock("for.end")
	if stmt.Condition() != nil {
		lw.fn.Connect(header, exit)
	}
	lw.cur = exit
}

func operandsOf(v *Instruction) []*Instruction {
	if v == nil {
		return nil
	}
	return []*Instruction{v}
}

func baseName(expr *astutil.Stmt) string {
	switch expr.Type() {
	case "identifier":
		return expr.Text()
	case "subscript_expression":
		if arg := expr.Field("argument"); arg != nil {
			return baseName(arg)
		}
	case "update_expression":
		if arg := expr.Field("argument"); arg != nil {
			return baseName(arg)
		}
	case "field_expression":
		if arg := expr.Field("argument"); arg != nil {
			return baseName(arg)
		}
	case "pointer_expression":
		if arg := expr.Field("argument"); arg != nil {
			return baseName(arg)
		}
	}
	t := expr.Text()
	if len(t) > 16 {
		t = t[:16]
	}
	return t
}

func subscriptIndex(expr *astutil.Stmt) *astutil.Stmt {
	if expr.Type() != "subscript_expression" {
		return nil
	}
	// Newer grammars expose the index as a field; older ones keep it as
	// the second named child.
	if idx := expr.Field("index"); idx != nil {
		return idx
	}
	children := expr.NamedChildren()
	if len(children) >= 2 {
		return children[1]
	}
	return nil
}

func firstWord(s string) string {
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			return s[:i]
		}
	}
	return s
}
