package lower

import (
	"nettle/internal/ast"
	"nettle/internal/ir"
)

// Lower compiles a sequence of function items into one flat ir.Module.
// Each function starts with Label(len(Args)) followed by that many
// Get(i) in order, matching the invariant the type inferer relies on to
// recognize a function's entry label.
func Lower(items []ast.Fun) *ir.Module {
	e := newEnv()
	o := &out{}
	funs := make([]ir.Fun, 0, len(items))
	for _, f := range items {
		e.scopes.pushScope()
		pos := uint32(len(o.code))
		o.emit(ir.Label(uint32(len(f.Args))))
		for i, a := range f.Args {
			v := o.emit(ir.Get(uint32(i)))
			if a.Name != nil {
				e.scopes.putReferent(*a.Name, referent{kind: referentValue, index: uint32(v)})
			}
		}
		compileBlockTail(f.Body, e, o)
		e.scopes.popScope()
		funs = append(funs, ir.Fun{Name: f.Name, Pos: pos, Len: uint32(len(o.code)) - pos})
	}
	return &ir.Module{Code: o.code, Items: funs}
}

// compileExpr lowers x in non-tail position, leaving its result as a
// what (pending points or pending values) for the caller to coerce.
func compileExpr(x *ast.Expr, e *env, o *out) what {
	switch x.Kind {
	case ast.EAnd:
		xv := compileExpr(x.X, e, o).intoValue(e, o)
		o.emit(ir.Cond(xv))
		p := o.emitPoint(true, 0)
		q := o.emitPoint(true, 0)
		o.emitLabel(0, []point{p})
		fv := o.emit(ir.ConstBool(false))
		o.emit(ir.Put(fv))
		r := o.emitPoint(true, 1)
		e.points = append(e.points, r)
		o.emitLabel(0, []point{q})
		n := compileExpr(x.Y, e, o).intoPointList(e, o)
		return what{kind: whatPoints, n: 1 + n}

	case ast.EBool:
		v := o.emit(ir.ConstBool(x.Bool))
		e.values = append(e.values, v)
		return what{kind: whatValues, n: 1}

	case ast.EInt:
		v := o.emit(ir.ConstInt(x.Int))
		e.values = append(e.values, v)
		return what{kind: whatValues, n: 1}

	case ast.EFloat:
		v := o.emit(ir.ConstFloat(x.Float))
		e.values = append(e.values, v)
		return what{kind: whatValues, n: 1}

	case ast.EUndefined:
		o.emit(ir.GotoStaticError())
		o.emit(ir.Label(1))
		v := o.emit(ir.Get(0))
		e.values = append(e.values, v)
		return what{kind: whatValues, n: 1}

	case ast.EOp1:
		xv := compileExpr(x.X, e, o).intoValue(e, o)
		v := o.emit(ir.MakeOp1(x.Op1, xv))
		e.values = append(e.values, v)
		return what{kind: whatValues, n: 1}

	case ast.EOp2:
		xv := compileExpr(x.X, e, o).intoValue(e, o)
		yv := compileExpr(x.Y, e, o).intoValue(e, o)
		v := o.emit(ir.MakeOp2(x.Op2, xv, yv))
		e.values = append(e.values, v)
		return what{kind: whatValues, n: 1}

	case ast.EOr:
		xv := compileExpr(x.X, e, o).intoValue(e, o)
		o.emit(ir.Cond(xv))
		p := o.emitPoint(true, 0)
		q := o.emitPoint(true, 0)
		o.emitLabel(0, []point{p})
		n := compileExpr(x.Y, e, o).intoPointList(e, o)
		o.emitLabel(0, []point{q})
		v := o.emit(ir.ConstBool(true))
		o.emit(ir.Put(v))
		r := o.emitPoint(true, 1)
		e.points = append(e.points, r)
		return what{kind: whatPoints, n: n + 1}

	case ast.ETernary:
		xv := compileExpr(x.X, e, o).intoValue(e, o)
		o.emit(ir.Cond(xv))
		p := o.emitPoint(true, 0)
		q := o.emitPoint(true, 0)
		o.emitLabel(0, []point{p})
		m := compileExpr(x.Z, e, o).intoPointList(e, o)
		o.emitLabel(0, []point{q})
		n := compileExpr(x.Y, e, o).intoPointList(e, o)
		return what{kind: whatPoints, n: m + n}

	case ast.EIf:
		xv := compileExpr(x.X, e, o).intoValue(e, o)
		o.emit(ir.Cond(xv))
		p := o.emitPoint(true, 0)
		q := o.emitPoint(true, 0)
		e.points = append(e.points, p)
		o.emitLabel(0, []point{q})
		n := compileBlock(x.Then, e, o).intoPointList(e, o)
		return what{kind: whatPoints, n: 1 + n}

	case ast.EIfElse:
		xv := compileExpr(x.X, e, o).intoValue(e, o)
		o.emit(ir.Cond(xv))
		p := o.emitPoint(true, 0)
		q := o.emitPoint(true, 0)
		o.emitLabel(0, []point{p})
		m := compileBlock(x.Else, e, o).intoPointList(e, o)
		o.emitLabel(0, []point{q})
		n := compileBlock(x.Then, e, o).intoPointList(e, o)
		return what{kind: whatPoints, n: m + n}

	case ast.ELoop:
		p := o.emitPoint(true, 0)
		a := o.emitLabel(0, []point{p})
		e.loops.putLoop(a)
		m := compileBlock(x.Then, e, o).intoPointList(e, o)
		ps := popList(&e.points, m)
		patchPointList(a, ps, o)
		n := e.loops.popLoop(&e.points)
		return what{kind: whatPoints, n: n}

	case ast.ECall:
		return compileCall(x, e, o)

	case ast.EField:
		xv := compileExpr(x.X, e, o).intoValue(e, o)
		v := o.emit(ir.Field(xv, x.Sym))
		e.values = append(e.values, v)
		return what{kind: whatValues, n: 1}

	case ast.EIndex:
		xv := compileExpr(x.X, e, o).intoValue(e, o)
		yv := compileExpr(x.Y, e, o).intoValue(e, o)
		v := o.emit(ir.IndexInst(xv, yv))
		e.values = append(e.values, v)
		return what{kind: whatValues, n: 1}

	case ast.EVariable:
		v := compileVariableRead(x.Sym, e, o)
		e.values = append(e.values, v)
		return what{kind: whatValues, n: 1}

	case ast.EPreOp, ast.EPostOp:
		v := compilePrePostOp(x, e, o)
		e.values = append(e.values, v)
		return what{kind: whatValues, n: 1}
	}
	panic("lower: unhandled expr kind")
}

// compileVariableRead resolves a name to its referent: a let-bound name
// reuses the value index that produced it directly, a var-bound name is
// read through GetLocal, and an unresolved name becomes a Const symbol
// reference (a global lookup, e.g. another function; the type inferer
// leaves its type unconstrained apart from how it is used).
func compileVariableRead(sym ast.Symbol, e *env, o *out) ir.Index {
	r, ok := e.scopes.getReferent(sym)
	if !ok {
		return o.emit(ir.Const(sym))
	}
	if r.kind == referentValue {
		return ir.Index(r.index)
	}
	return o.emit(ir.GetLocal(r.index))
}

// compileCall lowers the argument expressions left to right and then the
// callee expression, so the callee is evaluated last; it then emits the
// Puts in positional order and the Call itself.
func compileCall(x *ast.Expr, e *env, o *out) what {
	n := uint32(len(x.Args))
	for i := range x.Args {
		v := compileExpr(&x.Args[i], e, o).intoValue(e, o)
		e.values = append(e.values, v)
	}
	f := compileExpr(x.X, e, o).intoValue(e, o)
	vs := popList(&e.values, n)
	for _, v := range vs {
		o.emit(ir.Put(v))
	}
	o.emit(ir.Call(f))
	p := o.emitPoint(false, 0)
	e.points = append(e.points, p)
	return what{kind: whatPoints, n: 1}
}

// compilePrePostOp lowers a PreOp/PostOp on a local variable: read its
// current value, apply the operator, write the result back, and
// publish either the new value (PreOp) or the old one (PostOp). Any
// target that is not a mutable local is a static error.
func compilePrePostOp(x *ast.Expr, e *env, o *out) ir.Index {
	r, ok := e.scopes.getReferent(x.X.Sym)
	if !ok || r.kind != referentLocal {
		o.emit(ir.GotoStaticError())
		o.emit(ir.Label(1))
		return o.emit(ir.Get(0))
	}
	oldVal := o.emit(ir.GetLocal(r.index))
	newVal := o.emit(ir.MakeOp1(x.Op1, oldVal))
	o.emit(ir.SetLocal(r.index, newVal))
	if x.Kind == ast.EPreOp {
		return newVal
	}
	return oldVal
}

// compileExprTail lowers x in tail position: control-flow expressions
// recurse into compileExprTail/compileBlockTail on every branch instead
// of joining, and ordinary value-producing expressions fall through to
// emitting a single Put followed by Ret.
func compileExprTail(x *ast.Expr, e *env, o *out) {
	switch x.Kind {
	case ast.EAnd:
		xv := compileExpr(x.X, e, o).intoValue(e, o)
		o.emit(ir.Cond(xv))
		p := o.emitPoint(true, 0)
		q := o.emitPoint(true, 0)
		o.emitLabel(0, []point{p})
		v := o.emit(ir.ConstBool(false))
		o.emit(ir.Put(v))
		o.emit(ir.Ret())
		o.emitLabel(0, []point{q})
		compileExprTail(x.Y, e, o)

	case ast.EOr:
		xv := compileExpr(x.X, e, o).intoValue(e, o)
		o.emit(ir.Cond(xv))
		p := o.emitPoint(true, 0)
		q := o.emitPoint(true, 0)
		o.emitLabel(0, []point{p})
		compileExprTail(x.Y, e, o)
		o.emitLabel(0, []point{q})
		v := o.emit(ir.ConstBool(true))
		o.emit(ir.Put(v))
		o.emit(ir.Ret())

	case ast.ETernary:
		xv := compileExpr(x.X, e, o).intoValue(e, o)
		o.emit(ir.Cond(xv))
		p := o.emitPoint(true, 0)
		q := o.emitPoint(true, 0)
		o.emitLabel(0, []point{p})
		compileExprTail(x.Z, e, o)
		o.emitLabel(0, []point{q})
		compileExprTail(x.Y, e, o)

	case ast.EIf:
		xv := compileExpr(x.X, e, o).intoValue(e, o)
		o.emit(ir.Cond(xv))
		p := o.emitPoint(true, 0)
		q := o.emitPoint(true, 0)
		o.emitLabel(0, []point{p})
		o.emit(ir.Ret())
		o.emitLabel(0, []point{q})
		compileBlockTail(x.Then, e, o)

	case ast.EIfElse:
		xv := compileExpr(x.X, e, o).intoValue(e, o)
		o.emit(ir.Cond(xv))
		p := o.emitPoint(true, 0)
		q := o.emitPoint(true, 0)
		o.emitLabel(0, []point{p})
		compileBlockTail(x.Else, e, o)
		o.emitLabel(0, []point{q})
		compileBlockTail(x.Then, e, o)

	case ast.ELoop:
		p := o.emitPoint(true, 0)
		a := o.emitLabel(0, []point{p})
		e.loops.putLoopTail(a)
		n := compileBlock(x.Then, e, o).intoPointList(e, o)
		ps := popList(&e.points, n)
		patchPointList(a, ps, o)
		e.loops.popLoopTail()

	case ast.ECall:
		n := uint32(len(x.Args))
		for i := range x.Args {
			v := compileExpr(&x.Args[i], e, o).intoValue(e, o)
			e.values = append(e.values, v)
		}
		f := compileExpr(x.X, e, o).intoValue(e, o)
		vs := popList(&e.values, n)
		for _, v := range vs {
			o.emit(ir.Put(v))
		}
		o.emit(ir.TailCall(f))

	default:
		// Bool, Int, Float, Undefined, Op1, Op2, Field, Index, Variable,
		// PreOp, PostOp: every one of these is compileExpr's single-value
		// case, so coercion can never hit the error path below.
		v := compileExpr(x, e, o).intoValue(e, o)
		o.emit(ir.Put(v))
		o.emit(ir.Ret())
	}
}

// compileBlock lowers a statement sequence in non-tail position: a new
// lexical scope is pushed for the block's lifetime, every statement but
// the last is coerced to nil, and the last statement's what is returned
// to the caller uninterpreted.
func compileBlock(xs []ast.Stmt, e *env, o *out) what {
	if len(xs) == 0 {
		return whatNil()
	}
	e.scopes.pushScope()
	for i := 0; i < len(xs)-1; i++ {
		compileStmt(&xs[i], e, o).intoNil(e, o)
	}
	w := compileStmt(&xs[len(xs)-1], e, o)
	e.scopes.popScope()
	return w
}

// compileBlockTail lowers a statement sequence in tail position. An
// empty block still must fall through with a Ret.
func compileBlockTail(xs []ast.Stmt, e *env, o *out) {
	if len(xs) == 0 {
		o.emit(ir.Ret())
		return
	}
	e.scopes.pushScope()
	for i := 0; i < len(xs)-1; i++ {
		compileStmt(&xs[i], e, o).intoNil(e, o)
	}
	compileStmtTail(&xs[len(xs)-1], e, o)
	e.scopes.popScope()
}

// compileStmt lowers one statement in non-tail position.
func compileStmt(x *ast.Stmt, e *env, o *out) what {
	switch x.Kind {
	case ast.SExprList:
		return compileExprList(x.Exprs, e, o)

	case ast.SLet:
		n := uint32(len(x.Binds))
		compileExprList(x.Exprs, e, o).intoValueList(n, e, o)
		vs := popList(&e.values, n)
		// Bind left-to-right so a name repeated within one Let shadows its
		// earlier sibling, matching positional Let-tuple semantics.
		for i, b := range x.Binds {
			if b.Name != nil {
				e.scopes.putReferent(*b.Name, referent{kind: referentValue, index: uint32(vs[i])})
			}
		}
		return whatNil()

	case ast.SVar:
		xv := compileExpr(x.X, e, o).intoValue(e, o)
		v := o.emit(ir.Local(xv))
		e.scopes.putReferent(x.Sym, referent{kind: referentLocal, index: uint32(v)})
		return whatNil()

	case ast.SSet:
		xv := compileExpr(x.X, e, o).intoValue(e, o)
		r, ok := e.scopes.getReferent(x.Sym)
		if ok && r.kind == referentLocal {
			o.emit(ir.SetLocal(r.index, xv))
		} else {
			o.emit(ir.GotoStaticError())
			o.emit(ir.Label(0))
		}
		return whatNil()

	case ast.SSetField:
		xv := compileExpr(x.X, e, o).intoValue(e, o)
		yv := compileExpr(x.Y, e, o).intoValue(e, o)
		o.emit(ir.SetField(xv, x.Sym, yv))
		return whatNil()

	case ast.SSetIndex:
		xv := compileExpr(x.X, e, o).intoValue(e, o)
		yv := compileExpr(x.Y, e, o).intoValue(e, o)
		zv := compileExpr(x.Z, e, o).intoValue(e, o)
		o.emit(ir.SetIndex(xv, yv, zv))
		return whatNil()

	case ast.SReturn:
		compileExprListTail(x.Exprs, e, o)
		return whatNever()

	case ast.SBreak:
		return compileBreak(x, e, o)

	case ast.SContinue:
		top := e.loops.top()
		if top.kind == loopTopLevel {
			o.emit(ir.GotoStaticError())
		} else {
			o.emit(ir.Goto(top.label.index))
		}
		return whatNever()

	case ast.SWhile:
		return compileWhile(x, e, o)
	}
	panic("lower: unhandled stmt kind")
}

func compileBreak(x *ast.Stmt, e *env, o *out) what {
	switch e.loops.top().kind {
	case loopTopLevel:
		o.emit(ir.GotoStaticError())
	case loopTail:
		compileExprListTail(x.Exprs, e, o)
	default: // loopNonTail
		n := compileExprList(x.Exprs, e, o).intoPointList(e, o)
		ps := popList(&e.points, n)
		for _, p := range ps {
			e.loops.addBreak(p)
		}
	}
	return whatNever()
}

func compileWhile(x *ast.Stmt, e *env, o *out) what {
	p := o.emitPoint(true, 0)
	a := o.emitLabel(0, []point{p})
	e.loops.putLoop(a)
	xv := compileExpr(x.X, e, o).intoValue(e, o)
	o.emit(ir.Cond(xv))
	q := o.emitPoint(true, 0)
	e.points = append(e.points, q)
	r := o.emitPoint(true, 0)
	o.emitLabel(0, []point{r})
	m := compileBlock(x.Body, e, o).intoPointList(e, o)
	ps := popList(&e.points, m)
	patchPointList(a, ps, o)
	n := e.loops.popLoop(&e.points)
	return what{kind: whatPoints, n: 1 + n}
}

// compileStmtTail lowers one statement in tail position. break/continue/
// return never fall through, so nothing further is emitted after them;
// every other statement kind's result is joined to nil and followed by
// an explicit Ret, which subsumes the "purely effectful" case and also
// correctly closes out a While's break-point joins.
func compileStmtTail(x *ast.Stmt, e *env, o *out) {
	switch x.Kind {
	case ast.SExprList:
		compileExprListTail(x.Exprs, e, o)
	case ast.SBreak, ast.SContinue, ast.SReturn:
		compileStmt(x, e, o)
	default:
		compileStmt(x, e, o).intoNil(e, o)
		o.emit(ir.Ret())
	}
}

// compileExprList lowers a comma-separated expression list: a single
// expression passes its what through untouched, multiple expressions
// are each coerced to one value and returned as a values-what of that
// arity.
func compileExprList(xs []ast.Expr, e *env, o *out) what {
	if len(xs) == 1 {
		return compileExpr(&xs[0], e, o)
	}
	n := uint32(len(xs))
	for i := range xs {
		v := compileExpr(&xs[i], e, o).intoValue(e, o)
		e.values = append(e.values, v)
	}
	return what{kind: whatValues, n: n}
}

// compileExprListTail lowers a comma-separated expression list in tail
// position.
func compileExprListTail(xs []ast.Expr, e *env, o *out) {
	if len(xs) == 1 {
		compileExprTail(&xs[0], e, o)
		return
	}
	n := uint32(len(xs))
	for i := range xs {
		v := compileExpr(&xs[i], e, o).intoValue(e, o)
		e.values = append(e.values, v)
	}
	vs := popList(&e.values, n)
	for _, v := range vs {
		o.emit(ir.Put(v))
	}
	o.emit(ir.Ret())
}
