// Package astbuild is the "Out" protocol's receiving end: the parser
// emits one event per syntactic construct it recognizes, and Builder
// turns that event stream into an internal/ast tree. Every event either
// pushes a leaf onto one of Builder's three stacks (expressions,
// statements, bindings) or pops some fixed or event-supplied count of
// items off those stacks and pushes back the combined node — mirroring
// a structural-equality-free, allocation-light tree builder that never
// needs to look more than one level below the node it is constructing.
package astbuild

import (
	"nettle/internal/arena"
	"nettle/internal/ast"
	"nettle/internal/ir"
	"nettle/internal/symbol"
)

// Builder accumulates expressions, statements, bindings, and finished
// functions as the parser drives it. The zero value is not ready to
// use; construct with New.
type Builder struct {
	arena *arena.Arena
	exprs []ast.Expr
	stmts []ast.Stmt
	binds []ast.Bind
	funs  []ast.Fun
}

func New(a *arena.Arena) *Builder {
	return &Builder{arena: a}
}

func (b *Builder) popExprs(n uint32) []ast.Expr {
	k := len(b.exprs) - int(n)
	out := arena.CopySlice(b.arena, b.exprs[k:])
	b.exprs = b.exprs[:k]
	return out
}

func (b *Builder) popStmts(n uint32) []ast.Stmt {
	k := len(b.stmts) - int(n)
	out := arena.CopySlice(b.arena, b.stmts[k:])
	b.stmts = b.stmts[:k]
	return out
}

func (b *Builder) popBinds(n uint32) []ast.Bind {
	k := len(b.binds) - int(n)
	out := arena.CopySlice(b.arena, b.binds[k:])
	b.binds = b.binds[:k]
	return out
}

func (b *Builder) popExpr() ast.Expr {
	e := b.exprs[len(b.exprs)-1]
	b.exprs = b.exprs[:len(b.exprs)-1]
	return e
}

func (b *Builder) pushExpr(e ast.Expr) { b.exprs = append(b.exprs, e) }

// --- leaf events ---

func (b *Builder) OnVariable(sym symbol.Symbol) { b.pushExpr(ast.Expr{Kind: ast.EVariable, Sym: sym}) }
func (b *Builder) OnLiteralBool(v bool)         { b.pushExpr(ast.Expr{Kind: ast.EBool, Bool: v}) }
func (b *Builder) OnLiteralInt(v int64)         { b.pushExpr(ast.Expr{Kind: ast.EInt, Int: v}) }
func (b *Builder) OnLiteralFloat(v float64)     { b.pushExpr(ast.Expr{Kind: ast.EFloat, Float: v}) }
func (b *Builder) OnUndefined()                 { b.pushExpr(ast.Expr{Kind: ast.EUndefined}) }

// --- operator events: pop their operands, push the combined node ---

func (b *Builder) OnOp1(op ir.Op1) {
	x := b.popExpr()
	b.pushExpr(ast.Expr{Kind: ast.EOp1, Op1: op, X: ptr(x)})
}

func (b *Builder) OnOp2(op ir.Op2) {
	y := b.popExpr()
	x := b.popExpr()
	b.pushExpr(ast.Expr{Kind: ast.EOp2, Op2: op, X: ptr(x), Y: ptr(y)})
}

func (b *Builder) OnPreOp(op ir.Op1) {
	x := b.popExpr()
	b.pushExpr(ast.Expr{Kind: ast.EPreOp, Op1: op, X: ptr(x)})
}

func (b *Builder) OnPostOp(op ir.Op1) {
	x := b.popExpr()
	b.pushExpr(ast.Expr{Kind: ast.EPostOp, Op1: op, X: ptr(x)})
}

func (b *Builder) OnAnd() {
	y := b.popExpr()
	x := b.popExpr()
	b.pushExpr(ast.Expr{Kind: ast.EAnd, X: ptr(x), Y: ptr(y)})
}

func (b *Builder) OnOr() {
	y := b.popExpr()
	x := b.popExpr()
	b.pushExpr(ast.Expr{Kind: ast.EOr, X: ptr(x), Y: ptr(y)})
}

func (b *Builder) OnTernary() {
	z := b.popExpr()
	y := b.popExpr()
	x := b.popExpr()
	b.pushExpr(ast.Expr{Kind: ast.ETernary, X: ptr(x), Y: ptr(y), Z: ptr(z)})
}

func (b *Builder) OnField(sym symbol.Symbol) {
	x := b.popExpr()
	b.pushExpr(ast.Expr{Kind: ast.EField, Sym: sym, X: ptr(x)})
}

func (b *Builder) OnIndex() {
	y := b.popExpr()
	x := b.popExpr()
	b.pushExpr(ast.Expr{Kind: ast.EIndex, X: ptr(x), Y: ptr(y)})
}

// OnCall pops nargs argument expressions (already on the expr stack in
// left-to-right order) and the callee expression pushed before them,
// and pushes the combined Call expression.
func (b *Builder) OnCall(nargs uint32) {
	args := b.popExprs(nargs)
	callee := b.popExpr()
	b.pushExpr(ast.Expr{Kind: ast.ECall, X: ptr(callee), Args: args})
}

// --- control-flow expression/statement events ---

// OnIf pops n statements for the then-block and the condition
// expression beneath them, and pushes the combined If expression.
func (b *Builder) OnIf(n uint32) {
	body := b.popStmts(n)
	cond := b.popExpr()
	b.pushExpr(ast.Expr{Kind: ast.EIf, X: ptr(cond), Then: body})
}

// OnIfElse pops nElse else-statements, nThen then-statements, and the
// condition, in that order (else-block is parsed second but closer to
// the top of the stack since it is parsed after then).
func (b *Builder) OnIfElse(nThen, nElse uint32) {
	elseBody := b.popStmts(nElse)
	thenBody := b.popStmts(nThen)
	cond := b.popExpr()
	b.pushExpr(ast.Expr{Kind: ast.EIfElse, X: ptr(cond), Then: thenBody, Else: elseBody})
}

func (b *Builder) OnLoop(n uint32) {
	body := b.popStmts(n)
	b.pushExpr(ast.Expr{Kind: ast.ELoop, Then: body})
}

// --- statement events ---

// OnStmtExprList pops n expressions and pushes a statement wrapping
// them (the common "bare expression(s)" statement, including a block's
// final expression-as-value position).
func (b *Builder) OnStmtExprList(n uint32) {
	b.stmts = append(b.stmts, ast.Stmt{Kind: ast.SExprList, Exprs: b.popExprs(n)})
}

func (b *Builder) OnBreak(n uint32) {
	b.stmts = append(b.stmts, ast.Stmt{Kind: ast.SBreak, Exprs: b.popExprs(n)})
}

func (b *Builder) OnContinue() {
	b.stmts = append(b.stmts, ast.Stmt{Kind: ast.SContinue})
}

func (b *Builder) OnReturn(n uint32) {
	b.stmts = append(b.stmts, ast.Stmt{Kind: ast.SReturn, Exprs: b.popExprs(n)})
}

// OnLet pops n value expressions and n bindings (in that order — the
// expression list is parsed and pushed after the binding list) and
// pushes the combined Let statement.
func (b *Builder) OnLet(n uint32) {
	exprs := b.popExprs(n)
	binds := b.popBinds(n)
	b.stmts = append(b.stmts, ast.Stmt{Kind: ast.SLet, Binds: binds, Exprs: exprs})
}

func (b *Builder) OnVar(sym symbol.Symbol) {
	init := b.popExpr()
	b.stmts = append(b.stmts, ast.Stmt{Kind: ast.SVar, Sym: sym, X: ptr(init)})
}

func (b *Builder) OnSet(sym symbol.Symbol) {
	val := b.popExpr()
	b.stmts = append(b.stmts, ast.Stmt{Kind: ast.SSet, Sym: sym, X: ptr(val)})
}

func (b *Builder) OnSetField(sym symbol.Symbol) {
	val := b.popExpr()
	target := b.popExpr()
	b.stmts = append(b.stmts, ast.Stmt{Kind: ast.SSetField, Sym: sym, X: ptr(target), Y: ptr(val)})
}

func (b *Builder) OnSetIndex() {
	val := b.popExpr()
	idx := b.popExpr()
	target := b.popExpr()
	b.stmts = append(b.stmts, ast.Stmt{Kind: ast.SSetIndex, X: ptr(target), Y: ptr(idx), Z: ptr(val)})
}

func (b *Builder) OnWhile(n uint32) {
	body := b.popStmts(n)
	cond := b.popExpr()
	b.stmts = append(b.stmts, ast.Stmt{Kind: ast.SWhile, X: ptr(cond), Body: body})
}

// --- bindings and function items ---

// OnBinding pushes a named or anonymous ("_") binding.
func (b *Builder) OnBinding(sym *symbol.Symbol) {
	b.binds = append(b.binds, ast.Bind{Name: sym})
}

// OnFun pops nArgs bindings and nBody statements and appends a finished
// function item.
func (b *Builder) OnFun(name symbol.Symbol, nArgs, nBody uint32) {
	body := b.popStmts(nBody)
	args := b.popBinds(nArgs)
	b.funs = append(b.funs, ast.Fun{Name: name, Args: args, Body: body})
}

// Finish returns every function item built so far.
func (b *Builder) Finish() []ast.Fun {
	return b.funs
}

func ptr(e ast.Expr) *ast.Expr {
	v := e
	return &v
}
