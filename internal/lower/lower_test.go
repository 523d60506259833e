package lower

import (
	"strings"
	"testing"

	"nettle/internal/ast"
	"nettle/internal/ir"
	"nettle/internal/symbol"
)

func bind(name string) ast.Bind {
	s := symbol.Intern(name)
	return ast.Bind{Name: &s}
}

func variable(name string) ast.Expr {
	return ast.Expr{Kind: ast.EVariable, Sym: symbol.Intern(name)}
}

func intLit(n int64) ast.Expr {
	return ast.Expr{Kind: ast.EInt, Int: n}
}

// select(c, a, b) = if c { a } else { b } — spec scenario 1.
func TestLowerSelectFunction(t *testing.T) {
	cond := variable("c")
	thenBlock := []ast.Stmt{{Kind: ast.SExprList, Exprs: []ast.Expr{variable("a")}}}
	elseBlock := []ast.Stmt{{Kind: ast.SExprList, Exprs: []ast.Expr{variable("b")}}}
	fn := ast.Fun{
		Name: symbol.Intern("select"),
		Args: []ast.Bind{bind("c"), bind("a"), bind("b")},
		Body: []ast.Stmt{{
			Kind:  ast.SExprList,
			Exprs: []ast.Expr{{Kind: ast.EIfElse, X: &cond, Then: thenBlock, Else: elseBlock}},
		}},
	}

	m := Lower([]ast.Fun{fn})

	if len(m.Items) != 1 {
		t.Fatalf("expected 1 function, got %d", len(m.Items))
	}
	code := m.FuncCode(m.Items[0])
	if code[0].Kind != ir.KindLabel || code[0].Arity != 3 {
		t.Fatalf("entry instruction = %v, want Label(3)", code[0])
	}
	for i := 0; i < 3; i++ {
		if code[i+1].Kind != ir.KindGet || code[i+1].Index != uint32(i) {
			t.Errorf("arg %d = %v, want Get(%d)", i, code[i+1], i)
		}
	}
	var retCount, condCount int
	for _, inst := range code {
		switch inst.Kind {
		case ir.KindRet:
			retCount++
		case ir.KindCond:
			condCount++
		}
	}
	if condCount != 1 {
		t.Errorf("expected exactly 1 Cond, got %d", condCount)
	}
	if retCount != 2 {
		t.Errorf("expected exactly 2 Ret (one per tail branch), got %d", retCount)
	}
	if code[len(code)-1].Kind != ir.KindRet {
		t.Errorf("last instruction = %v, want Ret", code[len(code)-1])
	}
}

// fib(n) = if n { n } else { fib(n-1) + fib(n-2) }, the non-tail
// recursive case exercising Call (not TailCall) plus join labels.
func TestLowerFibUsesCallNotTailCallInNonTailPosition(t *testing.T) {
	n := variable("n")
	one := intLit(1)
	two := intLit(2)
	nMinus1 := ast.Expr{Kind: ast.EOp2, Op2: ir.Op2Sub, X: &n, Y: &one}
	nMinus2 := ast.Expr{Kind: ast.EOp2, Op2: ir.Op2Sub, X: &n, Y: &two}
	fibName := variable("fib")
	call1 := ast.Expr{Kind: ast.ECall, X: &fibName, Args: []ast.Expr{nMinus1}}
	call2 := ast.Expr{Kind: ast.ECall, X: &fibName, Args: []ast.Expr{nMinus2}}
	sum := ast.Expr{Kind: ast.EOp2, Op2: ir.Op2Add, X: &call1, Y: &call2}
	elseBlock := []ast.Stmt{{Kind: ast.SExprList, Exprs: []ast.Expr{sum}}}
	thenBlock := []ast.Stmt{{Kind: ast.SExprList, Exprs: []ast.Expr{n}}}

	fn := ast.Fun{
		Name: symbol.Intern("fib"),
		Args: []ast.Bind{bind("n")},
		Body: []ast.Stmt{{
			Kind:  ast.SExprList,
			Exprs: []ast.Expr{{Kind: ast.EIfElse, X: &n, Then: thenBlock, Else: elseBlock}},
		}},
	}

	m := Lower([]ast.Fun{fn})
	code := m.FuncCode(m.Items[0])

	var calls, tailCalls int
	for _, inst := range code {
		switch inst.Kind {
		case ir.KindCall:
			calls++
		case ir.KindTailCall:
			tailCalls++
		}
	}
	if calls != 2 {
		t.Errorf("expected 2 non-tail Call (recursive calls joined by +), got %d", calls)
	}
	if tailCalls != 0 {
		t.Errorf("expected 0 TailCall, got %d", tailCalls)
	}
}

// A tail call (e.g. the base of a tail-recursive accumulator) lowers to
// TailCall with no following Put/Ret.
func TestLowerTailCallEmitsTailCallNotCallRet(t *testing.T) {
	accName := variable("acc")
	call := ast.Expr{Kind: ast.ECall, X: &accName, Args: []ast.Expr{intLit(1)}}
	fn := ast.Fun{
		Name: symbol.Intern("loopcall"),
		Args: []ast.Bind{bind("acc")},
		Body: []ast.Stmt{{Kind: ast.SReturn, Exprs: []ast.Expr{call}}},
	}

	m := Lower([]ast.Fun{fn})
	code := m.FuncCode(m.Items[0])

	last := code[len(code)-1]
	if last.Kind != ir.KindTailCall {
		t.Fatalf("last instruction = %v, want TailCall", last)
	}
}

// Call arguments lower before the callee expression: a callee that is
// itself a call (higher-order style) must have its own Call instruction
// appear after every argument's instructions.
func TestLowerCallEvaluatesArgumentsBeforeCallee(t *testing.T) {
	makeFn := variable("make_fn")
	getFn := ast.Expr{Kind: ast.ECall, X: &makeFn, Args: nil}
	arg := intLit(7)
	outer := ast.Expr{Kind: ast.ECall, X: &getFn, Args: []ast.Expr{arg}}
	fn := ast.Fun{
		Name: symbol.Intern("indirect"),
		Args: nil,
		Body: []ast.Stmt{{Kind: ast.SReturn, Exprs: []ast.Expr{outer}}},
	}

	m := Lower([]ast.Fun{fn})
	code := m.FuncCode(m.Items[0])

	var firstConstInt, firstCall int = -1, -1
	for i, inst := range code {
		if inst.Kind == ir.KindConstInt && firstConstInt == -1 {
			firstConstInt = i
		}
		if inst.Kind == ir.KindCall && firstCall == -1 {
			firstCall = i
		}
	}
	if firstConstInt == -1 || firstCall == -1 {
		t.Fatalf("expected both a ConstInt and a Call in %s", code)
	}
	if firstConstInt > firstCall {
		t.Errorf("argument (ConstInt at %d) lowered after callee's Call (at %d); want arguments first", firstConstInt, firstCall)
	}
}

// A loop that is the function's tail expression is lowered in tail
// position, so a break inside it returns its value directly (Put, Ret)
// instead of joining at a loop exit; the function still ends with Ret.
func TestLowerBreakInsideLoopJoinsAtLoopExit(t *testing.T) {
	brk := ast.Stmt{Kind: ast.SBreak, Exprs: []ast.Expr{intLit(0)}}
	body := []ast.Stmt{{
		Kind: ast.SExprList,
		Exprs: []ast.Expr{{
			Kind: ast.EIf,
			X:    boolPtr(true),
			Then: []ast.Stmt{brk},
		}},
	}}
	fn := ast.Fun{
		Name: symbol.Intern("withbreak"),
		Args: nil,
		Body: []ast.Stmt{{
			Kind:  ast.SExprList,
			Exprs: []ast.Expr{{Kind: ast.ELoop, Then: body}},
		}},
	}

	m := Lower([]ast.Fun{fn})
	code := m.FuncCode(m.Items[0])
	if code[len(code)-1].Kind != ir.KindRet {
		t.Errorf("function must still end with Ret, got %v", code[len(code)-1])
	}
}

func boolPtr(b bool) *ast.Expr {
	e := ast.Expr{Kind: ast.EBool, Bool: b}
	return &e
}

// An array index write followed by a read lowers to SetIndex, then Index.
func TestLowerArrayIndexReadAndWrite(t *testing.T) {
	arr := variable("arr")
	idx := intLit(0)
	val := intLit(9)
	readExpr := ast.Expr{Kind: ast.EIndex, X: &arr, Y: &idx}
	setStmt := ast.Stmt{Kind: ast.SSetIndex, X: &arr, Y: &idx, Z: &val}
	fn := ast.Fun{
		Name: symbol.Intern("arrset"),
		Args: []ast.Bind{bind("arr")},
		Body: []ast.Stmt{
			setStmt,
			{Kind: ast.SReturn, Exprs: []ast.Expr{readExpr}},
		},
	}

	m := Lower([]ast.Fun{fn})
	code := m.FuncCode(m.Items[0])

	var setIdx, getIdx int = -1, -1
	for i, inst := range code {
		if inst.Kind == ir.KindSetIndex {
			setIdx = i
		}
		if inst.Kind == ir.KindIndex {
			getIdx = i
		}
	}
	if setIdx == -1 || getIdx == -1 {
		t.Fatalf("expected both SetIndex and Index in %s", code)
	}
	if setIdx > getIdx {
		t.Errorf("SetIndex (at %d) must precede the later Index read (at %d)", setIdx, getIdx)
	}
}

// break/continue outside any loop is a static error, not a panic.
func TestLowerBreakOutsideLoopIsStaticError(t *testing.T) {
	fn := ast.Fun{
		Name: symbol.Intern("badbreak"),
		Body: []ast.Stmt{{Kind: ast.SBreak}},
	}
	m := Lower([]ast.Fun{fn})
	code := m.FuncCode(m.Items[0])
	found := false
	for _, inst := range code {
		if inst.Kind == ir.KindGotoStaticError {
			found = true
		}
	}
	if !found {
		t.Errorf("expected GotoStaticError for a top-level break, got %s", code)
	}
}

// A let statement that rebinds the same name twice still resolves the
// later reference to the second binding.
func TestLowerLetShadowingWithinSameScope(t *testing.T) {
	v1 := intLit(1)
	v2 := intLit(2)
	xSym := symbol.Intern("x")
	let1 := ast.Stmt{Kind: ast.SLet, Binds: []ast.Bind{{Name: &xSym}}, Exprs: []ast.Expr{v1}}
	let2 := ast.Stmt{Kind: ast.SLet, Binds: []ast.Bind{{Name: &xSym}}, Exprs: []ast.Expr{v2}}
	xRef := variable("x")
	fn := ast.Fun{
		Name: symbol.Intern("shadow"),
		Body: []ast.Stmt{let1, let2, {Kind: ast.SReturn, Exprs: []ast.Expr{xRef}}},
	}

	m := Lower([]ast.Fun{fn})
	code := m.FuncCode(m.Items[0])
	// The function must end with a Put of the second literal's own value
	// index, immediately preceding Ret (no intervening GotoStaticError,
	// which would indicate an unresolved variable).
	last := code[len(code)-1]
	if last.Kind != ir.KindRet {
		t.Fatalf("last instruction = %v, want Ret", last)
	}
	prev := code[len(code)-2]
	if prev.Kind != ir.KindPut {
		t.Fatalf("instruction before Ret = %v, want Put", prev)
	}
	second := -1
	for i, inst := range code {
		if inst.Kind == ir.KindConstInt && inst.IntVal == 2 {
			second = i
		}
	}
	if second == -1 || int(prev.A) != int(m.Items[0].Pos)+second {
		t.Errorf("final Put = %v, want Put of the second literal at %d", prev, second)
	}
}

func TestLowerModuleStringIsNonEmpty(t *testing.T) {
	fn := ast.Fun{
		Name: symbol.Intern("const1"),
		Body: []ast.Stmt{{Kind: ast.SReturn, Exprs: []ast.Expr{intLit(1)}}},
	}
	m := Lower([]ast.Fun{fn})
	s := m.String()
	if !strings.Contains(s, "fun const1:") {
		t.Errorf("module string = %q, missing function header", s)
	}
}
