package parser

import (
	"testing"

	"nettle/internal/arena"
	"nettle/internal/ast"
	"nettle/internal/astbuild"
	"nettle/internal/lexer"
)

// parseString runs the full front end (lexer, parser, builder) and
// returns the parsed function items, or the first parse error.
func parseString(src string) ([]ast.Fun, error) {
	toks := lexer.NewScanner(src).ScanTokens()
	b := astbuild.New(arena.New())
	p := New(toks, "<test>", b)
	if err := p.Parse(); err != nil {
		return nil, err
	}
	return b.Finish(), nil
}

func assertParseSuccess(t *testing.T, input, description string) []ast.Fun {
	t.Helper()
	funs, err := parseString(input)
	if err != nil {
		t.Fatalf("%s: parse failed: %v", description, err)
	}
	return funs
}

func assertParseError(t *testing.T, input, description string) {
	t.Helper()
	_, err := parseString(input)
	if err == nil {
		t.Errorf("%s: expected a parse error, got none", description)
	}
}

func TestParseSimpleFunction(t *testing.T) {
	funs := assertParseSuccess(t, `fn add(a, b) { return a + b; }`, "simple function")
	if len(funs) != 1 {
		t.Fatalf("got %d functions, want 1", len(funs))
	}
	fn := funs[0]
	if len(fn.Args) != 2 {
		t.Errorf("got %d args, want 2", len(fn.Args))
	}
	if len(fn.Body) != 1 || fn.Body[0].Kind != ast.SReturn {
		t.Errorf("body = %+v, want a single Return statement", fn.Body)
	}
}

func TestParseIfElseExpression(t *testing.T) {
	funs := assertParseSuccess(t, `fn select(c) { return if c { 1 } else { 2 }; }`, "if/else")
	fn := funs[0]
	ret := fn.Body[0]
	if ret.Kind != ast.SReturn || len(ret.Exprs) != 1 {
		t.Fatalf("unexpected body shape: %+v", ret)
	}
	if ret.Exprs[0].Kind != ast.EIfElse {
		t.Errorf("return value kind = %v, want EIfElse", ret.Exprs[0].Kind)
	}
}

func TestParseWhileLoopWithBreak(t *testing.T) {
	funs := assertParseSuccess(t, `
		fn countdown(n) {
			var i = n;
			while i > 0 {
				if i == 5 { break; }
				i--;
			}
			return i;
		}
	`, "while with break")
	fn := funs[0]
	var sawWhile bool
	for _, s := range fn.Body {
		if s.Kind == ast.SWhile {
			sawWhile = true
		}
	}
	if !sawWhile {
		t.Errorf("expected a While statement in body: %+v", fn.Body)
	}
}

func TestParseMultiBindingLet(t *testing.T) {
	funs := assertParseSuccess(t, `fn f() { let a, b = 1, 2; return a + b; }`, "multi-bind let")
	fn := funs[0]
	let := fn.Body[0]
	if let.Kind != ast.SLet || len(let.Binds) != 2 || len(let.Exprs) != 2 {
		t.Fatalf("let statement = %+v, want 2 binds and 2 exprs", let)
	}
}

func TestParseSetIndexVsIndexReadDisambiguation(t *testing.T) {
	funs := assertParseSuccess(t, `
		fn f(arr) {
			arr[0] = 9;
			return arr[0];
		}
	`, "set-index vs index-read")
	fn := funs[0]
	if fn.Body[0].Kind != ast.SSetIndex {
		t.Errorf("first statement kind = %v, want SSetIndex", fn.Body[0].Kind)
	}
	if fn.Body[1].Kind != ast.SReturn {
		t.Fatalf("second statement kind = %v, want SReturn", fn.Body[1].Kind)
	}
	if fn.Body[1].Exprs[0].Kind != ast.EIndex {
		t.Errorf("returned expr kind = %v, want EIndex", fn.Body[1].Exprs[0].Kind)
	}
}

func TestParseSetFieldVsFieldReadDisambiguation(t *testing.T) {
	funs := assertParseSuccess(t, `
		fn f(obj) {
			obj.x = 1;
			return obj.x;
		}
	`, "set-field vs field-read")
	fn := funs[0]
	if fn.Body[0].Kind != ast.SSetField {
		t.Errorf("first statement kind = %v, want SSetField", fn.Body[0].Kind)
	}
	if fn.Body[1].Exprs[0].Kind != ast.EField {
		t.Errorf("returned expr kind = %v, want EField", fn.Body[1].Exprs[0].Kind)
	}
}

func TestParseTernaryAndLogicalOperators(t *testing.T) {
	funs := assertParseSuccess(t, `fn f(a, b) { return a && b || !a ? 1 : 2; }`, "ternary/logical")
	fn := funs[0]
	if fn.Body[0].Exprs[0].Kind != ast.ETernary {
		t.Errorf("expr kind = %v, want ETernary", fn.Body[0].Exprs[0].Kind)
	}
}

func TestParsePreAndPostIncrement(t *testing.T) {
	funs := assertParseSuccess(t, `fn f(x) { return ++x + x--; }`, "pre/post increment")
	sum := funs[0].Body[0].Exprs[0]
	if sum.Kind != ast.EOp2 {
		t.Fatalf("expr kind = %v, want EOp2", sum.Kind)
	}
	if sum.X.Kind != ast.EPreOp || sum.Y.Kind != ast.EPostOp {
		t.Errorf("operands = (%v, %v), want (EPreOp, EPostOp)", sum.X.Kind, sum.Y.Kind)
	}
}

func TestParseCallArguments(t *testing.T) {
	funs := assertParseSuccess(t, `fn f() { return g(1, 2, 3); }`, "call with args")
	call := funs[0].Body[0].Exprs[0]
	if call.Kind != ast.ECall || len(call.Args) != 3 {
		t.Fatalf("call expr = %+v, want 3 args", call)
	}
}

func TestParseEmptyReturnSucceeds(t *testing.T) {
	funs := assertParseSuccess(t, `fn f() { return; }`, "bare return")
	if len(funs[0].Body[0].Exprs) != 0 {
		t.Errorf("expected zero-value return, got %+v", funs[0].Body[0])
	}
}

func TestParseStrayTokenIsSyntaxError(t *testing.T) {
	assertParseError(t, `fn f() { return )1; }`, "stray ')' in expression position")
}

func TestParseMissingClosingBraceIsSyntaxError(t *testing.T) {
	assertParseError(t, `fn f() { return 1;`, "missing closing brace")
}
