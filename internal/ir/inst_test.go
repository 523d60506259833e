package ir

import (
	"strings"
	"testing"

	"nettle/internal/symbol"
)

func TestOpDisplayStrings(t *testing.T) {
	cases := []struct {
		op   Op2
		want string
	}{
		{Op2Add, "+"}, {Op2Sub, "-"}, {Op2Mul, "*"}, {Op2Div, "/"}, {Op2Rem, "%"},
		{Op2BitAnd, "&"}, {Op2BitOr, "|"}, {Op2BitXor, "^"},
		{Op2Shl, "<<"}, {Op2Shr, ">>"},
		{Op2CmpEq, "=="}, {Op2CmpNe, "!="}, {Op2CmpLt, "<"}, {Op2CmpLe, "<="},
		{Op2CmpGt, ">"}, {Op2CmpGe, ">="},
	}
	for _, c := range cases {
		if got := c.op.String(); got != c.want {
			t.Errorf("Op2(%d).String() = %q, want %q", c.op, got, c.want)
		}
	}

	op1cases := []struct {
		op   Op1
		want string
	}{
		{Op1Neg, "-"}, {Op1Not, "!"}, {Op1Inc, "++"}, {Op1Dec, "--"},
	}
	for _, c := range op1cases {
		if got := c.op.String(); got != c.want {
			t.Errorf("Op1(%d).String() = %q, want %q", c.op, got, c.want)
		}
	}
}

func TestTypedOperatorNamesUseDottedConvention(t *testing.T) {
	if got := Op2Add.TypedName("i64"); got != "add.i64" {
		t.Errorf("Op2Add.TypedName(i64) = %q, want add.i64", got)
	}
	if got := Op2CmpNe.TypedName("i64"); got != "cmpne.i64" {
		t.Errorf("Op2CmpNe.TypedName(i64) = %q, want cmpne.i64", got)
	}
	if got := Op1Neg.TypedName("f64"); got != "neg.f64" {
		t.Errorf("Op1Neg.TypedName(f64) = %q, want neg.f64", got)
	}
}

func TestOp2IsCompare(t *testing.T) {
	compares := []Op2{Op2CmpEq, Op2CmpNe, Op2CmpLt, Op2CmpLe, Op2CmpGt, Op2CmpGe}
	for _, op := range compares {
		if !op.IsCompare() {
			t.Errorf("%v should be a comparison", op)
		}
	}
	arith := []Op2{Op2Add, Op2Sub, Op2Mul, Op2Div, Op2Rem, Op2BitAnd, Op2BitOr, Op2BitXor, Op2Shl, Op2Shr}
	for _, op := range arith {
		if op.IsCompare() {
			t.Errorf("%v should not be a comparison", op)
		}
	}
}

func TestModuleStringRendersEachFunction(t *testing.T) {
	s := symbol.Intern("select")
	m := &Module{
		Code: []Inst{
			Label(3),
			Get(0), Get(1), Get(2),
			Cond(1),
			Goto(7),
			Goto(10),
			Label(0),
			Put(3),
			Ret(),
			Label(0),
			Put(2),
			Ret(),
		},
		Items: []Fun{{Name: s, Pos: 0, Len: 13}},
	}
	out := m.String()
	if !strings.Contains(out, "fun select:") {
		t.Errorf("module string missing function header: %s", out)
	}
	if !strings.Contains(out, "label(3)") {
		t.Errorf("module string missing entry label: %s", out)
	}
	if !strings.Contains(out, "ret") {
		t.Errorf("module string missing ret: %s", out)
	}
}

func TestValTypeStrings(t *testing.T) {
	if Bool().String() != "bool" {
		t.Errorf("Bool() string mismatch")
	}
	arr := Array(I64())
	if arr.String() != "[i64]" {
		t.Errorf("Array(I64()).String() = %q, want [i64]", arr.String())
	}
	fn := FunType([]ValType{I64(), Bool()}, RetValuesType([]ValType{I64()}))
	if fn.String() != "fun(i64, bool) -> (i64)" {
		t.Errorf("FunType().String() = %q", fn.String())
	}
}
