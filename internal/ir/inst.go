package ir

import (
	"fmt"
	"strings"

	"nettle/internal/symbol"
)

// Kind tags which shape an Inst takes. Every instruction occupies exactly
// one slot in a function's code and, for value-producing kinds, that slot's
// own index doubles as the SSA-style name of the value it produces.
type Kind int

const (
	KindLabel Kind = iota
	KindGet
	KindPut
	KindGoto
	KindGotoStaticError
	KindCond
	KindRet
	KindCall
	KindTailCall
	KindConst
	KindConstBool
	KindConstInt
	KindConstFloat
	KindOp1
	KindOp2
	KindField
	KindIndex
	KindLocal
	KindGetLocal
	KindSetLocal
	KindSetField
	KindSetIndex
)

// Index names an instruction by its position in a Module's code, which
// doubles as the SSA value name for value-producing instructions.
type Index uint32

// Inst is one linear-bytecode instruction. Only the fields relevant to
// Kind are meaningful; this mirrors the source's struct-variant enum
// without Go sum types, at the cost of some unused fields per variant.
type Inst struct {
	Kind Kind

	Arity uint32 // KindLabel

	Index uint32 // KindGet (argument index), KindGetLocal/KindSetLocal (local id)

	A Index // first value operand: KindPut value, KindCond, KindCall/KindTailCall callee,
	// KindOp1 operand, KindOp2/KindField/KindIndex/KindSetField/KindSetIndex/KindLocal/KindSetLocal first operand
	B Index // second value operand: KindOp2/KindIndex/KindSetField/KindSetIndex second operand
	C Index // third value operand: KindSetIndex value operand

	Target uint32 // KindGoto target instruction index

	Sym symbol.Symbol // KindConst, KindField, KindSetField

	BoolVal  bool    // KindConstBool
	IntVal   int64   // KindConstInt
	FloatVal float64 // KindConstFloat

	Op1 Op1 // KindOp1
	Op2 Op2 // KindOp2
}

func Label(arity uint32) Inst        { return Inst{Kind: KindLabel, Arity: arity} }
func Get(index uint32) Inst          { return Inst{Kind: KindGet, Index: index} }
func Put(v Index) Inst               { return Inst{Kind: KindPut, A: v} }
func Goto(target uint32) Inst        { return Inst{Kind: KindGoto, Target: target} }
func GotoStaticError() Inst          { return Inst{Kind: KindGotoStaticError} }
func Cond(v Index) Inst              { return Inst{Kind: KindCond, A: v} }
func Ret() Inst                      { return Inst{Kind: KindRet} }
func Call(f Index) Inst              { return Inst{Kind: KindCall, A: f} }
func TailCall(f Index) Inst          { return Inst{Kind: KindTailCall, A: f} }
func Const(s symbol.Symbol) Inst     { return Inst{Kind: KindConst, Sym: s} }
func ConstBool(b bool) Inst          { return Inst{Kind: KindConstBool, BoolVal: b} }
func ConstInt(n int64) Inst          { return Inst{Kind: KindConstInt, IntVal: n} }
func ConstFloat(f float64) Inst      { return Inst{Kind: KindConstFloat, FloatVal: f} }
func MakeOp1(op Op1, v Index) Inst   { return Inst{Kind: KindOp1, Op1: op, A: v} }
func MakeOp2(op Op2, x, y Index) Inst {
	return Inst{Kind: KindOp2, Op2: op, A: x, B: y}
}
func Field(v Index, s symbol.Symbol) Inst { return Inst{Kind: KindField, A: v, Sym: s} }
func IndexInst(x, y Index) Inst           { return Inst{Kind: KindIndex, A: x, B: y} }
func Local(v Index) Inst                  { return Inst{Kind: KindLocal, A: v} }
func GetLocal(local uint32) Inst          { return Inst{Kind: KindGetLocal, Index: local} }
func SetLocal(local uint32, v Index) Inst { return Inst{Kind: KindSetLocal, Index: local, A: v} }
func SetField(x Index, s symbol.Symbol, y Index) Inst {
	return Inst{Kind: KindSetField, A: x, Sym: s, B: y}
}
func SetIndex(x, y, z Index) Inst { return Inst{Kind: KindSetIndex, A: x, B: y, C: z} }

// String renders one instruction for diagnostics and the irprint package.
func (inst Inst) String() string {
	switch inst.Kind {
	case KindLabel:
		return fmt.Sprintf("label(%d)", inst.Arity)
	case KindGet:
		return fmt.Sprintf("get %d", inst.Index)
	case KindPut:
		return fmt.Sprintf("put %%%d", inst.A)
	case KindGoto:
		return fmt.Sprintf("goto @%d", inst.Target)
	case KindGotoStaticError:
		return "goto.static_error"
	case KindCond:
		return fmt.Sprintf("cond %%%d", inst.A)
	case KindRet:
		return "ret"
	case KindCall:
		return fmt.Sprintf("call %%%d", inst.A)
	case KindTailCall:
		return fmt.Sprintf("tailcall %%%d", inst.A)
	case KindConst:
		return fmt.Sprintf("const %s", inst.Sym)
	case KindConstBool:
		return fmt.Sprintf("const.bool %t", inst.BoolVal)
	case KindConstInt:
		return fmt.Sprintf("const.i64 %d", inst.IntVal)
	case KindConstFloat:
		return fmt.Sprintf("const.f64 %v", inst.FloatVal)
	case KindOp1:
		return fmt.Sprintf("%s %%%d", inst.Op1, inst.A)
	case KindOp2:
		return fmt.Sprintf("%%%d %s %%%d", inst.A, inst.Op2, inst.B)
	case KindField:
		return fmt.Sprintf("%%%d.%s", inst.A, inst.Sym)
	case KindIndex:
		return fmt.Sprintf("%%%d[%%%d]", inst.A, inst.B)
	case KindLocal:
		return fmt.Sprintf("local %%%d", inst.A)
	case KindGetLocal:
		return fmt.Sprintf("getlocal %d", inst.Index)
	case KindSetLocal:
		return fmt.Sprintf("setlocal %d, %%%d", inst.Index, inst.A)
	case KindSetField:
		return fmt.Sprintf("%%%d.%s = %%%d", inst.A, inst.Sym, inst.B)
	case KindSetIndex:
		return fmt.Sprintf("%%%d[%%%d] = %%%d", inst.A, inst.B, inst.C)
	default:
		return "<bad Inst>"
	}
}

// IsTerminator reports whether inst ends a basic block: the next
// instruction in a well-formed function body is a Label, the second Goto
// of a Cond's pair, or the end of the function.
func (inst Inst) IsTerminator() bool {
	switch inst.Kind {
	case KindRet, KindTailCall, KindGoto, KindGotoStaticError:
		return true
	default:
		return false
	}
}

// Fun names the contiguous range [Pos, Pos+Len) of a Module's Code that
// holds one function's instructions.
type Fun struct {
	Name symbol.Symbol
	Pos  uint32
	Len  uint32
}

// Module is the lowerer's output: a flat instruction sequence shared by
// every function it contains, plus a table locating each function's range.
type Module struct {
	Code  []Inst
	Items []Fun
}

// FuncCode returns the instruction slice for fn.
func (m *Module) FuncCode(fn Fun) []Inst {
	return m.Code[fn.Pos : fn.Pos+fn.Len]
}

// String renders the whole module, one function at a time, one
// instruction per line with its own index as a value name prefix.
func (m *Module) String() string {
	var b strings.Builder
	for _, fn := range m.Items {
		fmt.Fprintf(&b, "fun %s:\n", fn.Name)
		for i := fn.Pos; i < fn.Pos+fn.Len; i++ {
			fmt.Fprintf(&b, "  %4d: %s\n", i, m.Code[i])
		}
	}
	return b.String()
}
