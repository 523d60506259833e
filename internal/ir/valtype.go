package ir

import "strings"

// ValTypeKind tags the shape of a resolved ValType.
type ValTypeKind int

const (
	ValAbstract ValTypeKind = iota
	ValBool
	ValI64
	ValF64
	ValArray
	ValFun
	ValTypeError
)

// ValType is a resolved value-type, the output of the type inferer for a
// single value-producing instruction. Array and Fun carry nested ValTypes;
// the zero value is Abstract.
type ValType struct {
	Kind   ValTypeKind
	Elem   *ValType   // ValArray
	Params []ValType  // ValFun
	Ret    *RetType   // ValFun
}

func Abstract() ValType    { return ValType{Kind: ValAbstract} }
func Bool() ValType        { return ValType{Kind: ValBool} }
func I64() ValType         { return ValType{Kind: ValI64} }
func F64() ValType         { return ValType{Kind: ValF64} }
func TypeError() ValType   { return ValType{Kind: ValTypeError} }
func Array(e ValType) ValType {
	return ValType{Kind: ValArray, Elem: &e}
}
func FunType(params []ValType, ret RetType) ValType {
	return ValType{Kind: ValFun, Params: params, Ret: &ret}
}

func (v ValType) String() string {
	switch v.Kind {
	case ValAbstract:
		return "abstract"
	case ValBool:
		return "bool"
	case ValI64:
		return "i64"
	case ValF64:
		return "f64"
	case ValTypeError:
		return "<type error>"
	case ValArray:
		return "[" + v.Elem.String() + "]"
	case ValFun:
		var b strings.Builder
		b.WriteString("fun(")
		for i, p := range v.Params {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.String())
		}
		b.WriteString(") -> ")
		b.WriteString(v.Ret.String())
		return b.String()
	default:
		return "<bad ValType>"
	}
}

// RetTypeKind tags the shape of a resolved RetType.
type RetTypeKind int

const (
	RetAbstract RetTypeKind = iota
	RetValues
	RetTypeError
)

// RetType is a resolved return-type: the tuple of values a function
// returns.
type RetType struct {
	Kind   RetTypeKind
	Values []ValType
}

func RetAbstractType() RetType { return RetType{Kind: RetAbstract} }
func RetErrorType() RetType    { return RetType{Kind: RetTypeError} }
func RetValuesType(vs []ValType) RetType {
	return RetType{Kind: RetValues, Values: vs}
}

func (r RetType) String() string {
	switch r.Kind {
	case RetAbstract:
		return "abstract"
	case RetTypeError:
		return "<type error>"
	case RetValues:
		var b strings.Builder
		b.WriteString("(")
		for i, v := range r.Values {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(v.String())
		}
		b.WriteString(")")
		return b.String()
	default:
		return "<bad RetType>"
	}
}
