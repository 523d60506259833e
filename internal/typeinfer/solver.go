// Package typeinfer resolves every value-producing instruction's type
// and every function's return type, using two parallel union-find
// lattices (internal/unionfind) — one for value-types, one for
// return-types — and a worklist that propagates structural-equality
// constraints to a fixed point.
package typeinfer

import (
	"nettle/internal/ir"
	"nettle/internal/unionfind"
)

// TypeVar names a node in the value-type lattice.
type TypeVar unionfind.Id

// RetTypeVar names a node in the return-type lattice.
type RetTypeVar unionfind.Id

type valKind int

const (
	valAbstract valKind = iota
	valArray
	valBool
	valFun
	valI64
	valF64
	valTypeError
)

// valType is the value-type lattice's element: an unresolved, partially
// constrained shape that accumulates structure as unification proceeds.
// Resolve walks it down to an ir.ValType once propagation reaches a
// fixed point.
type valType struct {
	kind   valKind
	elem   TypeVar    // valArray
	params []TypeVar  // valFun
	ret    RetTypeVar // valFun
}

type retKind int

const (
	retAbstract retKind = iota
	retValues
	retTypeError
)

type retType struct {
	kind   retKind
	values []TypeVar // retValues
}

type todoKind int

const (
	todoValType todoKind = iota
	todoRetType
)

// todoItem is a deferred structural constraint: two lattice nodes that
// must themselves be unified once their enclosing nodes have merged.
type todoItem struct {
	kind todoKind
	a, b unionfind.Id
}

// unifyImpl merges y into *x, mirroring the source's unify_impl: an
// Abstract side yields to the other, matching concrete kinds survive,
// Array/Fun push their substructure onto todo for deferred unification,
// and anything else collapses to TypeError (the lattice's absorbing
// element).
func unifyImpl(x *valType, y valType, todo *[]todoItem) {
	old := *x
	switch {
	case old.kind == valAbstract:
		*x = y
	case y.kind == valAbstract:
		*x = old
	case old.kind == valBool && y.kind == valBool:
		*x = valType{kind: valBool}
	case old.kind == valI64 && y.kind == valI64:
		*x = valType{kind: valI64}
	case old.kind == valF64 && y.kind == valF64:
		*x = valType{kind: valF64}
	case old.kind == valArray && y.kind == valArray:
		*todo = append(*todo, todoItem{kind: todoValType, a: unionfind.Id(old.elem), b: unionfind.Id(y.elem)})
		*x = old
	case old.kind == valFun && y.kind == valFun:
		if len(old.params) != len(y.params) {
			*x = valType{kind: valTypeError}
		} else {
			for i := range old.params {
				*todo = append(*todo, todoItem{kind: todoValType, a: unionfind.Id(old.params[i]), b: unionfind.Id(y.params[i])})
			}
			*todo = append(*todo, todoItem{kind: todoRetType, a: unionfind.Id(old.ret), b: unionfind.Id(y.ret)})
			*x = old
		}
	default:
		*x = valType{kind: valTypeError}
	}
}

// unifyRetImpl is unifyImpl's counterpart for the return-type lattice.
func unifyRetImpl(x *retType, y retType, todo *[]todoItem) {
	old := *x
	switch {
	case old.kind == retAbstract:
		*x = y
	case y.kind == retAbstract:
		*x = old
	case old.kind == retTypeError || y.kind == retTypeError:
		*x = retType{kind: retTypeError}
	case old.kind == retValues && y.kind == retValues:
		if len(old.values) != len(y.values) {
			*x = retType{kind: retTypeError}
		} else {
			for i := range old.values {
				*todo = append(*todo, todoItem{kind: todoValType, a: unionfind.Id(old.values[i]), b: unionfind.Id(y.values[i])})
			}
			*x = old
		}
	default:
		*x = retType{kind: retTypeError}
	}
}

// solver owns the two lattices and the pending-constraint worklist.
type solver struct {
	valtypes unionfind.UnionFind[valType]
	rettypes unionfind.UnionFind[retType]
	todo     []todoItem
}

func newSolver() *solver {
	return &solver{}
}

func (s *solver) fresh() TypeVar {
	return TypeVar(s.valtypes.Put(valType{kind: valAbstract}))
}

func (s *solver) freshRet() RetTypeVar {
	return RetTypeVar(s.rettypes.Put(retType{kind: retAbstract}))
}

func (s *solver) bound(x TypeVar, t valType) {
	unifyImpl(s.valtypes.At(unionfind.Id(x)), t, &s.todo)
}

func (s *solver) boundRet(x RetTypeVar, vs []TypeVar) {
	unifyRetImpl(s.rettypes.At(unionfind.Id(x)), retType{kind: retValues, values: vs}, &s.todo)
}

func (s *solver) unify(x, y TypeVar) {
	survivor, displaced, ok := s.valtypes.Union(unionfind.Id(x), unionfind.Id(y))
	if ok {
		unifyImpl(survivor, displaced, &s.todo)
	}
}

func (s *solver) unifyRet(x, y RetTypeVar) {
	survivor, displaced, ok := s.rettypes.Union(unionfind.Id(x), unionfind.Id(y))
	if ok {
		unifyRetImpl(survivor, displaced, &s.todo)
	}
}

// propagate drains the worklist to a fixed point. The RetType branch is
// the completion of a stub left unimplemented in the source
// (typecheck.rs's propagate had `Todo::RetType(x, y) => unimplemented!()`
// where the ValType arm calls unify_impl): it calls unifyRetImpl the
// same way the ValType arm calls unifyImpl, which is the only way a
// Fun's return-type actually gets constrained by a call site.
func (s *solver) propagate() {
	for len(s.todo) > 0 {
		item := s.todo[len(s.todo)-1]
		s.todo = s.todo[:len(s.todo)-1]
		switch item.kind {
		case todoValType:
			s.unify(TypeVar(item.a), TypeVar(item.b))
		case todoRetType:
			s.unifyRet(RetTypeVar(item.a), RetTypeVar(item.b))
		}
	}
}

// Resolve and ResolveRet below detect cycles via a pair of in-progress
// sets threaded through the mutually recursive walk: re-entering a
// lattice node already being resolved means the program's inferred
// types are cyclic, which resolves to TypeError rather than recursing
// forever. The source's resolve/resolve_ret left this an open question
// ("recursive types?" / "???" in its own comments).

func (s *solver) Resolve(x TypeVar) ir.ValType {
	return s.resolve(x, map[unionfind.Id]bool{}, map[unionfind.Id]bool{})
}

func (s *solver) ResolveRet(x RetTypeVar) ir.RetType {
	return s.resolveRet(x, map[unionfind.Id]bool{}, map[unionfind.Id]bool{})
}

func (s *solver) resolve(x TypeVar, visitingVal, visitingRet map[unionfind.Id]bool) ir.ValType {
	id := s.valtypes.Find(unionfind.Id(x))
	if visitingVal[id] {
		return ir.TypeError()
	}
	visitingVal[id] = true
	defer delete(visitingVal, id)

	v := *s.valtypes.At(unionfind.Id(x))
	switch v.kind {
	case valAbstract:
		return ir.Abstract()
	case valBool:
		return ir.Bool()
	case valI64:
		return ir.I64()
	case valF64:
		return ir.F64()
	case valArray:
		return ir.Array(s.resolve(v.elem, visitingVal, visitingRet))
	case valFun:
		params := make([]ir.ValType, len(v.params))
		for i, p := range v.params {
			params[i] = s.resolve(p, visitingVal, visitingRet)
		}
		return ir.FunType(params, s.resolveRet(v.ret, visitingVal, visitingRet))
	default:
		return ir.TypeError()
	}
}

func (s *solver) resolveRet(x RetTypeVar, visitingVal, visitingRet map[unionfind.Id]bool) ir.RetType {
	id := s.rettypes.Find(unionfind.Id(x))
	if visitingRet[id] {
		return ir.RetErrorType()
	}
	visitingRet[id] = true
	defer delete(visitingRet, id)

	v := *s.rettypes.At(unionfind.Id(x))
	switch v.kind {
	case retAbstract:
		return ir.RetAbstractType()
	case retTypeError:
		return ir.RetErrorType()
	case retValues:
		vs := make([]ir.ValType, len(v.values))
		for i, tv := range v.values {
			vs[i] = s.resolve(tv, visitingVal, visitingRet)
		}
		return ir.RetValuesType(vs)
	default:
		return ir.RetErrorType()
	}
}
