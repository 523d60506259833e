package typeinfer

import "nettle/internal/ir"

type instKind int

const (
	itEntry instKind = iota
	itLabel
	itLocal
	itNil
	itValue
)

// instType is pass 1's per-instruction record: which lattice node (or
// nodes, for a block header) this instruction corresponds to.
type instType struct {
	kind instKind
	args []TypeVar  // itEntry, itLabel: one TypeVar per Get(i) that follows
	ret  RetTypeVar // itEntry
	tv   TypeVar    // itLocal, itValue
}

// Result is the output of Typecheck: enough to resolve any
// instruction's value type or any function's return type on demand.
type Result struct {
	solver *solver
	insts  []instType
}

// ValueTypeAt resolves the value type produced by the instruction at
// index i. Instructions that produce no value (control flow, sets)
// resolve to Abstract, matching the source's blanket InstType::Nil.
func (r *Result) ValueTypeAt(i ir.Index) ir.ValType {
	it := r.insts[i]
	switch it.kind {
	case itValue, itLocal:
		return r.solver.Resolve(it.tv)
	default:
		return ir.Abstract()
	}
}

// FunctionReturnType resolves fn's return type from its entry label.
func (r *Result) FunctionReturnType(fn ir.Fun) ir.RetType {
	it := r.insts[fn.Pos]
	return r.solver.ResolveRet(it.ret)
}

// Typecheck runs the two-pass inference described above pass1 assigns a
// fresh type variable to every relevant instruction; pass2 walks the
// code again applying the structural constraints each instruction
// implies; propagate then drains the deferred worklist to a fixed
// point.
func Typecheck(m *ir.Module) *Result {
	s := newSolver()
	insts := make([]instType, len(m.Code))

	entryAt := make(map[uint32]bool, len(m.Items))
	for _, fn := range m.Items {
		entryAt[fn.Pos] = true
	}

	assignTypeVars(m, s, insts, entryAt)
	applyConstraints(m, s, insts)
	s.propagate()

	return &Result{solver: s, insts: insts}
}

func assignTypeVars(m *ir.Module, s *solver, insts []instType, entryAt map[uint32]bool) {
	for i, inst := range m.Code {
		switch inst.Kind {
		case ir.KindGet, ir.KindConst, ir.KindConstBool, ir.KindConstInt, ir.KindConstFloat,
			ir.KindField, ir.KindIndex, ir.KindGetLocal, ir.KindOp1, ir.KindOp2:
			insts[i] = instType{kind: itValue, tv: s.fresh()}

		case ir.KindLocal:
			insts[i] = instType{kind: itLocal, tv: s.fresh()}

		case ir.KindLabel:
			xs := make([]TypeVar, inst.Arity)
			for j := range xs {
				xs[j] = s.fresh()
			}
			if entryAt[uint32(i)] {
				insts[i] = instType{kind: itEntry, args: xs, ret: s.freshRet()}
			} else {
				insts[i] = instType{kind: itLabel, args: xs}
			}

		default:
			insts[i] = instType{kind: itNil}
		}
	}
}

// applyConstraints is pass 2. It tracks, as it walks forward, the
// currently-open block's argument TypeVars (labelArgs, read by each
// Get(index)) and the pending Put'd values not yet consumed by a Ret,
// ordinary Goto, or Call (outs). isCall/lastCallRet bridge a Call's
// result type across to the Goto immediately following it, completing
// a continuation wiring the source left as a TODO ("handle call
// continuations") rather than actually constraining it.
func applyConstraints(m *ir.Module, s *solver, insts []instType) {
	var outs []TypeVar
	var labelArgs []TypeVar
	var ret RetTypeVar
	isCall := false
	var lastCallRet RetTypeVar

	for i, inst := range m.Code {
		it := insts[i]
		switch inst.Kind {
		case ir.KindConstBool:
			s.bound(it.tv, valType{kind: valBool})
		case ir.KindConstInt:
			s.bound(it.tv, valType{kind: valI64})
		case ir.KindConstFloat:
			s.bound(it.tv, valType{kind: valF64})

		case ir.KindIndex:
			a := s.fresh()
			s.bound(insts[inst.A].tv, valType{kind: valArray, elem: a})
			s.bound(insts[inst.B].tv, valType{kind: valI64})
			s.unify(a, it.tv)

		case ir.KindSetIndex:
			a := s.fresh()
			s.bound(insts[inst.A].tv, valType{kind: valArray, elem: a})
			s.bound(insts[inst.B].tv, valType{kind: valI64})
			s.unify(insts[inst.C].tv, a)

		case ir.KindLocal:
			s.unify(insts[inst.A].tv, it.tv)

		case ir.KindGetLocal:
			s.unify(insts[inst.Index].tv, it.tv)

		case ir.KindSetLocal:
			s.unify(insts[inst.A].tv, insts[inst.Index].tv)

		case ir.KindOp1:
			var a, b valType
			switch inst.Op1 {
			case ir.Op1Not:
				a, b = valType{kind: valBool}, valType{kind: valBool}
			default: // Neg, Inc, Dec
				a, b = valType{kind: valI64}, valType{kind: valI64}
			}
			s.bound(insts[inst.A].tv, a)
			s.bound(it.tv, b)

		case ir.KindOp2:
			var c valType
			if inst.Op2.IsCompare() {
				c = valType{kind: valBool}
			} else {
				c = valType{kind: valI64}
			}
			s.bound(insts[inst.A].tv, valType{kind: valI64})
			s.bound(insts[inst.B].tv, valType{kind: valI64})
			s.bound(it.tv, c)

		case ir.KindLabel:
			isCall = false
			outs = nil
			labelArgs = it.args
			if it.kind == itEntry {
				ret = it.ret
			}

		case ir.KindGet:
			s.unify(it.tv, labelArgs[inst.Index])

		case ir.KindPut:
			outs = append(outs, insts[inst.A].tv)

		case ir.KindRet:
			s.boundRet(ret, outs)
			outs = nil

		case ir.KindCond:
			s.bound(insts[inst.A].tv, valType{kind: valBool})

		case ir.KindGoto:
			if isCall {
				s.boundRet(lastCallRet, insts[inst.Target].args)
				isCall = false
			} else {
				targetArgs := insts[inst.Target].args
				n := len(outs)
				if len(targetArgs) < n {
					n = len(targetArgs)
				}
				for k := 0; k < n; k++ {
					s.unify(outs[k], targetArgs[k])
				}
			}

		case ir.KindCall, ir.KindTailCall:
			xs := outs
			outs = nil
			y := s.freshRet()
			s.bound(insts[inst.A].tv, valType{kind: valFun, params: xs, ret: y})
			isCall = true
			lastCallRet = y

		default:
			// Const, Field, GotoStaticError, SetField: the source applies no
			// constraint to these either; field/symbol access stays Abstract.
		}
	}
}
