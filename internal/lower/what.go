package lower

import "nettle/internal/ir"

// whatKind tags which side buffer a what's pending result lives in.
type whatKind int

const (
	whatPoints whatKind = iota // n pending jump points, each needing a join label
	whatValues                 // n pending values already sitting on e.values
)

// what describes what compileExpr/compileStmt left behind instead of
// returning a value directly: either some number of unresolved jump
// points (the expression branched and every branch still needs to join)
// or some number of values already pushed onto env.values. The four
// into* methods are the only way to consume a what, and each performs
// the join/coercion the expression's arity requires.
type what struct {
	kind whatKind
	n    uint32
}

// whatNever describes a statement that never falls through (return,
// break, continue): zero pending points, nothing to join.
func whatNever() what { return what{kind: whatPoints, n: 0} }

// whatNil describes a statement that always falls through producing no
// value (let, var, set, set-field, set-index).
func whatNil() what { return what{kind: whatValues, n: 0} }

// intoNil discards a what's result, joining any pending points into an
// empty label and discarding any pending values behind a static error
// if there were any (there should never be, for a well-typed program,
// but an ill-typed one can reach here and must fail at runtime rather
// than corrupt the value stack).
func (w what) intoNil(e *env, o *out) {
	switch w.kind {
	case whatPoints:
		ps := popList(&e.points, w.n)
		o.emitLabel(0, ps)
	case whatValues:
		if w.n != 0 {
			popList(&e.values, w.n)
			o.emit(ir.GotoStaticError())
			o.emit(ir.Label(0))
		}
	}
}

// intoValue coerces a what into exactly one value, joining pending
// points through a 1-ary label if needed.
func (w what) intoValue(e *env, o *out) ir.Index {
	switch w.kind {
	case whatPoints:
		ps := popList(&e.points, w.n)
		o.emitLabel(1, ps)
		return o.emit(ir.Get(0))
	default:
		if w.n == 1 {
			return popOne(&e.values)
		}
		popList(&e.values, w.n)
		o.emit(ir.GotoStaticError())
		o.emit(ir.Label(1))
		return o.emit(ir.Get(0))
	}
}

// intoValueList coerces a what into exactly arity values, pushed onto
// e.values in order. If the values are already present with the right
// count, this is a no-op; otherwise it joins through a label of the
// required arity (failing mismatched-arity points with a static error).
func (w what) intoValueList(arity uint32, e *env, o *out) {
	switch w.kind {
	case whatPoints:
		ps := popList(&e.points, w.n)
		o.emitLabel(arity, ps)
		for i := uint32(0); i < arity; i++ {
			x := o.emit(ir.Get(i))
			e.values = append(e.values, x)
		}
	default:
		if arity != w.n {
			popList(&e.values, w.n)
			o.emit(ir.GotoStaticError())
			o.emit(ir.Label(arity))
			for i := uint32(0); i < arity; i++ {
				x := o.emit(ir.Get(i))
				e.values = append(e.values, x)
			}
		}
	}
}

// intoPointList coerces a what into pending points, returning how many
// points it leaves on e.points: if the what already holds points, they
// pass through untouched and w.n is returned; if it holds values, those
// values are Put and a single new point is emitted to carry them to the
// next join, and 1 is returned.
func (w what) intoPointList(e *env, o *out) uint32 {
	switch w.kind {
	case whatPoints:
		return w.n
	default:
		vs := popList(&e.values, w.n)
		for _, v := range vs {
			o.emit(ir.Put(v))
		}
		p := o.emitPoint(true, w.n)
		e.points = append(e.points, p)
		return 1
	}
}
