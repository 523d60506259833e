// Package lower turns an AST into a linear ir.Module: one flat
// instruction stream per function, with explicit Get/Put argument
// passing across basic-block boundaries instead of SSA phi nodes.
package lower

import (
	"nettle/internal/ir"
	"nettle/internal/symbol"
)

// referentKind distinguishes a single-assignment let-binding from a
// mutable var slot.
type referentKind int

const (
	referentValue referentKind = iota
	referentLocal
)

// referent is what a name in scope resolves to: either the value index
// that produced it (for let-bound names, reused directly wherever the
// name appears) or the local slot id a Local instruction allocated (for
// var-bound names, read and written through GetLocal/SetLocal).
type referent struct {
	kind  referentKind
	index uint32
}

// point is an unpatched forward jump: the index of a Goto instruction
// awaiting a target, optionally constrained to land on a label of a
// specific arity.
type point struct {
	index    uint32
	hasArity bool
	arity    uint32
}

// label names an already-emitted Label instruction by its position and
// arity, so later code can validate and patch jumps into it.
type label struct {
	index uint32
	arity uint32
}

// undoEntry records what putReferent displaced, so popScope can restore
// it: the symbol, whether it had a prior binding, and that prior binding.
type undoEntry struct {
	sym    symbol.Symbol
	hadOld bool
	old    referent
}

// scopeStack is the lowerer's symbol table: a single flat map plus an
// undo log, so entering and leaving a lexical scope is O(bindings made
// in that scope) rather than O(table size).
type scopeStack struct {
	counts []int
	undo   []undoEntry
	table  map[symbol.Symbol]referent
}

func newScopeStack() *scopeStack {
	return &scopeStack{table: make(map[symbol.Symbol]referent)}
}

func (s *scopeStack) pushScope() {
	s.counts = append(s.counts, 0)
}

// popScope undoes every binding made since the matching pushScope,
// replaying the undo log newest-first so that a name bound twice within
// one scope is restored to what it meant before the scope was entered.
func (s *scopeStack) popScope() {
	n := len(s.counts) - 1
	count := s.counts[n]
	s.counts = s.counts[:n]
	entries := popList(&s.undo, uint32(count))
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.hadOld {
			s.table[e.sym] = e.old
		} else {
			delete(s.table, e.sym)
		}
	}
}

func (s *scopeStack) putReferent(sym symbol.Symbol, r referent) {
	old, had := s.table[sym]
	s.table[sym] = r
	s.undo = append(s.undo, undoEntry{sym: sym, hadOld: had, old: old})
	s.counts[len(s.counts)-1]++
}

func (s *scopeStack) getReferent(sym symbol.Symbol) (referent, bool) {
	r, ok := s.table[sym]
	return r, ok
}

// loopKind distinguishes the context a break/continue statement is
// lowered against.
type loopKind int

const (
	loopTopLevel loopKind = iota // not inside any loop: break/continue is a static error
	loopNonTail                  // inside a loop reached in non-tail position
	loopTail                     // inside a loop reached in tail position
)

// loopInfo is one entry of the loop stack. nBreaks counts how many
// break points this loop has accumulated in loopStack.breaks so far.
type loopInfo struct {
	kind    loopKind
	label   label
	nBreaks uint32
}

// loopStack tracks enclosing loops for break/continue lowering. breaks
// is a shared side buffer: each loop's break points live in the
// trailing nBreaks slots of breaks at the time that loop is popped.
type loopStack struct {
	info   []loopInfo
	breaks []point
}

func newLoopStack() *loopStack {
	return &loopStack{info: []loopInfo{{kind: loopTopLevel}}}
}

func (l *loopStack) putLoop(a label) {
	l.info = append(l.info, loopInfo{kind: loopNonTail, label: a})
}

// popLoop removes the innermost loop and appends its break points onto
// points, returning how many were appended.
func (l *loopStack) popLoop(points *[]point) uint32 {
	n := len(l.info) - 1
	top := l.info[n]
	l.info = l.info[:n]
	ps := popList(&l.breaks, top.nBreaks)
	*points = append(*points, ps...)
	return top.nBreaks
}

func (l *loopStack) putLoopTail(a label) {
	l.info = append(l.info, loopInfo{kind: loopTail, label: a})
}

func (l *loopStack) popLoopTail() {
	l.info = l.info[:len(l.info)-1]
}

func (l *loopStack) top() loopInfo {
	return l.info[len(l.info)-1]
}

// addBreak records a break point against the innermost (non-tail) loop.
func (l *loopStack) addBreak(p point) {
	l.breaks = append(l.breaks, p)
	l.info[len(l.info)-1].nBreaks++
}

// popList removes and returns the last n elements of *stack, in their
// original (ascending, push) order. This is the Go analogue of the
// source's Buf::pop_list, confirmed by reading buf.rs's PopList
// iterator: it starts at the low end of the popped segment and walks
// forward, so callers relying on positional order (Call's argument
// Puts, a label's Get(0..n-1)) see elements 0..n-1 in that order.
func popList[T any](stack *[]T, n uint32) []T {
	s := *stack
	k := len(s) - int(n)
	out := append([]T(nil), s[k:]...)
	*stack = s[:k]
	return out
}

// popOne removes and returns the last element of *stack.
func popOne[T any](stack *[]T) T {
	s := *stack
	v := s[len(s)-1]
	*stack = s[:len(s)-1]
	return v
}

// env is the lowerer's mutable state threaded through one function's
// compilation: the scope and loop stacks, plus the two side buffers
// (pending values, pending jump points) that let expressions hand
// results to their caller without an explicit return slot.
type env struct {
	scopes *scopeStack
	loops  *loopStack
	values []ir.Index
	points []point
}

func newEnv() *env {
	return &env{scopes: newScopeStack(), loops: newLoopStack()}
}

// out is the instruction sink: compiling always appends, never
// rewrites, except for patchPointList fixing up previously emitted
// placeholder Gotos once their target label is known.
type out struct {
	code []ir.Inst
}

func (o *out) emit(inst ir.Inst) ir.Index {
	n := ir.Index(len(o.code))
	o.code = append(o.code, inst)
	return n
}

// emitPoint emits a placeholder Goto (target patched in later) and
// returns a point describing it. hasArity/arity record the arity the
// eventual target label must have, if the caller requires one.
func (o *out) emitPoint(hasArity bool, arity uint32) point {
	i := o.emit(ir.Goto(0))
	return point{index: uint32(i), hasArity: hasArity, arity: arity}
}

// emitLabel emits a Label(arity) and patches every point in ps to jump
// to it, failing points whose required arity does not match.
func (o *out) emitLabel(arity uint32, ps []point) label {
	i := o.emit(ir.Label(arity))
	a := label{index: uint32(i), arity: arity}
	patchPointList(a, ps, o)
	return a
}

// patchPointList rewrites each point in ps into a Goto targeting a, or
// into GotoStaticError if a's arity does not match what the point
// requires.
func patchPointList(a label, ps []point, o *out) {
	for _, p := range ps {
		if p.hasArity && p.arity != a.arity {
			o.code[p.index] = ir.GotoStaticError()
		} else {
			o.code[p.index] = ir.Goto(a.index)
		}
	}
}
