// Package irprint renders an *ir.Module as readable text for the "nettle
// ir" and "nettle build" commands: one function per block, one
// instruction per line, labels set off as block headers. It walks the
// module the way the source walked its own Stmt/Expr tree to build
// source text back up, just one level lower — instructions instead of
// statements, value indices instead of variable names.
package irprint

import (
	"fmt"
	"strings"

	"nettle/internal/ir"
	"nettle/internal/typeinfer"
)

// Printer accumulates rendered text across one or more functions. The
// zero value is ready to use.
type Printer struct {
	// Types, if non-nil, annotates every value-producing instruction
	// and function signature with its inferred type.
	Types *typeinfer.Result

	indent int
	out    strings.Builder
}

func New() *Printer { return &Printer{} }

// WithTypes attaches a type-inference result so subsequent Print calls
// annotate value instructions and function signatures.
func (p *Printer) WithTypes(r *typeinfer.Result) *Printer {
	p.Types = r
	return p
}

func (p *Printer) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.out.WriteString("    ")
	}
}

// Print renders the whole module and returns the accumulated text.
func (p *Printer) Print(m *ir.Module) string {
	p.out.Reset()
	p.indent = 0
	for i, fn := range m.Items {
		p.printFun(m, fn)
		if i < len(m.Items)-1 {
			p.out.WriteString("\n")
		}
	}
	return p.out.String()
}

// PrintFun renders a single function's code in isolation.
func (p *Printer) PrintFun(m *ir.Module, fn ir.Fun) string {
	p.out.Reset()
	p.indent = 0
	p.printFun(m, fn)
	return p.out.String()
}

func (p *Printer) printFun(m *ir.Module, fn ir.Fun) {
	p.out.WriteString("fun ")
	p.out.WriteString(fn.Name.String())
	if p.Types != nil {
		p.out.WriteString(" -> ")
		p.out.WriteString(p.Types.FunctionReturnType(fn).String())
	}
	p.out.WriteString(":\n")

	p.indent++
	code := m.FuncCode(fn)
	for i := range code {
		idx := ir.Index(fn.Pos) + ir.Index(i)
		p.printInst(m, idx, code[i])
	}
	p.indent--
}

func (p *Printer) printInst(m *ir.Module, idx ir.Index, inst ir.Inst) {
	if inst.Kind == ir.KindLabel {
		p.indent--
		p.writeIndent()
		fmt.Fprintf(&p.out, "@%d(arity %d):\n", idx, inst.Arity)
		p.indent++
		return
	}

	p.writeIndent()
	fmt.Fprintf(&p.out, "%4d: %s", idx, inst)
	if p.valueProducing(inst.Kind) && p.Types != nil {
		fmt.Fprintf(&p.out, "  ; %s", p.Types.ValueTypeAt(idx))
	}
	p.out.WriteString("\n")
}

func (p *Printer) valueProducing(k ir.Kind) bool {
	switch k {
	case ir.KindGet, ir.KindConst, ir.KindConstBool, ir.KindConstInt, ir.KindConstFloat,
		ir.KindOp1, ir.KindOp2, ir.KindField, ir.KindIndex, ir.KindLocal, ir.KindGetLocal:
		return true
	default:
		return false
	}
}
