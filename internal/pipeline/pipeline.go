// Package pipeline drives the front end across a whole project: one
// source file per goroutine through the lexer and parser, joined into
// a single function list that is lowered and type-checked once. Lexing
// and parsing are independent per file, so they fan out; lowering
// assigns every instruction an address in one shared Module, so it and
// type inference run once over the joined result rather than per file.
package pipeline

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"nettle/internal/arena"
	"nettle/internal/ast"
	"nettle/internal/astbuild"
	"nettle/internal/errors"
	"nettle/internal/ir"
	"nettle/internal/lexer"
	"nettle/internal/lower"
	"nettle/internal/parser"
	"nettle/internal/typeinfer"
)

// File is one source file submitted to a Run.
type File struct {
	Name   string
	Source string
}

// Result is a fully built, type-checked program.
type Result struct {
	Module *ir.Module
	Types  *typeinfer.Result
}

// Run lexes and parses every file concurrently, then lowers and
// type-checks the combined function list. Every file is parsed to the
// end (the goroutines do not observe cancellation), and then the first
// parse error that occurred is returned; file
// order in the combined module follows files' order in the input
// slice, not completion order, so output is deterministic regardless
// of goroutine scheduling.
func Run(ctx context.Context, files []File) (*Result, error) {
	parsed := make([][]ast.Fun, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		i, f := i, f
		g.Go(func() error {
			funs, err := parseFile(f)
			if err != nil {
				return err
			}
			parsed[i] = funs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var combined []ast.Fun
	for _, funs := range parsed {
		combined = append(combined, funs...)
	}
	if err := checkDuplicateFunctions(files, parsed); err != nil {
		return nil, err
	}

	m := lower.Lower(combined)
	t := typeinfer.Typecheck(m)
	return &Result{Module: m, Types: t}, nil
}

func parseFile(f File) ([]ast.Fun, error) {
	toks := lexer.NewScanner(f.Source).ScanTokens()
	b := astbuild.New(arena.New())
	p := parser.New(toks, f.Name, b)
	if err := p.Parse(); err != nil {
		return nil, err
	}
	return b.Finish(), nil
}

// checkDuplicateFunctions raises a BuildError naming both files when
// two files define a function with the same name; the lowerer has no
// notion of files and would otherwise silently shadow one definition.
func checkDuplicateFunctions(files []File, parsed [][]ast.Fun) error {
	seenIn := make(map[string]string)
	for i, funs := range parsed {
		for _, fn := range funs {
			name := fn.Name.String()
			if other, ok := seenIn[name]; ok {
				return errors.NewBuildError(fmt.Sprintf("function %q defined in both %s and %s", name, other, files[i].Name))
			}
			seenIn[name] = files[i].Name
		}
	}
	return nil
}

// SortedNames returns the function names present in m.Items, sorted,
// for stable diagnostic listing (e.g. "no function named main").
func SortedNames(m *ir.Module) []string {
	names := make([]string, len(m.Items))
	for i, fn := range m.Items {
		names[i] = fn.Name.String()
	}
	sort.Strings(names)
	return names
}
