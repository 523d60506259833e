// cmd/nettle/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"

	"nettle/cmd/nettle/commands"
	"nettle/internal/arena"
	"nettle/internal/astbuild"
	"nettle/internal/diagserver"
	"nettle/internal/errors"
	"nettle/internal/irprint"
	"nettle/internal/lexer"
	"nettle/internal/parser"
	"nettle/internal/pipeline"
	"nettle/internal/replui"
)

const version = "0.1.0"

// commandAliases maps a short form to its full command name.
var commandAliases = map[string]string{
	"b": "build",
	"w": "watch",
	"r": "repl",
	"t": "test",
	"c": "check",
	"i": "ir",
}

func main() {
	args := os.Args[1:]
	if len(args) == 0 {
		showUsage()
		return
	}

	cmd := args[0]
	if alias, ok := commandAliases[cmd]; ok {
		cmd = alias
	}

	if cmd == "--help" || cmd == "-h" || cmd == "help" {
		if len(args) > 1 {
			showCommandHelp(args[1])
		} else {
			showUsage()
		}
		return
	}

	if cmd == "--version" || cmd == "-v" || cmd == "version" {
		fmt.Printf("nettle %s\n", version)
		return
	}

	switch cmd {
	case "init":
		if err := commands.InitCommand(args[1:]); err != nil {
			log.Fatalf("Error: %v", err)
		}
	case "build":
		if err := commands.BuildCommand(args[1:]); err != nil {
			log.Fatalf("Error: %v", err)
		}
	case "watch":
		if err := commands.WatchCommand(args[1:]); err != nil {
			log.Fatalf("Error: %v", err)
		}
	case "clean":
		if err := commands.CleanCommand(args[1:]); err != nil {
			log.Fatalf("Error: %v", err)
		}
	case "test":
		if err := commands.TestCommand(args[1:]); err != nil {
			log.Fatalf("Error: %v", err)
		}
	case "check":
		checkSyntax(args[1:])
	case "ir":
		printIR(args[1:])
	case "repl":
		if err := replui.Start(replui.Options{NoColor: os.Getenv("NO_COLOR") != ""}); err != nil {
			log.Fatalf("Error: %v", err)
		}
	case "serve":
		serveDiagnostics(args[1:])
	default:
		suggestCommand(cmd)
	}
}

func readArgFile(args []string) (string, string, error) {
	if len(args) == 0 {
		return "", "", fmt.Errorf("expected a file argument")
	}
	src, err := os.ReadFile(args[0])
	if err != nil {
		return "", "", fmt.Errorf("could not read file: %w", err)
	}
	return args[0], string(src), nil
}

func checkSyntax(args []string) {
	filename, src, err := readArgFile(args)
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	toks := lexer.NewScanner(src).ScanTokens()
	b := astbuild.New(arena.New())
	p := parser.New(toks, filename, b)
	if err := p.Parse(); err != nil {
		fmt.Fprintln(os.Stderr, formatErr(err))
		os.Exit(1)
	}
	fmt.Printf("%s: syntax is valid\n", filename)
}

func printIR(args []string) {
	var verbose bool
	var files []string
	for _, a := range args {
		if a == "-v" || a == "--types" {
			verbose = true
			continue
		}
		files = append(files, a)
	}
	if len(files) == 0 {
		log.Fatal("Error: expected at least one file argument")
	}

	pfiles := make([]pipeline.File, len(files))
	for i, f := range files {
		src, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("Error: could not read %s: %v", f, err)
		}
		pfiles[i] = pipeline.File{Name: f, Source: string(src)}
	}

	result, err := pipeline.Run(context.Background(), pfiles)
	if err != nil {
		fmt.Fprintln(os.Stderr, formatErr(err))
		os.Exit(1)
	}

	printer := irprint.New()
	if verbose {
		printer = printer.WithTypes(result.Types)
	}
	fmt.Print(printer.Print(result.Module))
}

func serveDiagnostics(args []string) {
	addr := ":7443"
	if len(args) > 0 {
		addr = args[0]
	}
	fmt.Printf("nettle diagnostics server listening on %s\n", addr)
	if err := http.ListenAndServe(addr, diagserver.New()); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func formatErr(err error) string {
	if ne, ok := err.(*errors.NettleError); ok {
		return ne.Error()
	}
	return err.Error()
}

func showUsage() {
	fmt.Println("nettle - a small AST-to-bytecode compiler")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  nettle build [dir]         Build the project                  (alias: b)")
	fmt.Println("  nettle watch [dir]         Rebuild on source changes          (alias: w)")
	fmt.Println("  nettle clean [dir]         Remove build artifacts")
	fmt.Println("  nettle init [name]         Scaffold a new project")
	fmt.Println("  nettle check <file.nt>     Check syntax without lowering      (alias: c)")
	fmt.Println("  nettle ir <file.nt...>     Print lowered IR                   (alias: i)")
	fmt.Println("  nettle ir -v <file.nt...>  Print lowered IR with inferred types")
	fmt.Println("  nettle test [files...]     Run *_test.nt fixture files        (alias: t)")
	fmt.Println("  nettle repl                Start the interactive REPL         (alias: r)")
	fmt.Println("  nettle serve [addr]        Start the websocket diagnostics server")
	fmt.Println()
	fmt.Println("  nettle help <command>      Show detailed help for a command")
	fmt.Println("  nettle --version           Show version")
}

func showCommandHelp(command string) {
	if alias, ok := commandAliases[command]; ok {
		command = alias
	}

	help := map[string]string{
		"build": `nettle build - Build the project

USAGE:
  nettle build [dir]
  nettle b [dir]

DESCRIPTION:
  Collects every .nt file under dir (default: the current directory),
  looks up the build cache by content hash, and otherwise lexes,
  parses, lowers, and type-checks the combined project, writing the
  rendered IR to dist/<name>.ir.`,

		"ir": `nettle ir - Print lowered IR

USAGE:
  nettle ir <file.nt...>
  nettle ir -v <file.nt...>   include inferred types

DESCRIPTION:
  Runs one or more files through the full front end and prints the
  resulting instructions, one per line, grouped by function.`,

		"check": `nettle check - Check syntax

USAGE:
  nettle check <file.nt>
  nettle c <file.nt>

DESCRIPTION:
  Parses a file without lowering or type-checking it.`,

		"test": `nettle test - Run fixture files

USAGE:
  nettle test [files...]
  nettle t [files...]

DESCRIPTION:
  Discovers *_test.nt files (or the given file patterns) and compiles
  each one. A fixture named *_fail.nt is expected to fail compilation;
  every other fixture is expected to compile cleanly.`,

		"repl": `nettle repl - Start the interactive REPL

USAGE:
  nettle repl
  nettle r`,

		"serve": `nettle serve - Start the diagnostics server

USAGE:
  nettle serve [addr]

DESCRIPTION:
  Serves a websocket endpoint that compiles whatever source an editor
  sends and pushes back diagnostics or rendered IR.`,
	}

	if text, ok := help[command]; ok {
		fmt.Println(text)
		return
	}
	fmt.Printf("No detailed help available for '%s'\n", command)
}

func suggestCommand(cmd string) {
	all := []string{"build", "watch", "clean", "init", "check", "ir", "test", "repl", "serve", "help", "version"}

	fmt.Fprintf(os.Stderr, "Error: unknown command '%s'\n", cmd)

	var suggestions []string
	for _, c := range all {
		if levenshtein(cmd, c) <= 2 {
			suggestions = append(suggestions, c)
		}
	}
	if len(suggestions) > 0 {
		fmt.Fprintln(os.Stderr, "\nDid you mean one of these?")
		for _, s := range suggestions {
			fmt.Fprintf(os.Stderr, "  nettle %s\n", s)
		}
	}
	fmt.Fprintln(os.Stderr, "\nRun 'nettle help' to see all available commands")
	os.Exit(1)
}

func levenshtein(a, b string) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	row := make([]int, len(b)+1)
	for j := range row {
		row[j] = j
	}
	for i := 1; i <= len(a); i++ {
		prev := row[0]
		row[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			current := min3(row[j]+1, row[j-1]+1, prev+cost)
			prev = row[j]
			row[j] = current
		}
	}
	return row[len(b)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
