// Package replui is an interactive terminal session that lexes,
// parses, lowers, and type-checks one top-level definition at a time,
// showing the resulting instructions and inferred types (or a
// diagnostic) as soon as they're ready. There is no evaluator here —
// this compiler has no runtime to hand results to — so "running" a
// line means compiling it through type inference, the same way a
// one-shot `nettle build` would.
package replui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"nettle/internal/arena"
	"nettle/internal/astbuild"
	"nettle/internal/errors"
	"nettle/internal/irprint"
	"nettle/internal/lexer"
	"nettle/internal/lower"
	"nettle/internal/parser"
	"nettle/internal/typeinfer"
)

const (
	Prompt     = ">> "
	ContPrompt = ".. "
)

// Options configures the session's presentation.
type Options struct {
	NoColor bool
}

// Start runs the session until the user exits.
func Start(options Options) error {
	p := tea.NewProgram(initialModel(options))
	_, err := p.Run()
	return err
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#7D56F4")).
			Bold(true)

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF5F87"))

	historyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#767676"))
)

type compileResultMsg struct {
	output  string
	isError bool
	elapsed time.Duration
}

type historyEntry struct {
	input    string
	output   string
	isError  bool
	elapsed  time.Duration
}

type model struct {
	textInput       textinput.Model
	spinner         spinner.Model
	history         []historyEntry
	options         Options
	compiling       bool
	currentInput    string
	multilineBuffer string
	isMultiline     bool
}

func initialModel(options Options) model {
	ti := textinput.New()
	ti.Placeholder = "fn f() { ... }"
	ti.Focus()
	ti.Width = 80
	ti.Prompt = promptStyle.Render(Prompt)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	return model{textInput: ti, spinner: s, options: options}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

func (m model) applyStyle(style lipgloss.Style, text string) string {
	if m.options.NoColor {
		return text
	}
	return style.Render(text)
}

// isBalanced reports whether every bracket/paren/brace in input is
// closed, so the session knows to keep collecting lines instead of
// compiling a definition that is still open.
func isBalanced(input string) bool {
	var stack []rune
	pairs := map[rune]rune{')': '(', ']': '[', '}': '{'}
	for _, ch := range input {
		switch ch {
		case '(', '[', '{':
			stack = append(stack, ch)
		case ')', ']', '}':
			if len(stack) == 0 || stack[len(stack)-1] != pairs[ch] {
				return false
			}
			stack = stack[:len(stack)-1]
		}
	}
	return len(stack) == 0
}

// compileCmd runs the front end and, on success, lowering and type
// inference, over one definition, asynchronously so keystrokes and the
// spinner keep animating while it runs.
func compileCmd(input string) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()

		toks := lexer.NewScanner(input).ScanTokens()
		b := astbuild.New(arena.New())
		p := parser.New(toks, "<repl>", b)
		if err := p.Parse(); err != nil {
			return compileResultMsg{
				output:  formatError(err),
				isError: true,
				elapsed: time.Since(start),
			}
		}

		m := lower.Lower(b.Finish())
		types := typeinfer.Typecheck(m)
		out := irprint.New().WithTypes(types).Print(m)

		return compileResultMsg{output: strings.TrimRight(out, "\n"), elapsed: time.Since(start)}
	}
}

func formatError(err error) string {
	if ne, ok := err.(*errors.NettleError); ok {
		return ne.Error()
	}
	return err.Error()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.compiling {
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}

	case compileResultMsg:
		m.compiling = false
		m.history = append(m.history, historyEntry{
			input:   m.currentInput,
			output:  msg.output,
			isError: msg.isError,
			elapsed: msg.elapsed,
		})
		m.currentInput = ""
		return m, nil

	case tea.KeyMsg:
		if m.compiling && msg.Type != tea.KeyCtrlC {
			return m, m.spinner.Tick
		}

		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc, tea.KeyCtrlD:
			return m, tea.Quit

		case tea.KeyEnter:
			input := m.textInput.Value()
			if input == "" {
				if m.isMultiline && m.multilineBuffer != "" {
					return m.startCompiling(m.multilineBuffer)
				}
				return m, nil
			}

			if m.isMultiline {
				m.multilineBuffer += "\n" + input
				m.textInput.SetValue("")
				if isBalanced(m.multilineBuffer) {
					return m.startCompiling(m.multilineBuffer)
				}
				return m, nil
			}

			if !isBalanced(input) {
				m.isMultiline = true
				m.multilineBuffer = input
				m.textInput.SetValue("")
				return m, nil
			}

			return m.startCompiling(input)
		}
	}

	if !m.compiling {
		m.textInput, cmd = m.textInput.Update(msg)
	}
	if m.compiling {
		return m, m.spinner.Tick
	}
	return m, cmd
}

func (m model) startCompiling(input string) (tea.Model, tea.Cmd) {
	m.compiling = true
	m.currentInput = input
	m.isMultiline = false
	m.multilineBuffer = ""
	m.textInput.SetValue("")
	return m, compileCmd(input)
}

func (m model) View() string {
	var s strings.Builder

	s.WriteString(m.applyStyle(titleStyle, " nettle "))
	s.WriteString("\n\n")

	for _, entry := range m.history {
		for i, line := range strings.Split(entry.input, "\n") {
			if i == 0 {
				s.WriteString(m.applyStyle(promptStyle, Prompt))
			} else {
				s.WriteString(m.applyStyle(promptStyle, ContPrompt))
			}
			s.WriteString(line)
			s.WriteString("\n")
		}

		if entry.isError {
			s.WriteString(m.applyStyle(errorStyle, entry.output))
		} else {
			s.WriteString(m.applyStyle(resultStyle, entry.output))
		}
		if entry.elapsed > 10*time.Millisecond {
			s.WriteString(m.applyStyle(historyStyle, fmt.Sprintf(" (%.2fms)", float64(entry.elapsed.Microseconds())/1000)))
		}
		s.WriteString("\n\n")
	}

	if m.compiling {
		s.WriteString(m.applyStyle(promptStyle, Prompt))
		s.WriteString(m.currentInput)
		s.WriteString("\n")
		s.WriteString(m.spinner.View())
		s.WriteString(" compiling...\n\n")
	}

	if m.isMultiline && !m.compiling {
		s.WriteString(m.applyStyle(historyStyle, "collecting a multi-line definition:\n"))
		s.WriteString(m.multilineBuffer)
		s.WriteString("\n")
	}

	if !m.compiling {
		if m.isMultiline {
			m.textInput.Prompt = m.applyStyle(promptStyle, ContPrompt)
		} else {
			m.textInput.Prompt = m.applyStyle(promptStyle, Prompt)
		}
		s.WriteString(m.textInput.View())
		s.WriteString("\n")
	}

	s.WriteString(m.applyStyle(historyStyle, "\nEsc/Ctrl+C to exit"))
	return s.String()
}
