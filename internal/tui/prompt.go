package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fentz26/chore/internal/connectors"
	"github.com/mattn/go-isatty"
)

// Prompter asks the user for a line of input. On a terminal it runs an
// inline text input; otherwise it reads one line from its input.
type Prompter struct {
	in          io.Reader
	out         io.Writer
	reader      *bufio.Reader
	interactive bool
}

// NewPrompter creates a prompter reading from in and writing to out.
func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{
		in:          in,
		out:         out,
		interactive: isTerminal(in) && isTerminal(out),
	}
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Prompt shows message and returns the entered line without its trailing
// newline. Esc or ctrl+c return connectors.ErrUserAbort.
func (p *Prompter) Prompt(ctx context.Context, message string) (string, error) {
	if p.interactive {
		return p.promptTerminal(ctx, message)
	}
	return p.promptLine(message)
}

func (p *Prompter) promptLine(message string) (string, error) {
	if p.reader == nil {
		p.reader = bufio.NewReader(p.in)
	}
	fmt.Fprint(p.out, message)

	line, err := p.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (p *Prompter) promptTerminal(ctx context.Context, message string) (string, error) {
	m := newPromptModel(message)
	prog := tea.NewProgram(m,
		tea.WithInput(p.in),
		tea.WithOutput(p.out),
		tea.WithContext(ctx),
	)
	final, err := prog.Run()
	if err != nil {
		if errors.Is(err, tea.ErrProgramKilled) {
			return "", connectors.ErrUserAbort
		}
		return "", fmt.Errorf("prompt: %w", err)
	}

	res := final.(promptModel)
	if res.aborted {
		return "", connectors.ErrUserAbort
	}
	return res.input.Value(), nil
}

// promptModel is a single-line text input that quits on enter.
type promptModel struct {
	input     textinput.Model
	submitted bool
	aborted   bool
}

func newPromptModel(message string) promptModel {
	ti := textinput.New()
	ti.Prompt = message
	ti.PromptStyle = promptLabelStyle
	ti.CharLimit = 256
	ti.Focus()
	return promptModel{input: ti}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "enter":
			m.submitted = true
			return m, tea.Quit
		case "esc", "ctrl+c":
			m.aborted = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m promptModel) View() string {
	if m.submitted || m.aborted {
		return m.input.Prompt + m.input.Value() + "\n"
	}
	return m.input.View()
}
