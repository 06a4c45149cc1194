package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	faintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	outputStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	inputStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// Model is the Bubble Tea model for the console.
type Model struct {
	ctx        context.Context
	dispatcher *Dispatcher
	session    string
	input      textinput.Model
	viewport   viewport.Model
	history    []string
	ready      bool
}

// NewModel creates a console model bound to d.
func NewModel(ctx context.Context, d *Dispatcher) Model {
	ti := textinput.New()
	ti.Prompt = "kenkyu> "
	ti.Placeholder = "help"
	ti.Focus()
	ti.CharLimit = 0
	return Model{
		ctx:        ctx,
		dispatcher: d,
		session:    uuid.NewString()[:8],
		input:      ti,
		viewport:   viewport.New(0, 0),
		history:    []string{Help},
	}
}

// Init starts the cursor blink.
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, oh := outputStyle.GetFrameSize()
		_, ih := inputStyle.GetFrameSize()
		h := msg.Height - 1 - (ih + 1) - oh
		if h < 3 {
			h = 3
		}
		m.viewport.Width = msg.Width
		m.viewport.Height = h
		m.refresh()
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "" {
				return m, nil
			}
			out, err := m.dispatcher.Execute(m.ctx, line)
			if errors.Is(err, ErrExit) {
				return m, tea.Quit
			}
			entry := faintStyle.Render("> "+line) + "\n"
			if err != nil {
				entry += errorStyle.Render("error: " + err.Error())
			} else {
				entry += out
			}
			m.history = append(m.history, entry)
			m.refresh()
			return m, nil
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) refresh() {
	m.viewport.SetContent(strings.Join(m.history, "\n\n"))
	m.viewport.GotoBottom()
}

// View renders the console.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := titleStyle.Render("kenkyu console") + " " + faintStyle.Render("session "+m.session)
	return header + "\n" + outputStyle.Render(m.viewport.View()) + "\n" + inputStyle.Render(m.input.View())
}

// Run starts the full-screen console.
func Run(ctx context.Context, d *Dispatcher) error {
	_, err := tea.NewProgram(NewModel(ctx, d), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// RunLines reads commands line by line from r, for non-terminal input.
func RunLines(ctx context.Context, d *Dispatcher, r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		out, err := d.Execute(ctx, sc.Text())
		if errors.Is(err, ErrExit) {
			return nil
		}
		if err != nil {
			fmt.Fprintf(w, "error: %v\n", err)
			continue
		}
		if out != "" {
			fmt.Fprintln(w, out)
		}
	}
	return sc.Err()
}
