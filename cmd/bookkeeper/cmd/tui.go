package cmd

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/zahanm/collect-beans/pkg/view"
)

// sortModel runs a session inside a terminal UI: the session's output
// scrolls above a command prompt.
type sortModel struct {
	s      *session
	log    *bytes.Buffer
	input  textinput.Model
	output viewport.Model
	done   bool
}

// newSortModel wraps s, which must write its output to log.
func newSortModel(s *session, log *bytes.Buffer) sortModel {
	input := textinput.New()
	input.Prompt = prompt
	input.Placeholder = "help"
	input.Focus()

	m := sortModel{
		s:      s,
		log:    log,
		input:  input,
		output: viewport.New(80, 20),
	}
	m.refresh()
	return m
}

func (m sortModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m sortModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.output.Width = msg.Width
		m.output.Height = max(msg.Height-2, 1)
		m.input.Width = max(msg.Width-len(prompt)-1, 1)
		m.output.GotoBottom()
		return m, nil

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC:
			return m.submit("quit")
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line == "" {
				return m, nil
			}
			return m.submit(line)
		case tea.KeyPgUp, tea.KeyPgDown:
			var cmd tea.Cmd
			m.output, cmd = m.output.Update(msg)
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m sortModel) View() string {
	if m.done {
		return ""
	}
	return m.output.View() + "\n" + m.input.View()
}

func (m sortModel) submit(line string) (tea.Model, tea.Cmd) {
	fmt.Fprintln(m.log, view.Muted(prompt+line))
	done, err := m.s.exec(line)
	if err != nil {
		m.s.reportError(err)
	}
	m.refresh()
	if done {
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m *sortModel) refresh() {
	m.output.SetContent(strings.TrimRight(m.log.String(), "\n"))
	m.output.GotoBottom()
}
