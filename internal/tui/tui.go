// Package tui is the interactive terminal front end. The same model drives
// a local solo game and a shared room; a Backend supplies the state and
// carries out moves.
package tui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/lox/triadsync/internal/display"
	"github.com/lox/triadsync/internal/match"
	"github.com/lox/triadsync/internal/rules"
)

const maxMessages = 5

// ErrBadInput is returned by ParseMove for unparseable input.
var ErrBadInput = errors.New("enter a move as <position> <hand index>")

// Backend owns the game state behind the model.
type Backend interface {
	// Init starts any background work, such as following a room.
	Init() tea.Cmd
	// State returns the room to draw and the local participant's role.
	State() (*match.Room, rules.Role)
	// Move attempts a placement for the local participant.
	Move(position, handIndex int) tea.Cmd
	// Handle reacts to backend specific messages. It returns nil for
	// messages it does not own.
	Handle(msg tea.Msg) tea.Cmd
}

// NoticeMsg adds a line to the message area.
type NoticeMsg string

// ErrorMsg reports a failed action in the message area.
type ErrorMsg struct{ Err error }

// QuitMsg ends the program.
type QuitMsg struct{}

// Model is the Bubble Tea model for a match.
type Model struct {
	backend  Backend
	renderer *display.Renderer
	logger   *log.Logger

	input    textinput.Model
	messages []string
	quitting bool
}

// NewModel creates a model around backend.
func NewModel(backend Backend, logger *log.Logger) *Model {
	ti := textinput.New()
	ti.Placeholder = "position hand-index (e.g. 4 0), q to quit"
	ti.Focus()
	ti.CharLimit = 16
	ti.Width = 40
	ti.PromptStyle = PromptStyle
	ti.TextStyle = InputStyle
	ti.Prompt = "> "

	return &Model{
		backend:  backend,
		renderer: display.NewRenderer(),
		logger:   logger.WithPrefix("tui"),
		input:    ti,
	}
}

// Init starts the cursor blink and the backend.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.backend.Init())
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case QuitMsg:
		m.quitting = true
		return m, tea.Quit

	case NoticeMsg:
		m.addMessage(NoticeStyle.Render(string(msg)))
		return m, nil

	case ErrorMsg:
		m.logger.Debug("Action failed", "error", msg.Err)
		m.addMessage(ErrorStyle.Render(msg.Err.Error()))
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			return m, m.submit(line)
		}
	}

	if cmd := m.backend.Handle(msg); cmd != nil {
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) submit(line string) tea.Cmd {
	if line == "q" || line == "quit" {
		m.quitting = true
		return tea.Quit
	}
	pos, idx, err := ParseMove(line)
	if err != nil {
		m.addMessage(WarningStyle.Render(err.Error()))
		return nil
	}
	return m.backend.Move(pos, idx)
}

func (m *Model) addMessage(s string) {
	m.messages = append(m.messages, s)
	if len(m.messages) > maxMessages {
		m.messages = m.messages[len(m.messages)-maxMessages:]
	}
}

// Messages returns the lines currently shown in the message area.
func (m *Model) Messages() []string {
	return append([]string(nil), m.messages...)
}

// View renders the board, messages and input.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	room, role := m.backend.State()

	var b strings.Builder
	b.WriteString(m.renderer.Render(room, role))
	b.WriteString("\n")
	for _, msg := range m.messages {
		b.WriteString(msg)
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("enter: play • esc: quit"))
	return b.String()
}

// ParseMove reads "<position> <hand index>".
func ParseMove(line string) (position, handIndex int, err error) {
	fields := strings.Fields(strings.ReplaceAll(line, ",", " "))
	if len(fields) != 2 {
		return 0, 0, ErrBadInput
	}
	position, err = strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad position %q", ErrBadInput, fields[0])
	}
	handIndex, err = strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("%w: bad hand index %q", ErrBadInput, fields[1])
	}
	return position, handIndex, nil
}
