package command

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/schoolone/portal/internal/theme"
)

// Action is a palette command the root model carries out.
type Action string

const (
	ActionNotifications Action = "notifications"
	ActionRefresh       Action = "refresh"
	ActionRead          Action = "read"
	ActionSettings      Action = "settings"
	ActionHelp          Action = "help"
	ActionLogout        Action = "logout"
	ActionQuit          Action = "quit"
)

// aliases maps typed words to actions.
var aliases = map[string]Action{
	"notifications": ActionNotifications,
	"n":             ActionNotifications,
	"refresh":       ActionRefresh,
	"r":             ActionRefresh,
	"read":          ActionRead,
	"settings":      ActionSettings,
	"help":          ActionHelp,
	"logout":        ActionLogout,
	"quit":          ActionQuit,
	"q":             ActionQuit,
}

// CommandMsg is emitted when the user executes a command.
type CommandMsg struct {
	Action Action
	// ID is the notification id for ActionRead.
	ID int
}

// CancelMsg is emitted when the palette is dismissed.
type CancelMsg struct{}

// Parse turns palette input into a command.
func Parse(input string) (CommandMsg, error) {
	words := strings.Fields(strings.ToLower(input))
	if len(words) == 0 {
		return CommandMsg{}, fmt.Errorf("empty command")
	}

	action, ok := aliases[words[0]]
	if !ok {
		return CommandMsg{}, fmt.Errorf("unknown command %q", words[0])
	}

	cmd := CommandMsg{Action: action}
	if action == ActionRead {
		if len(words) != 2 {
			return CommandMsg{}, fmt.Errorf("usage: read <id>")
		}
		id, err := strconv.Atoi(words[1])
		if err != nil || id <= 0 {
			return CommandMsg{}, fmt.Errorf("invalid notification id %q", words[1])
		}
		cmd.ID = id
	} else if len(words) > 1 {
		return CommandMsg{}, fmt.Errorf("%s takes no arguments", action)
	}
	return cmd, nil
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	err    string
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch msg.String() {
		case "esc":
			m.input.Reset()
			m.err = ""
			return m, func() tea.Msg { return CancelMsg{} }
		case "enter":
			parsed, err := Parse(m.input.Value())
			if err != nil {
				m.err = err.Error()
				return m, nil
			}
			m.input.Reset()
			m.err = ""
			return m, func() tea.Msg { return parsed }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	sections := []string{titleStyle.Render("Command Palette"), m.input.View()}
	if m.err != "" {
		sections = append(sections, theme.ErrorStyle.Render(m.err))
	}
	sections = append(sections, "", theme.HelpStyle.Render(commandList()))

	return theme.PanelStyle.
		Width(max(m.width-4, 10)).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}

func commandList() string {
	seen := make(map[Action]bool)
	var names []string
	for name, a := range aliases {
		if name == string(a) && !seen[a] {
			seen[a] = true
			if a == ActionRead {
				name += " <id>"
			}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return strings.Join(names, "  ")
}
