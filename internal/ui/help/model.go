package help

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/schoolone/portal/internal/keys"
	"github.com/schoolone/portal/internal/theme"
)

// Model is the help overlay view.
type Model struct {
	keys          *keys.KeyMap
	help          help.Model
	badgeInterval time.Duration
	listInterval  time.Duration
	width         int
	height        int
}

// New creates a new help view model. The intervals are shown so users know
// how fresh the badge and the list are.
func New(keys *keys.KeyMap, badgeInterval, listInterval time.Duration, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:          keys,
		help:          h,
		badgeInterval: badgeInterval,
		listInterval:  listInterval,
		width:         width,
		height:        height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Keyboard Shortcuts")

	m.help.Width = m.width - 4
	m.help.ShowAll = true
	helpText := m.help.View(m.keys)

	refresh := theme.HelpStyle.MarginTop(1).Render(fmt.Sprintf(
		"The unread badge refreshes every %s. The notification list refreshes every %s while it is open.",
		m.badgeInterval, m.listInterval,
	))

	content := lipgloss.JoinVertical(lipgloss.Left, title, helpText, refresh)

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
