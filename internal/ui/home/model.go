package home

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/schoolone/portal/internal/keys"
	"github.com/schoolone/portal/internal/model"
	"github.com/schoolone/portal/internal/theme"
)

// OpenNotificationsMsg asks the parent to show the notification list.
type OpenNotificationsMsg struct{}

// Section is one entry of the home menu.
type Section struct {
	Name      string
	Available bool
}

// sections lists the portal areas. Only notifications are served by this
// client; the rest are placeholders.
var sections = []Section{
	{Name: "Notifications", Available: true},
	{Name: "Timetable"},
	{Name: "Attendance"},
	{Name: "Fees"},
	{Name: "Mails"},
}

// Model is the home screen: a profile card, the unread badge and the menu.
type Model struct {
	keys   *keys.KeyMap
	user   model.User
	unread int
	cursor int
	notice string
	width  int
	height int
}

// New creates the home view.
func New(k *keys.KeyMap, width, height int) Model {
	return Model{keys: k, width: width, height: height}
}

// SetUser sets the profile shown on the card.
func (m *Model) SetUser(u model.User) { m.user = u }

// SetUnread updates the badge.
func (m *Model) SetUnread(n int) { m.unread = n }

// Init returns the initial command.
func (m Model) Init() tea.Cmd { return nil }

// Update handles messages for the home view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(km, m.keys.Down):
		m.cursor = (m.cursor + 1) % len(sections)
		m.notice = ""
	case key.Matches(km, m.keys.Up):
		m.cursor = (m.cursor - 1 + len(sections)) % len(sections)
		m.notice = ""
	case key.Matches(km, m.keys.Select):
		s := sections[m.cursor]
		if !s.Available {
			m.notice = s.Name + ": coming soon"
			return m, nil
		}
		return m, func() tea.Msg { return OpenNotificationsMsg{} }
	}
	return m, nil
}

// View renders the home screen.
func (m Model) View() string {
	name := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render(m.user.DisplayName())
	details := []string{name}
	if m.user.Email != "" && m.user.Email != m.user.DisplayName() {
		details = append(details, theme.TimeStyle.Render(m.user.Email))
	}
	if m.user.Role != "" {
		details = append(details, theme.TimeStyle.Render(strings.ToUpper(m.user.Role[:1])+m.user.Role[1:]))
	}
	card := theme.PanelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, details...))

	bell := fmt.Sprintf("Notifications %s", theme.BadgeStyle(m.unread).Render(fmt.Sprintf("%d", m.unread)))

	var menu []string
	for i, s := range sections {
		label := s.Name
		if s.Name == "Notifications" && m.unread > 0 {
			label = fmt.Sprintf("%s (%d unread)", s.Name, m.unread)
		}
		if !s.Available {
			label = theme.DimmedStyle.Render(label)
		}
		if i == m.cursor {
			menu = append(menu, theme.SelectedItemStyle.Render(label))
		} else {
			menu = append(menu, theme.ListItemStyle.Render(label))
		}
	}

	parts := []string{card, "", bell, "", lipgloss.JoinVertical(lipgloss.Left, menu...)}
	if m.notice != "" {
		parts = append(parts, "", theme.HelpStyle.Render(m.notice))
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
