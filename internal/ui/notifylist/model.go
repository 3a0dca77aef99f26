package notifylist

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/schoolone/portal/internal/keys"
	"github.com/schoolone/portal/internal/model"
	"github.com/schoolone/portal/internal/theme"
)

// OpenMsg is sent when the user opens a notification.
type OpenMsg struct {
	ID int
}

// MarkReadMsg asks the parent to mark a notification as read.
type MarkReadMsg struct {
	ID int
}

// BackMsg signals the parent to leave the list.
type BackMsg struct{}

// Model is the notification list screen.
type Model struct {
	list    list.Model
	keys    *keys.KeyMap
	spinner spinner.Model
	loaded  bool
	status  string
	width   int
	height  int
}

// New creates an empty list that shows a spinner until the first
// SetNotifications.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, max(height-1, 0))
	l.Title = "Notifications"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.Styles.Title = theme.HeaderStyle

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		list:    l,
		keys:    k,
		spinner: sp,
		width:   width,
		height:  height,
	}
}

// Init starts the loading spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// SetNotifications replaces the displayed items, keeping the cursor on the
// same notification when it is still present.
func (m *Model) SetNotifications(ns []model.Notification, pending func(id int) bool) tea.Cmd {
	selectedID := -1
	if it, ok := m.list.SelectedItem().(Item); ok {
		selectedID = it.Notification.ID
	}

	items := make([]list.Item, len(ns))
	newIndex := 0
	for i, n := range ns {
		items[i] = Item{Notification: n, Pending: pending != nil && pending(n.ID)}
		if n.ID == selectedID {
			newIndex = i
		}
	}
	m.loaded = true
	cmd := m.list.SetItems(items)
	if len(items) > 0 {
		m.list.Select(newIndex)
	}
	return cmd
}

// Reset empties the list and shows the spinner again.
func (m *Model) Reset() {
	m.list.SetItems(nil)
	m.loaded = false
	m.status = ""
}

// SetStatus sets the transient line shown under the list.
func (m *Model) SetStatus(s string) { m.status = s }

// Selected returns the highlighted notification.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if m.loaded {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.Select):
			n, ok := m.Selected()
			if !ok {
				return m, nil
			}
			return m, func() tea.Msg { return OpenMsg{ID: n.ID} }

		case key.Matches(msg, m.keys.MarkRead):
			n, ok := m.Selected()
			if !ok || n.IsRead {
				return m, nil
			}
			return m, func() tea.Msg { return MarkReadMsg{ID: n.ID} }
		}
	}

	// Delegate to the list for navigation keys (up/down/pgup/pgdn)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the list view.
func (m Model) View() string {
	status := ""
	if m.status != "" {
		status = theme.ErrorStyle.Render(m.status)
	}

	if !m.loaded {
		return m.centered(m.spinner.View() + " Loading notifications...")
	}
	if len(m.list.Items()) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, m.centered("No notifications yet."), status)
	}

	return lipgloss.JoinVertical(lipgloss.Left, m.list.View(), status)
}

func (m Model) centered(s string) string {
	return lipgloss.NewStyle().
		Width(m.width).
		Height(max(m.height-1, 0)).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray).
		Render(s)
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, max(height-1, 0))
}
