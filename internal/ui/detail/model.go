package detail

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/schoolone/portal/internal/keys"
	"github.com/schoolone/portal/internal/model"
	"github.com/schoolone/portal/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// Model shows one notification in full.
type Model struct {
	notification *model.Notification
	origin       string
	viewport     viewport.Model
	keys         *keys.KeyMap
	width        int
	height       int
}

// New creates a detail view. origin is the backend origin used to resolve
// relative attachment paths.
func New(k *keys.KeyMap, origin string, width, height int) Model {
	vp := viewport.New(width, max(height-2, 0))
	vp.Style = lipgloss.NewStyle()

	return Model{
		origin:   origin,
		viewport: vp,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// SetNotification shows n and scrolls to the top.
func (m *Model) SetNotification(n model.Notification) {
	m.notification = &n
	m.viewport.SetContent(m.renderContent(time.Now()))
	m.viewport.GotoTop()
}

// Current returns the id of the displayed notification, or 0.
func (m Model) Current() int {
	if m.notification == nil {
		return 0
	}
	return m.notification.ID
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok && key.Matches(km, m.keys.Back) {
		return m, func() tea.Msg { return BackMsg{} }
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.notification == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No notification selected")
	}

	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent(now time.Time) string {
	n := m.notification
	if n == nil {
		return ""
	}

	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(n.Title))

	meta := model.RelativeTime(n.CreatedAt, now)
	if !n.CreatedAt.IsZero() {
		meta = fmt.Sprintf("%s (%s)", meta, n.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	if n.IsGlobal() {
		meta += "  ·  Everyone"
	}
	sections = append(sections, theme.TimeStyle.Render(meta), "")

	body := lipgloss.NewStyle().Width(max(m.width-4, 10)).Render(n.Message)
	sections = append(sections, body)

	if link := n.AttachmentLink(m.origin); link != "" {
		sections = append(sections, "",
			theme.HelpStyle.Render("Attachment:"),
			theme.LinkStyle.Render(link),
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = max(height-2, 0)
	if m.notification != nil {
		m.viewport.SetContent(m.renderContent(time.Now()))
	}
}
