package notifylist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/schoolone/portal/internal/model"
	"github.com/schoolone/portal/internal/theme"
)

// Item wraps a model.Notification so it can be used in a bubbles/list.
type Item struct {
	Notification model.Notification
	// Pending is set while a mark-as-read request is in flight.
	Pending bool
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Notification.Title }

// Title returns the notification title for the list.
func (i Item) Title() string { return i.Notification.Title }

// Description returns the message for the list.
func (i Item) Description() string { return i.Notification.Message }

// ItemDelegate renders a notification as two lines: title with unread dot
// and age, then the first line of the message.
type ItemDelegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 1 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single notification.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	n := it.Notification
	isSelected := index == m.Index()

	now := time.Now
	if d.now != nil {
		now = d.now
	}

	dot := " "
	if !n.IsRead {
		dot = theme.UnreadDotStyle.Render("●")
	}
	if it.Pending {
		dot = theme.TimeStyle.Render("…")
	}

	titleStyle := lipgloss.NewStyle()
	if !n.IsRead {
		titleStyle = titleStyle.Bold(true)
	}
	title := titleStyle.Render(n.Title)

	age := theme.TimeStyle.Render(model.RelativeTime(n.CreatedAt, now()))

	attachment := ""
	if n.HasAttachment() {
		attachment = theme.LinkStyle.Render(" [attachment]")
	}

	width := m.Width() - 6
	message := firstLine(n.Message)
	if width > 0 && lipgloss.Width(message) > width {
		message = truncate(message, width)
	}
	if n.IsRead {
		message = theme.DimmedStyle.Render(message)
	}

	line1 := fmt.Sprintf("%s %s%s  %s", dot, title, attachment, age)
	line2 := "  " + message

	style := theme.ListItemStyle
	if isSelected {
		style = theme.SelectedItemStyle
	}
	fmt.Fprint(w, style.Render(line1+"\n"+line2))
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, width int) string {
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	if width <= 1 {
		return "…"
	}
	return string(r[:width-1]) + "…"
}
