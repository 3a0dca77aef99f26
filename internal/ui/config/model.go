package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/schoolone/portal/internal/keys"
	"github.com/schoolone/portal/internal/model"
	"github.com/schoolone/portal/internal/theme"
)

// Mode represents the current state of the settings view.
type Mode int

const (
	ModeForm  Mode = iota // Editing
	ModeSaved             // Save finished, showing the result
)

// DoneMsg signals the settings view should close.
type DoneMsg struct{}

// SavedMsg reports the configuration written to disk.
type SavedMsg struct {
	Config model.AppConfig
}

// savedInternalMsg is sent after the file write.
type savedInternalMsg struct {
	cfg model.AppConfig
	err error
}

// fields is bound to the form inputs.
type fields struct {
	baseURL       string
	badgeInterval string
	listInterval  string
}

// Model edits the backend address and the two poll intervals. Changes are
// written to the config file and take effect on the next start.
type Model struct {
	mode   Mode
	path   string
	cfg    model.AppConfig
	form   *huh.Form
	fields *fields
	err    error

	keys          *keys.KeyMap
	width, height int
}

// New creates a settings view editing cfg, saved to path.
func New(path string, cfg model.AppConfig, k *keys.KeyMap, width, height int) Model {
	m := Model{
		path:   path,
		cfg:    cfg,
		fields: &fields{},
		keys:   k,
		width:  width,
		height: height,
	}
	m.resetFields()
	m.form = m.buildForm()
	return m
}

// Path returns the file the settings are saved to.
func (m Model) Path() string { return m.path }

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Open rebuilds the form from the last saved values.
func (m Model) Open() (Model, tea.Cmd) {
	m.mode = ModeForm
	m.err = nil
	m.resetFields()
	m.form = m.buildForm()
	return m, m.form.Init()
}

func (m Model) resetFields() {
	m.fields.baseURL = m.cfg.API.BaseURL
	m.fields.badgeInterval = strconv.Itoa(int(m.cfg.Polling.BadgeInterval().Seconds()))
	m.fields.listInterval = strconv.Itoa(int(m.cfg.Polling.ListInterval().Seconds()))
}

func (m Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Backend URL").
				Description("API root including the version prefix").
				Placeholder("http://127.0.0.1:8000/api/v1").
				Value(&m.fields.baseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Badge refresh (seconds)").
				Description("How often the unread badge is refreshed while logged in").
				Value(&m.fields.badgeInterval).
				Validate(validateSeconds),
			huh.NewInput().
				Title("List refresh (seconds)").
				Description("How often the open notification list is refreshed").
				Value(&m.fields.listInterval).
				Validate(validateSeconds),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false)
}

func (m Model) formWidth() int {
	w := m.width - 8
	if w > 70 {
		w = 70
	}
	if w < 20 {
		w = 20
	}
	return w
}

// Update handles messages for the settings view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case savedInternalMsg:
		m.mode = ModeSaved
		m.err = msg.err
		if msg.err != nil {
			return m, nil
		}
		m.cfg = msg.cfg
		return m, func() tea.Msg { return SavedMsg{Config: msg.cfg} }

	case tea.KeyMsg:
		if m.mode == ModeSaved {
			if key.Matches(msg, m.keys.Back) || msg.String() == "enter" {
				return m, func() tea.Msg { return DoneMsg{} }
			}
			return m, nil
		}
		if key.Matches(msg, m.keys.Back) {
			return m, func() tea.Msg { return DoneMsg{} }
		}
	}

	if m.mode != ModeForm {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m, m.save()
	case huh.StateAborted:
		return m, func() tea.Msg { return DoneMsg{} }
	}

	return m, cmd
}

// Apply returns cfg with the entered values. The fields are already
// validated by the form.
func (m Model) Apply(cfg model.AppConfig) model.AppConfig {
	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(m.fields.baseURL), "/")
	if n, err := strconv.Atoi(strings.TrimSpace(m.fields.badgeInterval)); err == nil {
		cfg.Polling.BadgeIntervalSec = n
	}
	if n, err := strconv.Atoi(strings.TrimSpace(m.fields.listInterval)); err == nil {
		cfg.Polling.ListIntervalSec = n
	}
	return cfg
}

func (m Model) save() tea.Cmd {
	cfg := m.Apply(m.cfg)
	path := m.path
	return func() tea.Msg {
		if err := model.SaveConfig(path, &cfg); err != nil {
			return savedInternalMsg{err: err}
		}
		return savedInternalMsg{cfg: cfg}
	}
}

// View renders the settings view.
func (m Model) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1).Render("Settings")

	var body string
	switch {
	case m.mode == ModeSaved && m.err != nil:
		body = theme.ErrorStyle.Render(fmt.Sprintf("Could not save settings: %v", m.err))
	case m.mode == ModeSaved:
		body = lipgloss.JoinVertical(lipgloss.Left,
			"Settings saved to "+m.path,
			theme.HelpStyle.Render("Restart the portal for the changes to take effect."),
		)
	default:
		body = m.form.View()
	}

	return lipgloss.NewStyle().Padding(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, title, body))
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.form = m.form.WithWidth(m.formWidth())
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., http://127.0.0.1:8000/api/v1)")
	}
	return nil
}

func validateSeconds(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a whole number of seconds")
	}
	if n < 1 || n > 3600 {
		return fmt.Errorf("must be between 1 and 3600")
	}
	return nil
}
