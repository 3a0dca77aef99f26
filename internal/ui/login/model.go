package login

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/schoolone/portal/internal/api"
	"github.com/schoolone/portal/internal/session"
	"github.com/schoolone/portal/internal/theme"
)

// SubmitMsg asks the parent to log in with the entered credentials.
type SubmitMsg struct {
	Email    string
	Password string
}

// ResultMsg reports the outcome of a login attempt back to the view.
type ResultMsg struct {
	Err error
}

// fields is bound to the form inputs. It lives on the heap so copies of
// Model share it.
type fields struct {
	email    string
	password string
}

// Model is the login screen.
type Model struct {
	form       *huh.Form
	fields     *fields
	spinner    spinner.Model
	submitting bool
	errMsg     string
	notice     string
	width      int
	height     int
}

// New creates the login view.
func New(width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		fields:  &fields{},
		spinner: sp,
		width:   width,
		height:  height,
	}
	m.form = m.buildForm()
	return m
}

// Init starts the form.
func (m Model) Init() tea.Cmd {
	return m.form.Init()
}

// Reset clears the form and shows notice above it, e.g. after logout.
func (m Model) Reset(notice string) (Model, tea.Cmd) {
	m.fields.password = ""
	m.submitting = false
	m.errMsg = ""
	m.notice = notice
	m.form = m.buildForm()
	return m, m.form.Init()
}

// Submitting reports whether a login request is outstanding.
func (m Model) Submitting() bool { return m.submitting }

func (m Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("student@school.test").
				Value(&m.fields.email).
				Validate(validateEmail),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&m.fields.password).
				Validate(validateRequired("Password")),
		),
	).WithWidth(m.formWidth()).WithShowHelp(false)
}

func (m Model) formWidth() int {
	w := m.width - 8
	if w > 60 {
		w = 60
	}
	if w < 20 {
		w = 20
	}
	return w
}

// Update handles messages for the login view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case ResultMsg:
		m.submitting = false
		if msg.Err == nil {
			m.errMsg = ""
			m.notice = ""
			m.fields.password = ""
			return m, nil
		}
		m.errMsg = Describe(msg.Err)
		m.fields.password = ""
		m.form = m.buildForm()
		return m, m.form.Init()

	case spinner.TickMsg:
		if !m.submitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.submitting {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.submitting = true
		m.errMsg = ""
		submit := SubmitMsg{
			Email:    strings.TrimSpace(m.fields.email),
			Password: m.fields.password,
		}
		return m, tea.Batch(m.spinner.Tick, func() tea.Msg { return submit })
	case huh.StateAborted:
		m.form = m.buildForm()
		return m, m.form.Init()
	}

	return m, cmd
}

// View renders the login screen.
func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Sign in to School Portal")

	sections := []string{title}
	if m.notice != "" {
		sections = append(sections, theme.HelpStyle.Render(m.notice), "")
	}

	if m.submitting {
		sections = append(sections, fmt.Sprintf("%s Signing in as %s...", m.spinner.View(), m.fields.email))
	} else {
		sections = append(sections, m.form.View())
	}

	if m.errMsg != "" {
		sections = append(sections, "", theme.ErrorStyle.Render(m.errMsg))
	}

	return lipgloss.Place(
		m.width, m.height,
		lipgloss.Center, lipgloss.Center,
		theme.PanelStyle.Render(lipgloss.JoinVertical(lipgloss.Left, sections...)),
	)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.form = m.form.WithWidth(m.formWidth())
}

// Describe turns a login error into a line for the user.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, session.ErrMissingCredentials):
		return "Please enter both email and password."
	case api.IsNetworkError(err):
		return "Could not reach the server. Check your connection and try again."
	}

	var srvErr *api.ServerError
	if errors.As(err, &srvErr) && srvErr.Detail != "" {
		return srvErr.Detail
	}
	if api.IsServerError(err) {
		return "The server could not process the login. Try again later."
	}
	return err.Error()
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("Email is required")
	}
	if !strings.Contains(s, "@") {
		return errors.New("Enter a valid email address")
	}
	return nil
}
