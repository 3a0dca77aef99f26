package app

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/schoolone/portal/internal/api"
	"github.com/schoolone/portal/internal/keys"
	"github.com/schoolone/portal/internal/model"
	"github.com/schoolone/portal/internal/notifications"
	"github.com/schoolone/portal/internal/session"
	"github.com/schoolone/portal/internal/store"
	appsync "github.com/schoolone/portal/internal/sync"
	"github.com/schoolone/portal/internal/theme"
	"github.com/schoolone/portal/internal/ui"
	"github.com/schoolone/portal/internal/ui/command"
	configview "github.com/schoolone/portal/internal/ui/config"
	"github.com/schoolone/portal/internal/ui/detail"
	helpview "github.com/schoolone/portal/internal/ui/help"
	"github.com/schoolone/portal/internal/ui/home"
	"github.com/schoolone/portal/internal/ui/login"
	"github.com/schoolone/portal/internal/ui/notifylist"
	"github.com/schoolone/portal/internal/unread"
)

// requestTimeout bounds login and mark-as-read calls started from the UI.
const requestTimeout = 15 * time.Second

// unreadCountMsg carries the Store's unread count to the UI.
type unreadCountMsg struct {
	count int
}

// markReadDoneMsg reports a finished mark-as-read request.
type markReadDoneMsg struct {
	id  int
	err error
}

// cacheLoadedMsg carries the cached list for the notification screen.
type cacheLoadedMsg struct {
	owner         string
	notifications []model.Notification
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewHome
	ViewNotifications
	ViewDetail
	ViewHelp
	ViewSettings
	ViewCommand
)

// Deps are the collaborators the root model drives.
type Deps struct {
	Config *model.AppConfig
	// ConfigPath is where the settings screen saves Config.
	ConfigPath string
	Session    *session.Manager
	Counts     *unread.Store
	Feed       *notifications.Feed
	Poller     *appsync.Coordinator
	// Cache may be nil.
	Cache  store.Store
	Logger zerolog.Logger
}

// Model is the root Bubble Tea model that manages view routing, the
// header badge and the focus state of the notification screen.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap

	loginView  login.Model
	homeView   home.Model
	listView   notifylist.Model
	detailView detail.Model
	helpView   helpview.Model
	configView configview.Model
	cmdView    command.Model

	session *session.Manager
	counts  *unread.Store
	feed    *notifications.Feed
	poller  *appsync.Coordinator
	cache   store.Store
	log     zerolog.Logger

	countCh     <-chan int
	unsubscribe func()

	unreadCount int
	pollOK      bool
	lastPoll    time.Time
	ready       bool
}

// New creates the root model. The session may already be resumed, in
// which case the app opens on the home screen.
func New(d Deps) Model {
	k := keys.DefaultKeyMap()
	countCh, unsub := d.Counts.Subscribe()

	m := Model{
		keys:        k,
		loginView:   login.New(80, 24),
		homeView:    home.New(k, 80, 24),
		listView:    notifylist.New(k, 80, 24),
		detailView:  detail.New(k, d.Config.API.Origin(), 80, 24),
		helpView:    helpview.New(k, d.Config.Polling.BadgeInterval(), d.Config.Polling.ListInterval(), 80, 24),
		configView:  configview.New(d.ConfigPath, *d.Config, k, 80, 24),
		cmdView:     command.New(80, 24),
		session:     d.Session,
		counts:      d.Counts,
		feed:        d.Feed,
		poller:      d.Poller,
		cache:       d.Cache,
		log:         d.Logger.With().Str("component", "ui").Logger(),
		countCh:     countCh,
		unsubscribe: unsub,
		pollOK:      true,
		currentView: ViewLogin,
	}

	if d.Session.IsLoggedIn() {
		m.currentView = ViewHome
		m.homeView.SetUser(d.Session.Current().User)
	}
	return m
}

// Init subscribes to count changes and poll results.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitForCount(m.countCh),
		m.poller.WaitForNextResult(),
	}
	if m.currentView == ViewLogin {
		cmds = append(cmds, m.loginView.Init())
	}
	return tea.Batch(cmds...)
}

// CurrentView returns the active view.
func (m Model) CurrentView() ViewState { return m.currentView }

// UnreadCount returns the count currently shown in the header.
func (m Model) UnreadCount() int { return m.unreadCount }

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.loginView.SetSize(w, h)
		m.homeView.SetSize(w, h)
		m.listView.SetSize(w, h)
		m.detailView.SetSize(w, h)
		m.helpView.SetSize(w, h)
		m.configView.SetSize(w, h)
		m.cmdView.SetSize(w, h)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case unreadCountMsg:
		m.unreadCount = msg.count
		m.homeView.SetUnread(msg.count)
		return m, waitForCount(m.countCh)

	case appsync.ResultMsg:
		return m.handlePollResult(msg)

	case cacheLoadedMsg:
		// Only used until the first live list arrives.
		if !m.feed.Loaded() && msg.owner == m.owner() && len(msg.notifications) > 0 {
			m.feed.Replace(msg.notifications)
			return m, m.listView.SetNotifications(m.feed.Items(), m.feed.Pending)
		}
		return m, nil

	case login.SubmitMsg:
		return m, m.doLogin(msg.Email, msg.Password)

	case login.ResultMsg:
		var cmd tea.Cmd
		m.loginView, cmd = m.loginView.Update(msg)
		if msg.Err == nil && m.session.IsLoggedIn() {
			m.homeView.SetUser(m.session.Current().User)
			m.currentView = ViewHome
		}
		return m, cmd

	case home.OpenNotificationsMsg:
		return m.openNotifications()

	case notifylist.BackMsg:
		return m.leaveNotifications()

	case notifylist.OpenMsg:
		n, ok := m.feed.Get(msg.ID)
		if !ok {
			return m, nil
		}
		m.detailView.SetNotification(n)
		m.currentView = ViewDetail
		if n.IsRead {
			return m, nil
		}
		return m, tea.Batch(m.listView.SetNotifications(m.feed.Items(), markPending(m.feed.Pending, n.ID)), m.doMarkRead(n.ID))

	case notifylist.MarkReadMsg:
		return m, tea.Batch(
			m.listView.SetNotifications(m.feed.Items(), markPending(m.feed.Pending, msg.ID)),
			m.doMarkRead(msg.ID),
		)

	case markReadDoneMsg:
		if msg.err != nil {
			m.listView.SetStatus("Could not mark as read: " + describe(msg.err))
		} else {
			m.listView.SetStatus("")
		}
		return m, m.listView.SetNotifications(m.feed.Items(), m.feed.Pending)

	case command.CommandMsg:
		return m.runCommand(msg)

	case command.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case configview.DoneMsg:
		m.currentView = ViewHome
		return m, nil

	case configview.SavedMsg:
		m.log.Info().Str("path", m.configView.Path()).Msg("settings saved")
		return m, nil

	case detail.BackMsg:
		// The list screen was never left, so the list loop is still focused.
		m.currentView = ViewNotifications
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}

		// The login and settings forms and the palette own every other key.
		if m.currentView == ViewLogin || m.currentView == ViewSettings || m.currentView == ViewCommand {
			break
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			if m.currentView == ViewHome {
				return m.quit()
			}

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				return m.closeHelp()
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			// Help covers the notification screen, so it is no longer focused.
			m.poller.Blur()
			return m, nil

		case key.Matches(msg, m.keys.Back):
			if m.currentView == ViewHelp {
				return m.closeHelp()
			}

		case key.Matches(msg, m.keys.Refresh):
			m.poller.Refresh()
			return m, nil

		case key.Matches(msg, m.keys.Notifications):
			if m.currentView == ViewHome {
				return m.openNotifications()
			}

		case key.Matches(msg, m.keys.Settings):
			if m.currentView == ViewHome {
				return m.openSettings()
			}

		case key.Matches(msg, m.keys.Command):
			if m.currentView == ViewHelp {
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewCommand
			return m, m.cmdView.Focus()

		case key.Matches(msg, m.keys.Logout):
			return m.logout("You have been logged out.")
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

func (m Model) handlePollResult(msg appsync.ResultMsg) (tea.Model, tea.Cmd) {
	wait := m.poller.WaitForNextResult()

	if msg.Err != nil {
		m.pollOK = false
		if api.IsAuthError(msg.Err) && m.session.IsLoggedIn() {
			m.log.Info().Msg("token rejected by server, logging out")
			next, cmd := m.logout("Your session has expired. Please log in again.")
			return next, tea.Batch(cmd, wait)
		}
		return m, wait
	}

	m.pollOK = true
	m.lastPoll = msg.At

	// A discarded result is older than what the Store already holds.
	if msg.Loop != appsync.ListLoop || !msg.Applied || !m.session.IsLoggedIn() {
		return m, wait
	}

	m.feed.Replace(msg.Notifications)
	return m, tea.Batch(
		wait,
		m.listView.SetNotifications(m.feed.Items(), m.feed.Pending),
		m.saveCache(msg.Notifications),
	)
}

// openNotifications shows the list and starts the list loop.
func (m Model) openNotifications() (tea.Model, tea.Cmd) {
	m.currentView = ViewNotifications
	m.poller.Focus()

	cmds := []tea.Cmd{m.listView.Init()}
	if m.feed.Loaded() {
		cmds = append(cmds, m.listView.SetNotifications(m.feed.Items(), m.feed.Pending))
	} else {
		cmds = append(cmds, m.loadCache())
	}
	return m, tea.Batch(cmds...)
}

// leaveNotifications returns home and stops the list loop.
func (m Model) leaveNotifications() (tea.Model, tea.Cmd) {
	m.poller.Blur()
	m.currentView = ViewHome
	return m, nil
}

// runCommand carries out a palette command. The palette returns to the
// view it was opened from unless the command navigates elsewhere.
func (m Model) runCommand(c command.CommandMsg) (tea.Model, tea.Cmd) {
	m.currentView = m.previousView

	switch c.Action {
	case command.ActionNotifications:
		if m.currentView == ViewNotifications {
			return m, nil
		}
		return m.openNotifications()

	case command.ActionRefresh:
		m.poller.Refresh()
		return m, nil

	case command.ActionRead:
		if _, ok := m.feed.Get(c.ID); !ok {
			m.listView.SetStatus(fmt.Sprintf("Notification %d is not in the list", c.ID))
			return m, nil
		}
		return m, tea.Batch(
			m.listView.SetNotifications(m.feed.Items(), markPending(m.feed.Pending, c.ID)),
			m.doMarkRead(c.ID),
		)

	case command.ActionSettings:
		if m.currentView == ViewNotifications || m.currentView == ViewDetail {
			m.poller.Blur()
		}
		return m.openSettings()

	case command.ActionHelp:
		m.previousView = m.currentView
		m.currentView = ViewHelp
		m.poller.Blur()
		return m, nil

	case command.ActionLogout:
		return m.logout("You have been logged out.")

	case command.ActionQuit:
		return m.quit()
	}
	return m, nil
}

func (m Model) openSettings() (tea.Model, tea.Cmd) {
	m.currentView = ViewSettings
	var cmd tea.Cmd
	m.configView, cmd = m.configView.Open()
	return m, cmd
}

func (m Model) closeHelp() (tea.Model, tea.Cmd) {
	m.currentView = m.previousView
	if m.currentView == ViewNotifications || m.currentView == ViewDetail {
		m.poller.Focus()
	}
	return m, nil
}

func (m Model) logout(notice string) (tea.Model, tea.Cmd) {
	owner := m.owner()
	m.poller.Blur()
	m.session.Logout()
	m.feed.Clear()
	m.listView.Reset()
	m.unreadCount = 0
	m.homeView.SetUnread(0)
	m.homeView.SetUser(model.User{})
	m.currentView = ViewLogin

	var cmd tea.Cmd
	m.loginView, cmd = m.loginView.Reset(notice)
	return m, tea.Batch(cmd, m.clearCache(owner))
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.poller.Close()
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	return m, tea.Quit
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewHome:
		m.homeView, cmd = m.homeView.Update(msg)
	case ViewNotifications:
		m.listView, cmd = m.listView.Update(msg)
	case ViewDetail:
		m.detailView, cmd = m.detailView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewSettings:
		m.configView, cmd = m.configView.Update(msg)
	case ViewCommand:
		m.cmdView, cmd = m.cmdView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var header string
	if m.currentView == ViewLogin {
		header = m.layout.RenderHeader("School Portal")
	} else {
		badge := theme.BadgeStyle(m.unreadCount).Render(fmt.Sprintf("Notifications [%d]", m.unreadCount))
		header = m.layout.RenderHeader(
			"School Portal · "+m.session.Current().User.DisplayName(),
			badge,
			theme.ConnectionStyle(m.pollOK).Render(m.pollStatus()),
		)
	}

	return m.layout.RenderWithFrame(header, m.renderContent(), m.layout.RenderStatusBar(m.keyHints()))
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogin:
		return m.loginView.View()
	case ViewHome:
		return m.homeView.View()
	case ViewNotifications:
		return m.listView.View()
	case ViewDetail:
		return m.detailView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewSettings:
		return m.configView.View()
	case ViewCommand:
		return m.cmdView.View()
	default:
		return ""
	}
}

// pollStatus returns a short string describing the last poll.
func (m Model) pollStatus() string {
	if !m.pollOK {
		return "offline, showing last known"
	}
	if m.lastPoll.IsZero() {
		return "syncing"
	}
	return "updated " + m.lastPoll.Local().Format("15:04:05")
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewLogin:
		return "enter submit | tab next field | ctrl+c quit"
	case ViewHelp:
		return "? close help | esc back"
	case ViewNotifications:
		return "enter open | m mark read | r refresh | esc back | ? help"
	case ViewDetail:
		return "esc back | j/k scroll"
	case ViewSettings:
		return "enter next/save | esc cancel"
	case ViewCommand:
		return "enter run | esc cancel"
	default:
		return "n notifications | r refresh | s settings | L log out | q quit | ? help"
	}
}

func (m Model) owner() string {
	return m.session.Current().User.Email
}

func (m Model) doLogin(email, password string) tea.Cmd {
	sess := m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return login.ResultMsg{Err: sess.Login(ctx, email, password)}
	}
}

func (m Model) doMarkRead(id int) tea.Cmd {
	feed := m.feed
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return markReadDoneMsg{id: id, err: feed.MarkRead(ctx, id)}
	}
}

func (m Model) loadCache() tea.Cmd {
	if m.cache == nil {
		return nil
	}
	c, owner, log := m.cache, m.owner(), m.log
	return func() tea.Msg {
		ns, err := c.LoadNotifications(context.Background(), owner)
		if err != nil {
			log.Warn().Err(err).Msg("reading notification cache")
			return nil
		}
		return cacheLoadedMsg{owner: owner, notifications: ns}
	}
}

func (m Model) saveCache(ns []model.Notification) tea.Cmd {
	if m.cache == nil {
		return nil
	}
	c, owner, log := m.cache, m.owner(), m.log
	return func() tea.Msg {
		if err := c.SaveNotifications(context.Background(), owner, ns); err != nil {
			log.Warn().Err(err).Msg("writing notification cache")
		}
		return nil
	}
}

func (m Model) clearCache(owner string) tea.Cmd {
	if m.cache == nil || owner == "" {
		return nil
	}
	c, log := m.cache, m.log
	return func() tea.Msg {
		if err := c.ClearOwner(context.Background(), owner); err != nil {
			log.Warn().Err(err).Msg("clearing notification cache")
		}
		return nil
	}
}

// waitForCount returns a tea.Cmd that waits for the next unread count.
func waitForCount(ch <-chan int) tea.Cmd {
	return func() tea.Msg {
		n, ok := <-ch
		if !ok {
			return nil
		}
		return unreadCountMsg{count: n}
	}
}

// markPending reports id as pending in addition to what pending reports,
// so the list shows the request before the command goroutine starts.
func markPending(pending func(int) bool, id int) func(int) bool {
	return func(other int) bool {
		return other == id || pending(other)
	}
}

func describe(err error) string {
	switch {
	case api.IsNetworkError(err):
		return "no connection"
	case api.IsNotFound(err):
		return "notification no longer exists"
	case api.IsServerError(err):
		return fmt.Sprintf("server error (%d)", api.StatusCode(err))
	default:
		return err.Error()
	}
}
