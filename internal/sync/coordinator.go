package sync

import (
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/schoolone/portal/internal/unread"
)

// Session is the login state the coordinator follows.
type Session interface {
	IsLoggedIn() bool
	Subscribe(fn func(loggedIn bool)) (unsubscribe func())
}

// Config configures a Coordinator.
type Config struct {
	BadgeInterval time.Duration
	ListInterval  time.Duration
	FetchTimeout  time.Duration
	Fetcher       Fetcher
	Store         *unread.Store
	Clock         clockwork.Clock
	Logger        zerolog.Logger
}

// Coordinator ties the badge and list loops to the session and to the
// focus state of the notification screen:
//   - login or resume starts the badge loop,
//   - focusing the screen while logged in starts the list loop,
//   - logout stops both and resets the Store.
type Coordinator struct {
	badge   *Loop
	list    *Loop
	store   *unread.Store
	results chan ResultMsg
	log     zerolog.Logger

	mu          gosync.Mutex
	loggedIn    bool
	focused     bool
	unsubscribe func()
}

// NewCoordinator builds both loops, stopped.
func NewCoordinator(cfg Config) *Coordinator {
	results := make(chan ResultMsg, 16)
	loop := func(name string, interval time.Duration) *Loop {
		return NewLoop(LoopConfig{
			Name:     name,
			Interval: interval,
			Timeout:  cfg.FetchTimeout,
			Fetcher:  cfg.Fetcher,
			Store:    cfg.Store,
			Clock:    cfg.Clock,
			Logger:   cfg.Logger,
			Results:  results,
		})
	}
	return &Coordinator{
		badge:   loop(BadgeLoop, cfg.BadgeInterval),
		list:    loop(ListLoop, cfg.ListInterval),
		store:   cfg.Store,
		results: results,
		log:     cfg.Logger.With().Str("component", "coordinator").Logger(),
	}
}

// Attach follows s from now on. If s is already logged in (a resumed
// session) the badge loop starts right away.
func (c *Coordinator) Attach(s Session) {
	unsub := s.Subscribe(c.SetLoggedIn)
	c.mu.Lock()
	c.unsubscribe = unsub
	c.mu.Unlock()
	if s.IsLoggedIn() {
		c.SetLoggedIn(true)
	}
}

// SetLoggedIn applies a session transition.
func (c *Coordinator) SetLoggedIn(loggedIn bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if loggedIn == c.loggedIn {
		return
	}
	c.loggedIn = loggedIn

	if loggedIn {
		c.log.Info().Msg("session started, polling badge")
		c.badge.Start()
		if c.focused {
			c.list.Start()
		}
		return
	}

	c.log.Info().Msg("session ended, polling stopped")
	c.list.Stop()
	c.badge.Stop()
	c.store.Reset()
}

// Focus marks the notification screen as visible.
func (c *Coordinator) Focus() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.focused = true
	if c.loggedIn {
		c.list.Start()
	}
}

// Blur marks the notification screen as hidden. The badge loop is not
// affected.
func (c *Coordinator) Blur() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.focused = false
	c.list.Stop()
}

// Refresh asks every running loop for an immediate fetch.
func (c *Coordinator) Refresh() {
	c.badge.Refresh()
	c.list.Refresh()
}

// BadgeRunning reports whether the badge loop is running.
func (c *Coordinator) BadgeRunning() bool { return c.badge.Running() }

// ListRunning reports whether the list loop is running.
func (c *Coordinator) ListRunning() bool { return c.list.Running() }

// Results is the channel both loops report to.
func (c *Coordinator) Results() <-chan ResultMsg { return c.results }

// WaitForNextResult returns a tea.Cmd that waits for the next poll result.
// Call it again after handling each ResultMsg.
func (c *Coordinator) WaitForNextResult() tea.Cmd {
	return WaitForResult(c.results)
}

// Close detaches from the session and stops both loops. The Store is left
// as is.
func (c *Coordinator) Close() {
	c.mu.Lock()
	unsub := c.unsubscribe
	c.unsubscribe = nil
	c.loggedIn = false
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	c.list.Stop()
	c.badge.Stop()
}
