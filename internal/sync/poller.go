package sync

import (
	"context"
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/schoolone/portal/internal/api"
	"github.com/schoolone/portal/internal/model"
	"github.com/schoolone/portal/internal/unread"
)

// Loop names.
const (
	BadgeLoop = "badge"
	ListLoop  = "list"
)

// defaultFetchTimeout is the maximum time allowed for a single fetch.
const defaultFetchTimeout = 30 * time.Second

// Fetcher retrieves the notification list visible to the current user.
type Fetcher interface {
	FetchNotifications(ctx context.Context) ([]model.Notification, error)
}

// ResultMsg is a tea.Msg sent after every completed fetch.
type ResultMsg struct {
	Loop          string
	Notifications []model.Notification
	Err           error
	// Applied is false when the Store discarded the result as stale.
	Applied bool
	At      time.Time
}

// LoopConfig configures a Loop.
type LoopConfig struct {
	Name     string
	Interval time.Duration
	Timeout  time.Duration
	Fetcher  Fetcher
	Store    *unread.Store
	Clock    clockwork.Clock
	Logger   zerolog.Logger
	// Results receives a ResultMsg per fetch when non-nil. Sends never block.
	Results chan<- ResultMsg
}

// Loop is one periodic fetch loop feeding the unread Store. The zero state
// is stopped; Start and Stop may be called any number of times.
type Loop struct {
	name     string
	interval time.Duration
	timeout  time.Duration
	fetcher  Fetcher
	store    *unread.Store
	clock    clockwork.Clock
	log      zerolog.Logger
	results  chan<- ResultMsg

	mu        gosync.Mutex
	cancel    context.CancelFunc
	done      chan struct{}
	triggerCh chan struct{}
}

// NewLoop creates a stopped loop.
func NewLoop(cfg LoopConfig) *Loop {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &Loop{
		name:      cfg.Name,
		interval:  cfg.Interval,
		timeout:   timeout,
		fetcher:   cfg.Fetcher,
		store:     cfg.Store,
		clock:     clock,
		log:       cfg.Logger.With().Str("component", "poller").Str("loop", cfg.Name).Logger(),
		results:   cfg.Results,
		triggerCh: make(chan struct{}, 1),
	}
}

// Name returns the loop name.
func (l *Loop) Name() string { return l.name }

// Running reports whether the loop is started.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

// Start begins polling. The first fetch happens immediately rather than
// after one interval. Starting a running loop does nothing.
func (l *Loop) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})

	// Drop a refresh requested while stopped.
	select {
	case <-l.triggerCh:
	default:
	}

	l.log.Debug().Dur("interval", l.interval).Msg("poll loop started")
	go l.run(ctx, l.done)
}

// Stop cancels the timer and any in-flight fetch, and returns once the
// loop goroutine has exited. Stopping a stopped loop does nothing.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	l.log.Debug().Msg("poll loop stopped")
}

// Refresh requests an immediate fetch. It is ignored while stopped and
// coalesced with any refresh already pending.
func (l *Loop) Refresh() {
	if !l.Running() {
		return
	}
	select {
	case l.triggerCh <- struct{}{}:
	default:
	}
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	interval := l.interval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := l.clock.NewTicker(interval)
	defer ticker.Stop()

	l.fetchAndApply(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			l.fetchAndApply(ctx)
		case <-l.triggerCh:
			l.fetchAndApply(ctx)
		}
	}
}

// fetchAndApply performs one fetch. Fetches within a loop never overlap
// since they run on the loop goroutine.
func (l *Loop) fetchAndApply(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	ticket := l.store.Begin()

	fetchCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	ns, err := l.fetcher.FetchNotifications(fetchCtx)

	// Stopped while fetching: the result belongs to a torn-down loop.
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		ev := l.log.Warn().Err(err)
		if status := api.StatusCode(err); status != 0 {
			ev = ev.Int("status", status)
		}
		ev.Bool("network", api.IsNetworkError(err)).Msg("notification poll failed, keeping last count")
		l.sendResult(ResultMsg{Loop: l.name, Err: err, At: l.clock.Now()})
		return
	}

	applied := l.store.ApplyPoll(ticket, ns)
	if !applied {
		l.log.Debug().Msg("discarded stale poll result")
	}
	l.sendResult(ResultMsg{
		Loop:          l.name,
		Notifications: ns,
		Applied:       applied,
		At:            l.clock.Now(),
	})
}

// sendResult delivers msg without blocking the loop.
func (l *Loop) sendResult(msg ResultMsg) {
	if l.results == nil {
		return
	}
	select {
	case l.results <- msg:
	default:
		// Drop if the consumer is behind.
	}
}

// WaitForResult returns a tea.Cmd that waits for the next ResultMsg on ch.
// Handlers re-issue it after each message to keep listening.
func WaitForResult(ch <-chan ResultMsg) tea.Cmd {
	return func() tea.Msg {
		msg, ok := <-ch
		if !ok {
			return nil
		}
		return msg
	}
}
