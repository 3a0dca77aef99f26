package sync_test

import (
	gosync "sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	psync "github.com/schoolone/portal/internal/sync"
	"github.com/schoolone/portal/internal/unread"
)

type fakeSession struct {
	mu       gosync.Mutex
	loggedIn bool
	subs     []func(bool)
}

func (s *fakeSession) IsLoggedIn() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loggedIn
}

func (s *fakeSession) Subscribe(fn func(bool)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
	idx := len(s.subs) - 1
	return func() {
		s.mu.Lock()
		s.subs[idx] = nil
		s.mu.Unlock()
	}
}

func (s *fakeSession) set(loggedIn bool) {
	s.mu.Lock()
	s.loggedIn = loggedIn
	subs := append([]func(bool){}, s.subs...)
	s.mu.Unlock()
	for _, fn := range subs {
		if fn != nil {
			fn(loggedIn)
		}
	}
}

func newCoordinator(t *testing.T, f psync.Fetcher, st *unread.Store) *psync.Coordinator {
	t.Helper()
	c := psync.NewCoordinator(psync.Config{
		BadgeInterval: 30 * time.Second,
		ListInterval:  10 * time.Second,
		FetchTimeout:  time.Second,
		Fetcher:       f,
		Store:         st,
		Clock:         clockwork.NewFakeClock(),
		Logger:        zerolog.Nop(),
	})
	t.Cleanup(c.Close)
	return c
}

func TestCoordinator_LoginStartsBadgeOnly(t *testing.T) {
	st := unread.New()
	c := newCoordinator(t, returning(unreadList(2), nil), st)
	sess := &fakeSession{}
	c.Attach(sess)

	if c.BadgeRunning() {
		t.Fatal("badge loop must not run before login")
	}

	sess.set(true)

	msg := recv(t, c.Results())
	if msg.Loop != psync.BadgeLoop {
		t.Fatalf("first result from %q, want badge", msg.Loop)
	}
	if !c.BadgeRunning() || c.ListRunning() {
		t.Fatalf("badge=%v list=%v, want badge only", c.BadgeRunning(), c.ListRunning())
	}
	if got := st.Count(); got != 2 {
		t.Fatalf("Count = %d, want 2", got)
	}
}

func TestCoordinator_AttachResumedSession(t *testing.T) {
	c := newCoordinator(t, returning(unreadList(1), nil), unread.New())
	c.Attach(&fakeSession{loggedIn: true})

	recv(t, c.Results())
	if !c.BadgeRunning() {
		t.Fatal("resumed session should start the badge loop")
	}
}

func TestCoordinator_FocusRequiresSession(t *testing.T) {
	c := newCoordinator(t, returning(unreadList(1), nil), unread.New())
	sess := &fakeSession{}
	c.Attach(sess)

	c.Focus()
	if c.ListRunning() {
		t.Fatal("list loop must not run while logged out")
	}

	// Logging in while focused starts both loops.
	sess.set(true)
	recv(t, c.Results())
	recv(t, c.Results())
	if !c.BadgeRunning() || !c.ListRunning() {
		t.Fatalf("badge=%v list=%v, want both", c.BadgeRunning(), c.ListRunning())
	}
}

func TestCoordinator_BlurStopsListOnly(t *testing.T) {
	c := newCoordinator(t, returning(unreadList(1), nil), unread.New())
	sess := &fakeSession{loggedIn: true}
	c.Attach(sess)
	recv(t, c.Results())

	c.Focus()
	msg := recv(t, c.Results())
	if msg.Loop != psync.ListLoop {
		t.Fatalf("result from %q, want list", msg.Loop)
	}
	if len(msg.Notifications) != 1 {
		t.Fatalf("list result carries %d notifications, want 1", len(msg.Notifications))
	}

	c.Blur()
	if c.ListRunning() {
		t.Fatal("list loop should stop on blur")
	}
	if !c.BadgeRunning() {
		t.Fatal("badge loop should keep running on blur")
	}
}

func TestCoordinator_LogoutStopsAndResets(t *testing.T) {
	st := unread.New()
	c := newCoordinator(t, returning(unreadList(3), nil), st)
	sess := &fakeSession{loggedIn: true}
	c.Attach(sess)
	c.Focus()
	recv(t, c.Results())
	recv(t, c.Results())

	sess.set(false)

	if c.BadgeRunning() || c.ListRunning() {
		t.Fatalf("badge=%v list=%v, want both stopped", c.BadgeRunning(), c.ListRunning())
	}
	if got := st.Count(); got != 0 {
		t.Fatalf("Count = %d, want 0 after logout", got)
	}
	expectNone(t, c.Results())
}
