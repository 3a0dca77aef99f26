package sync_test

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/schoolone/portal/internal/api"
	"github.com/schoolone/portal/internal/model"
	psync "github.com/schoolone/portal/internal/sync"
	"github.com/schoolone/portal/internal/unread"
)

const waitTimeout = 2 * time.Second

// fakeFetcher answers each call with fn, counting calls.
type fakeFetcher struct {
	mu    gosync.Mutex
	calls int
	fn    func(ctx context.Context, call int) ([]model.Notification, error)
}

func (f *fakeFetcher) FetchNotifications(ctx context.Context) ([]model.Notification, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	fn := f.fn
	f.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(ctx, call)
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func returning(ns []model.Notification, err error) *fakeFetcher {
	return &fakeFetcher{fn: func(context.Context, int) ([]model.Notification, error) {
		return ns, err
	}}
}

func unreadList(n int) []model.Notification {
	ns := make([]model.Notification, n)
	for i := range ns {
		ns[i] = model.Notification{ID: i + 1, Title: "n"}
	}
	return ns
}

func newLoop(t *testing.T, f psync.Fetcher, st *unread.Store, clock clockwork.Clock) (*psync.Loop, chan psync.ResultMsg) {
	t.Helper()
	results := make(chan psync.ResultMsg, 16)
	l := psync.NewLoop(psync.LoopConfig{
		Name:     psync.BadgeLoop,
		Interval: 30 * time.Second,
		Timeout:  time.Second,
		Fetcher:  f,
		Store:    st,
		Clock:    clock,
		Logger:   zerolog.Nop(),
		Results:  results,
	})
	t.Cleanup(l.Stop)
	return l, results
}

func recv(t *testing.T, ch <-chan psync.ResultMsg) psync.ResultMsg {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for poll result")
		return psync.ResultMsg{}
	}
}

func expectNone(t *testing.T, ch <-chan psync.ResultMsg) {
	t.Helper()
	select {
	case msg := <-ch:
		t.Fatalf("unexpected poll result %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestLoop_StoppedIssuesNoFetch(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := returning(unreadList(1), nil)
	l, results := newLoop(t, f, unread.New(), clock)

	clock.Advance(5 * time.Minute)

	expectNone(t, results)
	if f.Calls() != 0 {
		t.Fatalf("stopped loop fetched %d times", f.Calls())
	}
	if l.Running() {
		t.Fatal("new loop should be stopped")
	}
}

func TestLoop_StartFetchesImmediately(t *testing.T) {
	clock := clockwork.NewFakeClock()
	st := unread.New()
	f := returning(unreadList(2), nil)
	l, results := newLoop(t, f, st, clock)

	l.Start()

	msg := recv(t, results)
	if msg.Err != nil || !msg.Applied {
		t.Fatalf("unexpected result %+v", msg)
	}
	if got := st.Count(); got != 2 {
		t.Fatalf("Count = %d, want 2", got)
	}
	if f.Calls() != 1 {
		t.Fatalf("calls = %d, want 1", f.Calls())
	}
}

func TestLoop_StartTwiceIsIdempotent(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := returning(unreadList(1), nil)
	l, results := newLoop(t, f, unread.New(), clock)

	l.Start()
	l.Start()
	recv(t, results)
	expectNone(t, results)

	if f.Calls() != 1 {
		t.Fatalf("calls = %d, want 1", f.Calls())
	}
}

func TestLoop_TicksOnInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	st := unread.New()
	f := &fakeFetcher{fn: func(_ context.Context, call int) ([]model.Notification, error) {
		return unreadList(call), nil
	}}
	l, results := newLoop(t, f, st, clock)

	l.Start()
	recv(t, results)
	clock.BlockUntil(1)

	clock.Advance(10 * time.Second)
	expectNone(t, results)

	clock.Advance(20 * time.Second)
	recv(t, results)

	if got := st.Count(); got != 2 {
		t.Fatalf("Count = %d, want 2", got)
	}
}

func TestLoop_NetworkErrorKeepsCount(t *testing.T) {
	clock := clockwork.NewFakeClock()
	st := unread.New()
	st.SetFromPoll(unreadList(2))

	netErr := &api.NetworkError{Op: "GET /notifications/", Err: errors.New("connection refused")}
	l, results := newLoop(t, returning(nil, netErr), st, clock)

	l.Start()
	msg := recv(t, results)

	if !api.IsNetworkError(msg.Err) {
		t.Fatalf("expected network error, got %v", msg.Err)
	}
	if msg.Applied {
		t.Fatal("failed poll must not be applied")
	}
	if got := st.Count(); got != 2 {
		t.Fatalf("Count = %d, want 2 after failed poll", got)
	}
}

func TestLoop_ServerErrorKeepsCount(t *testing.T) {
	clock := clockwork.NewFakeClock()
	st := unread.New()
	st.SetFromPoll(unreadList(3))

	srvErr := &api.ServerError{Op: "GET /notifications/", Status: 500}
	l, results := newLoop(t, returning(nil, srvErr), st, clock)

	l.Start()
	recv(t, results)

	if got := st.Count(); got != 3 {
		t.Fatalf("Count = %d, want 3 after failed poll", got)
	}
}

func TestLoop_StopHaltsFetching(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := returning(unreadList(1), nil)
	l, results := newLoop(t, f, unread.New(), clock)

	l.Start()
	recv(t, results)
	l.Stop()
	l.Stop()

	if l.Running() {
		t.Fatal("loop should be stopped")
	}
	clock.Advance(2 * time.Minute)
	expectNone(t, results)
	if f.Calls() != 1 {
		t.Fatalf("calls = %d, want 1", f.Calls())
	}
}

func TestLoop_StopCancelsInFlightFetch(t *testing.T) {
	clock := clockwork.NewFakeClock()
	st := unread.New()
	started := make(chan struct{})
	f := &fakeFetcher{fn: func(ctx context.Context, _ int) ([]model.Notification, error) {
		close(started)
		<-ctx.Done()
		return unreadList(5), nil
	}}
	l, results := newLoop(t, f, st, clock)

	l.Start()
	<-started

	stopped := make(chan struct{})
	go func() {
		l.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(waitTimeout):
		t.Fatal("Stop did not return")
	}

	expectNone(t, results)
	if got := st.Count(); got != 0 {
		t.Fatalf("Count = %d, want 0: result of a stopped loop was applied", got)
	}
}

func TestLoop_RestartFetchesImmediately(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := returning(unreadList(1), nil)
	l, results := newLoop(t, f, unread.New(), clock)

	l.Start()
	recv(t, results)
	l.Stop()
	l.Start()
	recv(t, results)

	if f.Calls() != 2 {
		t.Fatalf("calls = %d, want 2", f.Calls())
	}
}

func TestLoop_RefreshFetchesNow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	f := returning(unreadList(1), nil)
	l, results := newLoop(t, f, unread.New(), clock)

	l.Refresh()
	expectNone(t, results)

	l.Start()
	recv(t, results)
	l.Refresh()
	recv(t, results)

	if f.Calls() != 2 {
		t.Fatalf("calls = %d, want 2", f.Calls())
	}
}

func TestLoop_StaleResultDiscarded(t *testing.T) {
	clock := clockwork.NewFakeClock()
	st := unread.New()
	started := make(chan struct{})
	release := make(chan struct{})
	f := &fakeFetcher{fn: func(context.Context, int) ([]model.Notification, error) {
		close(started)
		<-release
		return unreadList(3), nil
	}}
	l, results := newLoop(t, f, st, clock)

	l.Start()
	<-started

	// A poll issued later completes first.
	st.SetFromPoll(unreadList(1))
	close(release)

	msg := recv(t, results)
	if msg.Applied {
		t.Fatal("older poll result should have been discarded")
	}
	if got := st.Count(); got != 1 {
		t.Fatalf("Count = %d, want 1", got)
	}
}

func TestLoop_ResultAfterResetDiscarded(t *testing.T) {
	clock := clockwork.NewFakeClock()
	st := unread.New()
	started := make(chan struct{})
	release := make(chan struct{})
	f := &fakeFetcher{fn: func(context.Context, int) ([]model.Notification, error) {
		close(started)
		<-release
		return unreadList(4), nil
	}}
	l, results := newLoop(t, f, st, clock)

	l.Start()
	<-started
	st.Reset()
	close(release)

	msg := recv(t, results)
	if msg.Applied {
		t.Fatal("result issued before reset should have been discarded")
	}
	if got := st.Count(); got != 0 {
		t.Fatalf("Count = %d, want 0", got)
	}
}
