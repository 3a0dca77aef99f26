package unread_test

import (
	"testing"

	"github.com/schoolone/portal/internal/model"
	"github.com/schoolone/portal/internal/unread"
)

func notes(readFlags ...bool) []model.Notification {
	ns := make([]model.Notification, len(readFlags))
	for i, r := range readFlags {
		ns[i] = model.Notification{ID: i + 1, Title: "n", IsRead: r}
	}
	return ns
}

func TestSetFromPoll_CountsUnread(t *testing.T) {
	tests := []struct {
		name string
		ns   []model.Notification
		want int
	}{
		{name: "empty", ns: nil, want: 0},
		{name: "all read", ns: notes(true, true), want: 0},
		{name: "all unread", ns: notes(false, false, false), want: 3},
		{name: "mixed", ns: notes(true, false, true, false), want: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := unread.New()
			s.SetFromPoll(tt.ns)
			if got := s.Count(); got != tt.want {
				t.Errorf("Count() = %d, want %d", got, tt.want)
			}
			// Idempotent.
			s.SetFromPoll(tt.ns)
			if got := s.Count(); got != tt.want {
				t.Errorf("Count() after repeat = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSetFromPoll_CanMoveDown(t *testing.T) {
	s := unread.New()
	s.SetFromPoll(notes(false, false, false))
	s.SetFromPoll(notes(false))
	if got := s.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}
}

func TestDecrementOptimistic_FloorsAtZero(t *testing.T) {
	for start := 0; start <= 3; start++ {
		s := unread.New()
		flags := make([]bool, start)
		s.SetFromPoll(notes(flags...))
		for i := 0; i < start+5; i++ {
			s.DecrementOptimistic()
			if got := s.Count(); got < 0 {
				t.Fatalf("start=%d: Count() = %d after %d decrements", start, got, i+1)
			}
		}
		if got := s.Count(); got != 0 {
			t.Errorf("start=%d: Count() = %d, want 0", start, got)
		}
	}
}

func TestReset_AlwaysZero(t *testing.T) {
	s := unread.New()
	s.Reset()
	if got := s.Count(); got != 0 {
		t.Fatalf("Count() on fresh store after Reset = %d", got)
	}

	s.SetFromPoll(notes(false, false))
	s.DecrementOptimistic()
	s.Reset()
	if got := s.Count(); got != 0 {
		t.Fatalf("Count() after Reset = %d, want 0", got)
	}
}

func TestMarkReadScenarioConverges(t *testing.T) {
	s := unread.New()
	if s.Count() != 0 {
		t.Fatal("new store should start at 0")
	}

	s.SetFromPoll(notes(true, false, false))
	if got := s.Count(); got != 2 {
		t.Fatalf("after first poll Count() = %d, want 2", got)
	}

	s.DecrementOptimistic()
	if got := s.Count(); got != 1 {
		t.Fatalf("after optimistic decrement Count() = %d, want 1", got)
	}

	s.SetFromPoll(notes(true, true, false))
	if got := s.Count(); got != 1 {
		t.Fatalf("after confirming poll Count() = %d, want 1", got)
	}
}

func TestPollOverridesOptimisticDrift(t *testing.T) {
	s := unread.New()
	s.SetFromPoll(notes(false, false, false))

	// Two quick decrements, but the server only applied one read.
	s.DecrementOptimistic()
	s.DecrementOptimistic()
	s.SetFromPoll(notes(true, false, false))

	if got := s.Count(); got != 2 {
		t.Fatalf("Count() = %d, want server truth 2", got)
	}
}

func TestApplyPoll_DiscardsOlderTicket(t *testing.T) {
	s := unread.New()

	older := s.Begin()
	newer := s.Begin()

	if !s.ApplyPoll(newer, notes(false)) {
		t.Fatal("newer ticket should apply")
	}
	if s.ApplyPoll(older, notes(false, false, false)) {
		t.Fatal("older ticket should be discarded")
	}
	if got := s.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}
}

func TestApplyPoll_OutOfOrderStillAppliesInOrderWhenNewer(t *testing.T) {
	s := unread.New()

	first := s.Begin()
	second := s.Begin()

	if !s.ApplyPoll(first, notes(false, false)) {
		t.Fatal("first ticket should apply")
	}
	if !s.ApplyPoll(second, notes(false)) {
		t.Fatal("second ticket should apply")
	}
	if got := s.Count(); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}
}

func TestApplyPoll_DiscardedAfterReset(t *testing.T) {
	s := unread.New()
	inFlight := s.Begin()

	s.Reset()

	if s.ApplyPoll(inFlight, notes(false, false)) {
		t.Fatal("ticket from before Reset should be discarded")
	}
	if got := s.Count(); got != 0 {
		t.Fatalf("Count() = %d, want 0", got)
	}

	// A fresh ticket in the new session works again.
	if !s.ApplyPoll(s.Begin(), notes(false)) {
		t.Fatal("fresh ticket should apply")
	}
}

func TestSubscribe_ReceivesLatest(t *testing.T) {
	s := unread.New()
	ch, cancel := s.Subscribe()
	defer cancel()

	if got := <-ch; got != 0 {
		t.Fatalf("initial value = %d, want 0", got)
	}

	s.SetFromPoll(notes(false, false, false))
	s.DecrementOptimistic()

	if got := <-ch; got != 2 {
		t.Fatalf("latest value = %d, want 2", got)
	}

	select {
	case v := <-ch:
		t.Fatalf("unexpected extra value %d", v)
	default:
	}
}

func TestSubscribe_CancelClosesChannel(t *testing.T) {
	s := unread.New()
	ch, cancel := s.Subscribe()
	<-ch
	cancel()
	cancel()

	s.SetFromPoll(notes(false))

	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after cancel")
	}
}
