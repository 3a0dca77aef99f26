// Package unread holds the client-side unread notification count shared by
// the header badge, the notification list and the poll loops.
package unread

import (
	"sync"

	"github.com/schoolone/portal/internal/model"
)

// Ticket orders poll responses. A loop takes a ticket before it fetches and
// hands it back with the result; responses carrying an outdated ticket are
// dropped.
type Ticket struct {
	epoch uint64
	seq   uint64
}

// Store owns the unread count. All writers go through its methods; readers
// call Count or Subscribe. The zero value is not usable; call New.
type Store struct {
	mu      sync.Mutex
	count   int
	epoch   uint64
	issued  uint64
	applied uint64
	subs    map[int]chan int
	nextSub int
}

// New returns a Store with a count of zero.
func New() *Store {
	return &Store{subs: make(map[int]chan int)}
}

// Count returns the current unread count. It is never negative.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// SetFromPoll overwrites the count with the number of unread items in ns.
// It always wins over earlier optimistic adjustments and supersedes any
// poll still in flight.
func (s *Store) SetFromPoll(ns []model.Notification) {
	s.ApplyPoll(s.Begin(), ns)
}

// Begin issues a ticket for a poll that is about to start.
func (s *Store) Begin() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued++
	return Ticket{epoch: s.epoch, seq: s.issued}
}

// ApplyPoll sets the count from a poll result if t is still current: it
// was issued in the present session and no later-issued poll has already
// been applied. It reports whether the result was applied.
func (s *Store) ApplyPoll(t Ticket, ns []model.Notification) bool {
	unread := model.CountUnread(ns)

	s.mu.Lock()
	defer s.mu.Unlock()

	if t.epoch != s.epoch || t.seq <= s.applied {
		return false
	}
	s.applied = t.seq
	s.setLocked(unread)
	return true
}

// DecrementOptimistic lowers the count by one, floored at zero. It is used
// right after a confirmed mark-as-read, before the next poll.
func (s *Store) DecrementOptimistic() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count == 0 {
		return
	}
	s.setLocked(s.count - 1)
}

// Reset sets the count to zero and invalidates every outstanding ticket.
// Called on logout.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	s.applied = 0
	s.issued = 0
	s.setLocked(0)
}

// Subscribe returns a channel that receives the count after every change,
// starting with the current value. A slow reader only sees the latest
// value. Call the returned func to unsubscribe.
func (s *Store) Subscribe() (<-chan int, func()) {
	ch := make(chan int, 1)

	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.count
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// setLocked stores v and notifies subscribers. Caller holds s.mu.
func (s *Store) setLocked(v int) {
	if v < 0 {
		v = 0
	}
	changed := v != s.count
	s.count = v
	if !changed {
		return
	}
	for _, ch := range s.subs {
		// Replace any undelivered value with the newest one.
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}
