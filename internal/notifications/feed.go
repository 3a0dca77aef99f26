// Package notifications holds the notification screen's local copy of the
// list and reconciles mark-as-read actions with the unread Store.
package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/schoolone/portal/internal/model"
	"github.com/schoolone/portal/internal/unread"
)

// ErrNotFound is returned by MarkRead for an id not in the feed.
var ErrNotFound = errors.New("notification not found")

// Marker marks a notification as read on the server.
type Marker interface {
	MarkNotificationRead(ctx context.Context, id int) error
}

// SessionState identifies the active session. SessionID is empty while
// logged out and changes with every login.
type SessionState interface {
	SessionID() string
}

// Feed is the displayed notification list. Poll results replace it
// wholesale; MarkRead flips single items after server confirmation.
type Feed struct {
	marker  Marker
	store   *unread.Store
	session SessionState
	log     zerolog.Logger

	mu      sync.Mutex
	items   []model.Notification
	pending map[int]bool
	loaded  bool
}

// New creates an empty feed. session may be nil, in which case the feed
// behaves as if always logged in.
func New(marker Marker, store *unread.Store, session SessionState, logger zerolog.Logger) *Feed {
	return &Feed{
		marker:  marker,
		store:   store,
		session: session,
		log:     logger.With().Str("component", "feed").Logger(),
		pending: make(map[int]bool),
	}
}

// Replace swaps the displayed list for a fresh poll result.
func (f *Feed) Replace(ns []model.Notification) {
	items := make([]model.Notification, len(ns))
	copy(items, ns)

	f.mu.Lock()
	f.items = items
	f.loaded = true
	f.mu.Unlock()
}

// Clear empties the feed. Requests in flight finish but no longer change
// anything.
func (f *Feed) Clear() {
	f.mu.Lock()
	f.items = nil
	f.loaded = false
	f.pending = make(map[int]bool)
	f.mu.Unlock()
}

// Loaded reports whether the feed has received a list since the last Clear.
func (f *Feed) Loaded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded
}

// Items returns a copy of the displayed list.
func (f *Feed) Items() []model.Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Notification, len(f.items))
	copy(out, f.items)
	return out
}

// Get returns the notification with the given id.
func (f *Feed) Get(id int) (model.Notification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i := f.indexLocked(id); i >= 0 {
		return f.items[i], true
	}
	return model.Notification{}, false
}

// Pending reports whether a mark-as-read request for id is in flight.
func (f *Feed) Pending(id int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending[id]
}

// MarkRead marks id as read on the server and, once confirmed, flips the
// local copy and decrements the unread count. The count is decremented at
// most once per item: a repeated call, a call while one is in flight, or
// a call for an item the last poll already reported read does nothing.
// On failure the item stays unread and the error is returned.
func (f *Feed) MarkRead(ctx context.Context, id int) error {
	f.mu.Lock()
	i := f.indexLocked(id)
	if i < 0 {
		f.mu.Unlock()
		return fmt.Errorf("marking notification %d read: %w", id, ErrNotFound)
	}
	if f.items[i].IsRead || f.pending[id] {
		f.mu.Unlock()
		return nil
	}
	f.pending[id] = true
	f.mu.Unlock()

	started := f.sessionID()

	err := f.marker.MarkNotificationRead(ctx, id)

	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.pending, id)

	if err != nil {
		f.log.Warn().Err(err).Int("notification_id", id).Msg("mark as read failed")
		return fmt.Errorf("marking notification %d read: %w", id, err)
	}

	// The session that asked is gone, even if another one has begun.
	if f.session != nil {
		if now := f.sessionID(); now == "" || now != started {
			f.log.Debug().Int("notification_id", id).Msg("session changed during mark as read, no decrement")
			return nil
		}
	}

	// The list may have been replaced while the request was in flight.
	i = f.indexLocked(id)
	if i < 0 || f.items[i].IsRead {
		f.log.Debug().Int("notification_id", id).Msg("already read by poll, no decrement")
		return nil
	}
	f.items[i].IsRead = true
	f.store.DecrementOptimistic()
	return nil
}

func (f *Feed) sessionID() string {
	if f.session == nil {
		return ""
	}
	return f.session.SessionID()
}

func (f *Feed) indexLocked(id int) int {
	for i := range f.items {
		if f.items[i].ID == id {
			return i
		}
	}
	return -1
}
