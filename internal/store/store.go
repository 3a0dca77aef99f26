package store

import (
	"context"
	"time"

	"github.com/schoolone/portal/internal/model"
)

// Store caches the last notification list fetched for each user, so the
// notification screen has something to show before the first poll lands.
// It is a display cache only and never feeds the unread count.
type Store interface {
	// SaveNotifications replaces the cached list for owner.
	SaveNotifications(ctx context.Context, owner string, ns []model.Notification) error

	// LoadNotifications returns the cached list for owner, unread first then
	// newest first. An owner with no cache gets an empty list.
	LoadNotifications(ctx context.Context, owner string) ([]model.Notification, error)

	// LastSynced returns when the list for owner was last saved, or the zero
	// time.
	LastSynced(ctx context.Context, owner string) (time.Time, error)

	// ClearOwner drops everything cached for owner.
	ClearOwner(ctx context.Context, owner string) error

	Close() error
}
