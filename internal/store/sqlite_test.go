package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/schoolone/portal/internal/model"
	"github.com/schoolone/portal/tests/testutil"
)

func ptr[T any](v T) *T { return &v }

func TestSaveAndLoadNotifications(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

	ns := []model.Notification{
		{ID: 1, Title: "old read", IsRead: true, CreatedAt: base},
		{ID: 2, Title: "old unread", CreatedAt: base.Add(time.Hour)},
		{ID: 3, Title: "new unread", CreatedAt: base.Add(2 * time.Hour),
			AttachmentURL: ptr("/static/uploads/a.pdf"), StudentID: ptr(7)},
	}
	if err := s.SaveNotifications(ctx, "kid@school.test", ns); err != nil {
		t.Fatalf("SaveNotifications: %v", err)
	}

	got, err := s.LoadNotifications(ctx, "kid@school.test")
	if err != nil {
		t.Fatalf("LoadNotifications: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d notifications, want 3", len(got))
	}

	wantOrder := []int{3, 2, 1}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Fatalf("position %d: id %d, want %d", i, got[i].ID, id)
		}
	}
	if got[0].AttachmentURL == nil || *got[0].AttachmentURL != "/static/uploads/a.pdf" {
		t.Fatalf("attachment not round-tripped: %+v", got[0])
	}
	if got[0].StudentID == nil || *got[0].StudentID != 7 || got[0].BatchID != nil {
		t.Fatalf("targeting not round-tripped: %+v", got[0])
	}
	if !got[2].IsRead || got[1].IsRead {
		t.Fatalf("read flags not round-tripped: %+v", got)
	}
	if !got[1].CreatedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("created_at = %v", got[1].CreatedAt)
	}
}

func TestSaveReplacesPreviousList(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	first := []model.Notification{{ID: 1, Title: "a", CreatedAt: now}, {ID: 2, Title: "b", CreatedAt: now}}
	if err := s.SaveNotifications(ctx, "u", first); err != nil {
		t.Fatalf("SaveNotifications: %v", err)
	}
	if err := s.SaveNotifications(ctx, "u", []model.Notification{{ID: 2, Title: "b", CreatedAt: now}}); err != nil {
		t.Fatalf("SaveNotifications: %v", err)
	}

	got, err := s.LoadNotifications(ctx, "u")
	if err != nil {
		t.Fatalf("LoadNotifications: %v", err)
	}
	if len(got) != 1 || got[0].ID != 2 {
		t.Fatalf("got %+v, want only id 2", got)
	}
}

func TestOwnersAreIsolated(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	if err := s.SaveNotifications(ctx, "a", []model.Notification{{ID: 1, Title: "x", CreatedAt: now}}); err != nil {
		t.Fatalf("SaveNotifications: %v", err)
	}

	got, err := s.LoadNotifications(ctx, "b")
	if err != nil {
		t.Fatalf("LoadNotifications: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil list, got %#v", got)
	}
}

func TestLastSyncedAndClear(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	at, err := s.LastSynced(ctx, "u")
	if err != nil || !at.IsZero() {
		t.Fatalf("LastSynced before save = %v, %v", at, err)
	}

	if err := s.SaveNotifications(ctx, "u", []model.Notification{{ID: 1, Title: "x", CreatedAt: time.Now()}}); err != nil {
		t.Fatalf("SaveNotifications: %v", err)
	}
	at, err = s.LastSynced(ctx, "u")
	if err != nil || at.IsZero() {
		t.Fatalf("LastSynced after save = %v, %v", at, err)
	}

	if err := s.ClearOwner(ctx, "u"); err != nil {
		t.Fatalf("ClearOwner: %v", err)
	}
	got, err := s.LoadNotifications(ctx, "u")
	if err != nil || len(got) != 0 {
		t.Fatalf("after clear: %d notifications, %v", len(got), err)
	}
	at, err = s.LastSynced(ctx, "u")
	if err != nil || !at.IsZero() {
		t.Fatalf("LastSynced after clear = %v, %v", at, err)
	}
}
