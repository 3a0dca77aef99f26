package model

import (
	"testing"
	"time"
)

func strPtr(s string) *string { return &s }

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"zero", time.Time{}, ""},
		{"seconds", now.Add(-30 * time.Second), "Just now"},
		{"future", now.Add(time.Minute), "Just now"},
		{"minutes", now.Add(-5 * time.Minute), "5 mins ago"},
		{"hours", now.Add(-3 * time.Hour), "3 hours ago"},
		{"days", now.Add(-49 * time.Hour), "2 days ago"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RelativeTime(tt.at, now); got != tt.want {
				t.Errorf("RelativeTime = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAttachmentLink(t *testing.T) {
	origin := "http://127.0.0.1:8000/"

	tests := []struct {
		name string
		ref  *string
		want string
	}{
		{"none", nil, ""},
		{"empty", strPtr(""), ""},
		{"relative", strPtr("/static/a.pdf"), "http://127.0.0.1:8000/static/a.pdf"},
		{"no leading slash", strPtr("static/a.pdf"), "http://127.0.0.1:8000/static/a.pdf"},
		{"absolute", strPtr("https://cdn.test/a.pdf"), "https://cdn.test/a.pdf"},
		{"absolute http", strPtr("http://cdn.test/a.pdf"), "http://cdn.test/a.pdf"},
		{"relative starting with http", strPtr("httpdocs/x.pdf"), "http://127.0.0.1:8000/httpdocs/x.pdf"},
		{"relative starting with https", strPtr("/https-notes.pdf"), "http://127.0.0.1:8000/https-notes.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := Notification{AttachmentURL: tt.ref}
			if got := n.AttachmentLink(origin); got != tt.want {
				t.Errorf("AttachmentLink = %q, want %q", got, tt.want)
			}
			if n.HasAttachment() != (tt.want != "") {
				t.Errorf("HasAttachment = %v", n.HasAttachment())
			}
		})
	}
}

func TestCountUnread(t *testing.T) {
	ns := []Notification{{ID: 1}, {ID: 2, IsRead: true}, {ID: 3}}
	if got := CountUnread(ns); got != 2 {
		t.Errorf("CountUnread = %d, want 2", got)
	}
	if got := CountUnread(nil); got != 0 {
		t.Errorf("CountUnread(nil) = %d, want 0", got)
	}
}

func TestIsGlobal(t *testing.T) {
	id := 7
	if !(Notification{}).IsGlobal() {
		t.Error("notification without student should be global")
	}
	if (Notification{StudentID: &id}).IsGlobal() {
		t.Error("targeted notification reported as global")
	}
}

func TestUserDisplayName(t *testing.T) {
	if got := (User{Email: "a@b.c"}).DisplayName(); got != "a@b.c" {
		t.Errorf("DisplayName = %q", got)
	}
	if got := (User{Email: "a@b.c", Name: "Ana"}).DisplayName(); got != "Ana" {
		t.Errorf("DisplayName = %q", got)
	}
}
