package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Notification is a server-owned announcement visible to the logged-in
// student. The client never creates one; it only fetches and marks read.
type Notification struct {
	// ID is the server-assigned identifier.
	ID int `json:"id"`

	// Title is the short headline shown in the list.
	Title string `json:"title"`

	// Message is the announcement body.
	Message string `json:"message"`

	// IsRead is authoritative on the server. A local copy may be flipped
	// optimistically after a successful mark-as-read call.
	IsRead bool `json:"is_read"`

	// AttachmentURL points to a downloadable file, relative to the backend
	// origin or absolute.
	AttachmentURL *string `json:"attachment_url,omitempty"`

	// StudentID is the targeted student; nil means a global announcement.
	StudentID *int `json:"student_id,omitempty"`

	// BatchID groups notifications created by a single send.
	BatchID *int `json:"batch_id,omitempty"`

	// CreatedAt is when the server created the notification.
	CreatedAt time.Time `json:"created_at"`
}

// IsGlobal reports whether the notification targets every student.
func (n Notification) IsGlobal() bool {
	return n.StudentID == nil
}

// HasAttachment reports whether a non-empty attachment reference is set.
func (n Notification) HasAttachment() bool {
	return n.AttachmentURL != nil && *n.AttachmentURL != ""
}

// AttachmentLink resolves the attachment reference against the backend
// origin. Absolute URLs are returned unchanged; an empty string means no
// attachment.
func (n Notification) AttachmentLink(origin string) string {
	if !n.HasAttachment() {
		return ""
	}
	ref := *n.AttachmentURL
	if u, err := url.Parse(ref); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		return ref
	}
	origin = strings.TrimRight(origin, "/")
	if !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return origin + ref
}

// CountUnread returns how many notifications have IsRead == false.
func CountUnread(ns []Notification) int {
	count := 0
	for _, n := range ns {
		if !n.IsRead {
			count++
		}
	}
	return count
}

// RelativeTime formats t relative to now using the labels of the mobile
// notification screen.
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	secs := int(now.Sub(t) / time.Second)
	switch {
	case secs < 60:
		return "Just now"
	case secs < 3600:
		return fmt.Sprintf("%d mins ago", secs/60)
	case secs < 86400:
		return fmt.Sprintf("%d hours ago", secs/3600)
	default:
		return fmt.Sprintf("%d days ago", secs/86400)
	}
}
