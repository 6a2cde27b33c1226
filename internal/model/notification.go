package model

import (
	"encoding/json"
	"time"
)

// NotificationKind is the severity of a user-facing alert.
type NotificationKind string

const (
	NotificationInfo    NotificationKind = "info"
	NotificationSuccess NotificationKind = "success"
	NotificationWarning NotificationKind = "warning"
	NotificationError   NotificationKind = "error"
)

// UnmarshalText rejects kinds outside the declared set.
func (k *NotificationKind) UnmarshalText(b []byte) error {
	v, err := parseEnum("notification kind", string(b),
		NotificationInfo, NotificationSuccess, NotificationWarning, NotificationError)
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Notification represents an alert surfaced to the user, created locally
// or pushed by the server.
type Notification struct {
	// ID is unique within the notification queue.
	ID string

	// Kind is the severity used for styling.
	Kind NotificationKind

	Title   string
	Message string

	// CreatedAt is when this notification was generated.
	CreatedAt time.Time

	// Read indicates whether the user has seen this notification.
	Read bool

	// Duration, when positive, is how long the notification stays on
	// screen before the presentation layer dismisses it.
	Duration time.Duration
}

// notificationWire is the JSON shape exchanged with the back-end. The
// auto-dismiss duration travels as milliseconds.
type notificationWire struct {
	ID         string           `json:"id"`
	Kind       NotificationKind `json:"type"`
	Title      string           `json:"title,omitempty"`
	Message    string           `json:"message"`
	CreatedAt  time.Time        `json:"timestamp"`
	Read       bool             `json:"read"`
	DurationMS int64            `json:"duration,omitempty"`
}

// MarshalJSON encodes the notification in its wire shape.
func (n Notification) MarshalJSON() ([]byte, error) {
	return json.Marshal(notificationWire{
		ID:         n.ID,
		Kind:       n.Kind,
		Title:      n.Title,
		Message:    n.Message,
		CreatedAt:  n.CreatedAt,
		Read:       n.Read,
		DurationMS: n.Duration.Milliseconds(),
	})
}

// UnmarshalJSON decodes the wire shape.
func (n *Notification) UnmarshalJSON(data []byte) error {
	var w notificationWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*n = Notification{
		ID:        w.ID,
		Kind:      w.Kind,
		Title:     w.Title,
		Message:   w.Message,
		CreatedAt: w.CreatedAt,
		Read:      w.Read,
		Duration:  time.Duration(w.DurationMS) * time.Millisecond,
	}
	return nil
}

// ExpiresAt returns when an auto-dismissing notification should leave the
// screen. ok is false for persistent notifications.
func (n Notification) ExpiresAt() (at time.Time, ok bool) {
	if n.Duration <= 0 {
		return time.Time{}, false
	}
	return n.CreatedAt.Add(n.Duration), true
}
