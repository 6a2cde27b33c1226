package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nhle/wardboard/internal/channel"
	"github.com/nhle/wardboard/internal/model"
)

// NotificationInput is what a caller supplies; the id, timestamp and read
// flag are filled in.
type NotificationInput struct {
	Kind     model.NotificationKind
	Title    string
	Message  string
	Duration time.Duration
}

func (s *Service) build(in NotificationInput) model.Notification {
	kind := in.Kind
	if kind == "" {
		kind = model.NotificationInfo
	}
	return model.Notification{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     in.Title,
		Message:   in.Message,
		CreatedAt: s.now(),
		Duration:  in.Duration,
	}
}

// Notifications returns the queue, newest first.
func (s *Service) Notifications() []model.Notification {
	return s.queue.List()
}

// Notification looks up one notification by id.
func (s *Service) Notification(id string) (model.Notification, bool) {
	return s.queue.Get(id)
}

// UnreadCount returns the number of unread notifications.
func (s *Service) UnreadCount() int {
	return s.queue.UnreadCount()
}

// AddNotification adds a local notification without publishing it.
func (s *Service) AddNotification(in NotificationInput) model.Notification {
	n := s.build(in)
	s.queue.Add(n)
	return n
}

// SendNotification adds a notification locally and publishes it on the
// push channel for other sessions. Publishing is best effort.
func (s *Service) SendNotification(_ context.Context, in NotificationInput) model.Notification {
	n := s.build(in)
	s.queue.Add(n)

	if sess := s.current(); sess != nil {
		if !sess.ch.Emit(channel.EventNotification, n) {
			s.logger.Debug().Str("notification_id", n.ID).Msg("notification kept local, channel unavailable")
		}
	}
	return n
}

// RemoveNotification dismisses a notification.
func (s *Service) RemoveNotification(id string) {
	s.queue.Remove(id)
}

// MarkAsRead flags a notification as read; unknown ids are ignored.
func (s *Service) MarkAsRead(id string) {
	s.queue.MarkAsRead(id)
}

// ClearAll empties the queue.
func (s *Service) ClearAll() {
	s.queue.ClearAll()
}

// DismissExpired removes auto-dismissing notifications whose time is up
// and returns how many were removed.
func (s *Service) DismissExpired() int {
	ids := s.queue.Expired(s.now())
	for _, id := range ids {
		s.queue.Remove(id)
	}
	return len(ids)
}
