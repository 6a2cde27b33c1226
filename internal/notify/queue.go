// Package notify holds the ordered collection of user-facing alerts.
package notify

import (
	"sync"
	"time"

	"github.com/nhle/wardboard/internal/model"
)

// Queue keeps notifications newest first with unique ids.
// All methods are safe for concurrent use.
type Queue struct {
	mu       sync.RWMutex
	items    []model.Notification // newest first
	index    map[string]int       // id -> position in items
	onChange func()
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{index: make(map[string]int)}
}

// OnChange registers fn to run after every mutation that changed the
// queue. fn runs without the queue lock held.
func (q *Queue) OnChange(fn func()) {
	q.mu.Lock()
	q.onChange = fn
	q.mu.Unlock()
}

// Add inserts n at the head. If a notification with the same id is
// already queued the queue is left untouched and the existing entry is
// returned with added == false.
func (q *Queue) Add(n model.Notification) (stored model.Notification, added bool) {
	q.mu.Lock()
	if i, ok := q.index[n.ID]; ok {
		existing := q.items[i]
		q.mu.Unlock()
		return existing, false
	}
	q.items = append([]model.Notification{n}, q.items...)
	q.reindex()
	fn := q.onChange
	q.mu.Unlock()

	if fn != nil {
		fn()
	}
	return n, true
}

// Replace swaps the whole queue for ns, kept in the given order. Only the
// first entry of a repeated id is kept. It reports how many were stored.
func (q *Queue) Replace(ns []model.Notification) int {
	q.mu.Lock()
	had := len(q.items) > 0
	items := make([]model.Notification, 0, len(ns))
	seen := make(map[string]struct{}, len(ns))
	for _, n := range ns {
		if _, ok := seen[n.ID]; ok {
			continue
		}
		seen[n.ID] = struct{}{}
		items = append(items, n)
	}
	q.items = items
	q.reindex()
	fn := q.onChange
	q.mu.Unlock()

	if (had || len(items) > 0) && fn != nil {
		fn()
	}
	return len(items)
}

// Remove deletes the notification with the given id. Unknown ids are
// ignored.
func (q *Queue) Remove(id string) bool {
	q.mu.Lock()
	i, ok := q.index[id]
	if !ok {
		q.mu.Unlock()
		return false
	}
	q.items = append(q.items[:i:i], q.items[i+1:]...)
	q.reindex()
	fn := q.onChange
	q.mu.Unlock()

	if fn != nil {
		fn()
	}
	return true
}

// MarkAsRead flags the notification as read. It is a no-op when the id
// is absent or the notification is already read.
func (q *Queue) MarkAsRead(id string) bool {
	q.mu.Lock()
	i, ok := q.index[id]
	if !ok || q.items[i].Read {
		q.mu.Unlock()
		return false
	}
	q.items[i].Read = true
	fn := q.onChange
	q.mu.Unlock()

	if fn != nil {
		fn()
	}
	return true
}

// ClearAll empties the queue.
func (q *Queue) ClearAll() {
	q.mu.Lock()
	had := len(q.items) > 0
	q.items = nil
	q.index = make(map[string]int)
	fn := q.onChange
	q.mu.Unlock()

	if had && fn != nil {
		fn()
	}
}

// List returns a copy of the queue, newest first.
func (q *Queue) List() []model.Notification {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return append([]model.Notification(nil), q.items...)
}

// Get looks up a notification by id.
func (q *Queue) Get(id string) (model.Notification, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	i, ok := q.index[id]
	if !ok {
		return model.Notification{}, false
	}
	return q.items[i], true
}

// UnreadCount returns the number of unread notifications.
func (q *Queue) UnreadCount() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	n := 0
	for _, item := range q.items {
		if !item.Read {
			n++
		}
	}
	return n
}

// Len returns the number of queued notifications.
func (q *Queue) Len() int {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return len(q.items)
}

// Expired returns the ids of auto-dismissing notifications whose display
// time has elapsed at now.
func (q *Queue) Expired(now time.Time) []string {
	q.mu.RLock()
	defer q.mu.RUnlock()
	var ids []string
	for _, item := range q.items {
		if at, ok := item.ExpiresAt(); ok && !now.Before(at) {
			ids = append(ids, item.ID)
		}
	}
	return ids
}

// reindex rebuilds the id index. Caller must hold q.mu.
func (q *Queue) reindex() {
	clear(q.index)
	for i, item := range q.items {
		q.index[item.ID] = i
	}
}
