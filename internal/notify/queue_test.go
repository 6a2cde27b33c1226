package notify

import (
	"testing"
	"time"

	"github.com/nhle/wardboard/internal/model"
)

func note(id string) model.Notification {
	return model.Notification{
		ID:        id,
		Kind:      model.NotificationInfo,
		Message:   "msg " + id,
		CreatedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func ids(ns []model.Notification) []string {
	out := make([]string, len(ns))
	for i, n := range ns {
		out[i] = n.ID
	}
	return out
}

func TestQueue_AddNewestFirst(t *testing.T) {
	q := NewQueue()
	q.Add(note("a"))
	q.Add(note("b"))
	q.Add(note("c"))

	got := ids(q.List())
	want := []string{"c", "b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestQueue_AddDuplicateIsNoop(t *testing.T) {
	q := NewQueue()
	first := note("a")
	first.Message = "original"
	q.Add(first)
	q.Add(note("b"))

	dup := note("a")
	dup.Message = "replacement"
	stored, added := q.Add(dup)
	if added {
		t.Fatal("expected duplicate add to be rejected")
	}
	if stored.Message != "original" {
		t.Errorf("expected existing entry, got %q", stored.Message)
	}
	if q.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", q.Len())
	}
	if got := ids(q.List()); got[0] != "b" {
		t.Errorf("duplicate must not move to the head, got %v", got)
	}
}

func TestQueue_Replace(t *testing.T) {
	q := NewQueue()
	q.Add(note("a"))
	changes := 0
	q.OnChange(func() { changes++ })

	stored := q.Replace([]model.Notification{note("c"), note("b"), note("c")})
	if stored != 2 {
		t.Fatalf("expected 2 stored notifications, got %d", stored)
	}
	got := ids(q.List())
	if len(got) != 2 || got[0] != "c" || got[1] != "b" {
		t.Fatalf("expected [c b], got %v", got)
	}
	if _, ok := q.Get("a"); ok {
		t.Error("a should not survive a replace")
	}
	if n, ok := q.Get("b"); !ok || n.ID != "b" {
		t.Errorf("index out of date after Replace: %v %v", n, ok)
	}
	if changes != 1 {
		t.Errorf("expected one change callback, got %d", changes)
	}

	q.Replace(nil)
	q.Replace(nil)
	if q.Len() != 0 || changes != 2 {
		t.Errorf("replacing an empty queue with nothing should not fire, len %d changes %d", q.Len(), changes)
	}
}

func TestQueue_RemoveKeepsIndex(t *testing.T) {
	q := NewQueue()
	for _, id := range []string{"a", "b", "c"} {
		q.Add(note(id))
	}

	if !q.Remove("b") {
		t.Fatal("expected b to be removed")
	}
	if q.Remove("b") {
		t.Error("second remove should report false")
	}
	if _, ok := q.Get("a"); !ok {
		t.Error("expected a to be retrievable after removing b")
	}
	if got := ids(q.List()); len(got) != 2 || got[0] != "c" || got[1] != "a" {
		t.Errorf("unexpected order %v", got)
	}
}

func TestQueue_MarkAsReadMissingLeavesQueueUnchanged(t *testing.T) {
	q := NewQueue()
	if q.MarkAsRead("nope") {
		t.Error("expected no-op on empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected empty queue, got %d", q.Len())
	}

	q.Add(note("a"))
	before := q.List()
	q.MarkAsRead("other")
	after := q.List()
	if len(after) != 1 || after[0] != before[0] {
		t.Errorf("queue changed: before %v after %v", before, after)
	}
}

func TestQueue_MarkAsRead(t *testing.T) {
	q := NewQueue()
	q.Add(note("a"))
	q.Add(note("b"))

	if q.UnreadCount() != 2 {
		t.Fatalf("expected 2 unread, got %d", q.UnreadCount())
	}
	if !q.MarkAsRead("a") {
		t.Fatal("expected a to be marked")
	}
	if q.MarkAsRead("a") {
		t.Error("marking twice should report no change")
	}
	if q.UnreadCount() != 1 {
		t.Errorf("expected 1 unread, got %d", q.UnreadCount())
	}
	n, _ := q.Get("a")
	if !n.Read {
		t.Error("expected a to be read")
	}
}

func TestQueue_ClearAllThenMarkAsRead(t *testing.T) {
	q := NewQueue()
	q.Add(note("a"))
	q.Add(note("b"))

	q.ClearAll()
	q.MarkAsRead("a")
	q.MarkAsRead("b")

	if q.Len() != 0 {
		t.Errorf("expected empty queue, got %d", q.Len())
	}
	if _, ok := q.Get("a"); ok {
		t.Error("cleared notification still retrievable")
	}
}

func TestQueue_Expired(t *testing.T) {
	q := NewQueue()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	short := note("short")
	short.CreatedAt = base
	short.Duration = 5 * time.Second
	long := note("long")
	long.CreatedAt = base
	long.Duration = time.Minute
	sticky := note("sticky")
	sticky.CreatedAt = base

	q.Add(short)
	q.Add(long)
	q.Add(sticky)

	got := q.Expired(base.Add(5 * time.Second))
	if len(got) != 1 || got[0] != "short" {
		t.Errorf("expected [short], got %v", got)
	}
	if got := q.Expired(base.Add(time.Hour)); len(got) != 2 {
		t.Errorf("expected 2 expired, got %v", got)
	}
}

func TestQueue_OnChange(t *testing.T) {
	q := NewQueue()
	calls := 0
	q.OnChange(func() { calls++ })

	q.Add(note("a"))
	q.Add(note("a"))
	q.MarkAsRead("a")
	q.MarkAsRead("missing")
	q.Remove("a")
	q.ClearAll()

	if calls != 3 {
		t.Errorf("expected 3 change callbacks, got %d", calls)
	}
}
