package state

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nhle/wardboard/internal/model"
	"github.com/nhle/wardboard/internal/notify"
)

func newFrozen(at time.Time) *Container {
	c := New(notify.NewQueue())
	c.now = func() time.Time { return at }
	return c
}

func tasks(ids ...string) *[]model.Task {
	out := make([]model.Task, len(ids))
	for i, id := range ids {
		out[i] = model.Task{ID: id, Title: "task " + id, Status: model.TaskPending}
	}
	return &out
}

func TestContainer_LastUpdateStrictlyIncreases(t *testing.T) {
	// A frozen clock forces the nanosecond bump on every call.
	c := newFrozen(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))

	var prev time.Time
	patches := []model.Patch{
		{Tasks: tasks("a")},
		{Tasks: tasks("b", "c")},
		{Resources: &[]model.Resource{{ID: "r1"}}},
		{},
		{Tasks: tasks()},
	}
	for i, p := range patches {
		got := c.Apply(p)
		if !got.After(prev) {
			t.Fatalf("patch %d: lastUpdate %v not after %v", i, got, prev)
		}
		if snap := c.Snapshot(); !snap.LastUpdate.Equal(got) {
			t.Fatalf("patch %d: snapshot lastUpdate %v, returned %v", i, snap.LastUpdate, got)
		}
		prev = got
	}

	snap := c.Snapshot()
	if len(snap.Tasks) != 0 {
		t.Errorf("expected the last tasks patch (empty) to win, got %d tasks", len(snap.Tasks))
	}
	if len(snap.Resources) != 1 {
		t.Errorf("expected resources untouched by later patches, got %d", len(snap.Resources))
	}
}

func TestContainer_CollectionPatchReplacesWholesale(t *testing.T) {
	c := New(notify.NewQueue())
	c.Apply(model.Patch{Tasks: tasks("a", "b")})
	c.Apply(model.Patch{Tasks: tasks("c")})

	snap := c.Snapshot()
	if len(snap.Tasks) != 1 || snap.Tasks[0].ID != "c" {
		t.Errorf("expected only task c, got %#v", snap.Tasks)
	}
}

func TestContainer_SnapshotIsIsolated(t *testing.T) {
	c := New(notify.NewQueue())
	src := tasks("a")
	c.Apply(model.Patch{Tasks: src})

	(*src)[0].Title = "mutated by caller"
	snap := c.Snapshot()
	snap.Tasks[0].Title = "mutated by reader"

	if got := c.Snapshot().Tasks[0].Title; got != "task a" {
		t.Errorf("container state leaked, title %q", got)
	}
}

func TestContainer_NotificationPatchReplacesQueue(t *testing.T) {
	c := New(notify.NewQueue())
	c.Apply(model.Patch{Notifications: &[]model.Notification{{ID: "a", Message: "first"}}})
	c.Apply(model.Patch{Notifications: &[]model.Notification{{ID: "b", Message: "second"}}})

	snap := c.Snapshot()
	if len(snap.Notifications) != 1 || snap.Notifications[0].ID != "b" {
		t.Fatalf("expected exactly [b], got %#v", snap.Notifications)
	}
	if _, ok := c.Queue().Get("a"); ok {
		t.Error("a should be gone from the queue index")
	}
}

func TestContainer_NotificationPatchKeepsFirstOfRepeatedID(t *testing.T) {
	c := New(notify.NewQueue())
	ns := []model.Notification{{ID: "n1", Message: "one"}, {ID: "n2", Message: "two"}, {ID: "n1", Message: "dup"}}
	c.Apply(model.Patch{Notifications: &ns})

	snap := c.Snapshot()
	if len(snap.Notifications) != 2 || snap.Notifications[0].ID != "n1" || snap.Notifications[1].ID != "n2" {
		t.Fatalf("expected [n1 n2] in patch order, got %#v", snap.Notifications)
	}
	if n, _ := c.Queue().Get("n1"); n.Message != "one" {
		t.Errorf("repeated id replaced the first entry: %q", n.Message)
	}
}

func TestContainer_DismissedNotificationStaysGone(t *testing.T) {
	c := New(notify.NewQueue())
	c.Apply(model.Patch{Notifications: &[]model.Notification{{ID: "a"}, {ID: "b"}}})

	c.Queue().Remove("a")
	c.Queue().ClearAll()
	c.Apply(model.Patch{Tasks: tasks("t1")})

	if n := len(c.Snapshot().Notifications); n != 0 {
		t.Fatalf("patch without notifications revived %d alerts", n)
	}

	c.Apply(model.Patch{Notifications: &[]model.Notification{{ID: "b"}}})
	snap := c.Snapshot()
	if len(snap.Notifications) != 1 || snap.Notifications[0].ID != "b" {
		t.Errorf("expected only what the latest patch lists, got %#v", snap.Notifications)
	}
}

func TestContainer_EmptyCollectionStaysEmpty(t *testing.T) {
	c := New(notify.NewQueue())
	c.Apply(model.Patch{
		Tasks:         &[]model.Task{},
		Appointments:  &[]model.Appointment{},
		Notifications: &[]model.Notification{},
	})

	snap := c.Snapshot()
	if snap.Tasks == nil || snap.Appointments == nil {
		t.Fatalf("present but empty collections came back nil: %#v", snap)
	}
	data, err := json.Marshal(snap)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"tasks":[]`) {
		t.Errorf("expected tasks encoded as [], got %s", data)
	}
}

func TestContainer_SnapshotSeesWholePatch(t *testing.T) {
	c := New(notify.NewQueue())
	c.Apply(model.Patch{
		Tasks:         tasks("0"),
		Notifications: &[]model.Notification{{ID: "0"}},
	})

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			id := strconv.Itoa(i)
			c.Apply(model.Patch{
				Tasks:         tasks(id),
				Notifications: &[]model.Notification{{ID: id}},
			})
		}
	}()

	for i := 0; i < 2000; i++ {
		snap := c.Snapshot()
		if len(snap.Tasks) != 1 || len(snap.Notifications) != 1 || snap.Tasks[0].ID != snap.Notifications[0].ID {
			close(stop)
			wg.Wait()
			t.Fatalf("snapshot mixed two patches: tasks %#v notifications %#v", snap.Tasks, snap.Notifications)
		}
	}
	close(stop)
	wg.Wait()
}

func TestContainer_ApplySyncStampsLastSync(t *testing.T) {
	c := New(notify.NewQueue())
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c.ApplySync(model.Patch{Analytics: &model.Analytics{ActivePatients: 4}}, at)

	snap := c.Snapshot()
	if !snap.LastSync.Equal(at) {
		t.Errorf("expected lastSync %v, got %v", at, snap.LastSync)
	}
	c.Apply(model.Patch{Tasks: tasks("a")})
	if !c.Snapshot().LastSync.Equal(at) {
		t.Error("plain Apply must not move lastSync")
	}
}

func TestContainer_Upsert(t *testing.T) {
	c := New(notify.NewQueue())
	c.Apply(model.Patch{Tasks: tasks("a", "b")})

	c.UpsertTask(model.Task{ID: "b", Title: "updated", Status: model.TaskCompleted})
	c.UpsertTask(model.Task{ID: "z", Title: "new", Status: model.TaskPending})
	c.UpsertResource(model.Resource{ID: "r1", Status: model.ResourceInUse})

	snap := c.Snapshot()
	if len(snap.Tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(snap.Tasks))
	}
	if snap.Tasks[1].Status != model.TaskCompleted {
		t.Errorf("expected b completed in place, got %#v", snap.Tasks[1])
	}
	if len(snap.Resources) != 1 || snap.Resources[0].Status != model.ResourceInUse {
		t.Errorf("unexpected resources %#v", snap.Resources)
	}
}

func TestContainer_Reset(t *testing.T) {
	c := newFrozen(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	before := c.Apply(model.Patch{
		User:          &model.User{ID: "u1", Role: model.RoleNurse},
		Notifications: &[]model.Notification{{ID: "n1"}},
		Tasks:         tasks("a"),
	})

	c.Reset()

	snap := c.Snapshot()
	if snap.User != nil || len(snap.Tasks) != 0 || len(snap.Notifications) != 0 {
		t.Errorf("expected empty state after reset, got %#v", snap)
	}
	if !snap.LastUpdate.After(before) {
		t.Error("lastUpdate must keep increasing across reset")
	}
}

func TestContainer_WatchCoalescesAndCloses(t *testing.T) {
	c := New(notify.NewQueue())
	ctx, cancel := context.WithCancel(context.Background())
	ch := c.Watch(ctx)

	c.Apply(model.Patch{Tasks: tasks("a")})
	c.Apply(model.Patch{Tasks: tasks("b")})

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a change signal")
	}
	select {
	case <-ch:
		t.Fatal("expected the two changes to coalesce into one signal")
	default:
	}

	c.Queue().Add(model.Notification{ID: "n1"})
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a signal for a queue change")
	}

	cancel()
	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("watch channel not closed after cancel")
		}
	}
}

func TestDecodePatch_Normalizes(t *testing.T) {
	now := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	raw := []byte(`{
		"tasks": [{"id": "t1", "title": "Obs round"}],
		"medications": [{"id": "m1", "patientId": "p1", "name": "Paracetamol", "status": "given", "lastUpdate": "2026-03-01T10:00:00Z"}],
		"notifications": [{"message": "Bed 4 call bell"}]
	}`)

	p, err := DecodePatch(raw, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	task := (*p.Tasks)[0]
	if task.Status != model.TaskPending {
		t.Errorf("expected default pending, got %q", task.Status)
	}
	if !task.LastUpdate.Equal(now) {
		t.Errorf("expected lastUpdate filled with now, got %v", task.LastUpdate)
	}

	med := (*p.Medications)[0]
	if med.Status != model.MedicationGiven {
		t.Errorf("explicit status overwritten: %q", med.Status)
	}
	if med.LastUpdate.Equal(now) {
		t.Error("explicit lastUpdate overwritten")
	}

	n := (*p.Notifications)[0]
	if n.ID == "" || n.Kind != model.NotificationInfo || !n.CreatedAt.Equal(now) {
		t.Errorf("notification not normalized: %#v", n)
	}
}

func TestDecodePatch_UnknownStatus(t *testing.T) {
	_, err := DecodePatch([]byte(`{"resources":[{"id":"r1","status":"lost"}]}`), time.Now())
	if !errors.Is(err, model.ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
}

func TestDecodeNotification(t *testing.T) {
	now := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)
	n, err := DecodeNotification([]byte(`{"id":"x","type":"warning","message":"Low stock","duration":3000}`), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n.ID != "x" || n.Kind != model.NotificationWarning || n.Duration != 3*time.Second {
		t.Errorf("unexpected notification %#v", n)
	}

	if _, err := DecodeNotification([]byte(`{"type":"panic"}`), now); !errors.Is(err, model.ErrUnknownStatus) {
		t.Errorf("expected ErrUnknownStatus for bad kind, got %v", err)
	}
}
