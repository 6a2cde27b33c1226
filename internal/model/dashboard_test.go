package model

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"
)

func TestPatch_UnmarshalPresentAndAbsentFields(t *testing.T) {
	raw := `{
		"tasks": [{"id": "t1", "title": "Turn patient", "status": "in_progress"}],
		"resources": [],
		"analytics": null,
		"somethingElse": 42
	}`

	var p Patch
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.Tasks == nil || len(*p.Tasks) != 1 {
		t.Fatalf("expected one task, got %#v", p.Tasks)
	}
	if (*p.Tasks)[0].Status != TaskInProgress {
		t.Errorf("expected in_progress, got %s", (*p.Tasks)[0].Status)
	}
	if p.Resources == nil || len(*p.Resources) != 0 {
		t.Errorf("expected an empty, present resources field, got %#v", p.Resources)
	}
	if p.Analytics != nil {
		t.Error("null analytics should leave the field absent")
	}

	want := []string{FieldResources, FieldTasks}
	if got := p.Fields(); !reflect.DeepEqual(got, want) {
		t.Errorf("Fields() = %v, want %v", got, want)
	}
}

func TestPatch_UnknownStatusRejected(t *testing.T) {
	raw := `{"medications": [{"id": "m1", "status": "maybe"}]}`

	var p Patch
	err := json.Unmarshal([]byte(raw), &p)
	if err == nil {
		t.Fatal("expected an error for an unknown medication status")
	}
	if !errors.Is(err, ErrUnknownStatus) {
		t.Errorf("expected ErrUnknownStatus, got %v", err)
	}
}

func TestPatch_MarshalOnlyPresentFields(t *testing.T) {
	tasks := []Task{{ID: "t1", Status: TaskPending}}
	data, err := json.Marshal(Patch{Tasks: &tasks})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("expected exactly one key, got %v", keys)
	}
	if _, ok := keys[FieldTasks]; !ok {
		t.Errorf("expected tasks key, got %v", keys)
	}
}

func TestPatch_Merge(t *testing.T) {
	tasks := []Task{{ID: "a"}}
	newer := []Task{{ID: "b"}}
	res := []Resource{{ID: "r"}}

	p := Patch{Tasks: &tasks}
	p.Merge(Patch{Tasks: &newer, Resources: &res})

	if (*p.Tasks)[0].ID != "b" {
		t.Errorf("expected later tasks to win, got %s", (*p.Tasks)[0].ID)
	}
	if p.Resources == nil {
		t.Error("expected resources to be merged in")
	}
}

func TestDashboardState_CloneIsDeep(t *testing.T) {
	orig := DashboardState{
		User:  &User{ID: "u1", Permissions: []string{PermUpdateTasks}},
		Tasks: []Task{{ID: "t1", Status: TaskPending}},
	}

	cp := orig.Clone()
	cp.Tasks[0].Status = TaskCompleted
	cp.User.Permissions[0] = "other"

	if orig.Tasks[0].Status != TaskPending {
		t.Error("mutating the clone changed the original tasks")
	}
	if orig.User.Permissions[0] != PermUpdateTasks {
		t.Error("mutating the clone changed the original permissions")
	}
}

func TestNotification_WireDurationIsMilliseconds(t *testing.T) {
	n := Notification{
		ID:        "n1",
		Kind:      NotificationWarning,
		Message:   "Bed 4 call light",
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
	}

	data, err := json.Marshal(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var wire map[string]any
	if err := json.Unmarshal(data, &wire); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wire["duration"] != float64(1500) {
		t.Errorf("expected duration 1500, got %v", wire["duration"])
	}
	if wire["type"] != "warning" {
		t.Errorf("expected type warning, got %v", wire["type"])
	}

	var back Notification
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if back.Duration != n.Duration {
		t.Errorf("expected %s, got %s", n.Duration, back.Duration)
	}
	if at, ok := back.ExpiresAt(); !ok || !at.Equal(n.CreatedAt.Add(n.Duration)) {
		t.Errorf("unexpected expiry %v %v", at, ok)
	}
}

func TestUser_Can(t *testing.T) {
	nurse := &User{Role: RoleNurse, Permissions: []string{PermUpdateTasks}}
	admin := &User{Role: RoleAdmin}
	var nobody *User

	if !nurse.Can(PermUpdateTasks) {
		t.Error("nurse should update tasks")
	}
	if nurse.Can(PermUpdateResources) {
		t.Error("nurse should not update resources")
	}
	if !admin.Can(PermViewAnalytics) {
		t.Error("admin should hold every permission")
	}
	if nobody.Can(PermUpdateTasks) {
		t.Error("nil user should hold no permission")
	}
}

func TestRole_UnmarshalRejectsUnknown(t *testing.T) {
	var u User
	err := json.Unmarshal([]byte(`{"id":"u1","role":"janitor"}`), &u)
	if !errors.Is(err, ErrUnknownStatus) {
		t.Fatalf("expected ErrUnknownStatus, got %v", err)
	}
}
