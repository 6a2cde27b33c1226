package tasklist

import (
	"testing"
	"time"

	"github.com/nhle/wardboard/internal/model"
)

func sampleTasks() []model.Task {
	return []model.Task{
		{ID: "t1", Title: "Dress wound", Status: model.TaskPending},
		{ID: "t2", Title: "Discharge papers", Status: model.TaskCompleted},
		{ID: "t3", Title: "Vitals round", Status: model.TaskInProgress},
	}
}

func TestNextStatus(t *testing.T) {
	tests := []struct {
		from   model.TaskStatus
		want   model.TaskStatus
		wantOK bool
	}{
		{model.TaskPending, model.TaskInProgress, true},
		{model.TaskInProgress, model.TaskCompleted, true},
		{model.TaskCompleted, "", false},
	}
	for _, tt := range tests {
		got, ok := NextStatus(tt.from)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("NextStatus(%q) = %q, %v; want %q, %v", tt.from, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestSetTasks_KeepsCursorOnSameTask(t *testing.T) {
	m := New(80, 20)
	m.SetTasks(sampleTasks())
	m.list.Select(2)

	// t3 moves to the front; the cursor follows it.
	reordered := []model.Task{sampleTasks()[2], sampleTasks()[0], sampleTasks()[1]}
	m.SetTasks(reordered)

	got, ok := m.SelectedTask()
	if !ok || got.ID != "t3" {
		t.Errorf("selected = %q, %v; want t3", got.ID, ok)
	}
}

func TestSetShowCompleted_HidesCompleted(t *testing.T) {
	m := New(80, 20)
	m.SetTasks(sampleTasks())
	if m.Len() != 3 {
		t.Fatalf("Len = %d, want 3", m.Len())
	}

	m.SetShowCompleted(false)
	if m.Len() != 2 {
		t.Errorf("Len = %d after hiding completed, want 2", m.Len())
	}
	for _, item := range m.list.Items() {
		if item.(TaskItem).Task.Status == model.TaskCompleted {
			t.Error("completed task still listed")
		}
	}
}

func TestSelectedTask_Empty(t *testing.T) {
	m := New(80, 20)
	if _, ok := m.SelectedTask(); ok {
		t.Error("SelectedTask on empty list reported ok")
	}
}

func TestTaskItem_Overdue(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name string
		task model.Task
		want bool
	}{
		{"past due", model.Task{Status: model.TaskPending, DueAt: &past}, true},
		{"future due", model.Task{Status: model.TaskPending, DueAt: &future}, false},
		{"completed late", model.Task{Status: model.TaskCompleted, DueAt: &past}, false},
		{"no due time", model.Task{Status: model.TaskPending}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (TaskItem{Task: tt.task}).Overdue(now); got != tt.want {
				t.Errorf("Overdue = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		at   time.Time
		want string
	}{
		{time.Time{}, ""},
		{now.Add(-10 * time.Second), "just now"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.Add(-49 * time.Hour), "2d ago"},
	}
	for _, tt := range tests {
		if got := relativeTime(tt.at, now); got != tt.want {
			t.Errorf("relativeTime(%v) = %q, want %q", tt.at, got, tt.want)
		}
	}
}
