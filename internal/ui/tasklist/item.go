package tasklist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/wardboard/internal/model"
	"github.com/nhle/wardboard/internal/theme"
)

// TaskItem wraps a model.Task so it can be used in a bubbles/list.
type TaskItem struct {
	Task model.Task
}

// FilterValue returns the string used for fuzzy filtering.
func (i TaskItem) FilterValue() string { return i.Task.Title }

// Title returns the task title for the list.
func (i TaskItem) Title() string { return i.Task.Title }

// Description returns a short summary line for the list.
func (i TaskItem) Description() string {
	parts := []string{
		string(i.Task.Status),
		i.Task.AssignedTo,
		relativeTime(i.Task.LastUpdate, time.Now()),
	}
	return strings.Join(parts, " | ")
}

// Overdue reports whether the task has a due time before now and is not
// completed.
func (i TaskItem) Overdue(now time.Time) bool {
	return i.Task.DueAt != nil &&
		i.Task.Status != model.TaskCompleted &&
		i.Task.DueAt.Before(now)
}

// ItemDelegate implements list.ItemDelegate for rendering task rows.
type ItemDelegate struct {
	now func() time.Time
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single task line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ti, ok := item.(TaskItem)
	if !ok {
		return
	}
	now := time.Now()
	if d.now != nil {
		now = d.now()
	}

	task := ti.Task
	prefix := "○"
	switch task.Status {
	case model.TaskInProgress:
		prefix = "◐"
	case model.TaskCompleted:
		prefix = "✓"
	}

	statusBadge := theme.StatusStyle(string(task.Status)).Render(string(task.Status))

	priBadge := ""
	if task.Priority != "" {
		priBadge = " " + theme.PriorityStyle(task.Priority).Render(strings.ToUpper(task.Priority))
	}

	dueStr := ""
	if task.DueAt != nil {
		dueStr = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Render(" due " + task.DueAt.Local().Format("15:04"))
	}
	if ti.Overdue(now) {
		dueStr += lipgloss.NewStyle().
			Foreground(theme.ColorRed).
			Bold(true).
			Render(" OVERDUE")
	}

	timeStr := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(task.LastUpdate, now))

	line := fmt.Sprintf("%s %s%s %s%s  %s", prefix, statusBadge, priBadge, task.Title, dueStr, timeStr)

	if task.Status == model.TaskCompleted {
		line = theme.DimmedStyle.Render(line)
	}

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
