package tasklist

import (
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/wardboard/internal/model"
	"github.com/nhle/wardboard/internal/theme"
)

// Model is the care-task widget. It only renders what it is given; the
// root model feeds it from the shared state.
type Model struct {
	list          list.Model
	tasks         []model.Task
	showCompleted bool
	width         int
	height        int
}

// New creates a new task list model.
func New(width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = "Tasks"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.PanelTitleStyle

	return Model{
		list:          l,
		showCompleted: true,
		width:         width,
		height:        height,
	}
}

// SetTasks replaces the rendered tasks, keeping the cursor on the same
// task id when it is still present.
func (m *Model) SetTasks(tasks []model.Task) tea.Cmd {
	m.tasks = tasks
	return m.rebuild()
}

// SetShowCompleted toggles whether completed tasks are listed.
func (m *Model) SetShowCompleted(show bool) tea.Cmd {
	m.showCompleted = show
	return m.rebuild()
}

// ShowCompleted reports whether completed tasks are listed.
func (m Model) ShowCompleted() bool {
	return m.showCompleted
}

func (m *Model) rebuild() tea.Cmd {
	selected, hadSelection := m.SelectedTask()

	items := make([]list.Item, 0, len(m.tasks))
	cursor := 0
	for _, task := range m.tasks {
		if !m.showCompleted && task.Status == model.TaskCompleted {
			continue
		}
		if hadSelection && task.ID == selected.ID {
			cursor = len(items)
		}
		items = append(items, TaskItem{Task: task})
	}

	cmd := m.list.SetItems(items)
	m.list.Select(cursor)
	return cmd
}

// SelectedTask returns the task under the cursor.
func (m Model) SelectedTask() (model.Task, bool) {
	item, ok := m.list.SelectedItem().(TaskItem)
	if !ok {
		return model.Task{}, false
	}
	return item.Task, true
}

// Len returns the number of listed tasks.
func (m Model) Len() int {
	return len(m.list.Items())
}

// Update handles navigation keys.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the task list view.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}
	return m.list.View()
}

func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if len(m.tasks) > 0 {
		return style.Render("All tasks completed.\nPress : then 'completed' to show them.")
	}
	return style.Render("No tasks assigned.")
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}

// NextStatus returns the status a task advances to, or false when it is
// already completed.
func NextStatus(s model.TaskStatus) (model.TaskStatus, bool) {
	switch s {
	case model.TaskPending:
		return model.TaskInProgress, true
	case model.TaskInProgress:
		return model.TaskCompleted, true
	default:
		return "", false
	}
}
