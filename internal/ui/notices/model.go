// Package notices renders the notification column.
package notices

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/wardboard/internal/model"
	"github.com/nhle/wardboard/internal/theme"
)

var kindIcons = map[model.NotificationKind]string{
	model.NotificationInfo:    "i",
	model.NotificationSuccess: "✓",
	model.NotificationWarning: "!",
	model.NotificationError:   "✗",
}

// Model holds the notifications to render, newest first.
type Model struct {
	items  []model.Notification
	unread int
	width  int
	height int
}

// New creates the notification column.
func New(width, height int) Model {
	return Model{width: width, height: height}
}

// SetNotifications replaces the rendered notifications.
func (m *Model) SetNotifications(items []model.Notification) {
	m.items = items
	m.unread = 0
	for _, n := range items {
		if !n.Read {
			m.unread++
		}
	}
}

// Newest returns the newest notification, optionally only among unread
// ones.
func (m Model) Newest(unreadOnly bool) (model.Notification, bool) {
	for _, n := range m.items {
		if !unreadOnly || !n.Read {
			return n, true
		}
	}
	return model.Notification{}, false
}

// Unread returns the unread count.
func (m Model) Unread() int {
	return m.unread
}

// View renders as many notifications as fit, newest at the top.
func (m Model) View() string {
	title := theme.PanelTitleStyle.Render("Notifications")
	if m.unread > 0 {
		title += theme.NotificationStyle("error").Render(fmt.Sprintf(" %d new", m.unread))
	}

	lines := []string{title}
	if len(m.items) == 0 {
		lines = append(lines, theme.DimmedStyle.Render("All clear."))
	}

	bodyWidth := max(m.width-4, 10)
	used := 1
	for _, n := range m.items {
		block := m.renderOne(n, bodyWidth)
		h := lipgloss.Height(block)
		if m.height > 0 && used+h > m.height-2 {
			more := len(m.items) - (len(lines) - 1)
			lines = append(lines, theme.DimmedStyle.Render(fmt.Sprintf("… %d more", more)))
			break
		}
		lines = append(lines, block)
		used += h
	}

	return theme.PanelStyle.
		Width(m.width - 2).
		Height(max(m.height-2, 1)).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func (m Model) renderOne(n model.Notification, width int) string {
	icon := kindIcons[n.Kind]
	if icon == "" {
		icon = "•"
	}
	head := theme.NotificationStyle(string(n.Kind)).Render(icon) + " " + n.Title
	body := lipgloss.NewStyle().Width(width).Render(strings.TrimSpace(n.Message))
	stamp := theme.DimmedStyle.Render(n.CreatedAt.Local().Format(time.Kitchen))

	out := lipgloss.JoinVertical(lipgloss.Left, head, body, stamp)
	if n.Read {
		out = theme.DimmedStyle.Render(out)
	}
	return out
}

// SetSize updates the column dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
