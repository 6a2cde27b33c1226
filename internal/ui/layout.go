package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/wardboard/internal/model"
	"github.com/nhle/wardboard/internal/theme"
)

// Panel identifies one dashboard widget.
type Panel int

const (
	PanelPatients Panel = iota
	PanelAppointments
	PanelTasks
	PanelMedications
	PanelResources
	PanelAnalytics
)

var panelTitles = map[Panel]string{
	PanelPatients:     "Active patients",
	PanelAppointments: "Appointments",
	PanelTasks:        "Tasks",
	PanelMedications:  "Medications",
	PanelResources:    "Resources",
	PanelAnalytics:    "Analytics",
}

// Title returns the panel heading.
func (p Panel) Title() string {
	return panelTitles[p]
}

// PanelsFor returns the widgets shown to a role, in tab order.
func PanelsFor(role model.Role) []Panel {
	switch role {
	case model.RoleDoctor:
		return []Panel{PanelPatients, PanelAppointments, PanelMedications}
	case model.RoleNurse:
		return []Panel{PanelTasks, PanelMedications, PanelPatients}
	case model.RoleAdmin:
		return []Panel{PanelResources, PanelAnalytics, PanelTasks}
	default:
		return []Panel{PanelTasks}
	}
}

// Layout manages the multi-panel terminal layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	return l.Height - l.HeaderHeight - l.StatusBarHeight
}

// SideWidth is the notification column's width; the main panel gets the
// rest.
func (l Layout) SideWidth() int {
	w := l.Width / 3
	if w < 24 {
		w = 24
	}
	if w > 48 {
		w = 48
	}
	return w
}

// MainWidth returns the width left for the focused panel.
func (l Layout) MainWidth() int {
	w := l.Width - l.SideWidth()
	if w < 0 {
		return 0
	}
	return w
}

// RenderHeader renders the top header bar with a title and sync status.
// The bar turns orange while offline.
func (l Layout) RenderHeader(title string, syncStatus string, online bool) string {
	style := theme.HeaderStyle
	if !online {
		style = theme.OfflineHeaderStyle
	}

	titleRendered := style.Render(title)
	statusRendered := style.
		Align(lipgloss.Right).
		Render(syncStatus)

	gap := l.Width -
		lipgloss.Width(titleRendered) -
		lipgloss.Width(statusRendered)
	if gap < 0 {
		gap = 0
	}

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		filler,
		statusRendered,
	)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := l.Width - lipgloss.Width(rendered)
	if gap < 0 {
		gap = 0
	}

	filler := lipgloss.NewStyle().
		Width(gap).
		Background(theme.StatusBarStyle.GetBackground()).
		Render("")

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderColumns places the main panel and the side column next to each
// other.
func (l Layout) RenderColumns(main, side string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, main, side)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, and status bar.
func (l Layout) RenderWithFrame(
	header string,
	content string,
	statusBar string,
) string {
	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		content,
		statusBar,
	)
}
