package board

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/wardboard/internal/model"
	"github.com/nhle/wardboard/internal/theme"
	"github.com/nhle/wardboard/internal/ui"
)

// occupancyWarn is the bed occupancy above which the gauge turns orange;
// above occupancyCritical it turns red.
const (
	occupancyWarn     = 0.85
	occupancyCritical = 0.95
)

// RenderAnalytics renders the ward counters. A nil analytics block means
// the first sync has not finished.
func RenderAnalytics(a *model.Analytics, width int) string {
	title := theme.PanelTitleStyle.Render(ui.PanelAnalytics.Title())
	if a == nil {
		return lipgloss.JoinVertical(lipgloss.Left, title, theme.DimmedStyle.Render("Waiting for data."))
	}

	label := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(22)
	value := lipgloss.NewStyle().Bold(true)
	row := func(name, v string, style lipgloss.Style) string {
		return label.Render(name) + style.Render(v)
	}

	critStyle := value
	if a.CriticalPatients > 0 {
		critStyle = value.Foreground(theme.ColorRed)
	}
	missedStyle := value
	if a.MissedMedications > 0 {
		missedStyle = value.Foreground(theme.ColorOrange)
	}

	lines := []string{
		title,
		row("Bed occupancy", occupancyBar(a.BedOccupancy, width-30), value),
		row("Active patients", fmt.Sprint(a.ActivePatients), value),
		row("Critical patients", fmt.Sprint(a.CriticalPatients), critStyle),
		row("Pending tasks", fmt.Sprint(a.PendingTasks), value),
		row("Missed medications", fmt.Sprint(a.MissedMedications), missedStyle),
		row("Appointments today", fmt.Sprint(a.AppointmentsToday), value),
		row("Average wait", fmt.Sprintf("%.0f min", a.AverageWaitMinutes), value),
	}
	if !a.GeneratedAt.IsZero() {
		lines = append(lines, theme.DimmedStyle.Render("as of "+a.GeneratedAt.Local().Format("15:04")))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

// occupancyBar draws a fraction in [0,1] as a bar followed by a percentage.
func occupancyBar(frac float64, width int) string {
	frac = min(max(frac, 0), 1)
	width = min(max(width, 10), 40)
	filled := int(frac * float64(width))

	color := theme.ColorGreen
	switch {
	case frac >= occupancyCritical:
		color = theme.ColorRed
	case frac >= occupancyWarn:
		color = theme.ColorOrange
	}
	bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled)) +
		theme.DimmedStyle.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %3.0f%%", bar, frac*100)
}
