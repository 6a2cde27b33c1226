package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/wardboard/internal/theme"
	"github.com/nhle/wardboard/internal/ui"
	"github.com/nhle/wardboard/internal/ui/board"
)

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	headerTitle := "Wardboard"
	if m.user != nil {
		headerTitle = fmt.Sprintf("Wardboard · %s (%s)", m.user.Name, m.user.Role)
		if n := m.notices.Unread(); n > 0 {
			headerTitle += fmt.Sprintf(" [%d new]", n)
		}
	}
	header := m.layout.RenderHeader(headerTitle, m.syncStatus(), m.user == nil || m.online)
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogin:
		return lipgloss.Place(
			m.layout.ContentWidth(), m.layout.ContentHeight(),
			lipgloss.Center, lipgloss.Center,
			m.loginView.View(),
		)
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewBoard:
		return m.layout.RenderColumns(m.renderMain(), m.notices.View())
	default:
		return ""
	}
}

// renderMain draws the panel tabs and the focused panel.
func (m Model) renderMain() string {
	tabs := make([]string, len(m.panels))
	for i, p := range m.panels {
		style := theme.DimmedStyle.Padding(0, 1)
		if i == m.focus {
			style = theme.PanelTitleStyle.Padding(0, 1).Underline(true)
		}
		tabs[i] = style.Render(p.Title())
	}

	var body string
	switch p := m.focusedPanel(); p {
	case ui.PanelTasks:
		body = m.tasks.View()
	case ui.PanelAnalytics:
		body = board.RenderAnalytics(m.st.Analytics, m.layout.MainWidth()-4)
	default:
		body = m.boards[p].View()
	}

	return theme.FocusedPanelStyle.
		Width(max(m.layout.MainWidth()-2, 10)).
		Height(max(m.layout.ContentHeight()-2, 1)).
		Render(lipgloss.JoinVertical(lipgloss.Left, strings.Join(tabs, ""), body))
}

// syncStatus returns a short string describing the push channel and the
// last refresh.
func (m Model) syncStatus() string {
	if m.user == nil {
		return "signed out"
	}

	link := "● live"
	if !m.online {
		link = "○ offline"
	}

	s := m.syncState
	switch {
	case s.InProgress:
		return link + " · syncing…"
	case s.LastError != nil:
		text := fmt.Sprintf("%s · sync failed (%d)", link, s.RetryCount)
		if !s.NextRetry.IsZero() {
			text += fmt.Sprintf(", retry in %s", time.Until(s.NextRetry).Round(time.Second))
		}
		return text
	case s.LastSync.IsZero():
		return link + " · not synced"
	default:
		return link + " · synced " + s.LastSync.Local().Format("15:04:05")
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	if m.flash != "" && m.currentView == ViewBoard {
		return m.flash
	}

	switch m.currentView {
	case ViewLogin:
		return "enter submit | ctrl+c quit"
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	default:
		hints := "q quit | ? help | tab panel | r refresh | m read | x dismiss"
		switch m.focusedPanel() {
		case ui.PanelTasks, ui.PanelResources:
			hints += " | a advance"
		}
		return hints
	}
}
