package help

import (
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/wardboard/internal/keys"
	"github.com/nhle/wardboard/internal/model"
	"github.com/nhle/wardboard/internal/theme"
)

// Model is the help overlay view. Besides the key bindings it shows who
// is signed in and what they may change.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	user   *model.User
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	h.ShowAll = true
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// SetUser sets the signed-in user shown in the overlay.
func (m *Model) SetUser(u *model.User) {
	m.user = u
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	sections := []string{titleStyle.Render("Keyboard Shortcuts"), m.help.View(m.keys)}

	if m.user != nil {
		var can []string
		for _, perm := range []string{model.PermUpdateTasks, model.PermUpdateResources, model.PermViewAnalytics} {
			if m.user.Can(perm) {
				can = append(can, perm)
			}
		}
		if len(can) == 0 {
			can = []string{"read only"}
		}
		who := lipgloss.NewStyle().MarginTop(1).Render(
			theme.PanelTitleStyle.Render(m.user.Name) + " (" + string(m.user.Role) + ")\n" +
				theme.DimmedStyle.Render("permissions: "+strings.Join(can, ", ")),
		)
		sections = append(sections, who)
	}

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, sections...))
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
