// Package board renders the tabular dashboard widgets: patients,
// appointments, medications and resources, plus the analytics summary.
package board

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/wardboard/internal/model"
	"github.com/nhle/wardboard/internal/theme"
	"github.com/nhle/wardboard/internal/ui"
)

// Model is one table widget. The root model feeds it rows from the shared
// state.
type Model struct {
	panel  ui.Panel
	table  table.Model
	ids    []string
	width  int
	height int
}

// New creates the table for panel.
func New(panel ui.Panel, width, height int) Model {
	t := table.New(
		table.WithColumns(columnsFor(panel, width)),
		table.WithHeight(max(height-2, 1)),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(theme.ColorBorder).
		BorderBottom(true).
		Bold(true)
	styles.Selected = styles.Selected.
		Foreground(theme.ColorWhite).
		Background(theme.ColorBlue).
		Bold(false)
	t.SetStyles(styles)

	return Model{panel: panel, table: t, width: width, height: height}
}

// Panel returns the widget kind.
func (m Model) Panel() ui.Panel {
	return m.panel
}

// columnsFor splits width between the panel's columns by weight.
func columnsFor(panel ui.Panel, width int) []table.Column {
	type col struct {
		title  string
		weight int
	}
	var cols []col
	switch panel {
	case ui.PanelPatients:
		cols = []col{{"Room", 1}, {"Patient", 3}, {"Status", 2}, {"Diagnosis", 3}, {"Updated", 1}}
	case ui.PanelAppointments:
		cols = []col{{"Time", 1}, {"Patient", 3}, {"Min", 1}, {"Status", 2}}
	case ui.PanelMedications:
		cols = []col{{"Due", 1}, {"Medication", 3}, {"Dose", 2}, {"Patient", 2}, {"Status", 2}}
	case ui.PanelResources:
		cols = []col{{"Resource", 3}, {"Category", 2}, {"Location", 2}, {"Qty", 1}, {"Status", 2}}
	default:
		cols = []col{{"", 1}}
	}

	total := 0
	for _, c := range cols {
		total += c.weight
	}
	// Each column carries two cells of padding.
	avail := max(width-2*len(cols)-2, len(cols))
	out := make([]table.Column, len(cols))
	for i, c := range cols {
		out[i] = table.Column{Title: c.title, Width: max(avail*c.weight/total, 3)}
	}
	return out
}

func (m *Model) setRows(ids []string, rows []table.Row) {
	selected := m.SelectedID()
	m.ids = ids
	m.table.SetRows(rows)

	cursor := 0
	for i, id := range ids {
		if id == selected {
			cursor = i
			break
		}
	}
	m.table.SetCursor(cursor)
}

// SetPatients renders the active patients, skipping discharged ones.
func (m *Model) SetPatients(patients []model.Patient) {
	ids := make([]string, 0, len(patients))
	rows := make([]table.Row, 0, len(patients))
	for _, p := range patients {
		if p.Status == model.PatientDischarged {
			continue
		}
		ids = append(ids, p.ID)
		rows = append(rows, table.Row{p.Room, p.Name, string(p.Status), p.Diagnosis, clock(p.LastUpdate)})
	}
	m.setRows(ids, rows)
}

// SetAppointments renders appointments in the order given.
func (m *Model) SetAppointments(appts []model.Appointment) {
	ids := make([]string, 0, len(appts))
	rows := make([]table.Row, 0, len(appts))
	for _, a := range appts {
		name := a.PatientName
		if name == "" {
			name = a.PatientID
		}
		ids = append(ids, a.ID)
		rows = append(rows, table.Row{clock(a.StartsAt), name, strconv.Itoa(a.Duration), string(a.Status)})
	}
	m.setRows(ids, rows)
}

// SetMedications renders the medication round.
func (m *Model) SetMedications(meds []model.Medication) {
	ids := make([]string, 0, len(meds))
	rows := make([]table.Row, 0, len(meds))
	for _, med := range meds {
		ids = append(ids, med.ID)
		rows = append(rows, table.Row{clock(med.ScheduledAt), med.Name, med.Dosage, med.PatientID, string(med.Status)})
	}
	m.setRows(ids, rows)
}

// SetResources renders the inventory.
func (m *Model) SetResources(res []model.Resource) {
	ids := make([]string, 0, len(res))
	rows := make([]table.Row, 0, len(res))
	for _, r := range res {
		ids = append(ids, r.ID)
		rows = append(rows, table.Row{r.Name, r.Category, r.Location, strconv.Itoa(r.Quantity), string(r.Status)})
	}
	m.setRows(ids, rows)
}

// SelectedID returns the record id under the cursor, or "".
func (m Model) SelectedID() string {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.ids) {
		return ""
	}
	return m.ids[i]
}

// Len returns the number of rows.
func (m Model) Len() int {
	return len(m.ids)
}

// Focus and Blur route navigation keys to the table.
func (m *Model) Focus() { m.table.Focus() }

// Blur stops the table from reacting to keys.
func (m *Model) Blur() { m.table.Blur() }

// Update handles navigation keys.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// View renders the panel title and table.
func (m Model) View() string {
	title := theme.PanelTitleStyle.Render(fmt.Sprintf("%s (%d)", m.panel.Title(), len(m.ids)))
	if len(m.ids) == 0 {
		empty := theme.DimmedStyle.Render("Nothing to show.")
		return lipgloss.JoinVertical(lipgloss.Left, title, empty)
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, m.table.View())
}

// SetSize updates the table dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.table.SetColumns(columnsFor(m.panel, width))
	m.table.SetHeight(max(height-2, 1))
}

func clock(t time.Time) string {
	if t.IsZero() {
		return "--:--"
	}
	return t.Local().Format("15:04")
}

// NextResourceStatus cycles a resource through the states an admin sets
// by hand. Out-of-stock is set by the server from the quantity.
func NextResourceStatus(s model.ResourceStatus) model.ResourceStatus {
	switch s {
	case model.ResourceAvailable:
		return model.ResourceInUse
	case model.ResourceInUse:
		return model.ResourceMaintenance
	default:
		return model.ResourceAvailable
	}
}
