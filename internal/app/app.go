package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/nhle/wardboard/internal/api"
	"github.com/nhle/wardboard/internal/dashboard"
	"github.com/nhle/wardboard/internal/keys"
	"github.com/nhle/wardboard/internal/model"
	"github.com/nhle/wardboard/internal/state"
	"github.com/nhle/wardboard/internal/store"
	wsync "github.com/nhle/wardboard/internal/sync"
	"github.com/nhle/wardboard/internal/ui"
	"github.com/nhle/wardboard/internal/ui/board"
	"github.com/nhle/wardboard/internal/ui/command"
	helpview "github.com/nhle/wardboard/internal/ui/help"
	"github.com/nhle/wardboard/internal/ui/login"
	"github.com/nhle/wardboard/internal/ui/notices"
	"github.com/nhle/wardboard/internal/ui/tasklist"
)

// Dashboard is what the root model needs from the dashboard service.
// *dashboard.Service implements it.
type Dashboard interface {
	Restore(ctx context.Context) (*model.User, error)
	Login(ctx context.Context, username, password string) (*model.User, error)
	Logout(ctx context.Context) error
	SessionExpired() <-chan struct{}

	Reader() state.Reader
	Synchronizer() *wsync.Synchronizer
	SyncStatus() wsync.SyncState
	ChannelConnected() bool
	RefreshData(ctx context.Context) error

	UpdateTask(ctx context.Context, id string, changes api.TaskChanges) (*model.Task, error)
	UpdateResource(ctx context.Context, id string, changes api.ResourceChanges) (*model.Resource, error)

	MarkAsRead(id string)
	RemoveNotification(id string)
	ClearAll()
	DismissExpired() int
}

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewBoard
	ViewHelp
	ViewCommand
)

// tickInterval paces auto-dismissal and the connectivity indicator.
const tickInterval = time.Second

// Option configures the root model.
type Option func(*Model)

// WithPrefs persists display choices made in the UI.
func WithPrefs(p store.Prefs) Option {
	return func(m *Model) { m.prefs = &p }
}

// WithLogger sets the UI logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Model) { m.logger = l }
}

// Model is the root Bubble Tea model that manages view routing, layout,
// and the role-based dashboard panels.
type Model struct {
	svc    Dashboard
	prefs  *store.Prefs
	logger zerolog.Logger
	keys   *keys.KeyMap
	layout ui.Layout
	ready  bool

	currentView  ViewState
	previousView ViewState
	loginView    login.Model
	helpView     helpview.Model
	commandView  command.Model

	panels  []ui.Panel
	focus   int
	tasks   tasklist.Model
	boards  map[ui.Panel]board.Model
	notices notices.Model

	user      *model.User
	st        model.DashboardState
	syncState wsync.SyncState
	online    bool
	flash     string

	// gen increments per session so messages from a closed session are
	// ignored.
	gen       int
	changes   <-chan struct{}
	stopWatch context.CancelFunc
}

// New creates the root model. No session exists until Init restores one
// or the user signs in.
func New(svc Dashboard, opts ...Option) Model {
	k := keys.DefaultKeyMap()
	m := Model{
		svc:         svc,
		logger:      zerolog.Nop(),
		keys:        k,
		currentView: ViewLogin,
		loginView:   login.New(80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		tasks:       tasklist.New(80, 24),
		boards:      map[ui.Panel]board.Model{},
		notices:     notices.New(30, 24),
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Init tries to restore the saved session and starts the clock.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.restore(),
		waitForExpiry(m.svc),
		tick(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		m.resize()
		if m.currentView == ViewLogin {
			var cmd tea.Cmd
			m.loginView, cmd = m.loginView.Update(msg)
			return m, cmd
		}
		return m, nil

	case restoredMsg:
		if msg.err != nil {
			notice := ""
			if !errors.Is(msg.err, dashboard.ErrNotAuthenticated) {
				notice = "Could not restore session: " + msg.err.Error()
			}
			m.currentView = ViewLogin
			return m, m.loginView.Start(notice)
		}
		return m, m.startSession(msg.user)

	case login.SubmitMsg:
		return m, m.login(msg.Username, msg.Password)

	case login.CancelMsg:
		return m, m.quit()

	case loggedInMsg:
		if msg.err != nil {
			text := "Sign-in failed: " + msg.err.Error()
			if api.IsAuthError(msg.err) {
				text = "Wrong username or password."
			}
			return m, m.loginView.SetError(text)
		}
		return m, m.startSession(msg.user)

	case loggedOutMsg:
		m.endSession()
		notice := "Signed out."
		if msg.err != nil {
			notice = "Signed out, but the saved token could not be removed: " + msg.err.Error()
		}
		m.currentView = ViewLogin
		return m, m.loginView.Start(notice)

	case expiredMsg:
		cmds := []tea.Cmd{waitForExpiry(m.svc)}
		if m.user != nil {
			m.endSession()
			m.currentView = ViewLogin
			cmds = append(cmds, m.loginView.Start("Your session expired. Please sign in again."))
		}
		return m, tea.Batch(cmds...)

	case stateChangedMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.refresh()
		return m, waitForChange(m.gen, m.changes)

	case syncResultMsg:
		if msg.gen != m.gen {
			return m, nil
		}
		m.syncState = msg.res.State
		return m, waitForSync(m.gen, m.svc.Synchronizer())

	case tickMsg:
		if m.user != nil {
			m.svc.DismissExpired()
			m.online = m.svc.ChannelConnected()
			m.syncState = m.svc.SyncStatus()
		}
		return m, tick()

	case refreshedMsg:
		switch {
		case errors.Is(msg.err, wsync.ErrSyncInProgress):
			m.flash = "Refresh already running."
		case msg.err != nil:
			m.flash = "Refresh failed: " + msg.err.Error()
		default:
			m.flash = "Refreshed."
		}
		return m, nil

	case mutationMsg:
		if msg.err != nil {
			m.flash = msg.what + " failed: " + msg.err.Error()
		} else {
			m.flash = msg.what + " saved."
		}
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m, m.executeCommand(string(msg))

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}
		switch m.currentView {
		case ViewBoard:
			m.flash = ""
			if cmd, handled := m.handleBoardKeys(msg); handled {
				return m, cmd
			}
		case ViewHelp:
			if key.Matches(msg, m.keys.Help, m.keys.Back) {
				m.currentView = m.previousView
				return m, nil
			}
			return m, nil
		case ViewCommand:
			if key.Matches(msg, m.keys.Back) {
				m.currentView = m.previousView
				return m, nil
			}
		}
	}

	return m.updateActiveView(msg)
}

// handleBoardKeys processes global keys on the dashboard. Unhandled keys
// go to the focused widget.
func (m *Model) handleBoardKeys(msg tea.KeyMsg) (tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.quit(), true

	case key.Matches(msg, m.keys.Help):
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return nil, true

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m.commandView.Focus(), true

	case key.Matches(msg, m.keys.NextPanel):
		m.setFocus(m.focus + 1)
		return nil, true

	case key.Matches(msg, m.keys.PrevPanel):
		m.setFocus(m.focus - 1)
		return nil, true

	case key.Matches(msg, m.keys.Refresh):
		m.flash = "Refreshing…"
		return m.refreshData(), true

	case key.Matches(msg, m.keys.Advance):
		return m.advanceSelected(), true

	case key.Matches(msg, m.keys.MarkRead):
		if n, ok := m.notices.Newest(true); ok {
			m.svc.MarkAsRead(n.ID)
		}
		return nil, true

	case key.Matches(msg, m.keys.Dismiss):
		if n, ok := m.notices.Newest(false); ok {
			m.svc.RemoveNotification(n.ID)
		}
		return nil, true

	case key.Matches(msg, m.keys.ClearAll):
		m.svc.ClearAll()
		return nil, true

	case key.Matches(msg, m.keys.Logout):
		return m.logout(), true
	}
	return nil, false
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewBoard:
		if _, ok := msg.(tea.KeyMsg); !ok {
			return m, nil
		}
		switch p := m.focusedPanel(); p {
		case ui.PanelTasks:
			m.tasks, cmd = m.tasks.Update(msg)
		case ui.PanelAnalytics:
		default:
			if b, ok := m.boards[p]; ok {
				b, cmd = b.Update(msg)
				m.boards[p] = b
			}
		}
	}

	return m, cmd
}

// startSession builds the role's panels and starts listening to the
// session's state and sync results.
func (m *Model) startSession(user *model.User) tea.Cmd {
	m.endSession()
	m.gen++
	m.user = user
	m.helpView.SetUser(user)
	m.flash = ""

	m.panels = ui.PanelsFor(user.Role)
	m.boards = map[ui.Panel]board.Model{}
	for _, p := range m.panels {
		switch p {
		case ui.PanelTasks, ui.PanelAnalytics:
		default:
			m.boards[p] = board.New(p, m.layout.MainWidth()-4, m.layout.ContentHeight()-3)
		}
	}
	m.setFocus(0)
	m.currentView = ViewBoard
	m.applyPrefs()

	ctx, cancel := context.WithCancel(context.Background())
	m.stopWatch = cancel
	m.changes = m.svc.Reader().Watch(ctx)
	m.refresh()
	m.resize()

	m.logger.Info().Str("user_id", user.ID).Str("role", string(user.Role)).Msg("dashboard opened")
	return tea.Batch(
		waitForChange(m.gen, m.changes),
		waitForSync(m.gen, m.svc.Synchronizer()),
	)
}

// endSession stops listening to the current session. The service owns
// the session itself.
func (m *Model) endSession() {
	if m.stopWatch != nil {
		m.stopWatch()
		m.stopWatch = nil
	}
	m.gen++
	m.changes = nil
	m.user = nil
	m.helpView.SetUser(nil)
	m.st = model.DashboardState{}
	m.syncState = wsync.SyncState{}
	m.online = false
}

// refresh copies the shared state into the widgets.
func (m *Model) refresh() {
	m.st = m.svc.Reader().Snapshot()
	m.tasks.SetTasks(m.st.Tasks)
	m.notices.SetNotifications(m.st.Notifications)
	for p, b := range m.boards {
		switch p {
		case ui.PanelPatients:
			b.SetPatients(m.st.ActivePatients)
		case ui.PanelAppointments:
			b.SetAppointments(m.st.Appointments)
		case ui.PanelMedications:
			b.SetMedications(m.st.Medications)
		case ui.PanelResources:
			b.SetResources(m.st.Resources)
		}
		m.boards[p] = b
	}
}

func (m *Model) setFocus(i int) {
	if len(m.panels) == 0 {
		m.focus = 0
		return
	}
	m.focus = (i%len(m.panels) + len(m.panels)) % len(m.panels)
	for p, b := range m.boards {
		if p == m.focusedPanel() {
			b.Focus()
		} else {
			b.Blur()
		}
		m.boards[p] = b
	}
}

func (m Model) focusedPanel() ui.Panel {
	if len(m.panels) == 0 {
		return ui.PanelTasks
	}
	return m.panels[m.focus]
}

func (m *Model) resize() {
	if !m.ready {
		return
	}
	contentWidth := m.layout.ContentWidth()
	contentHeight := m.layout.ContentHeight()
	mainWidth := m.layout.MainWidth() - 4
	panelHeight := contentHeight - 3

	m.loginView.SetSize(contentWidth, contentHeight)
	m.helpView.SetSize(contentWidth, contentHeight)
	m.commandView.SetSize(contentWidth, contentHeight)
	m.tasks.SetSize(mainWidth, panelHeight)
	m.notices.SetSize(m.layout.SideWidth(), contentHeight)
	for p, b := range m.boards {
		b.SetSize(mainWidth, panelHeight)
		m.boards[p] = b
	}
}

// advanceSelected moves the selected task or resource to its next status.
func (m *Model) advanceSelected() tea.Cmd {
	switch m.focusedPanel() {
	case ui.PanelTasks:
		if !m.user.Can(model.PermUpdateTasks) {
			m.flash = "You cannot update tasks."
			return nil
		}
		task, ok := m.tasks.SelectedTask()
		if !ok {
			return nil
		}
		next, ok := tasklist.NextStatus(task.Status)
		if !ok {
			m.flash = "Task already completed."
			return nil
		}
		return m.updateTask(task.ID, next)

	case ui.PanelResources:
		if !m.user.Can(model.PermUpdateResources) {
			m.flash = "You cannot update resources."
			return nil
		}
		id := m.boards[ui.PanelResources].SelectedID()
		for _, r := range m.st.Resources {
			if r.ID == id {
				return m.updateResource(id, board.NextResourceStatus(r.Status))
			}
		}
	}
	return nil
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch cmd {
	case "refresh", "sync":
		return m.refreshData()
	case "logout":
		return m.logout()
	case "clear":
		m.svc.ClearAll()
		return nil
	case "read all":
		for _, n := range m.st.Notifications {
			if !n.Read {
				m.svc.MarkAsRead(n.ID)
			}
		}
		return nil
	case "completed":
		show := !m.tasks.ShowCompleted()
		m.tasks.SetShowCompleted(show)
		return m.saveShowCompleted(show)
	case "theme dark":
		return m.setTheme(store.ThemeDark)
	case "theme light":
		return m.setTheme(store.ThemeLight)
	case "quit", "q":
		return m.quit()
	default:
		m.flash = fmt.Sprintf("Unknown command %q.", cmd)
		return nil
	}
}

func (m *Model) quit() tea.Cmd {
	if m.stopWatch != nil {
		m.stopWatch()
		m.stopWatch = nil
	}
	return tea.Quit
}
