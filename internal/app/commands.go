package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/wardboard/internal/api"
	"github.com/nhle/wardboard/internal/model"
	wsync "github.com/nhle/wardboard/internal/sync"
	"github.com/nhle/wardboard/internal/theme"
)

// requestTimeout bounds the UI-initiated calls to the back-end.
const requestTimeout = 30 * time.Second

type restoredMsg struct {
	user *model.User
	err  error
}

type loggedInMsg struct {
	user *model.User
	err  error
}

type loggedOutMsg struct {
	err error
}

type expiredMsg struct{}

type stateChangedMsg struct {
	gen int
}

type syncResultMsg struct {
	gen int
	res wsync.ResultMsg
}

type tickMsg time.Time

type refreshedMsg struct {
	err error
}

type mutationMsg struct {
	what string
	err  error
}

func (m Model) restore() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		user, err := svc.Restore(ctx)
		return restoredMsg{user: user, err: err}
	}
}

func (m Model) login(username, password string) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		user, err := svc.Login(ctx, username, password)
		return loggedInMsg{user: user, err: err}
	}
}

func (m Model) logout() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return loggedOutMsg{err: svc.Logout(ctx)}
	}
}

func (m Model) refreshData() tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return refreshedMsg{err: svc.RefreshData(ctx)}
	}
}

func (m Model) updateTask(id string, status model.TaskStatus) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := svc.UpdateTask(ctx, id, api.TaskChanges{Status: &status})
		return mutationMsg{what: "Task", err: err}
	}
}

func (m Model) updateResource(id string, status model.ResourceStatus) tea.Cmd {
	svc := m.svc
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		_, err := svc.UpdateResource(ctx, id, api.ResourceChanges{Status: &status})
		return mutationMsg{what: "Resource", err: err}
	}
}

// waitForChange blocks until the shared state changes. A closed channel
// means the watch was cancelled and yields no message.
func waitForChange(gen int, changes <-chan struct{}) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return stateChangedMsg{gen: gen}
	}
}

// waitForSync wraps the synchronizer's result wait with the session
// generation.
func waitForSync(gen int, s *wsync.Synchronizer) tea.Cmd {
	if s == nil {
		return nil
	}
	wait := s.WaitForResult()
	return func() tea.Msg {
		res, ok := wait().(wsync.ResultMsg)
		if !ok {
			return nil
		}
		return syncResultMsg{gen: gen, res: res}
	}
}

func waitForExpiry(svc Dashboard) tea.Cmd {
	expired := svc.SessionExpired()
	return func() tea.Msg {
		<-expired
		return expiredMsg{}
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// applyPrefs restores the saved display choices.
func (m *Model) applyPrefs() {
	if m.prefs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	prefs, err := m.prefs.Preferences(ctx)
	if err != nil {
		m.logger.Warn().Err(err).Msg("loading preferences")
		return
	}
	m.tasks.SetShowCompleted(prefs.ShowCompleted)
}

func (m *Model) saveShowCompleted(show bool) tea.Cmd {
	if m.prefs == nil {
		return nil
	}
	prefs, logger := *m.prefs, m.logger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		current, err := prefs.Preferences(ctx)
		if err == nil {
			current.ShowCompleted = show
			err = prefs.SetPreferences(ctx, current)
		}
		if err != nil {
			logger.Warn().Err(err).Msg("saving preferences")
		}
		return nil
	}
}

func (m *Model) setTheme(mode string) tea.Cmd {
	theme.Apply(mode)
	if m.prefs == nil {
		return nil
	}
	prefs, logger := *m.prefs, m.logger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := prefs.SetThemeMode(ctx, mode); err != nil {
			logger.Warn().Err(err).Msg("saving theme")
		}
		return nil
	}
}
