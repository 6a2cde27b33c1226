// Package dashboard is the access surface the widgets use: the shared
// state, the notification queue, mutations and the session lifecycle.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nhle/wardboard/internal/api"
	"github.com/nhle/wardboard/internal/channel"
	"github.com/nhle/wardboard/internal/logging"
	"github.com/nhle/wardboard/internal/model"
	"github.com/nhle/wardboard/internal/notify"
	"github.com/nhle/wardboard/internal/state"
	"github.com/nhle/wardboard/internal/store"
	wsync "github.com/nhle/wardboard/internal/sync"
)

var (
	// ErrNotAuthenticated is returned by operations that need a session.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrPermissionDenied is returned when the user lacks the permission
	// a mutation requires.
	ErrPermissionDenied = errors.New("permission denied")
)

// TokenStore persists the session token. *credential.Keyring and
// store.Prefs implement it.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// Option configures a Service.
type Option func(*Service)

// WithChannelOptions passes options to every push channel the service
// opens.
func WithChannelOptions(opts ...channel.Option) Option {
	return func(s *Service) { s.channelOpts = append(s.channelOpts, opts...) }
}

// WithPrefs enables snapshot persistence through prefs.
func WithPrefs(p store.Prefs) Option {
	return func(s *Service) { s.prefs = &p }
}

// Service owns the dashboard state for one client process.
type Service struct {
	cfg         *model.AppConfig
	client      *api.Client
	tokens      TokenStore
	prefs       *store.Prefs
	logger      zerolog.Logger
	container   *state.Container
	queue       *notify.Queue
	now         func() time.Time
	channelOpts []channel.Option

	mu      sync.Mutex
	session *session
	expired chan struct{}
}

// session is everything opened by Authenticate and closed by Logout.
type session struct {
	user    model.User
	ch      *channel.Channel
	sync    *wsync.Synchronizer
	release func()
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a service. Nothing is opened until Login, Restore or
// Authenticate.
func New(cfg *model.AppConfig, client *api.Client, tokens TokenStore, logger zerolog.Logger, opts ...Option) *Service {
	queue := notify.NewQueue()
	s := &Service{
		cfg:       cfg,
		client:    client,
		tokens:    tokens,
		logger:    logging.Component(logger, "dashboard"),
		container: state.New(queue),
		queue:     queue,
		now:       time.Now,
		expired:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	client.OnUnauthorized(s.handleUnauthorized)
	return s
}

// Reader returns the read-only view of the shared state for widgets.
func (s *Service) Reader() state.Reader {
	return s.container
}

// State returns a snapshot of the shared state.
func (s *Service) State() model.DashboardState {
	return s.container.Snapshot()
}

// UpdateState shallow-merges patch into the shared state.
func (s *Service) UpdateState(patch model.Patch) {
	state.Normalize(&patch, s.now())
	s.container.Apply(patch)
}

// RefreshData runs a full refresh now. Unlike the background loop it
// reports the outcome, including ErrSyncInProgress.
func (s *Service) RefreshData(ctx context.Context) error {
	sess := s.current()
	if sess == nil {
		return ErrNotAuthenticated
	}
	return sess.sync.Sync(ctx)
}

// SyncStatus returns the synchronizer's state, or the zero value when
// logged out.
func (s *Service) SyncStatus() wsync.SyncState {
	if sess := s.current(); sess != nil {
		return sess.sync.Status()
	}
	return wsync.SyncState{}
}

// Synchronizer returns the current session's synchronizer, or nil.
func (s *Service) Synchronizer() *wsync.Synchronizer {
	if sess := s.current(); sess != nil {
		return sess.sync
	}
	return nil
}

// User returns the authenticated user, or nil.
func (s *Service) User() *model.User {
	sess := s.current()
	if sess == nil {
		return nil
	}
	u := sess.user
	return &u
}

// ChannelConnected reports whether the push channel is up.
func (s *Service) ChannelConnected() bool {
	sess := s.current()
	return sess != nil && sess.ch.Connected()
}

// UpdateTask sends a partial update and, once the server accepts it,
// replaces the local task with the server's record. On failure an error
// notification is added and local state is left alone.
func (s *Service) UpdateTask(ctx context.Context, id string, changes api.TaskChanges) (*model.Task, error) {
	if err := s.authorize(model.PermUpdateTasks); err != nil {
		s.notifyFailure("Task not updated", err)
		return nil, err
	}

	task, err := s.client.UpdateTask(ctx, id, changes)
	if err != nil {
		s.notifyFailure("Task not updated", err)
		return nil, err
	}

	if task.Status == "" {
		task.Status = model.TaskPending
	}
	if task.LastUpdate.IsZero() {
		task.LastUpdate = s.now()
	}
	s.container.UpsertTask(*task)
	s.logger.Info().Str("task_id", id).Str("status", string(task.Status)).Msg("task updated")
	return task, nil
}

// UpdateResource is UpdateTask for inventory.
func (s *Service) UpdateResource(ctx context.Context, id string, changes api.ResourceChanges) (*model.Resource, error) {
	if err := s.authorize(model.PermUpdateResources); err != nil {
		s.notifyFailure("Resource not updated", err)
		return nil, err
	}

	res, err := s.client.UpdateResource(ctx, id, changes)
	if err != nil {
		s.notifyFailure("Resource not updated", err)
		return nil, err
	}

	if res.Status == "" {
		res.Status = model.ResourceAvailable
	}
	if res.LastUpdate.IsZero() {
		res.LastUpdate = s.now()
	}
	s.container.UpsertResource(*res)
	s.logger.Info().Str("resource_id", id).Str("status", string(res.Status)).Msg("resource updated")
	return res, nil
}

func (s *Service) authorize(perm string) error {
	sess := s.current()
	if sess == nil {
		return ErrNotAuthenticated
	}
	if !sess.user.Can(perm) {
		return fmt.Errorf("%w: %s", ErrPermissionDenied, perm)
	}
	return nil
}

// notifyFailure turns a mutation error into a user notification. An
// expired session gets its own notification from the logout path.
func (s *Service) notifyFailure(title string, err error) {
	s.logger.Warn().Err(err).Msg(title)
	if api.IsAuthError(err) {
		return
	}
	s.AddNotification(NotificationInput{
		Kind:    model.NotificationError,
		Title:   title,
		Message: err.Error(),
	})
}

func (s *Service) current() *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}
