package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/nhle/wardboard/internal/api"
	"github.com/nhle/wardboard/internal/channel"
	"github.com/nhle/wardboard/internal/logging"
	"github.com/nhle/wardboard/internal/model"
	wsync "github.com/nhle/wardboard/internal/sync"
)

// Login exchanges credentials for a token, saves it and opens a session.
func (s *Service) Login(ctx context.Context, username, password string) (*model.User, error) {
	resp, err := s.client.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.SetToken(ctx, resp.Token); err != nil {
		return nil, fmt.Errorf("saving session token: %w", err)
	}
	if err := s.Authenticate(ctx, resp.User, resp.Token); err != nil {
		return nil, err
	}
	u := resp.User
	return &u, nil
}

// Restore reopens the session from the saved token. A missing, expired or
// rejected token yields ErrNotAuthenticated and is cleared.
func (s *Service) Restore(ctx context.Context) (*model.User, error) {
	token, err := s.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading session token: %w", err)
	}
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	if tokenExpired(token, s.now()) {
		s.logger.Info().Msg("saved session token has expired")
		s.clearToken(ctx)
		return nil, ErrNotAuthenticated
	}

	s.client.SetToken(token)
	user, err := s.client.Me(ctx)
	if err != nil {
		s.client.SetToken("")
		if api.IsAuthError(err) {
			s.clearToken(ctx)
			return nil, ErrNotAuthenticated
		}
		return nil, err
	}

	if err := s.Authenticate(ctx, *user, token); err != nil {
		return nil, err
	}
	return user, nil
}

// tokenExpired reports whether token is a JWT whose exp has passed. The
// signature is not checked; the server does that. Opaque tokens never
// expire client-side.
func tokenExpired(token string, now time.Time) bool {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time)
}

// Authenticate opens a session for user: the last snapshot is loaded for
// first paint, then the push channel and the synchronizer start. An
// existing session is closed first.
func (s *Service) Authenticate(ctx context.Context, user model.User, token string) error {
	if user.ID == "" {
		return fmt.Errorf("authenticating: user has no id")
	}
	s.Close()

	s.client.SetToken(token)
	s.loadSnapshot(ctx)
	s.container.Apply(model.Patch{User: &user})

	logger := s.logger.With().Str("user_id", user.ID).Str("role", string(user.Role)).Logger()

	ch := channel.New(
		s.cfg.SocketEndpoint(),
		channel.Session{UserID: user.ID, Role: user.Role, Token: token},
		s.cfg.Channel,
		logging.Component(logger, "channel"),
		s.channelOpts...,
	)
	ch.OnError(s.handleChannelError)

	opts := []wsync.Option{
		wsync.WithProber(s.client),
		wsync.OnSynced(s.saveSnapshot),
	}
	if s.cfg.Channel.Heartbeat {
		opts = append(opts, wsync.WithEmitter(ch))
	}
	syncer := wsync.New(s.client, s.container, s.cfg.Sync, logging.Component(logger, "sync"), opts...)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sess := &session{
		user:    user,
		ch:      ch,
		sync:    syncer,
		release: syncer.Attach(ch),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	go func() {
		defer close(sess.done)
		_ = ch.Run(runCtx)
	}()
	syncer.Start(runCtx)

	logger.Info().Msg("session opened")
	return nil
}

// Logout closes the session, forgets the token and resets the state.
func (s *Service) Logout(ctx context.Context) error {
	s.closeSession()
	return s.forget(ctx)
}

func (s *Service) forget(ctx context.Context) error {
	s.client.SetToken("")
	s.container.Reset()
	if err := s.tokens.ClearToken(ctx); err != nil {
		return fmt.Errorf("clearing session token: %w", err)
	}
	s.logger.Info().Msg("logged out")
	return nil
}

// Close tears down the session without forgetting the token, for
// process exit. It is a no-op when logged out.
func (s *Service) Close() {
	s.closeSession()
}

// closeSession reports whether there was a session to close. Only one of
// several concurrent callers gets true.
func (s *Service) closeSession() bool {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()
	if sess == nil {
		return false
	}

	sess.sync.Stop()
	sess.release()
	sess.ch.Close()
	sess.cancel()
	<-sess.done
	return true
}

// SessionExpired signals when the server rejected the session token. The
// service has already logged out by the time it fires.
func (s *Service) SessionExpired() <-chan struct{} {
	return s.expired
}

// handleUnauthorized is the single path for every 401. It runs the logout
// on its own goroutine because the failing request may belong to the
// synchronizer that logout stops.
func (s *Service) handleUnauthorized(err error) {
	if s.current() == nil {
		return
	}
	go s.expire(err)
}

func (s *Service) handleChannelError(err error) {
	var cerr *channel.ConnectError
	if errors.As(err, &cerr) && cerr.Unauthorized() {
		s.handleUnauthorized(err)
	}
}

func (s *Service) expire(cause error) {
	if !s.closeSession() {
		return
	}
	s.logger.Warn().Err(cause).Msg("session expired")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.forget(ctx); err != nil {
		s.logger.Error().Err(err).Msg("logging out expired session")
	}

	s.AddNotification(NotificationInput{
		Kind:    model.NotificationWarning,
		Title:   "Session expired",
		Message: "Please sign in again.",
	})
	select {
	case s.expired <- struct{}{}:
	default:
	}
}

func (s *Service) clearToken(ctx context.Context) {
	if err := s.tokens.ClearToken(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("clearing session token")
	}
}

func (s *Service) loadSnapshot(ctx context.Context) {
	if s.prefs == nil {
		return
	}
	snap, ok, err := s.prefs.Snapshot(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("loading dashboard snapshot")
		return
	}
	if !ok {
		return
	}
	s.container.Apply(model.Patch{
		ActivePatients: &snap.ActivePatients,
		Tasks:          &snap.Tasks,
		Medications:    &snap.Medications,
		Resources:      &snap.Resources,
		Appointments:   &snap.Appointments,
		Analytics:      snap.Analytics,
	})
	s.logger.Debug().Time("saved_at", snap.LastSync).Msg("dashboard snapshot loaded")
}

func (s *Service) saveSnapshot(st model.DashboardState) {
	if s.prefs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.prefs.SaveSnapshot(ctx, st); err != nil {
		s.logger.Warn().Err(err).Msg("saving dashboard snapshot")
	}
}
