// Package sync keeps the shared dashboard state fresh from REST polls and
// push events, retrying failed refreshes with a capped backoff.
package sync

import (
	"context"
	"encoding/json"
	"errors"
	gosync "sync"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/nhle/wardboard/internal/channel"
	"github.com/nhle/wardboard/internal/model"
	"github.com/nhle/wardboard/internal/state"
)

// SyncState is the synchronizer's bookkeeping. Callers only ever get
// copies.
type SyncState struct {
	LastSync   time.Time
	InProgress bool
	LastError  error
	RetryCount int
	// NextRetry is when the scheduled retry fires; zero when none is
	// pending.
	NextRetry time.Time
}

// ResultMsg is a tea.Msg sent after every completed sync attempt.
type ResultMsg struct {
	State SyncState
	Err   error
}

// StatusReport is the sync_status heartbeat payload.
type StatusReport struct {
	LastSync   time.Time `json:"lastSync"`
	RetryCount int       `json:"retryCount"`
	OK         bool      `json:"ok"`
	Error      string    `json:"error,omitempty"`
}

// Emitter publishes outbound push events. *channel.Channel implements it.
type Emitter interface {
	Emit(kind channel.EventKind, payload any) bool
}

// Option configures a Synchronizer.
type Option func(*Synchronizer)

// WithEmitter sends a sync_status heartbeat after every attempt.
func WithEmitter(e Emitter) Option {
	return func(s *Synchronizer) { s.emitter = e }
}

// WithProber starts a connectivity monitor alongside the poll loop; a
// regained connection triggers a sync.
func WithProber(p Prober) Option {
	return func(s *Synchronizer) { s.prober = p }
}

// OnSynced registers fn to receive a snapshot after every successful sync.
func OnSynced(fn func(model.DashboardState)) Option {
	return func(s *Synchronizer) { s.onSynced = append(s.onSynced, fn) }
}

// Synchronizer is the writer of the dashboard container for polled and
// pushed data.
type Synchronizer struct {
	src       Source
	container *state.Container
	cfg       model.SyncConfig
	logger    zerolog.Logger
	now       func() time.Time

	emitter  Emitter
	prober   Prober
	onSynced []func(model.DashboardState)

	inFlight  atomic.Bool
	triggerCh chan struct{}
	resultCh  chan ResultMsg

	mu         gosync.Mutex
	st         SyncState
	backoff    retry.Backoff
	retryTimer *time.Timer
	running    bool
	cancel     context.CancelFunc
	baseCtx    context.Context
	gen        uint64 // bumped by Stop; older results are discarded
	wg         gosync.WaitGroup
}

// New creates a synchronizer. Call Start to begin polling.
func New(src Source, container *state.Container, cfg model.SyncConfig, logger zerolog.Logger, opts ...Option) *Synchronizer {
	if cfg.Interval <= 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = 15 * time.Second
	}
	s := &Synchronizer{
		src:       src,
		container: container,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		triggerCh: make(chan struct{}, 1),
		resultCh:  make(chan ResultMsg, 16),
		baseCtx:   context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.backoff = newBackoff(cfg)
	return s
}

// newBackoff builds the retry delay sequence. The default is a fixed
// delay; "exponential" doubles it per attempt, capped at five minutes.
func newBackoff(cfg model.SyncConfig) retry.Backoff {
	var b retry.Backoff
	if cfg.Backoff == "exponential" {
		b = retry.WithCappedDuration(5*time.Minute, retry.NewExponential(cfg.RetryDelay))
	} else {
		b = retry.NewConstant(cfg.RetryDelay)
	}
	if cfg.Jitter > 0 {
		b = retry.WithJitter(cfg.Jitter, b)
	}
	return b
}

// Status returns a copy of the current sync state.
func (s *Synchronizer) Status() SyncState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st
}

// Sync runs one full refresh. At most one runs at a time: a call made
// while another is in flight returns ErrSyncInProgress and changes
// nothing. Failures are recorded in the sync state and also returned.
func (s *Synchronizer) Sync(ctx context.Context) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		return ErrSyncInProgress
	}
	defer s.inFlight.Store(false)

	s.mu.Lock()
	gen := s.gen
	s.st.InProgress = true
	s.mu.Unlock()

	patch, err := fetch(ctx, s.src, s.cfg.ApplyPartial)
	now := s.now()
	state.Normalize(&patch, now)

	s.mu.Lock()
	s.st.InProgress = false
	if gen != s.gen {
		s.mu.Unlock()
		s.logger.Debug().Err(err).Msg("discarding refresh that finished after stop")
		if err != nil {
			return errors.Join(ErrStopped, err)
		}
		return ErrStopped
	}

	if err != nil {
		if s.cfg.ApplyPartial && !patch.Empty() {
			s.container.Apply(patch)
		}
		s.st.LastError = err
		s.st.RetryCount++
		s.st.NextRetry = time.Time{}
		if s.st.RetryCount < s.cfg.MaxRetries {
			s.scheduleRetryLocked()
		}
		snapshot := s.st
		s.mu.Unlock()

		s.logger.Warn().Err(err).
			Int("retry_count", snapshot.RetryCount).
			Time("next_retry", snapshot.NextRetry).
			Msg("refresh failed")
		s.heartbeat(snapshot)
		s.sendResult(ResultMsg{State: snapshot, Err: err})
		return err
	}

	s.container.ApplySync(patch, now)
	s.st.LastSync = now
	s.st.LastError = nil
	s.st.RetryCount = 0
	s.st.NextRetry = time.Time{}
	s.stopRetryLocked()
	s.backoff = newBackoff(s.cfg)
	snapshot := s.st
	hooks := s.onSynced
	s.mu.Unlock()

	s.logger.Debug().Strs("fields", patch.Fields()).Msg("refresh applied")
	if len(hooks) > 0 {
		dash := s.container.Snapshot()
		for _, fn := range hooks {
			fn(dash)
		}
	}
	s.heartbeat(snapshot)
	s.sendResult(ResultMsg{State: snapshot})
	return nil
}

// scheduleRetryLocked arms a single retry. Caller must hold s.mu.
func (s *Synchronizer) scheduleRetryLocked() {
	delay, stop := s.backoff.Next()
	if stop {
		return
	}
	s.stopRetryLocked()
	s.st.NextRetry = s.now().Add(delay)
	gen, ctx := s.gen, s.baseCtx
	s.retryTimer = time.AfterFunc(delay, func() {
		s.mu.Lock()
		stale := gen != s.gen
		if !stale {
			s.st.NextRetry = time.Time{}
		}
		s.mu.Unlock()
		if stale {
			return
		}
		if err := s.Sync(ctx); err != nil && !errors.Is(err, ErrSyncInProgress) {
			s.logger.Debug().Err(err).Msg("retry failed")
		}
	})
}

func (s *Synchronizer) stopRetryLocked() {
	if s.retryTimer != nil {
		s.retryTimer.Stop()
		s.retryTimer = nil
	}
}

// Start syncs immediately and then on every interval tick and trigger
// until ctx is done or Stop is called.
func (s *Synchronizer) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.baseCtx = ctx
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)

	if s.prober != nil {
		m := NewMonitor(s.prober, s.cfg.ProbeInterval, s.logger, s.Trigger)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			m.Run(ctx)
		}()
	}
}

// Stop halts the loop, the monitor and any pending retry. A refresh still
// in flight is cancelled when it was started by the loop, and its result
// is discarded either way.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	s.gen++
	s.stopRetryLocked()
	s.st.NextRetry = time.Time{}
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.baseCtx = context.Background()
	s.mu.Unlock()

	s.wg.Wait()
}

// Trigger requests a sync from the running loop. Requests made while one
// is already pending coalesce.
func (s *Synchronizer) Trigger() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

func (s *Synchronizer) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.runSync(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runSync(ctx)
		case <-s.triggerCh:
			s.runSync(ctx)
		}
	}
}

func (s *Synchronizer) runSync(ctx context.Context) {
	err := s.Sync(ctx)
	if errors.Is(err, ErrSyncInProgress) {
		s.logger.Debug().Msg("sync already running, request dropped")
	}
}

// HandleStateUpdate applies a pushed state_update payload.
func (s *Synchronizer) HandleStateUpdate(raw json.RawMessage) error {
	patch, err := state.DecodePatch(raw, s.now())
	if err != nil {
		s.logger.Warn().Err(err).Msg("rejecting state update")
		return err
	}
	if patch.Empty() {
		return nil
	}
	s.container.Apply(patch)
	return nil
}

// HandleNotification adds a pushed notification to the queue.
func (s *Synchronizer) HandleNotification(raw json.RawMessage) error {
	n, err := state.DecodeNotification(raw, s.now())
	if err != nil {
		s.logger.Warn().Err(err).Msg("rejecting notification")
		return err
	}
	s.container.Queue().Add(n)
	return nil
}

// Attach subscribes the synchronizer to the channel's inbound events. The
// returned function releases the subscriptions.
func (s *Synchronizer) Attach(ch *channel.Channel) (release func()) {
	subs := []*channel.Subscription{
		ch.Subscribe(channel.EventStateUpdate, func(data json.RawMessage) { _ = s.HandleStateUpdate(data) }),
		ch.Subscribe(channel.EventNotification, func(data json.RawMessage) { _ = s.HandleNotification(data) }),
		ch.Subscribe(channel.EventSyncRequired, func(json.RawMessage) { s.Trigger() }),
	}
	return func() {
		for _, sub := range subs {
			sub.Close()
		}
	}
}

func (s *Synchronizer) heartbeat(st SyncState) {
	if s.emitter == nil {
		return
	}
	report := StatusReport{LastSync: st.LastSync, RetryCount: st.RetryCount, OK: st.LastError == nil}
	if st.LastError != nil {
		report.Error = st.LastError.Error()
	}
	s.emitter.Emit(channel.EventSyncStatus, report)
}

// sendResult sends a ResultMsg without blocking.
func (s *Synchronizer) sendResult(msg ResultMsg) {
	select {
	case s.resultCh <- msg:
	default:
		// Drop if nobody is listening.
	}
}

// WaitForResult returns a tea.Cmd that waits for the next sync result.
// Call it again after handling each ResultMsg to keep listening.
func (s *Synchronizer) WaitForResult() tea.Cmd {
	return func() tea.Msg {
		return <-s.resultCh
	}
}
