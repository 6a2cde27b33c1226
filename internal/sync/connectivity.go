package sync

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// probeTimeout bounds a single health probe.
const probeTimeout = 5 * time.Second

// Prober checks whether the back-end is reachable. *api.Client
// implements it.
type Prober interface {
	Health(ctx context.Context) error
}

// Monitor probes the back-end on an interval and calls onOnline when an
// unreachable back-end becomes reachable again.
type Monitor struct {
	prober   Prober
	interval time.Duration
	logger   zerolog.Logger
	onOnline func()
	online   atomic.Bool
}

// NewMonitor creates a monitor that assumes the back-end starts reachable.
func NewMonitor(p Prober, interval time.Duration, logger zerolog.Logger, onOnline func()) *Monitor {
	m := &Monitor{prober: p, interval: interval, logger: logger, onOnline: onOnline}
	m.online.Store(true)
	return m
}

// Online reports the result of the last probe.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Run probes until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

func (m *Monitor) probe(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	err := m.prober.Health(ctx)
	if errors.Is(ctx.Err(), context.Canceled) {
		return
	}

	was := m.online.Swap(err == nil)
	switch {
	case was && err != nil:
		m.logger.Warn().Err(err).Msg("back-end unreachable")
	case !was && err == nil:
		m.logger.Info().Msg("back-end reachable again")
		if m.onOnline != nil {
			m.onOnline()
		}
	}
}
