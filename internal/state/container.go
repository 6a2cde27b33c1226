// Package state owns the shared dashboard aggregate. A single Container
// is written by the synchronizer and the mutation handlers; widgets only
// see the Reader interface.
package state

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/nhle/wardboard/internal/model"
	"github.com/nhle/wardboard/internal/notify"
)

// Reader is the read-only view handed to dashboard widgets.
type Reader interface {
	// Snapshot returns a deep copy of the aggregate.
	Snapshot() model.DashboardState

	// Watch returns a channel that receives a value after every change.
	// Bursts of changes coalesce into one wake-up. The channel is closed
	// when ctx is done.
	Watch(ctx context.Context) <-chan struct{}
}

// Container holds the aggregate. Notifications live in the queue and are
// folded into snapshots.
type Container struct {
	mu    sync.RWMutex
	state model.DashboardState
	queue *notify.Queue
	now   func() time.Time

	watchMu  sync.Mutex
	watchers map[chan struct{}]struct{}
}

var _ Reader = (*Container)(nil)

// New creates an empty container backed by queue.
func New(queue *notify.Queue) *Container {
	c := &Container{
		queue:    queue,
		now:      time.Now,
		watchers: make(map[chan struct{}]struct{}),
	}
	queue.OnChange(c.broadcast)
	return c
}

// Queue returns the notification queue the container folds into snapshots.
func (c *Container) Queue() *notify.Queue {
	return c.queue
}

// Apply shallow-merges p into the aggregate and stamps a new LastUpdate.
// Every field present in p replaces the current value wholesale,
// notifications included.
func (c *Container) Apply(p model.Patch) time.Time {
	return c.apply(p, time.Time{})
}

// ApplySync applies the result of a full refresh and records at as the
// last successful sync time.
func (c *Container) ApplySync(p model.Patch, at time.Time) time.Time {
	return c.apply(p, at)
}

func (c *Container) apply(p model.Patch, syncedAt time.Time) time.Time {
	c.mu.Lock()
	if p.User != nil {
		u := *p.User
		c.state.User = &u
	}
	if p.ActivePatients != nil {
		c.state.ActivePatients = slices.Clone(*p.ActivePatients)
	}
	if p.Tasks != nil {
		c.state.Tasks = slices.Clone(*p.Tasks)
	}
	if p.Medications != nil {
		c.state.Medications = slices.Clone(*p.Medications)
	}
	if p.Resources != nil {
		c.state.Resources = slices.Clone(*p.Resources)
	}
	if p.Appointments != nil {
		c.state.Appointments = slices.Clone(*p.Appointments)
	}
	if p.Analytics != nil {
		a := *p.Analytics
		c.state.Analytics = &a
	}
	// Replaced under c.mu so a snapshot never mixes old notifications
	// with new collections.
	if p.Notifications != nil {
		c.queue.Replace(*p.Notifications)
	}
	if !syncedAt.IsZero() {
		c.state.LastSync = syncedAt
	}
	stamp := c.stampLocked()
	c.mu.Unlock()

	c.broadcast()
	return stamp
}

// UpsertTask replaces the task with the same id, or appends it.
func (c *Container) UpsertTask(t model.Task) {
	c.mu.Lock()
	replaced := false
	for i := range c.state.Tasks {
		if c.state.Tasks[i].ID == t.ID {
			c.state.Tasks[i] = t
			replaced = true
			break
		}
	}
	if !replaced {
		c.state.Tasks = append(c.state.Tasks, t)
	}
	c.stampLocked()
	c.mu.Unlock()
	c.broadcast()
}

// UpsertResource replaces the resource with the same id, or appends it.
func (c *Container) UpsertResource(r model.Resource) {
	c.mu.Lock()
	replaced := false
	for i := range c.state.Resources {
		if c.state.Resources[i].ID == r.ID {
			c.state.Resources[i] = r
			replaced = true
			break
		}
	}
	if !replaced {
		c.state.Resources = append(c.state.Resources, r)
	}
	c.stampLocked()
	c.mu.Unlock()
	c.broadcast()
}

// Reset drops all data, including queued notifications. LastUpdate keeps
// increasing across a reset.
func (c *Container) Reset() {
	c.mu.Lock()
	last := c.state.LastUpdate
	c.state = model.DashboardState{LastUpdate: last}
	c.queue.ClearAll()
	c.stampLocked()
	c.mu.Unlock()

	c.broadcast()
}

// Snapshot implements Reader.
func (c *Container) Snapshot() model.DashboardState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := c.state.Clone()
	out.Notifications = c.queue.List()
	return out
}

// Watch implements Reader.
func (c *Container) Watch(ctx context.Context) <-chan struct{} {
	ch := make(chan struct{}, 1)
	c.watchMu.Lock()
	c.watchers[ch] = struct{}{}
	c.watchMu.Unlock()

	go func() {
		<-ctx.Done()
		c.watchMu.Lock()
		delete(c.watchers, ch)
		close(ch)
		c.watchMu.Unlock()
	}()
	return ch
}

func (c *Container) broadcast() {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	for ch := range c.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// stampLocked advances LastUpdate to now, or one nanosecond past the
// previous stamp when the clock has not moved. Caller must hold c.mu.
func (c *Container) stampLocked() time.Time {
	next := c.now()
	if !next.After(c.state.LastUpdate) {
		next = c.state.LastUpdate.Add(time.Nanosecond)
	}
	c.state.LastUpdate = next
	return next
}
