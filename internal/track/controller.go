// Package track owns the lifecycle of the one job being observed: submission,
// the polling loop, elapsed-time accounting and archival of displaced jobs.
// Exactly one poll session is active at a time; a new submission always tears
// the previous session down before it starts.
package track

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dubwatch/dubwatch/internal/client"
	"github.com/dubwatch/dubwatch/internal/history"
	"github.com/dubwatch/dubwatch/internal/job"
	"github.com/dubwatch/dubwatch/internal/view"
)

// EventType classifies messages emitted to subscribers.
type EventType string

const (
	// EventStatus is a fresh non-terminal snapshot.
	EventStatus EventType = "status"
	// EventTick is the once-per-second elapsed-time heartbeat.
	EventTick EventType = "tick"
	// EventResult is the first (and only) terminal snapshot of a session.
	EventResult EventType = "result"
	// EventPollError is a failed fetch; polling continues after it.
	EventPollError EventType = "poll_error"
)

// Event is one update pushed to subscribers.
type Event struct {
	Type    EventType    `json:"type"`
	Job     view.JobView `json:"job"`
	Message string       `json:"message,omitempty"`
}

// State is the controller's externally visible state.
type State struct {
	Active    bool         `json:"active"`
	Job       view.JobView `json:"job"`
	PollError string       `json:"poll_error,omitempty"`
	LastError string       `json:"last_error,omitempty"`
}

// Options tune a Controller. Zero values select the defaults.
type Options struct {
	// PollInterval is the fixed status-fetch interval (default 1.5s).
	PollInterval time.Duration
	// TickInterval drives the elapsed-time heartbeat (default 1s).
	TickInterval time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

const (
	defaultPollInterval = 1500 * time.Millisecond
	defaultTickInterval = time.Second
)

// current is the mutable current-job slot. The Controller owns it exclusively;
// history only ever receives copies of it.
type current struct {
	id          string
	latest      *job.Snapshot
	startedAt   time.Time
	finishedAt  *time.Time
	lastPollErr string
}

// Controller tracks the single job under observation.
type Controller struct {
	client       *client.Client
	history      history.Store
	pollInterval time.Duration
	tickInterval time.Duration
	now          func() time.Time

	// startMu serializes submissions: mu is released around the network
	// call in Start, and two interleaved Starts must not each install a
	// session.
	startMu sync.Mutex

	mu      sync.Mutex
	session *session
	cur     *current
	lastErr string

	subMu sync.RWMutex
	subs  []chan Event
}

// New creates an idle Controller.
func New(cl *client.Client, hist history.Store, opts Options) *Controller {
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = defaultTickInterval
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Controller{
		client:       cl,
		history:      hist,
		pollInterval: opts.PollInterval,
		tickInterval: opts.TickInterval,
		now:          opts.Now,
	}
}

// Start validates and submits a new job, displacing whatever job is currently
// bound. The previous session is fully cancelled, and its last snapshot
// archived, before the submission is attempted; a failed submission therefore
// leaves the controller idle. Concurrent calls are serialized, so at most one
// session exists at any moment and each call displaces the previous winner.
// Returns the job id assigned by the service.
func (c *Controller) Start(ctx context.Context, req *job.Request) (string, error) {
	if err := req.Validate(); err != nil {
		c.mu.Lock()
		c.lastErr = err.Error()
		c.mu.Unlock()
		return "", err
	}

	c.startMu.Lock()
	defer c.startMu.Unlock()

	// Displace the old job first: its polling must be stopped and its
	// snapshot archived before the new job produces any state.
	c.mu.Lock()
	c.stopSessionLocked()
	c.archiveLocked(ctx)
	c.cur = nil
	c.lastErr = ""
	c.mu.Unlock()

	id, err := c.client.Submit(ctx, req)
	if err != nil {
		c.mu.Lock()
		c.lastErr = err.Error()
		c.mu.Unlock()
		return "", err
	}

	c.mu.Lock()
	c.cur = &current{id: id, startedAt: c.now()}
	s := newSession(c, id)
	c.session = s
	c.mu.Unlock()

	slog.Info("job submitted", "job_id", id, "session", s.gen)
	go s.run()
	go s.tickLoop()
	return id, nil
}

// Cancel stops the active poll session and unbinds the current job. The
// remote job keeps running; only the local observer stops. The dropped
// snapshot is not archived; history records jobs displaced by a submission.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopSessionLocked()
	c.cur = nil
}

// Close tears the controller down. Safe to call with a session in flight.
func (c *Controller) Close() {
	c.Cancel()
}

// State returns the current externally visible state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := State{LastError: c.lastErr}
	if c.cur != nil {
		st.Active = c.session != nil
		st.PollError = c.cur.lastPollErr
		st.Job = c.viewLocked()
	}
	return st
}

// Elapsed returns whole elapsed seconds for the current job: frozen at the
// finish timestamp once a terminal status has been observed, live otherwise.
func (c *Controller) Elapsed() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsedLocked()
}

// History lists archived jobs, newest first.
func (c *Controller) History(ctx context.Context) ([]history.Entry, error) {
	return c.history.List(ctx)
}

// Subscribe returns a buffered channel of controller events. Events are
// dropped, not blocked on, when the subscriber lags.
func (c *Controller) Subscribe() chan Event {
	ch := make(chan Event, 64)
	c.subMu.Lock()
	c.subs = append(c.subs, ch)
	c.subMu.Unlock()
	return ch
}

// Unsubscribe removes a channel returned by Subscribe.
func (c *Controller) Unsubscribe(ch chan Event) {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	for i, s := range c.subs {
		if s == ch {
			c.subs = append(c.subs[:i], c.subs[i+1:]...)
			break
		}
	}
}

// notify sends an event to all subscribers without blocking.
func (c *Controller) notify(event Event) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()
	for _, ch := range c.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// stopSessionLocked cancels the active session, if any. Both of its timers
// are disarmed through the shared context; any fetch already in flight will
// find its generation stale and discard its result.
func (c *Controller) stopSessionLocked() {
	if c.session != nil {
		c.session.cancel()
		c.session = nil
	}
}

// archiveLocked copies the bound job, if any, into history.
func (c *Controller) archiveLocked(ctx context.Context) {
	if c.cur == nil || c.cur.id == "" {
		return
	}
	e := history.Entry{
		JobID:          c.cur.id,
		ElapsedSeconds: c.elapsedLocked(),
		FinishedAt:     c.cur.finishedAt,
		ArchivedAt:     c.now(),
	}
	if c.cur.latest != nil {
		e.Last = *c.cur.latest
		e.Error = c.cur.latest.Error
	}
	if e.Error == "" {
		e.Error = c.cur.lastPollErr
	}
	if err := c.history.Add(ctx, e); err != nil {
		slog.Warn("failed to archive job", "job_id", e.JobID, "error", err)
	}
}

func (c *Controller) elapsedLocked() int64 {
	if c.cur == nil {
		return 0
	}
	end := c.now()
	if c.cur.finishedAt != nil {
		end = *c.cur.finishedAt
	}
	secs := int64(end.Sub(c.cur.startedAt).Seconds())
	if secs < 0 {
		return 0
	}
	return secs
}

func (c *Controller) viewLocked() view.JobView {
	return view.FromSnapshot(c.client.BaseURL(), c.cur.id, c.cur.latest, c.elapsedLocked())
}
