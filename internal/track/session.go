package track

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// session binds one job id to one poll loop. Its generation token is compared
// against the controller's active session before every state mutation, so a
// response that arrives after the session was superseded can never be applied.
type session struct {
	c      *Controller
	gen    string
	jobID  string
	ctx    context.Context
	cancel context.CancelFunc
}

// newSession creates a session detached from the submit request's context:
// the poll loop outlives the call that started it and stops only when the
// session is cancelled.
func newSession(c *Controller, jobID string) *session {
	ctx, cancel := context.WithCancel(context.Background())
	return &session{
		c:      c,
		gen:    uuid.New().String(),
		jobID:  jobID,
		ctx:    ctx,
		cancel: cancel,
	}
}

// stale reports whether this session has been superseded or cancelled.
// Callers must hold c.mu.
func (s *session) stale() bool {
	return s.c.session != s || s.ctx.Err() != nil
}

// run fetches once immediately, then on every tick of the fixed poll
// interval, until the session is cancelled. Observing a terminal status
// cancels the session, which disarms this ticker and the elapsed ticker.
func (s *session) run() {
	s.poll()

	ticker := time.NewTicker(s.c.pollInterval)
	defer ticker.Stop()
	for s.ctx.Err() == nil {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			// Re-check before fetching: a pending tick must not race a
			// cancellation into one extra request.
			if s.ctx.Err() != nil {
				return
			}
			s.poll()
		}
	}
}

// tickLoop publishes an elapsed-time heartbeat once per tick interval. It is
// independent of the poll ticker so displayed timing moves smoothly between
// polls, and it stops for good once the finish timestamp is set.
func (s *session) tickLoop() {
	ticker := time.NewTicker(s.c.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.c.mu.Lock()
			if s.stale() || s.c.cur == nil || s.c.cur.finishedAt != nil {
				s.c.mu.Unlock()
				return
			}
			event := Event{Type: EventTick, Job: s.c.viewLocked()}
			s.c.mu.Unlock()
			s.c.notify(event)
		}
	}
}

// poll performs one status fetch and applies the result. A transport failure
// or non-2xx response is surfaced but does not stop the loop; only an
// explicit terminal status, or cancellation, ends the session.
func (s *session) poll() {
	snap, err := s.c.client.Fetch(s.ctx, s.jobID)

	s.c.mu.Lock()
	if s.stale() || s.c.cur == nil || s.c.cur.id != s.jobID {
		// Superseded while the fetch was in flight; discard the result.
		s.c.mu.Unlock()
		return
	}

	if err != nil {
		s.c.cur.lastPollErr = err.Error()
		event := Event{Type: EventPollError, Job: s.c.viewLocked(), Message: err.Error()}
		s.c.mu.Unlock()
		slog.Warn("poll failed", "job_id", s.jobID, "error", err)
		s.c.notify(event)
		return
	}

	s.c.cur.lastPollErr = ""
	s.c.cur.latest = snap

	if !snap.Status.IsTerminal() {
		event := Event{Type: EventStatus, Job: s.c.viewLocked()}
		s.c.mu.Unlock()
		s.c.notify(event)
		return
	}

	// First terminal observation wins: freeze the clock, disarm both
	// timers exactly once, leave the final snapshot bound for display.
	if s.c.cur.finishedAt == nil {
		t := s.c.now()
		s.c.cur.finishedAt = &t
	}
	s.cancel()
	s.c.session = nil
	event := Event{Type: EventResult, Job: s.c.viewLocked(), Message: snap.Error}
	s.c.mu.Unlock()

	slog.Info("job reached terminal status", "job_id", s.jobID, "status", snap.Status)
	s.c.notify(event)
}
