package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/socialmesh/notifyhub-go/pkg/alert"
	"github.com/socialmesh/notifyhub-go/pkg/identity"
	"github.com/socialmesh/notifyhub-go/pkg/notification"
	"github.com/socialmesh/notifyhub-go/pkg/transport"
)

// State is the engine's per-session lifecycle state.
type State int

const (
	// Unbound means no identity session is active.
	Unbound State = iota

	// BaselineLoading means the session is fetching its baseline; the
	// push channel has not opened yet.
	BaselineLoading

	// Live means the push channel is open and deliveries are applied.
	Live
)

// String returns the display name for a state.
func (s State) String() string {
	switch s {
	case Unbound:
		return "UNBOUND"
	case BaselineLoading:
		return "BASELINE_LOADING"
	case Live:
		return "LIVE"
	default:
		return "UNKNOWN"
	}
}

// session is one identity's subscription lifetime. The controller owns it
// exclusively; no other component holds a reference.
type session struct {
	controller *Controller
	id         identity.Identity

	// accepting flips to false synchronously in Stop, before the
	// asynchronous teardown completes, so push deliveries racing a slow
	// channel close are discarded instead of applied.
	accepting atomic.Bool

	state    atomic.Int32
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func newSession(c *Controller, id identity.Identity) *session {
	s := &session{
		controller: c,
		id:         id,
		done:       make(chan struct{}),
	}
	s.accepting.Store(true)
	return s
}

// Start launches the session loop: baseline first, then the live stream.
func (s *session) Start(ctx context.Context) {
	sessionCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.run(sessionCtx)
}

// Stop ends the session. The accepting flag drops before anything else;
// only then is the stream torn down and the loop awaited. Idempotent.
func (s *session) Stop() {
	s.stopOnce.Do(func() {
		s.accepting.Store(false)
		s.cancel()
	})
	<-s.done
}

// State reports the session's lifecycle state.
func (s *session) State() State {
	return State(s.state.Load())
}

func (s *session) run(ctx context.Context) {
	defer close(s.done)
	defer s.state.Store(int32(Unbound))

	c := s.controller

	s.state.Store(int32(BaselineLoading))
	s.loadBaseline(ctx)

	if ctx.Err() != nil || !s.accepting.Load() {
		return
	}

	// The baseline has completed or failed by now; only then may the
	// push channel open.
	stream, err := c.client.Subscribe(ctx, transport.Topic(s.id.UserID))
	if err != nil {
		c.logger.Warn("failed to open push subscription",
			"user_id", s.id.UserID, "error", err)
		c.dispatcher.Failure("Live notifications unavailable", alert.Warning)
		return
	}
	defer stream.Close()

	s.state.Store(int32(Live))

	var refresh *time.Ticker
	var refreshC <-chan time.Time
	if c.config.RefreshInterval > 0 {
		refresh = time.NewTicker(c.config.RefreshInterval)
		refreshC = refresh.C
		defer refresh.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-stream.Events():
			if !ok {
				return
			}
			s.handlePush(evt)
		case err, ok := <-stream.Errors():
			if ok && err != nil {
				c.logger.Warn("push stream error", "user_id", s.id.UserID, "error", err)
			}
		case <-refreshC:
			s.refreshCounter(ctx)
		}
	}
}

// loadBaseline fetches the authoritative unread count and the first page
// of events. Either fetch failing leaves the corresponding state untouched
// and surfaces a non-fatal alert; the session still goes live so push
// delivery keeps working.
func (s *session) loadBaseline(ctx context.Context) {
	c := s.controller

	count, err := c.client.FetchUnreadCount(ctx, s.id.UserID)
	if err != nil {
		c.logger.Warn("baseline unread count fetch failed",
			"user_id", s.id.UserID, "error", err)
		c.dispatcher.Failure("Could not refresh notification count", alert.Warning)
	} else if s.accepting.Load() && ctx.Err() == nil {
		c.store.SetCounter(count)
	}

	events, err := c.client.FetchEvents(ctx, s.id.UserID, c.config.BaselinePageSize)
	if err != nil {
		c.logger.Warn("baseline events fetch failed",
			"user_id", s.id.UserID, "error", err)
		c.dispatcher.Failure("Could not load notifications", alert.Warning)
		return
	}

	// Apply only if this session is still the bound one; a response
	// landing after an account switch must not leak into the new view.
	if s.accepting.Load() && ctx.Err() == nil {
		c.store.ReplaceAll(events)
	}
}

// handlePush applies one delivered event. Deliveries racing a session stop
// are discarded; duplicates of events already in the window are absorbed
// by the store and never alerted.
func (s *session) handlePush(evt notification.Event) {
	c := s.controller

	if !s.accepting.Load() {
		c.logger.Debug("discarding push after unbind", "event_id", evt.ID)
		return
	}

	if c.store.Append(evt) {
		c.dispatcher.EventArrived(evt)
	}
}

// refreshCounter re-syncs the unread counter with the backend while live,
// bounding drift from acknowledgements that never landed.
func (s *session) refreshCounter(ctx context.Context) {
	c := s.controller

	count, err := c.client.FetchUnreadCount(ctx, s.id.UserID)
	if err != nil {
		c.logger.Warn("unread count refresh failed", "user_id", s.id.UserID, "error", err)
		return
	}
	if s.accepting.Load() && ctx.Err() == nil {
		c.store.SetCounter(count)
	}
}
