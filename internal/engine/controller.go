// Package engine implements the notification engine: an identity binding
// controller that drives the subscribe/unsubscribe lifecycle, and a
// per-session state machine that merges push deltas with fetched baselines
// through the store.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/socialmesh/notifyhub-go/internal/aggregate"
	"github.com/socialmesh/notifyhub-go/internal/dispatch"
	"github.com/socialmesh/notifyhub-go/internal/reconcile"
	"github.com/socialmesh/notifyhub-go/internal/store"
	"github.com/socialmesh/notifyhub-go/pkg/alert"
	engineapi "github.com/socialmesh/notifyhub-go/pkg/engine"
	"github.com/socialmesh/notifyhub-go/pkg/identity"
	"github.com/socialmesh/notifyhub-go/pkg/notification"
	"github.com/socialmesh/notifyhub-go/pkg/transport"
)

// Config tunes the engine.
type Config struct {
	// BaselinePageSize is the number of events requested on bind.
	BaselinePageSize int

	// PushCap is the store's maximum list length after push insertions.
	PushCap int

	// RefreshInterval re-fetches the authoritative unread count while
	// live, bounding drift from failed acknowledgements. 0 disables it.
	RefreshInterval time.Duration

	// AvatarBaseURL prefixes relative avatar references in the grouped
	// projection. Empty leaves references as delivered.
	AvatarBaseURL string

	// Dispatch tunes alert throttling.
	Dispatch dispatch.Config

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// SetDefaults sets reasonable default values for the config.
func (c *Config) SetDefaults() {
	if c.BaselinePageSize == 0 {
		c.BaselinePageSize = 50
	}
	if c.PushCap == 0 {
		c.PushCap = store.DefaultPushCap
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Controller is the identity binding controller. It owns the current
// session exclusively: binding a new identity always tears the previous
// session down first inside one method, so at most one push subscription
// can exist at any time.
type Controller struct {
	config     Config
	provider   identity.Provider
	client     transport.Client
	store      *store.Store
	reconciler *reconcile.Reconciler
	dispatcher *dispatch.Dispatcher
	logger     *slog.Logger

	mu      sync.Mutex
	session *session
	userID  string
	started bool
	closed  bool
	cancel  context.CancelFunc
	done    chan struct{}

	groupsMu      sync.Mutex
	groupsVersion uint64
	groupsValid   bool
	groups        []notification.Group
}

// New creates an engine bound to the given collaborators. The sink
// receives transient alerts; pass nil for a log-backed default.
func New(provider identity.Provider, client transport.Client, sink alert.Sink, config Config) *Controller {
	config.SetDefaults()
	if sink == nil {
		sink = alert.NewLogSink(config.Logger)
	}

	st := store.New(config.PushCap)
	return &Controller{
		config:     config,
		provider:   provider,
		client:     client,
		store:      st,
		reconciler: reconcile.New(st, client, sink, config.Logger),
		dispatcher: dispatch.New(sink, config.Dispatch, config.Logger),
		logger:     config.Logger,
	}
}

// Start begins observing identity changes. If an identity is already
// bound at start, a session opens for it immediately. Idempotent.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return fmt.Errorf("cannot start closed engine")
	}
	if c.started {
		c.mu.Unlock()
		return nil
	}
	c.started = true

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.run(runCtx)
	return nil
}

// run is the single loop every bind/unbind decision flows through, so
// teardown and setup never interleave.
func (c *Controller) run(ctx context.Context) {
	defer close(c.done)

	if current, ok := c.provider.Current(); ok {
		c.rebind(ctx, &current)
	}

	for {
		select {
		case <-ctx.Done():
			c.rebind(context.Background(), nil)
			return
		case id := <-c.provider.Changes():
			c.rebind(ctx, id)
		}
	}
}

// rebind is the atomic close-then-open transition. Order matters: the old
// subscription stops accepting before teardown completes, the store is
// cleared before any new baseline applies, and only then does a new
// session open. This keeps a stale subscription's events out of the new
// identity's view.
func (c *Controller) rebind(ctx context.Context, id *identity.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		c.session.Stop()
		c.session = nil
	}
	c.store.Clear()
	c.userID = ""

	if id == nil || ctx.Err() != nil {
		c.logger.Info("notification engine unbound")
		return
	}

	if ts, ok := c.client.(transport.TokenSetter); ok {
		ts.SetToken(id.Token)
	}

	c.userID = id.UserID
	c.session = newSession(c, *id)
	c.session.Start(ctx)
	c.logger.Info("notification engine bound", "user_id", id.UserID)
}

// Groups returns the grouped projection, memoized by store version so
// repeated reads between changes cost nothing.
func (c *Controller) Groups() []notification.Group {
	snap := c.store.Snapshot()

	c.groupsMu.Lock()
	defer c.groupsMu.Unlock()

	if c.groupsValid && c.groupsVersion == snap.Version {
		return c.groups
	}
	c.groups = aggregate.Groups(snap.Events)
	if c.config.AvatarBaseURL != "" {
		for i := range c.groups {
			c.groups[i].Latest.SenderAvatarRef = notification.ResolveAvatarRef(
				c.config.AvatarBaseURL, c.groups[i].Latest.SenderAvatarRef)
		}
	}
	c.groupsVersion = snap.Version
	c.groupsValid = true
	return c.groups
}

// UnreadCount returns the current unread counter.
func (c *Controller) UnreadCount() int {
	return c.store.Unread()
}

// MarkAsRead optimistically marks one event read and acknowledges it
// remotely. A no-op when no identity is bound.
func (c *Controller) MarkAsRead(ctx context.Context, eventID string) error {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()

	if userID == "" {
		return nil
	}
	return c.reconciler.MarkAsRead(ctx, userID, eventID)
}

// MarkGroupAsRead marks every unread event in the group read, id by id.
func (c *Controller) MarkGroupAsRead(ctx context.Context, group notification.Group) error {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()

	if userID == "" {
		return nil
	}
	return c.reconciler.MarkGroupAsRead(ctx, userID, group)
}

// Watch returns a coalescing change tick channel.
func (c *Controller) Watch() <-chan struct{} {
	return c.store.Watch()
}

// State reports the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil {
		return Unbound
	}
	return c.session.State()
}

// Close unbinds any active session and stops the engine. Idempotent.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	done := c.done
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return nil
}

// Verify that Controller implements the engine interface at compile time
var _ engineapi.Engine = (*Controller)(nil)
