package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialmesh/notifyhub-go/pkg/alert"
	"github.com/socialmesh/notifyhub-go/pkg/identity"
	"github.com/socialmesh/notifyhub-go/pkg/notification"
	"github.com/socialmesh/notifyhub-go/pkg/transport"
)

// fakeProvider is a scriptable identity provider.
type fakeProvider struct {
	mu      sync.Mutex
	current *identity.Identity
	changes chan *identity.Identity
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{changes: make(chan *identity.Identity, 8)}
}

func (p *fakeProvider) Current() (identity.Identity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return identity.Identity{}, false
	}
	return *p.current, true
}

func (p *fakeProvider) Changes() <-chan *identity.Identity {
	return p.changes
}

func (p *fakeProvider) emit(id *identity.Identity) {
	p.mu.Lock()
	p.current = id
	p.mu.Unlock()
	p.changes <- id
}

// fakeStream is a push channel the test writes into.
type fakeStream struct {
	events    chan notification.Event
	errors    chan error
	done      chan struct{}
	closeOnce sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{
		events: make(chan notification.Event, 16),
		errors: make(chan error, 4),
		done:   make(chan struct{}),
	}
}

func (s *fakeStream) Events() <-chan notification.Event { return s.events }
func (s *fakeStream) Errors() <-chan error              { return s.errors }
func (s *fakeStream) Done() <-chan struct{}             { return s.done }

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		close(s.events)
	})
	return nil
}

func (s *fakeStream) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// fakeClient serves scripted baselines and hands out fake streams.
type fakeClient struct {
	mu          sync.Mutex
	unread      int
	page        []notification.Event
	countErr    error
	pageErr     error
	tokens      []string
	topics      []string
	streams     []*fakeStream
	ackedEvents []string
	ackErr      error
}

func (f *fakeClient) SetToken(token string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = append(f.tokens, token)
}

func (f *fakeClient) FetchEvents(ctx context.Context, userID string, limit int) ([]notification.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pageErr != nil {
		return nil, f.pageErr
	}
	page := make([]notification.Event, len(f.page))
	copy(page, f.page)
	return page, nil
}

func (f *fakeClient) FetchUnreadCount(ctx context.Context, userID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.unread, nil
}

func (f *fakeClient) AcknowledgeRead(ctx context.Context, userID, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ackErr != nil {
		return f.ackErr
	}
	f.ackedEvents = append(f.ackedEvents, eventID)
	return nil
}

func (f *fakeClient) Subscribe(ctx context.Context, topic string) (transport.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.topics = append(f.topics, topic)
	stream := newFakeStream()
	f.streams = append(f.streams, stream)
	return stream, nil
}

func (f *fakeClient) lastStream() *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil
	}
	return f.streams[len(f.streams)-1]
}

func (f *fakeClient) subscribedTopics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	topics := make([]string, len(f.topics))
	copy(topics, f.topics)
	return topics
}

func (f *fakeClient) acked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	acked := make([]string, len(f.ackedEvents))
	copy(acked, f.ackedEvents)
	return acked
}

// fakeSink records alerts, safely across goroutines.
type fakeSink struct {
	mu       sync.Mutex
	messages []string
	sevs     []alert.Severity
}

func (f *fakeSink) Show(message string, severity alert.Severity) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
	f.sevs = append(f.sevs, severity)
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

func evt(id, handle string, kind notification.Kind, createdAt time.Time) notification.Event {
	return notification.Event{
		ID:           id,
		Kind:         kind,
		Content:      "content " + id,
		SenderHandle: handle,
		CreatedAt:    createdAt,
	}
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond, msg)
}

func startEngine(t *testing.T, provider *fakeProvider, client *fakeClient, sink *fakeSink) *Controller {
	t.Helper()
	c := New(provider, client, sink, Config{})
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { c.Close() })
	return c
}

func TestController_BindLoadsBaselineThenGoesLive(t *testing.T) {
	base := time.Now()
	provider := newFakeProvider()
	client := &fakeClient{
		unread: 3,
		page: []notification.Event{
			evt("A", "alice", notification.KindLike, base.Add(3*time.Second)),
			evt("B", "alice", notification.KindLike, base.Add(2*time.Second)),
			evt("C", "bob", notification.KindComment, base.Add(1*time.Second)),
		},
	}
	sink := &fakeSink{}
	c := startEngine(t, provider, client, sink)

	provider.emit(&identity.Identity{UserID: "u1", Token: "tok-1"})

	waitFor(t, func() bool { return c.State() == Live }, "engine should go live")
	assert.Equal(t, []string{"notifications/u1"}, client.subscribedTopics())
	assert.Equal(t, 3, c.UnreadCount())
	assert.Len(t, c.Groups(), 2)
	// Baseline loads never alert: the user already knows about these.
	assert.Equal(t, 0, sink.count())

	client.mu.Lock()
	tokens := append([]string(nil), client.tokens...)
	client.mu.Unlock()
	assert.Equal(t, []string{"tok-1"}, tokens, "bound identity's token is installed before baseline fetches")
}

func TestController_PushMergesWithBaseline(t *testing.T) {
	base := time.Now()
	provider := newFakeProvider()
	client := &fakeClient{
		unread: 3,
		page: []notification.Event{
			evt("A", "alice", notification.KindLike, base.Add(3*time.Second)),
			evt("B", "bob", notification.KindComment, base.Add(2*time.Second)),
			evt("C", "carol", notification.KindFollow, base.Add(1*time.Second)),
		},
	}
	sink := &fakeSink{}
	c := startEngine(t, provider, client, sink)

	provider.emit(&identity.Identity{UserID: "u1", Token: "tok"})
	waitFor(t, func() bool { return c.State() == Live }, "engine should go live")

	d := evt("D", "dave", notification.KindMessage, base.Add(4*time.Second))
	client.lastStream().events <- d

	waitFor(t, func() bool { return c.UnreadCount() == 4 }, "push should increment the counter")
	groups := c.Groups()
	require.Len(t, groups, 4)
	assert.Equal(t, "D", groups[0].Latest.ID, "pushed event sorts newest first")
	waitFor(t, func() bool { return sink.count() == 1 }, "exactly one alert per pushed event")

	// A re-delivery of D is absorbed silently: no list change, no counter
	// bump, no second alert.
	client.lastStream().events <- d
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 4, c.UnreadCount())
	assert.Len(t, c.Groups(), 4)
	assert.Equal(t, 1, sink.count())

	// Mark the pushed event read: counter back to 3 and its group reports
	// no unread.
	require.NoError(t, c.MarkAsRead(context.Background(), "D"))
	assert.Equal(t, 3, c.UnreadCount())
	assert.False(t, c.Groups()[0].HasUnread)
	assert.Equal(t, []string{"D"}, client.acked())
}

func TestController_SignOutClearsEverything(t *testing.T) {
	base := time.Now()
	provider := newFakeProvider()
	client := &fakeClient{
		unread: 2,
		page: []notification.Event{
			evt("A", "alice", notification.KindLike, base),
		},
	}
	c := startEngine(t, provider, client, &fakeSink{})

	provider.emit(&identity.Identity{UserID: "u1", Token: "tok"})
	waitFor(t, func() bool { return c.State() == Live }, "engine should go live")
	stream := client.lastStream()

	provider.emit(nil)

	waitFor(t, func() bool { return c.State() == Unbound }, "engine should unbind")
	assert.True(t, stream.closed(), "subscription must be torn down on unbind")
	assert.Empty(t, c.Groups())
	assert.Equal(t, 0, c.UnreadCount())

	// Marking read while unbound is a no-op, not an error.
	require.NoError(t, c.MarkAsRead(context.Background(), "A"))
	assert.Empty(t, client.acked())
}

func TestController_AccountSwitchTearsDownBeforeSetup(t *testing.T) {
	base := time.Now()
	provider := newFakeProvider()
	client := &fakeClient{
		unread: 1,
		page: []notification.Event{
			evt("A", "alice", notification.KindLike, base),
		},
	}
	c := startEngine(t, provider, client, &fakeSink{})

	provider.emit(&identity.Identity{UserID: "u1", Token: "tok-1"})
	waitFor(t, func() bool { return c.State() == Live }, "first session should go live")
	firstStream := client.lastStream()

	provider.emit(&identity.Identity{UserID: "u2", Token: "tok-2"})

	waitFor(t, func() bool {
		topics := client.subscribedTopics()
		return len(topics) == 2 && topics[1] == "notifications/u2"
	}, "second session should subscribe to the new identity's topic")
	assert.True(t, firstStream.closed(), "old subscription closes before the new one opens")
	waitFor(t, func() bool { return c.State() == Live }, "second session should go live")
}

func TestController_BaselineFailureIsNonFatal(t *testing.T) {
	provider := newFakeProvider()
	client := &fakeClient{
		countErr: errors.New("boom"),
		pageErr:  errors.New("boom"),
	}
	sink := &fakeSink{}
	c := startEngine(t, provider, client, sink)

	provider.emit(&identity.Identity{UserID: "u1", Token: "tok"})

	// Both baseline fetches failed, yet the session still goes live so
	// push delivery keeps working; the failures surface as alerts.
	waitFor(t, func() bool { return c.State() == Live }, "engine should still go live")
	assert.Equal(t, 2, sink.count())
	assert.Equal(t, 0, c.UnreadCount())
	assert.Empty(t, c.Groups())
}

func TestController_BindsIdentityPresentAtStart(t *testing.T) {
	provider := newFakeProvider()
	provider.mu.Lock()
	provider.current = &identity.Identity{UserID: "u1", Token: "tok"}
	provider.mu.Unlock()

	client := &fakeClient{unread: 1}
	c := startEngine(t, provider, client, &fakeSink{})

	waitFor(t, func() bool { return c.State() == Live }, "already-present identity binds on start")
	assert.Equal(t, []string{"notifications/u1"}, client.subscribedTopics())
}

// TestSession_DiscardsPushAfterStop exercises the accepting flag directly:
// a delivery racing a slow teardown must be discarded, not applied.
func TestSession_DiscardsPushAfterStop(t *testing.T) {
	provider := newFakeProvider()
	client := &fakeClient{}
	c := New(provider, client, &fakeSink{}, Config{})

	s := newSession(c, identity.Identity{UserID: "u1"})
	s.accepting.Store(false)

	s.handlePush(evt("X", "alice", notification.KindMessage, time.Now()))

	assert.Equal(t, 0, c.UnreadCount(), "discarded push must not touch the store")
	assert.Empty(t, c.Groups())
}

func TestController_ResolvesRelativeAvatarRefs(t *testing.T) {
	base := time.Now()
	e := evt("A", "alice", notification.KindLike, base)
	e.SenderAvatarRef = "/avatars/alice.png"

	provider := newFakeProvider()
	client := &fakeClient{unread: 1, page: []notification.Event{e}}
	c := New(provider, client, &fakeSink{}, Config{
		AvatarBaseURL: "https://cdn.example.com",
	})
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { c.Close() })

	provider.emit(&identity.Identity{UserID: "u1", Token: "tok"})
	waitFor(t, func() bool { return len(c.Groups()) == 1 }, "baseline should load")

	assert.Equal(t, "https://cdn.example.com/avatars/alice.png",
		c.Groups()[0].Latest.SenderAvatarRef)
}

func TestController_CloseIsIdempotent(t *testing.T) {
	provider := newFakeProvider()
	c := New(provider, &fakeClient{}, &fakeSink{}, Config{})
	require.NoError(t, c.Start(context.Background()))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
