package devserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialmesh/notifyhub-go/pkg/notification"
	"github.com/socialmesh/notifyhub-go/pkg/transport"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server, string) {
	t.Helper()
	s := NewServer(Config{JWTSecret: "test-secret"}, nil)
	ts := httptest.NewServer(s.Router())
	t.Cleanup(ts.Close)

	token := login(t, ts, "u1")
	return s, ts, token
}

func login(t *testing.T, ts *httptest.Server, userID string) string {
	t.Helper()
	body, _ := json.Marshal(transport.AuthRequest{UserID: userID})
	resp, err := http.Post(ts.URL+"/api/v1/auth/login", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var auth transport.AuthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&auth))
	require.NotEmpty(t, auth.Token)
	return auth.Token
}

func doJSON(t *testing.T, method, url, token string, reqBody, respBody interface{}) int {
	t.Helper()
	var bodyReader *bytes.Reader
	if reqBody != nil {
		raw, err := json.Marshal(reqBody)
		require.NoError(t, err)
		bodyReader = bytes.NewReader(raw)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if respBody != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(respBody))
	}
	return resp.StatusCode
}

func TestServer_RequiresAuth(t *testing.T) {
	_, ts, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/api/v1/users/u1/notifications")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_PublishListAndCount(t *testing.T) {
	_, ts, token := newTestServer(t)

	var pub transport.PublishResponse
	status := doJSON(t, http.MethodPost, ts.URL+"/api/v1/notifications", token, transport.PublishRequest{
		Topic: "notifications/u1",
		Event: notification.Event{
			Kind:         notification.KindLike,
			Content:      "alice liked your post",
			SenderHandle: "alice",
		},
	}, &pub)
	require.Equal(t, http.StatusCreated, status)
	assert.NotEmpty(t, pub.ID, "server assigns the event id")
	assert.False(t, pub.CreatedAt.IsZero(), "server assigns the timestamp")

	var page transport.EventsResponse
	status = doJSON(t, http.MethodGet, ts.URL+"/api/v1/users/u1/notifications", token, nil, &page)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, page.Events, 1)
	assert.Equal(t, pub.ID, page.Events[0].ID)

	var count transport.UnreadCountResponse
	status = doJSON(t, http.MethodGet, ts.URL+"/api/v1/users/u1/notifications/unread-count", token, nil, &count)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, count.Count)
}

func TestServer_MarkRead(t *testing.T) {
	_, ts, token := newTestServer(t)

	var pub transport.PublishResponse
	doJSON(t, http.MethodPost, ts.URL+"/api/v1/notifications", token, transport.PublishRequest{
		Topic: "notifications/u1",
		Event: notification.Event{Kind: notification.KindMessage, SenderHandle: "bob"},
	}, &pub)

	var ack transport.AckResponse
	status := doJSON(t, http.MethodPost,
		ts.URL+"/api/v1/users/u1/notifications/"+pub.ID+"/read", token, nil, &ack)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, ack.Read)

	var count transport.UnreadCountResponse
	doJSON(t, http.MethodGet, ts.URL+"/api/v1/users/u1/notifications/unread-count", token, nil, &count)
	assert.Equal(t, 0, count.Count)

	status = doJSON(t, http.MethodPost,
		ts.URL+"/api/v1/users/u1/notifications/missing/read", token, nil, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestServer_RejectsBadTopic(t *testing.T) {
	_, ts, token := newTestServer(t)

	status := doJSON(t, http.MethodPost, ts.URL+"/api/v1/notifications", token, transport.PublishRequest{
		Topic: "wrong/u1",
		Event: notification.Event{Kind: notification.KindLike},
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestServer_ListSortsNewestFirstAndLimits(t *testing.T) {
	s, ts, token := newTestServer(t)

	base := time.Now()
	s.mu.Lock()
	for i := 0; i < 5; i++ {
		s.byUser["u1"] = append(s.byUser["u1"], notification.Event{
			ID:        string(rune('a' + i)),
			Kind:      notification.KindLike,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
	}
	s.mu.Unlock()

	var page transport.EventsResponse
	status := doJSON(t, http.MethodGet, ts.URL+"/api/v1/users/u1/notifications?limit=3", token, nil, &page)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, page.Events, 3)
	assert.Equal(t, "e", page.Events[0].ID)
	assert.Equal(t, "c", page.Events[2].ID)
}

func TestHub_PublishAndSubscribe(t *testing.T) {
	hub := NewHub(4)

	sub, unsubscribe := hub.Subscribe("notifications/u1")
	defer unsubscribe()

	hub.Publish("notifications/u1", notification.Event{ID: "a", Kind: notification.KindLike})
	hub.Publish("notifications/u2", notification.Event{ID: "b", Kind: notification.KindLike})

	select {
	case evt := <-sub.events:
		assert.Equal(t, "a", evt.ID)
	default:
		t.Fatal("Expected subscriber to receive its topic's event")
	}
	select {
	case evt := <-sub.events:
		t.Fatalf("Expected no cross-topic delivery, got %s", evt.ID)
	default:
	}

	topics, streams := hub.Stats()
	assert.Equal(t, 1, topics)
	assert.Equal(t, 1, streams)

	unsubscribe()
	topics, streams = hub.Stats()
	assert.Equal(t, 0, topics)
	assert.Equal(t, 0, streams)
}

// TestHub_DropsSlowSubscribers verifies a full buffer disconnects the
// subscriber instead of blocking the publisher.
func TestHub_DropsSlowSubscribers(t *testing.T) {
	hub := NewHub(1)

	sub, unsubscribe := hub.Subscribe("notifications/u1")
	defer unsubscribe()

	hub.Publish("notifications/u1", notification.Event{ID: "a"})
	hub.Publish("notifications/u1", notification.Event{ID: "b"})

	_, streams := hub.Stats()
	assert.Equal(t, 0, streams, "slow subscriber is dropped")

	// Channel is closed on drop; the buffered event drains first.
	evt, ok := <-sub.events
	assert.True(t, ok)
	assert.Equal(t, "a", evt.ID)
	_, ok = <-sub.events
	assert.False(t, ok)
}
