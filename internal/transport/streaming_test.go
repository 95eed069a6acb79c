package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		assert.Equal(t, "notifications/u1", r.URL.Query().Get("topic"))

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for _, line := range lines {
			fmt.Fprintf(w, "%s\n\n", line)
			flusher.Flush()
		}
		<-r.Context().Done()
	}))
}

func TestStream_DeliversEvents(t *testing.T) {
	server := sseServer(t, []string{
		`data: {"id":"a","kind":"LIKE","senderHandle":"alice","createdAt":"2026-08-30T12:00:00Z"}`,
		": keepalive",
		`data: {"id":"b","kind":"FOLLOW","senderHandle":"bob","createdAt":"2026-08-30T12:00:01Z"}`,
	})
	defer server.Close()

	client, err := NewClient(Config{ServerURL: server.URL})
	require.NoError(t, err)
	client.SetToken("tok")

	stream, err := client.Subscribe(context.Background(), "notifications/u1")
	require.NoError(t, err)
	defer stream.Close()

	var got []string
	timeout := time.After(2 * time.Second)
	for len(got) < 2 {
		select {
		case evt := <-stream.Events():
			got = append(got, evt.ID)
		case <-timeout:
			t.Fatalf("Timed out waiting for events, got %v", got)
		}
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

// TestStream_DropsMalformedPayloads verifies bad payloads are skipped with
// a warning while the stream keeps delivering.
func TestStream_DropsMalformedPayloads(t *testing.T) {
	server := sseServer(t, []string{
		`data: {not json`,
		`data: {"kind":"LIKE","createdAt":"2026-08-30T12:00:00Z"}`,
		`data: {"id":"ok","kind":"LIKE","senderHandle":"alice","createdAt":"2026-08-30T12:00:00Z"}`,
	})
	defer server.Close()

	client, err := NewClient(Config{ServerURL: server.URL})
	require.NoError(t, err)

	stream, err := client.Subscribe(context.Background(), "notifications/u1")
	require.NoError(t, err)
	defer stream.Close()

	select {
	case evt := <-stream.Events():
		assert.Equal(t, "ok", evt.ID, "only the well-formed event is delivered")
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for the well-formed event")
	}
}

func TestStream_CloseIsIdempotent(t *testing.T) {
	server := sseServer(t, nil)
	defer server.Close()

	client, err := NewClient(Config{ServerURL: server.URL})
	require.NoError(t, err)

	stream, err := client.Subscribe(context.Background(), "notifications/u1")
	require.NoError(t, err)

	require.NoError(t, stream.Close())
	require.NoError(t, stream.Close())

	select {
	case <-stream.Done():
	default:
		t.Fatal("Expected Done to be closed after Close")
	}

	// The events channel is closed on teardown; reads drain immediately.
	_, ok := <-stream.Events()
	assert.False(t, ok)
}

func TestSubscribe_RequiresTopic(t *testing.T) {
	client, err := NewClient(Config{ServerURL: "http://localhost:8082"})
	require.NoError(t, err)

	_, err = client.Subscribe(context.Background(), "")
	assert.Error(t, err)
}
