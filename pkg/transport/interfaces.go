package transport

import (
	"context"

	"github.com/socialmesh/notifyhub-go/pkg/notification"
)

// Stream is a live push channel for one topic. Delivery is at-least-once
// with no ordering guarantee relative to baseline fetches; consumers must
// tolerate duplicates.
type Stream interface {
	// Events returns the channel delivering pushed events.
	Events() <-chan notification.Event

	// Errors returns the channel delivering non-fatal stream errors
	// (parse failures, reconnect attempts).
	Errors() <-chan error

	// Done returns a channel closed when the stream has fully stopped.
	Done() <-chan struct{}

	// Close stops the stream. Closing an already-closed stream is a no-op.
	Close() error
}

// Client is the engine's view of the notification backend: baseline
// fetches, read acknowledgements, and per-topic push subscriptions.
// Retry and backoff policy live behind this interface, not in the engine.
type Client interface {
	// FetchEvents returns the first page of the user's notifications,
	// newest first. The page may exceed the store's push cap.
	FetchEvents(ctx context.Context, userID string, limit int) ([]notification.Event, error)

	// FetchUnreadCount returns the server-authoritative unread count.
	FetchUnreadCount(ctx context.Context, userID string) (int, error)

	// AcknowledgeRead persists a single read transition.
	AcknowledgeRead(ctx context.Context, userID, eventID string) error

	// Subscribe opens the push channel for a topic. The returned stream
	// stays open until Close is called or ctx is cancelled.
	Subscribe(ctx context.Context, topic string) (Stream, error)
}

// TokenSetter is implemented by clients that authenticate with a session
// token. The binding controller installs the bound identity's token before
// issuing baseline fetches.
type TokenSetter interface {
	SetToken(token string)
}

// Topic returns the per-user push topic key.
func Topic(userID string) string {
	return "notifications/" + userID
}
