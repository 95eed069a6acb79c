// Package engine defines the surface the notification engine exposes to
// UI code: read-only views of the grouped notification list and the unread
// counter, plus the two imperative read-state operations.
package engine

import (
	"context"
	"io"

	"github.com/socialmesh/notifyhub-go/pkg/notification"
)

// Engine is the notification synchronization engine. It binds a live push
// subscription to whichever identity is currently authenticated, merges
// push deltas with periodically fetched baselines into one consistent
// view, and reconciles optimistic read state against the backend.
type Engine interface {
	io.Closer

	// Start begins observing identity changes. It is idempotent.
	Start(ctx context.Context) error

	// Groups returns the current grouped projection, newest first. The
	// returned slice is a snapshot; callers may retain it.
	Groups() []notification.Group

	// UnreadCount returns the current unread counter.
	UnreadCount() int

	// MarkAsRead optimistically marks one event read and acknowledges it
	// remotely. Absent or already-read ids are no-ops.
	MarkAsRead(ctx context.Context, eventID string) error

	// MarkGroupAsRead marks every unread event in the group read, one id
	// at a time so a partial failure affects only the failed id.
	MarkGroupAsRead(ctx context.Context, group notification.Group) error

	// Watch returns a channel that receives a tick after every observable
	// change to the group list or counter. Ticks are coalescing.
	Watch() <-chan struct{}
}
