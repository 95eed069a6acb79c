// Package reconcile applies "mark as read" optimistically and reconciles
// it against the backend. The local transition happens first so the UI
// reflects the read immediately; a failed acknowledgement is surfaced but
// never rolled back — the next baseline fetch is the recovery path.
// Reverting would flicker state the user already saw settle.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/socialmesh/notifyhub-go/internal/store"
	"github.com/socialmesh/notifyhub-go/pkg/alert"
	"github.com/socialmesh/notifyhub-go/pkg/notification"
	"github.com/socialmesh/notifyhub-go/pkg/transport"
)

// Reconciler performs optimistic read-state mutation plus remote
// acknowledgement for the currently bound user.
type Reconciler struct {
	store  *store.Store
	client transport.Client
	sink   alert.Sink
	logger *slog.Logger
}

// New creates a Reconciler.
func New(st *store.Store, client transport.Client, sink alert.Sink, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: st, client: client, sink: sink, logger: logger}
}

// MarkAsRead marks one event read locally, then acknowledges it remotely.
// Absent or already-read ids are no-ops and cause no network call. An
// acknowledgement failure keeps the local state, logs, and surfaces an
// alert; the error is also returned for callers that want it.
func (r *Reconciler) MarkAsRead(ctx context.Context, userID, eventID string) error {
	if !r.store.MarkRead(eventID) {
		return nil
	}

	if err := r.client.AcknowledgeRead(ctx, userID, eventID); err != nil {
		r.logger.Warn("read acknowledgement failed, keeping local state",
			"event_id", eventID, "error", err)
		r.sink.Show("Could not sync read state, will retry on next refresh", alert.Error)
		return fmt.Errorf("failed to acknowledge read for %s: %w", eventID, err)
	}

	return nil
}

// MarkGroupAsRead applies MarkAsRead to every unread id in the group, one
// id at a time, so a partial failure affects only the failed ids. The
// first error is returned after the whole batch has been attempted.
func (r *Reconciler) MarkGroupAsRead(ctx context.Context, userID string, group notification.Group) error {
	var firstErr error
	for _, id := range group.UnreadIDs {
		if err := r.MarkAsRead(ctx, userID, id); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
