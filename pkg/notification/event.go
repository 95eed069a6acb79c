package notification

import (
	"time"
)

// Kind classifies a notification by the social action that produced it.
// The set is open: servers may introduce new kinds at any time, and
// consumers must degrade gracefully rather than reject them.
type Kind string

const (
	KindLike    Kind = "LIKE"
	KindComment Kind = "COMMENT"
	KindFollow  Kind = "FOLLOW"
	KindMessage Kind = "MESSAGE"
)

// Event is a single server-generated fact about a social action targeting
// the current user. Events are immutable once created; only the Read flag
// changes, and only through the reconciler.
type Event struct {
	// ID is the server-assigned unique identifier for this event.
	ID string `json:"id" validate:"required"`

	// Kind is the social action type. Unrecognized values are kept verbatim.
	Kind Kind `json:"kind" validate:"required"`

	// Content is the server-rendered display text.
	Content string `json:"content"`

	// SenderName and SenderHandle identify the acting user for display.
	SenderName   string `json:"senderName"`
	SenderHandle string `json:"senderHandle"`

	// SenderAvatarRef optionally references the actor's avatar image.
	// It may be absolute or relative; see ResolveAvatarRef.
	SenderAvatarRef string `json:"senderAvatarRef,omitempty"`

	// RelatedID references the subject of the event (post id, chat partner
	// id, ...); its meaning depends on Kind.
	RelatedID string `json:"relatedId,omitempty"`

	// Read reports whether the user has acknowledged this event.
	Read bool `json:"read"`

	// CreatedAt orders events, newest first.
	CreatedAt time.Time `json:"createdAt" validate:"required"`
}

// GroupKey identifies the aggregation bucket an event folds into.
type GroupKey struct {
	SenderHandle string
	Kind         Kind
}

// Key returns the aggregation key for this event.
func (e Event) Key() GroupKey {
	return GroupKey{SenderHandle: e.SenderHandle, Kind: e.Kind}
}

// Group is a derived, display-ready aggregation of events sharing sender
// and kind. Groups are recomputed from store state on every change and hold
// no lifecycle of their own.
type Group struct {
	// Key is the (senderHandle, kind) pair all folded events share.
	Key GroupKey

	// Latest is the most recent event folded into this group.
	Latest Event

	// Count is the number of folded events.
	Count int

	// HasUnread is true if any folded event is unread.
	HasUnread bool

	// UnreadIDs holds the unread event ids in newest-first order.
	UnreadIDs []string

	// Text is the human-readable summary line for this group.
	Text string
}
