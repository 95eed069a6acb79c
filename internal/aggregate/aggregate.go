// Package aggregate derives the display-ready grouped projection from raw
// store state. It is a pure function of the event list: no state survives
// between calls, and recomputation is O(n) over the capped window.
package aggregate

import (
	"fmt"

	"github.com/socialmesh/notifyhub-go/pkg/notification"
)

// Groups folds events into display groups keyed by (senderHandle, kind).
// The input must be newest first; a group's position in the output is the
// position of its most recent event, Latest is the first event seen for
// the key, and UnreadIDs preserves encounter order.
func Groups(events []notification.Event) []notification.Group {
	byKey := make(map[notification.GroupKey]int, len(events))
	groups := make([]notification.Group, 0, len(events))

	for _, evt := range events {
		key := evt.Key()
		idx, seen := byKey[key]
		if !seen {
			idx = len(groups)
			byKey[key] = idx
			groups = append(groups, notification.Group{Key: key, Latest: evt})
		}

		g := &groups[idx]
		g.Count++
		if !evt.Read {
			g.HasUnread = true
			g.UnreadIDs = append(g.UnreadIDs, evt.ID)
		}
	}

	for i := range groups {
		groups[i].Text = displayText(groups[i])
	}

	return groups
}

// displayText renders the summary line for a group. The phrasing per kind
// is fixed policy; a kind this build does not know falls back to the
// server-rendered content verbatim so new kinds degrade instead of
// breaking the view.
func displayText(g notification.Group) string {
	name := g.Latest.SenderName
	if name == "" {
		name = g.Latest.SenderHandle
	}

	switch g.Key.Kind {
	case notification.KindFollow:
		return fmt.Sprintf("%s started following you", name)
	case notification.KindMessage:
		if g.Count == 1 {
			return fmt.Sprintf("%s sent you a message", name)
		}
		return fmt.Sprintf("%s sent you %d messages", name, g.Count)
	case notification.KindLike:
		if g.Count == 1 {
			return fmt.Sprintf("%s liked your post", name)
		}
		return fmt.Sprintf("%s liked %d of your posts", name, g.Count)
	case notification.KindComment:
		if g.Count == 1 {
			return fmt.Sprintf("%s commented on your post", name)
		}
		return fmt.Sprintf("%s commented on %d of your posts", name, g.Count)
	default:
		return g.Latest.Content
	}
}
