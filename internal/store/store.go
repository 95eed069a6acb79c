// Package store holds the ordered, capped list of known notification
// events and the authoritative unread counter. It is the single source of
// truth for every other component: nothing else in the engine keeps
// mutable shared state.
package store

import (
	"sort"
	"sync"

	"github.com/socialmesh/notifyhub-go/pkg/notification"
)

// DefaultPushCap is the maximum list length kept after a push insertion.
// Baseline pages may be larger and are not truncated.
const DefaultPushCap = 20

// Snapshot is an immutable, internally consistent view of the store. The
// event list and the counter always originate from the same mutation, so
// observers never see them move independently.
type Snapshot struct {
	// Version increases by one on every observable mutation. Projections
	// keyed on it can be memoized cheaply.
	Version uint64

	// Events is the known event list, newest first.
	Events []notification.Event

	// Unread is the unread counter. It is the server-authoritative
	// superset of the unread events in the window, not derived from it.
	Unread int
}

// Store is the notification store. It is safe for concurrent use; every
// mutation is atomic with respect to Snapshot and change notifications.
type Store struct {
	mu       sync.Mutex
	events   []notification.Event
	unread   int
	version  uint64
	pushCap  int
	watchers []chan struct{}
}

// New creates an empty store. pushCap <= 0 selects DefaultPushCap.
func New(pushCap int) *Store {
	if pushCap <= 0 {
		pushCap = DefaultPushCap
	}
	return &Store{pushCap: pushCap}
}

// ReplaceAll swaps the event list wholesale. Used for baseline loads; the
// counter is untouched (the authoritative count arrives separately via
// SetCounter). The input is copied and kept newest first.
func (s *Store) ReplaceAll(events []notification.Event) {
	copied := make([]notification.Event, len(events))
	copy(copied, events)
	sort.SliceStable(copied, func(i, j int) bool {
		return copied[i].CreatedAt.After(copied[j].CreatedAt)
	})

	s.mu.Lock()
	s.events = copied
	s.version++
	s.mu.Unlock()

	s.notify()
}

// Append inserts a pushed event in newest-first position, truncates the
// list to the push cap, and increments the counter by one. An id already
// present in the window makes the whole call a no-op: the list is left
// alone and the counter is not incremented, so the counter keeps meaning
// "genuinely new arrivals". Returns whether the event was inserted.
func (s *Store) Append(evt notification.Event) bool {
	s.mu.Lock()

	for _, existing := range s.events {
		if existing.ID == evt.ID {
			s.mu.Unlock()
			return false
		}
	}

	// Find the first entry older than (or as old as) the new event so the
	// list stays sorted even when pushes arrive out of order.
	pos := len(s.events)
	for i, existing := range s.events {
		if !existing.CreatedAt.After(evt.CreatedAt) {
			pos = i
			break
		}
	}

	s.events = append(s.events, notification.Event{})
	copy(s.events[pos+1:], s.events[pos:])
	s.events[pos] = evt

	if len(s.events) > s.pushCap {
		s.events = s.events[:s.pushCap]
	}

	s.unread++
	s.version++
	s.mu.Unlock()

	s.notify()
	return true
}

// MarkRead flips one event to read and decrements the counter by one,
// floored at zero. Absent or already-read ids are no-ops, not errors.
// Returns whether a read transition actually happened.
func (s *Store) MarkRead(id string) bool {
	s.mu.Lock()

	for i := range s.events {
		if s.events[i].ID != id {
			continue
		}
		if s.events[i].Read {
			s.mu.Unlock()
			return false
		}
		s.events[i].Read = true
		if s.unread > 0 {
			s.unread--
		}
		s.version++
		s.mu.Unlock()

		s.notify()
		return true
	}

	s.mu.Unlock()
	return false
}

// SetCounter applies the server-authoritative unread count from a baseline
// fetch, clamped to be non-negative.
func (s *Store) SetCounter(n int) {
	if n < 0 {
		n = 0
	}

	s.mu.Lock()
	s.unread = n
	s.version++
	s.mu.Unlock()

	s.notify()
}

// Clear empties the list and zeroes the counter. Used on session end.
func (s *Store) Clear() {
	s.mu.Lock()
	s.events = nil
	s.unread = 0
	s.version++
	s.mu.Unlock()

	s.notify()
}

// Snapshot returns a consistent copy of the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := make([]notification.Event, len(s.events))
	copy(events, s.events)
	return Snapshot{Version: s.version, Events: events, Unread: s.unread}
}

// Unread returns the current unread counter.
func (s *Store) Unread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unread
}

// Watch returns a channel that receives a coalescing tick after every
// mutation. Consumers read the state they missed via Snapshot.
func (s *Store) Watch() <-chan struct{} {
	ch := make(chan struct{}, 1)

	s.mu.Lock()
	s.watchers = append(s.watchers, ch)
	s.mu.Unlock()

	return ch
}

// notify ticks every watcher without blocking. A watcher with an
// undelivered tick keeps the single pending tick; it will snapshot the
// newest state when it gets around to reading.
func (s *Store) notify() {
	s.mu.Lock()
	watchers := s.watchers
	s.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
