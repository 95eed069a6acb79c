package devserver

import (
	"sync"

	"github.com/google/uuid"

	"github.com/socialmesh/notifyhub-go/pkg/notification"
)

// subscriber is one open SSE connection on a topic.
type subscriber struct {
	id     string
	topic  string
	events chan notification.Event
}

// Hub fans published events out to the subscribers of their topic.
type Hub struct {
	mu      sync.Mutex
	byTopic map[string]map[string]*subscriber
	buf     int
}

// NewHub creates an empty hub. buf is the per-subscriber channel size.
func NewHub(buf int) *Hub {
	if buf <= 0 {
		buf = 64
	}
	return &Hub{
		byTopic: make(map[string]map[string]*subscriber),
		buf:     buf,
	}
}

// Subscribe registers a new subscriber on a topic and returns it together
// with an unsubscribe func. The handle id is informational (logs, stats).
func (h *Hub) Subscribe(topic string) (*subscriber, func()) {
	sub := &subscriber{
		id:     uuid.NewString(),
		topic:  topic,
		events: make(chan notification.Event, h.buf),
	}

	h.mu.Lock()
	set, ok := h.byTopic[topic]
	if !ok {
		set = make(map[string]*subscriber)
		h.byTopic[topic] = set
	}
	set[sub.id] = sub
	h.mu.Unlock()

	return sub, func() { h.remove(sub) }
}

// Publish delivers an event to every subscriber of the topic. Slow
// subscribers with a full buffer are dropped rather than blocking the
// publisher.
func (h *Hub) Publish(topic string, evt notification.Event) {
	h.mu.Lock()
	var dropped []*subscriber
	for _, sub := range h.byTopic[topic] {
		select {
		case sub.events <- evt:
		default:
			dropped = append(dropped, sub)
		}
	}
	for _, sub := range dropped {
		h.removeLocked(sub)
	}
	h.mu.Unlock()
}

// Stats returns the number of topics and open subscriptions.
func (h *Hub) Stats() (topics, streams int) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, set := range h.byTopic {
		streams += len(set)
	}
	return len(h.byTopic), streams
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	h.removeLocked(sub)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(sub *subscriber) {
	set, ok := h.byTopic[sub.topic]
	if !ok {
		return
	}
	if _, exists := set[sub.id]; !exists {
		return
	}
	delete(set, sub.id)
	close(sub.events)
	if len(set) == 0 {
		delete(h.byTopic, sub.topic)
	}
}
