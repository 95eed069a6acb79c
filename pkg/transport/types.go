package transport

import (
	"time"

	"github.com/socialmesh/notifyhub-go/pkg/notification"
)

// AuthRequest is the login request body.
type AuthRequest struct {
	UserID string `json:"userId"`
}

// AuthResponse is the login response carrying the session token.
type AuthResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// EventsResponse is the baseline page of notifications.
type EventsResponse struct {
	Events []notification.Event `json:"events"`
}

// UnreadCountResponse is the authoritative unread counter.
type UnreadCountResponse struct {
	Count int `json:"count"`
}

// AckResponse confirms a read acknowledgement.
type AckResponse struct {
	ID   string `json:"id"`
	Read bool   `json:"read"`
}

// PublishRequest asks the hub to deliver an event to a topic.
type PublishRequest struct {
	Topic string             `json:"topic"`
	Event notification.Event `json:"event"`
}

// PublishResponse reports the stored event's assigned id.
type PublishResponse struct {
	ID        string    `json:"id"`
	Topic     string    `json:"topic"`
	CreatedAt time.Time `json:"createdAt"`
}

// ErrorResponse is the API error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse reports server health.
type HealthResponse struct {
	Status  string `json:"status"`
	Topics  int    `json:"topics"`
	Streams int    `json:"streams"`
}
