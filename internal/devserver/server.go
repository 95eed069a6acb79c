package devserver

import (
	"crypto/rand"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/socialmesh/notifyhub-go/pkg/notification"
	"github.com/socialmesh/notifyhub-go/pkg/transport"
)

// Server is the in-memory notification hub.
type Server struct {
	config Config
	auth   *JWTAuth
	hub    *Hub
	logger *slog.Logger

	mu     sync.Mutex
	byUser map[string][]notification.Event
}

// NewServer creates a devserver with the given config.
func NewServer(config Config, logger *slog.Logger) *Server {
	config.SetDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		config: config,
		auth:   NewJWTAuth(config.JWTSecret, config.TokenTTL),
		hub:    NewHub(config.SubscriberBuf),
		logger: logger,
		byUser: make(map[string][]notification.Event),
	}
}

// Router builds the HTTP API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Post("/api/v1/auth/login", s.handleLogin)
	r.Get("/api/v1/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/api/v1/users/{userID}/notifications", s.handleListNotifications)
		r.Get("/api/v1/users/{userID}/notifications/unread-count", s.handleUnreadCount)
		r.Post("/api/v1/users/{userID}/notifications/{eventID}/read", s.handleMarkRead)
		r.Post("/api/v1/notifications", s.handlePublish)
		r.Get("/api/v1/notifications/stream", s.handleStream)
	})

	return r
}

// requireAuth validates the bearer token. The devserver does not enforce
// that the token's user matches the requested resource; it exists to
// exercise the client's auth plumbing, not to guard real data.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			s.writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if _, err := s.auth.ValidateToken(strings.TrimPrefix(header, "Bearer ")); err != nil {
			s.writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req transport.AuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		s.writeError(w, http.StatusBadRequest, "userId is required")
		return
	}

	token, expiresAt, err := s.auth.GenerateToken(req.UserID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	s.writeJSON(w, http.StatusOK, transport.AuthResponse{
		Token:     token,
		UserID:    req.UserID,
		ExpiresAt: expiresAt,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	topics, streams := s.hub.Stats()
	s.writeJSON(w, http.StatusOK, transport.HealthResponse{
		Status:  "healthy",
		Topics:  topics,
		Streams: streams,
	})
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	s.mu.Lock()
	events := s.byUser[userID]
	page := make([]notification.Event, len(events))
	copy(page, events)
	s.mu.Unlock()

	sort.SliceStable(page, func(i, j int) bool {
		return page[i].CreatedAt.After(page[j].CreatedAt)
	})
	if len(page) > limit {
		page = page[:limit]
	}

	s.writeJSON(w, http.StatusOK, transport.EventsResponse{Events: page})
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	s.mu.Lock()
	count := 0
	for _, evt := range s.byUser[userID] {
		if !evt.Read {
			count++
		}
	}
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, transport.UnreadCountResponse{Count: count})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	eventID := chi.URLParam(r, "eventID")

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.byUser[userID] {
		if s.byUser[userID][i].ID == eventID {
			s.byUser[userID][i].Read = true
			s.writeJSON(w, http.StatusOK, transport.AckResponse{ID: eventID, Read: true})
			return
		}
	}
	s.writeError(w, http.StatusNotFound, "notification not found")
}

// handlePublish stores an event for the topic's user and fans it out to
// live streams. The server assigns the id (ULIDs sort by creation time)
// and the timestamp when the publisher leaves them empty.
func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	var req transport.PublishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	userID, ok := strings.CutPrefix(req.Topic, "notifications/")
	if !ok || userID == "" {
		s.writeError(w, http.StatusBadRequest, "topic must be notifications/{userId}")
		return
	}

	evt := req.Event
	if evt.ID == "" {
		evt.ID = ulid.MustNew(ulid.Now(), rand.Reader).String()
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = time.Now().UTC()
	}
	evt.Read = false

	s.mu.Lock()
	s.byUser[userID] = append(s.byUser[userID], evt)
	s.mu.Unlock()

	s.hub.Publish(req.Topic, evt)
	s.logger.Info("published notification",
		"topic", req.Topic, "event_id", evt.ID, "kind", evt.Kind)

	s.writeJSON(w, http.StatusCreated, transport.PublishResponse{
		ID:        evt.ID,
		Topic:     req.Topic,
		CreatedAt: evt.CreatedAt,
	})
}

// handleStream serves the per-topic SSE stream with periodic keepalives.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		s.writeError(w, http.StatusBadRequest, "topic is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sub, unsubscribe := s.hub.Subscribe(topic)
	defer unsubscribe()

	keepalive := time.NewTicker(s.config.KeepAlive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-sub.events:
			if !ok {
				return
			}
			payload, err := json.Marshal(evt)
			if err != nil {
				s.logger.Warn("failed to marshal event for stream", "error", err)
				continue
			}
			if _, err := w.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case <-keepalive.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, transport.ErrorResponse{Error: message})
}
