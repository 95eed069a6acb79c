// Package transport implements the backend client over HTTP and
// Server-Sent Events: baseline fetches, read acknowledgements, and the
// per-topic push stream.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/socialmesh/notifyhub-go/pkg/notification"
	"github.com/socialmesh/notifyhub-go/pkg/transport"
)

// Config holds client configuration.
type Config struct {
	// ServerURL is the base URL of the notification API.
	ServerURL string

	// Timeout for baseline and acknowledgement requests. The streaming
	// connection uses its own client without a timeout.
	Timeout time.Duration

	// ReconnectDelay between streaming reconnect attempts.
	ReconnectDelay time.Duration

	// StreamBufferSize for the push event channel.
	StreamBufferSize int

	// Logger for dropped payload warnings. Defaults to slog.Default().
	Logger *slog.Logger
}

// SetDefaults sets reasonable default values for the config.
func (c *Config) SetDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = 2 * time.Second
	}
	if c.StreamBufferSize == 0 {
		c.StreamBufferSize = 100
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Client is the HTTP implementation of transport.Client.
type Client struct {
	config       Config
	httpClient   *http.Client
	streamClient *http.Client
	baseURL      *url.URL
	token        string
}

// NewClient creates a notification API client.
func NewClient(config Config) (*Client, error) {
	config.SetDefaults()

	if config.ServerURL == "" {
		return nil, fmt.Errorf("ServerURL is required")
	}
	baseURL, err := url.Parse(config.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ServerURL: %w", err)
	}

	return &Client{
		config:       config,
		httpClient:   &http.Client{Timeout: config.Timeout},
		streamClient: &http.Client{},
		baseURL:      baseURL,
	}, nil
}

// Login authenticates against the backend and stores the session token.
func (c *Client) Login(ctx context.Context, userID string) (*transport.AuthResponse, error) {
	var resp transport.AuthResponse
	err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login",
		transport.AuthRequest{UserID: userID}, &resp, false)
	if err != nil {
		return nil, fmt.Errorf("authentication failed: %w", err)
	}
	c.token = resp.Token
	return &resp, nil
}

// SetToken installs a session token obtained elsewhere (the identity
// provider hands it over on bind).
func (c *Client) SetToken(token string) {
	c.token = token
}

// FetchEvents returns the first page of the user's notifications.
func (c *Client) FetchEvents(ctx context.Context, userID string, limit int) ([]notification.Event, error) {
	path := fmt.Sprintf("/api/v1/users/%s/notifications", url.PathEscape(userID))
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", fmt.Sprintf("%d", limit))
	}

	var resp transport.EventsResponse
	if err := c.doRequestWithQuery(ctx, http.MethodGet, path, query, nil, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	return resp.Events, nil
}

// FetchUnreadCount returns the server-authoritative unread count.
func (c *Client) FetchUnreadCount(ctx context.Context, userID string) (int, error) {
	path := fmt.Sprintf("/api/v1/users/%s/notifications/unread-count", url.PathEscape(userID))

	var resp transport.UnreadCountResponse
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp, true); err != nil {
		return 0, fmt.Errorf("failed to fetch unread count: %w", err)
	}
	return resp.Count, nil
}

// AcknowledgeRead persists one read transition.
func (c *Client) AcknowledgeRead(ctx context.Context, userID, eventID string) error {
	path := fmt.Sprintf("/api/v1/users/%s/notifications/%s/read",
		url.PathEscape(userID), url.PathEscape(eventID))

	var resp transport.AckResponse
	if err := c.doRequest(ctx, http.MethodPost, path, nil, &resp, true); err != nil {
		return fmt.Errorf("failed to acknowledge read: %w", err)
	}
	return nil
}

// Publish delivers an event to a topic. Used by tooling, not the engine.
func (c *Client) Publish(ctx context.Context, topic string, evt notification.Event) (*transport.PublishResponse, error) {
	var resp transport.PublishResponse
	req := transport.PublishRequest{Topic: topic, Event: evt}
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/notifications", req, &resp, true); err != nil {
		return nil, fmt.Errorf("failed to publish event: %w", err)
	}
	return &resp, nil
}

// GetHealth returns the server's health status.
func (c *Client) GetHealth(ctx context.Context) (*transport.HealthResponse, error) {
	var resp transport.HealthResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", nil, &resp, false); err != nil {
		return nil, fmt.Errorf("failed to get health status: %w", err)
	}
	return &resp, nil
}

// doRequestWithQuery performs an HTTP request with query parameters and
// optional authentication.
func (c *Client) doRequestWithQuery(ctx context.Context, method, path string, queryParams url.Values, reqBody, respBody interface{}, requireAuth bool) error {
	u := &url.URL{Path: path}
	if len(queryParams) > 0 {
		u.RawQuery = queryParams.Encode()
	}
	fullURL := c.baseURL.ResolveReference(u)

	var bodyReader io.Reader
	if reqBody != nil {
		jsonBody, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL.String(), bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requireAuth && c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp transport.ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			return fmt.Errorf("API error (%d): %s", resp.StatusCode, string(bodyBytes))
		}
		return fmt.Errorf("API error (%d): %s", resp.StatusCode, errResp.Error)
	}

	if respBody != nil {
		if err := json.Unmarshal(bodyBytes, respBody); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// doRequest performs an HTTP request with optional authentication.
func (c *Client) doRequest(ctx context.Context, method, path string, reqBody, respBody interface{}, requireAuth bool) error {
	return c.doRequestWithQuery(ctx, method, path, nil, reqBody, respBody, requireAuth)
}

// Verify that Client implements the transport interfaces at compile time
var _ transport.Client = (*Client)(nil)
var _ transport.TokenSetter = (*Client)(nil)
