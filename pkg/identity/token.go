package identity

import (
	"errors"
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoUserID is returned when a session token carries no usable user id.
var ErrNoUserID = errors.New("session token has no user id claim")

// SessionClaims are the claims this engine reads from a session token.
// The token is issued and verified by the backend; the client only needs
// the identity it names, so parsing here is unverified by design.
type SessionClaims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenProvider implements Provider on top of JWT session tokens. Callers
// feed it the token obtained at login via SetToken and clear it with
// SignOut; the user id is derived from the token's claims.
type TokenProvider struct {
	mu      sync.Mutex
	current *Identity
	changes chan *Identity
}

// NewTokenProvider creates a TokenProvider with no identity bound.
func NewTokenProvider() *TokenProvider {
	return &TokenProvider{
		changes: make(chan *Identity, 1),
	}
}

// SetToken parses the session token and publishes the identity it names.
// Setting a token for a different user while one is bound is an account
// switch and is published as a single change.
func (p *TokenProvider) SetToken(token string) error {
	claims := &SessionClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("failed to parse session token: %w", err)
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return ErrNoUserID
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	id := &Identity{UserID: userID, Token: token}
	p.current = id
	p.publishLocked(id)
	return nil
}

// SignOut clears the bound identity and publishes the absence.
func (p *TokenProvider) SignOut() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return
	}
	p.current = nil
	p.publishLocked(nil)
}

// Current returns the identity bound right now, if any.
func (p *TokenProvider) Current() (Identity, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.current == nil {
		return Identity{}, false
	}
	return *p.current, true
}

// Changes returns the identity change channel.
func (p *TokenProvider) Changes() <-chan *Identity {
	return p.changes
}

// publishLocked pushes a change, displacing an undelivered older one so the
// consumer always observes the latest state. Caller holds p.mu.
func (p *TokenProvider) publishLocked(id *Identity) {
	select {
	case p.changes <- id:
	default:
		select {
		case <-p.changes:
		default:
		}
		p.changes <- id
	}
}

// Verify that TokenProvider implements the Provider interface at compile time
var _ Provider = (*TokenProvider)(nil)
