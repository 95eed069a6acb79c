package identity

// Identity describes the currently authenticated user.
type Identity struct {
	// UserID is the opaque user identifier used to derive the push topic
	// and baseline fetch paths.
	UserID string

	// Token is the session token presented to the transport on every call.
	Token string
}

// Provider exposes "current identity or absent" as a single-valued,
// always-current signal, updated asynchronously on login and logout.
//
// Changes delivers a nil pointer for sign-out and a non-nil pointer for
// sign-in or account switch. The channel is coalescing: if the consumer
// lags, intermediate states may be skipped, but the latest state is always
// delivered. Exactly one consumer is expected (the binding controller).
type Provider interface {
	// Current returns the identity bound right now, if any.
	Current() (Identity, bool)

	// Changes returns the identity change channel.
	Changes() <-chan *Identity
}
