// Package provider defines the boundary between the gateway and the
// messaging network implementation.
//
// The gateway never speaks the wire protocol itself. It constructs a
// connection through a Connector, receives connection lifecycle events
// through Hooks, and sends outbound payloads through the returned Handle.
// This abstraction allows switching between a simulated provider and a
// real network binding without touching the session state machine.
package provider

import (
	"context"
	"time"
)

// State represents a connection state reported by a provider.
type State uint8

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Cause classifies why a provider connection closed.
type Cause uint8

const (
	CauseUnknown Cause = iota
	CauseBadCredentials
	CauseLoggedOut
	CauseTransportClosed
	CauseTransportLost
	CauseRestartRequired
	CauseTimedOut
)

// String returns a human-readable name for the disconnect cause.
func (c Cause) String() string {
	switch c {
	case CauseBadCredentials:
		return "bad_credentials"
	case CauseLoggedOut:
		return "logged_out"
	case CauseTransportClosed:
		return "transport_closed"
	case CauseTransportLost:
		return "transport_lost"
	case CauseRestartRequired:
		return "restart_required"
	case CauseTimedOut:
		return "timed_out"
	default:
		return "unknown"
	}
}

// Hooks carries the callbacks a connection invokes as it progresses.
// All hooks are optional; nil hooks are skipped. Hooks may be invoked
// from provider-owned goroutines and must not block for long.
type Hooks struct {
	// OnState reports connection state transitions. The cause is only
	// meaningful when state is StateClosed.
	OnState func(state State, cause Cause)

	// OnLoginCode reports a freshly issued one-time pairing code that
	// must be presented to the account holder.
	OnLoginCode func(code string)

	// OnCredentials reports that the provider persisted updated
	// credential material to the configured directory.
	OnCredentials func()
}

// Config contains per-connection configuration passed to a Connector.
type Config struct {
	// CredsDir is the directory holding this session's credential
	// material. The provider owns its contents.
	CredsDir string

	// JIDDomain is the domain suffix of canonical recipient addresses.
	JIDDomain string

	// QueryTimeout bounds individual provider operations such as send.
	QueryTimeout time.Duration

	// KeepAliveInterval is the transport keep-alive period.
	KeepAliveInterval time.Duration

	// MarkOnline announces presence once the connection opens.
	MarkOnline bool
}

// DefaultConfig returns a Config with the standard operational values.
func DefaultConfig() Config {
	return Config{
		JIDDomain:         "s.whatsapp.net",
		QueryTimeout:      60 * time.Second,
		KeepAliveInterval: 30 * time.Second,
		MarkOnline:        true,
	}
}

// Receipt is the provider's acknowledgement of an accepted outbound message.
type Receipt struct {
	MessageID string
	Timestamp time.Time
}

// Media describes an outbound media payload referenced by local path.
type Media struct {
	Path    string
	Kind    string
	Caption string
}

// Handle is a live provider connection bound to one session.
type Handle interface {
	// SendText delivers a text message to a canonical recipient address.
	SendText(ctx context.Context, to string, text string) (*Receipt, error)

	// SendMedia delivers a media payload to a canonical recipient address.
	SendMedia(ctx context.Context, to string, media Media) (*Receipt, error)

	// Identity returns the account identifier once the connection has
	// authenticated, or an empty string before that.
	Identity() string

	// Logout invalidates the stored credentials on the remote side.
	Logout(ctx context.Context) error

	// Close tears down the connection. It is safe to call more than once.
	Close() error
}

// Connector constructs provider connections.
type Connector interface {
	// Connect opens a connection using the credential material in
	// cfg.CredsDir, registering hooks before any event can fire. The
	// connection itself proceeds asynchronously; Connect returns as soon
	// as the subscription is established.
	Connect(cfg Config, hooks Hooks) (Handle, error)
}
