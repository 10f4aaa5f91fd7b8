// Package relay contains the public domain models, wire protocol, and
// configuration for the relay service. It defines the contract for
// interacting with the service: tokens, session modes, the closed set of
// inbound operations, and every outbound event kind.
package relay

import "time"

// Token is the short, human-typeable identifier of one peer session.
// Tokens are drawn from a 35-symbol alphabet (digits 1-9 and uppercase
// letters; zero and lowercase are excluded to avoid visual ambiguity) and
// are compared as opaque, case-sensitive strings.
type Token string

// Mode is the subscription role of a session.
type Mode string

const (
	// ModeNone is the initial mode of every session.
	ModeNone Mode = "none"
	// ModeHost accepts subscribers and can broadcast to them.
	ModeHost Mode = "host"
	// ModeGuest subscribes to exactly one host.
	ModeGuest Mode = "guest"
)

// Visibility controls whether a host appears in the public host directory.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Transport is the write side of one peer connection. Writes are
// fire-and-forget from the routing logic's point of view: a Send to a dead
// peer returns an error that callers log and skip, never propagate.
type Transport interface {
	// Send serializes event as a single text frame and writes it.
	Send(event any) error
	// Close closes the underlying connection. Idempotent.
	Close() error
}

// Settings holds every tunable of the relay core.
type Settings struct {
	// TokenLength is the initial length of newly allocated tokens. The
	// allocator grows it permanently when the space shows exhaustion.
	TokenLength int
	// TokenMaxAttempts is how many colliding random draws the allocator
	// tolerates before growing the token length.
	TokenMaxAttempts int
	// TokenExpiry is both the grace period before a released token may be
	// reissued and the inactivity window after which a silent session is
	// force-released.
	TokenExpiry time.Duration
	// ChannelCapacity bounds each channel's entry list (FIFO eviction).
	ChannelCapacity int
	// ChannelTTL is the age past which a channel entry is evicted.
	ChannelTTL time.Duration
	// MaxPublicHosts bounds the public host discovery FIFO.
	MaxPublicHosts int
	// SweepInterval is the cadence of the periodic cleanup tick.
	SweepInterval time.Duration
}

// DefaultSettings returns the production defaults.
func DefaultSettings() Settings {
	return Settings{
		TokenLength:      4,
		TokenMaxAttempts: 100,
		TokenExpiry:      10 * time.Minute,
		ChannelCapacity:  100,
		ChannelTTL:       20 * time.Minute,
		MaxPublicHosts:   20,
		SweepInterval:    time.Minute,
	}
}

// SessionInfo is the per-token slice of the diagnostics snapshot.
type SessionInfo struct {
	Address            string    `json:"address"`
	ConnectedAt        time.Time `json:"connectedAt"`
	LastActivityAt     time.Time `json:"lastActivity"`
	InactiveForMinutes int       `json:"inactiveForMinutes"`
	Mode               Mode      `json:"mode"`
	Subscribers        int       `json:"subscribers,omitempty"`
}

// Stats is the read-only diagnostics snapshot of the whole relay. It is a
// pure query result: producing it has no side effects.
type Stats struct {
	ActiveSessions     int                   `json:"activeSessions"`
	ReleasedTokens     int                   `json:"releasedTokens"`
	CurrentTokenLength int                   `json:"currentTokenLength"`
	Hosts              int                   `json:"hosts"`
	Guests             int                   `json:"guests"`
	TotalSubscribers   int                   `json:"totalSubscribers"`
	Channels           int                   `json:"channels"`
	PublicHosts        int                   `json:"publicHosts"`
	Pairs              int                   `json:"pairs"`
	Sessions           map[Token]SessionInfo `json:"sessions"`
}
