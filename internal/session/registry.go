/*
File: internal/session/registry.go
Description: The live session set, keyed by token. Pure bookkeeping; the
cross-cutting teardown on removal is driven by the engine, which is the
single caller of Remove.
*/
// Package session holds the per-connection state of the relay.
package session

import (
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

// Session is the live state of one connected peer. Invariants: exactly one
// Session exists per active token; Subscribers is non-nil only in host
// mode; SubscribedTo is non-empty only in guest mode.
type Session struct {
	Token          relay.Token
	RemoteAddress  string
	ConnectedAt    time.Time
	LastActivityAt time.Time

	Mode         relay.Mode
	SubscribedTo relay.Token
	Subscribers  mapset.Set[relay.Token]
	Visibility   relay.Visibility

	Transport relay.Transport
}

// SubscriberCount returns the size of the host's subscriber set, zero for
// non-hosts.
func (s *Session) SubscriberCount() int {
	if s.Subscribers == nil {
		return 0
	}
	return s.Subscribers.Cardinality()
}

// Registry owns the session map. It is not safe for concurrent use; all
// access is serialized behind the engine's mutex.
type Registry struct {
	sessions map[relay.Token]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[relay.Token]*Session)}
}

// Create registers a new session for token. The caller guarantees the token
// is freshly allocated or reclaimed, so no session can already exist.
func (r *Registry) Create(token relay.Token, address string, transport relay.Transport, now time.Time) *Session {
	s := &Session{
		Token:          token,
		RemoteAddress:  address,
		ConnectedAt:    now,
		LastActivityAt: now,
		Mode:           relay.ModeNone,
		Transport:      transport,
	}
	r.sessions[token] = s
	return s
}

// Get returns the session for token, or nil.
func (r *Registry) Get(token relay.Token) *Session {
	return r.sessions[token]
}

// Touch updates the session's last-activity time. Returns false for an
// unknown token.
func (r *Registry) Touch(token relay.Token, now time.Time) bool {
	s, ok := r.sessions[token]
	if !ok {
		return false
	}
	s.LastActivityAt = now
	return true
}

// Remove deletes and returns the session for token, or nil if absent.
// Only the engine's removeSession path may call this: it is the one place
// that triggers pairing notification, subscription teardown, and public
// host removal before the session is discarded.
func (r *Registry) Remove(token relay.Token) *Session {
	s, ok := r.sessions[token]
	if !ok {
		return nil
	}
	delete(r.sessions, token)
	return s
}

// Len returns the number of live sessions.
func (r *Registry) Len() int { return len(r.sessions) }

// Each calls fn for every live session. fn must not create or remove
// sessions.
func (r *Registry) Each(fn func(*Session)) {
	for _, s := range r.sessions {
		fn(s)
	}
}

// InactiveTokens returns the tokens of sessions whose last activity is
// older than window at time now.
func (r *Registry) InactiveTokens(now time.Time, window time.Duration) []relay.Token {
	var stale []relay.Token
	for token, s := range r.sessions {
		if now.Sub(s.LastActivityAt) > window {
			stale = append(stale, token)
		}
	}
	return stale
}
