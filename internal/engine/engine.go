/*
File: internal/engine/engine.go
Description: The relay core. One mutex serializes every registry, graph,
channel, and pairing mutation, because subscription transitions touch
multiple sessions' state atomically. Inbound frames, connection lifecycle,
and the periodic sweep all funnel through here.
*/
// Package engine composes the relay's components behind a single
// mutual-exclusion domain.
package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tinywideclouds/go-relay-service/internal/channel"
	"github.com/tinywideclouds/go-relay-service/internal/identity"
	"github.com/tinywideclouds/go-relay-service/internal/router"
	"github.com/tinywideclouds/go-relay-service/internal/session"
	"github.com/tinywideclouds/go-relay-service/internal/subscription"
	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

var (
	// ErrTokenActive rejects reconnection with a token that is still in
	// active use.
	ErrTokenActive = errors.New("token already in active use")
	// ErrTokenUnknown rejects reconnection with a token that is unknown,
	// expired, or bound to a different address.
	ErrTokenUnknown = errors.New("token invalid, expired, or address-mismatched")

	errNotHost = errors.New("must be in host mode to broadcast")
)

// Engine owns all relay state. It is created once at process start and
// shared by reference between the connection-accept loop and the periodic
// cleaner; there is no ambient global state.
type Engine struct {
	mu sync.Mutex

	settings relay.Settings
	clock    Clock

	alloc    *identity.Allocator
	sessions *session.Registry
	channels *channel.Directory
	graph    *subscription.Graph
	router   *router.Router

	logger zerolog.Logger
}

// New constructs and wires the relay core.
func New(settings relay.Settings, clock Clock, logger zerolog.Logger) *Engine {
	if clock == nil {
		clock = SystemClock()
	}
	sessions := session.NewRegistry()
	rt := router.NewRouter(sessions, logger.With().Str("component", "Router").Logger())
	return &Engine{
		settings: settings,
		clock:    clock,
		alloc:    identity.NewAllocator(settings.TokenLength, settings.TokenMaxAttempts, settings.TokenExpiry, logger.With().Str("component", "Allocator").Logger()),
		sessions: sessions,
		channels: channel.NewDirectory(settings.ChannelCapacity, settings.ChannelTTL, logger.With().Str("component", "Channels").Logger()),
		graph:    subscription.NewGraph(sessions, rt, settings.MaxPublicHosts, logger.With().Str("component", "Subscriptions").Logger()),
		router:   rt,
		logger:   logger,
	}
}

// Connect registers a new peer connection. With an empty presented token it
// allocates a fresh one and greets the peer with a connected event. With a
// presented token it reclaims the identity only when the token is in its
// release grace period and bound to the same address; an active, unknown,
// expired, or address-mismatched token is an authorization failure and the
// caller must close the connection without a frame.
func (e *Engine) Connect(address string, presented relay.Token, transport relay.Transport) (relay.Token, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()

	if presented != "" {
		if e.alloc.Active(presented) {
			return "", ErrTokenActive
		}
		if !e.alloc.Reclaim(presented, address, now) {
			return "", ErrTokenUnknown
		}
		s := e.sessions.Create(presented, address, transport, now)
		e.router.Deliver(s, relay.ConnectionEstablished{
			Type:      relay.EventConnectionEstablished,
			Token:     presented,
			Timestamp: now,
		})
		e.logger.Info().Str("token", string(presented)).Str("address", address).
			Int("active", e.sessions.Len()).Msg("Peer reconnected.")
		return presented, nil
	}

	token := e.alloc.Allocate(address, now)
	s := e.sessions.Create(token, address, transport, now)
	e.router.Deliver(s, relay.Connected{
		Type:      relay.EventConnected,
		Token:     token,
		Timestamp: now,
	})
	e.logger.Info().Str("token", string(token)).Str("address", address).
		Int("active", e.sessions.Len()).Msg("Peer connected.")
	return token, nil
}

// HandleFrame decodes and dispatches one inbound frame from token's
// connection. Every failure is answered with an error event; the
// connection always stays open.
func (e *Engine) HandleFrame(token relay.Token, data []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()

	s := e.sessions.Get(token)
	if s == nil {
		// Lost the race with a concurrent sweep or disconnect.
		return
	}
	now := e.clock.Now()
	s.LastActivityAt = now

	op, err := relay.DecodeFrame(data)
	if err != nil {
		e.sendError(s, err)
		return
	}
	e.handleOp(s, op, now)
}

// Disconnect removes token's session and runs all cross-cutting cleanup.
// Idempotent: disconnecting an already-removed token is a safe no-op.
func (e *Engine) Disconnect(token relay.Token) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.removeSession(token, e.clock.Now())
}

func (e *Engine) handleOp(s *session.Session, op relay.Op, now time.Time) {
	switch op := op.(type) {
	case relay.DirectSend:
		res, err := e.router.SendDirect(s, op.To, op.Message, now)
		if err != nil {
			e.sendError(s, err)
			return
		}
		e.router.Deliver(s, relay.MessageSent{
			Type:      relay.EventMessageSent,
			Sent:      res.Sent,
			Total:     res.Total,
			Failed:    res.Failed,
			Timestamp: now,
		})

	case relay.Publish:
		e.channels.Publish(op.Channel, s.Token, now)
		e.router.Deliver(s, relay.Published{
			Type:      relay.EventPublished,
			Channel:   op.Channel,
			Timestamp: now,
		})
		e.logger.Debug().Str("token", string(s.Token)).Str("channel", op.Channel).Msg("Published to channel.")

	case relay.ListChannel:
		tokens := e.channels.List(op.Channel, now)
		e.router.Deliver(s, relay.ChannelList{
			Type:       relay.EventChannelList,
			Channel:    op.Channel,
			Tokens:     tokens,
			Count:      len(tokens),
			MaxEntries: e.channels.Capacity(),
			Timestamp:  now,
		})

	case relay.SetMode:
		vis := e.graph.SetMode(s, op.Mode, op.Visibility, now)
		e.router.Deliver(s, relay.ModeSet{
			Type:       relay.EventModeSet,
			Mode:       op.Mode,
			Visibility: vis,
			Timestamp:  now,
		})

	case relay.Subscribe:
		already, err := e.graph.Subscribe(s, op.Host, now)
		if err != nil {
			e.sendError(s, err)
			return
		}
		e.router.Deliver(s, relay.Subscribed{
			Type:              relay.EventSubscribed,
			Host:              op.Host,
			AlreadySubscribed: already,
			Timestamp:         now,
		})

	case relay.Unsubscribe:
		host, err := e.graph.Unsubscribe(s, now)
		if err != nil {
			e.sendError(s, err)
			return
		}
		e.router.Deliver(s, relay.Unsubscribed{
			Type:      relay.EventUnsubscribed,
			Host:      host,
			Timestamp: now,
		})

	case relay.Broadcast:
		if s.Mode != relay.ModeHost {
			e.sendError(s, errNotHost)
			return
		}
		sent := e.router.Broadcast(s, op.Message, now)
		e.router.Deliver(s, relay.BroadcastSent{
			Type:      relay.EventBroadcastSent,
			Sent:      sent,
			Timestamp: now,
		})

	case relay.ListPublicHosts:
		hosts := e.graph.PublicHosts()
		e.router.Deliver(s, relay.PublicHostsList{
			Type:           relay.EventPublicHostsList,
			Hosts:          hosts,
			Count:          len(hosts),
			MaxPublicHosts: e.graph.MaxPublicHosts(),
			Timestamp:      now,
		})
	}
}

func (e *Engine) sendError(s *session.Session, err error) {
	e.router.Deliver(s, relay.Error{Type: relay.EventError, Error: err.Error()})
}

// removeSession is the single teardown path: subscription cleanup and
// notification, pairing disconnect notification, public host removal, and
// token release, in that order. Returns false when the session was already
// gone.
func (e *Engine) removeSession(token relay.Token, now time.Time) bool {
	s := e.sessions.Remove(token)
	if s == nil {
		return false
	}
	e.graph.HandleDisconnect(s, now)
	notified := e.router.NotifyDisconnect(token, now)
	e.alloc.Release(token, now)
	e.logger.Info().Str("token", string(token)).Int("notified", notified).
		Int("active", e.sessions.Len()).Msg("Peer disconnected.")
	return true
}

// SweepResult tallies one cleanup pass.
type SweepResult struct {
	ExpiredTokens   int
	RetiredSessions int
	ChannelEntries  int
}

// Sweep runs one cleanup pass: forgets released tokens past the grace
// window, force-releases sessions inactive past the same window through the
// regular disconnect path, and evicts expired channel entries. Safe to run
// concurrently with in-flight frame handling and explicit disconnects.
func (e *Engine) Sweep() SweepResult {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()

	var res SweepResult
	res.ExpiredTokens = e.alloc.SweepReleased(now)

	for _, token := range e.sessions.InactiveTokens(now, e.settings.TokenExpiry) {
		if s := e.sessions.Get(token); s != nil && s.Transport != nil {
			_ = s.Transport.Close()
		}
		if e.removeSession(token, now) {
			res.RetiredSessions++
		}
	}

	res.ChannelEntries = e.channels.Sweep(now)
	return res
}

// CloseAll closes every live transport. Used on shutdown.
func (e *Engine) CloseAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sessions.Each(func(s *session.Session) {
		if s.Transport != nil {
			_ = s.Transport.Close()
		}
	})
}

// Stats returns the read-only diagnostics snapshot. Pure query, no side
// effects.
func (e *Engine) Stats() relay.Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.clock.Now()

	stats := relay.Stats{
		ActiveSessions:     e.sessions.Len(),
		ReleasedTokens:     e.alloc.ReleasedCount(),
		CurrentTokenLength: e.alloc.CurrentLength(),
		Channels:           e.channels.ChannelCount(),
		PublicHosts:        e.graph.PublicHostCount(),
		Pairs:              e.router.PairCount(),
		Sessions:           make(map[relay.Token]relay.SessionInfo, e.sessions.Len()),
	}
	e.sessions.Each(func(s *session.Session) {
		switch s.Mode {
		case relay.ModeHost:
			stats.Hosts++
			stats.TotalSubscribers += s.SubscriberCount()
		case relay.ModeGuest:
			stats.Guests++
		}
		stats.Sessions[s.Token] = relay.SessionInfo{
			Address:            s.RemoteAddress,
			ConnectedAt:        s.ConnectedAt,
			LastActivityAt:     s.LastActivityAt,
			InactiveForMinutes: int(now.Sub(s.LastActivityAt) / time.Minute),
			Mode:               s.Mode,
			Subscribers:        s.SubscriberCount(),
		}
	})
	return stats
}
