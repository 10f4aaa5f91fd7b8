/*
File: internal/subscription/graph.go
Description: The host/guest state machine over Session.Mode. Every
transition that touches more than one session's state lives here, so the
engine can run it atomically under its single mutex.
*/
package subscription

import (
	"errors"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog"

	"github.com/tinywideclouds/go-relay-service/internal/session"
	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

var (
	// ErrNotGuest rejects subscribe attempts from non-guest sessions.
	ErrNotGuest = errors.New("must be in guest mode to subscribe")
	// ErrHostNotFound rejects subscriptions to tokens that do not resolve
	// to a session in host mode.
	ErrHostNotFound = errors.New("host token not found or not in host mode")
	// ErrNotSubscribed rejects unsubscribe attempts with no subscription.
	ErrNotSubscribed = errors.New("not currently subscribed to any host")
)

// Sessions resolves tokens to live sessions.
type Sessions interface {
	Get(relay.Token) *session.Session
}

// EventSink delivers one outbound event to a session's transport, returning
// whether the write succeeded. Implementations must never propagate
// transport failures.
type EventSink interface {
	Deliver(s *session.Session, event any) bool
}

// Graph owns host/guest transitions and the public host FIFO. Not safe for
// concurrent use; serialized behind the engine's mutex.
type Graph struct {
	sessions Sessions
	sink     EventSink
	fifo     *FIFO
	logger   zerolog.Logger
}

// NewGraph wires the graph to its session source and event sink.
func NewGraph(sessions Sessions, sink EventSink, maxPublicHosts int, logger zerolog.Logger) *Graph {
	return &Graph{
		sessions: sessions,
		sink:     sink,
		fifo:     NewFIFO(maxPublicHosts),
		logger:   logger,
	}
}

// SetMode transitions s to the requested mode. Leaving guest mode with an
// active subscription unsubscribes first; leaving host mode notifies every
// subscriber of the departure and clears the set. A host re-asserting host
// mode only updates its visibility.
func (g *Graph) SetMode(s *session.Session, mode relay.Mode, vis relay.Visibility, now time.Time) relay.Visibility {
	if mode == relay.ModeHost && s.Mode == relay.ModeHost {
		return g.setVisibility(s, vis)
	}

	if s.Mode == relay.ModeGuest && s.SubscribedTo != "" {
		g.removeSubscription(s, now, false)
	}
	if s.Mode == relay.ModeHost {
		g.hostDeparture(s, now)
	}

	switch mode {
	case relay.ModeHost:
		s.Mode = relay.ModeHost
		s.SubscribedTo = ""
		s.Subscribers = mapset.NewSet[relay.Token]()
		return g.setVisibility(s, vis)
	case relay.ModeGuest:
		s.Mode = relay.ModeGuest
		s.SubscribedTo = ""
		s.Subscribers = nil
		s.Visibility = ""
	}
	return ""
}

func (g *Graph) setVisibility(s *session.Session, vis relay.Visibility) relay.Visibility {
	if vis == "" {
		vis = relay.VisibilityPrivate
	}
	s.Visibility = vis
	if vis == relay.VisibilityPublic {
		g.fifo.Add(s.Token)
	} else {
		g.fifo.Remove(s.Token)
	}
	return vis
}

// Subscribe subscribes guest to hostToken. Re-subscribing to the current
// host is idempotent and reported via already=true with no set mutation and
// no new_subscriber notification. Subscribing while subscribed elsewhere
// implicitly unsubscribes first.
func (g *Graph) Subscribe(guest *session.Session, hostToken relay.Token, now time.Time) (already bool, err error) {
	if guest.Mode != relay.ModeGuest {
		return false, ErrNotGuest
	}
	host := g.sessions.Get(hostToken)
	if host == nil || host.Mode != relay.ModeHost {
		return false, ErrHostNotFound
	}
	if guest.SubscribedTo == hostToken {
		return true, nil
	}
	if guest.SubscribedTo != "" {
		g.removeSubscription(guest, now, false)
	}

	guest.SubscribedTo = hostToken
	host.Subscribers.Add(guest.Token)
	g.sink.Deliver(host, relay.NewSubscriber{
		Type:            relay.EventNewSubscriber,
		Token:           guest.Token,
		SubscriberCount: host.SubscriberCount(),
		Timestamp:       now,
	})
	return false, nil
}

// Unsubscribe removes guest's current subscription and notifies the host.
func (g *Graph) Unsubscribe(guest *session.Session, now time.Time) (relay.Token, error) {
	if guest.Mode != relay.ModeGuest || guest.SubscribedTo == "" {
		return "", ErrNotSubscribed
	}
	host := guest.SubscribedTo
	g.removeSubscription(guest, now, false)
	return host, nil
}

// HandleDisconnect runs the mode-specific teardown for a departing session:
// subscriber_disconnected to a guest's host, host_disconnected to a host's
// subscribers.
func (g *Graph) HandleDisconnect(s *session.Session, now time.Time) {
	switch {
	case s.Mode == relay.ModeGuest && s.SubscribedTo != "":
		g.removeSubscription(s, now, true)
	case s.Mode == relay.ModeHost:
		g.hostDeparture(s, now)
	}
}

// PublicHosts returns the discovery FIFO contents, oldest first.
func (g *Graph) PublicHosts() []relay.Token { return g.fifo.List() }

// PublicHostCount returns the number of listed public hosts.
func (g *Graph) PublicHostCount() int { return g.fifo.Len() }

// MaxPublicHosts returns the FIFO capacity.
func (g *Graph) MaxPublicHosts() int { return g.fifo.Capacity() }

// removeSubscription detaches guest from its host and notifies the host
// with subscriber_left, or subscriber_disconnected when the guest's
// connection went away. A host that already departed is skipped silently.
func (g *Graph) removeSubscription(guest *session.Session, now time.Time, disconnected bool) {
	hostToken := guest.SubscribedTo
	guest.SubscribedTo = ""

	host := g.sessions.Get(hostToken)
	if host == nil || host.Mode != relay.ModeHost || host.Subscribers == nil {
		return
	}
	if !host.Subscribers.Contains(guest.Token) {
		return
	}
	host.Subscribers.Remove(guest.Token)

	if disconnected {
		g.sink.Deliver(host, relay.SubscriberDisconnected{
			Type:            relay.EventSubscriberDisconnected,
			Token:           guest.Token,
			SubscriberCount: host.SubscriberCount(),
			Timestamp:       now,
		})
		return
	}
	g.sink.Deliver(host, relay.SubscriberLeft{
		Type:            relay.EventSubscriberLeft,
		Token:           guest.Token,
		SubscriberCount: host.SubscriberCount(),
		Timestamp:       now,
	})
}

// hostDeparture notifies every subscriber that the host is gone, clears the
// subscriber set, and removes the host from the public FIFO. Subscribers
// keep their stale SubscribedTo pointer; it is cleared when they choose to
// resubscribe or unsubscribe.
func (g *Graph) hostDeparture(s *session.Session, now time.Time) {
	if s.Subscribers != nil {
		if n := s.Subscribers.Cardinality(); n > 0 {
			g.logger.Info().Str("host", string(s.Token)).Int("subscribers", n).Msg("Host departed, notifying subscribers.")
		}
		s.Subscribers.Each(func(token relay.Token) bool {
			if guest := g.sessions.Get(token); guest != nil {
				g.sink.Deliver(guest, relay.HostDisconnected{
					Type:      relay.EventHostDisconnected,
					Host:      s.Token,
					Timestamp: now,
				})
			}
			return false
		})
	}
	s.Subscribers = nil
	s.Visibility = ""
	g.fifo.Remove(s.Token)
}
