/*
File: internal/router/router.go
Description: Direct/multicast message routing with partial-failure
reporting, the pairing set driving disconnect notifications, and host
broadcasts. Transport writes are fire-and-forget: failures lower the sent
count and never propagate.
*/
// Package router dispatches application messages to target sessions.
package router

import (
	"errors"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/rs/zerolog"

	"github.com/tinywideclouds/go-relay-service/internal/session"
	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

var (
	// ErrNoTargets rejects sends with an empty target list.
	ErrNoTargets = errors.New(`"to" must contain at least one target token`)
	// ErrSelfSend rejects sends whose target list includes the sender.
	ErrSelfSend = errors.New("you cannot send messages to yourself")
)

// Sessions resolves tokens to live sessions.
type Sessions interface {
	Get(relay.Token) *session.Session
}

// Result is the per-send tally returned to the sender. Partial failure is a
// reportable result, not an error.
type Result struct {
	Sent   int
	Total  int
	Failed []relay.Token
}

// Router delivers messages and tracks which token pairs have communicated.
// Not safe for concurrent use; serialized behind the engine's mutex.
type Router struct {
	sessions Sessions
	pairs    mapset.Set[string]
	logger   zerolog.Logger
}

// NewRouter creates a router resolving targets through sessions.
func NewRouter(sessions Sessions, logger zerolog.Logger) *Router {
	return &Router{
		sessions: sessions,
		pairs:    mapset.NewSet[string](),
		logger:   logger,
	}
}

// Deliver writes one event to a session's transport. A write to a dead
// transport is logged and skipped, never raised.
func (r *Router) Deliver(s *session.Session, event any) bool {
	if s.Transport == nil {
		return false
	}
	if err := s.Transport.Send(event); err != nil {
		r.logger.Debug().Err(err).Str("token", string(s.Token)).Msg("Transport write failed, skipping.")
		return false
	}
	return true
}

// SendDirect delivers body from the sender to each target. Unknown targets
// land in the failed list; each successful delivery records the pair for
// later disconnect notification. Self-send and an empty target list are
// errors, not partial failures.
func (r *Router) SendDirect(from *session.Session, targets []relay.Token, body string, now time.Time) (Result, error) {
	if len(targets) == 0 {
		return Result{}, ErrNoTargets
	}
	for _, target := range targets {
		if target == from.Token {
			return Result{}, ErrSelfSend
		}
	}

	res := Result{Total: len(targets)}
	for _, target := range targets {
		ts := r.sessions.Get(target)
		if ts == nil {
			res.Failed = append(res.Failed, target)
			continue
		}
		r.Deliver(ts, relay.Message{
			Type:      relay.EventMessage,
			From:      from.Token,
			Message:   body,
			Timestamp: now,
		})
		r.pairs.Add(PairKey(from.Token, target))
		res.Sent++
	}

	r.logger.Info().
		Str("from", string(from.Token)).
		Int("sent", res.Sent).
		Int("total", res.Total).
		Str("preview", preview(body)).
		Msg("Direct message routed.")
	return res, nil
}

// NotifyDisconnect tells every peer paired with token that it departed,
// removes those pairs, and returns the number of peers notified.
func (r *Router) NotifyDisconnect(token relay.Token, now time.Time) int {
	peers := mapset.NewSet[relay.Token]()
	r.pairs.Each(func(key string) bool {
		if other, ok := pairPeer(key, token); ok {
			peers.Add(other)
		}
		return false
	})

	notified := 0
	peers.Each(func(peer relay.Token) bool {
		r.pairs.Remove(PairKey(token, peer))
		if ps := r.sessions.Get(peer); ps != nil {
			r.Deliver(ps, relay.Disconnected{
				Type:      relay.EventDisconnected,
				Token:     token,
				Timestamp: now,
			})
		}
		notified++
		return false
	})
	return notified
}

// Broadcast delivers body to every subscriber of host whose transport is
// writable, skipping closed peers, and returns the delivered count.
func (r *Router) Broadcast(host *session.Session, body string, now time.Time) int {
	if host.Subscribers == nil {
		return 0
	}
	sent := 0
	host.Subscribers.Each(func(token relay.Token) bool {
		gs := r.sessions.Get(token)
		if gs == nil {
			return false
		}
		if r.Deliver(gs, relay.BroadcastMessage{
			Type:      relay.EventBroadcastMessage,
			From:      host.Token,
			Message:   body,
			Timestamp: now,
		}) {
			sent++
		}
		return false
	})
	return sent
}

// PairCount returns the number of recorded communication pairs.
func (r *Router) PairCount() int { return r.pairs.Cardinality() }

// PairKey canonicalizes an unordered token pair into a single string key by
// lexicographic ordering.
func PairKey(a, b relay.Token) string {
	if a < b {
		return string(a) + ":" + string(b)
	}
	return string(b) + ":" + string(a)
}

// pairPeer returns the other member of key when token is one of the pair.
func pairPeer(key string, token relay.Token) (relay.Token, bool) {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			a, b := relay.Token(key[:i]), relay.Token(key[i+1:])
			switch token {
			case a:
				return b, true
			case b:
				return a, true
			}
			return "", false
		}
	}
	return "", false
}

func preview(body string) string {
	const max = 50
	if len(body) <= max {
		return body
	}
	return body[:max] + "..."
}
