/*
File: internal/identity/allocator.go
Description: Generates collision-free session tokens with a release grace
period and adaptive length growth under exhaustion.
*/
// Package identity owns the token lifecycle: allocation, address-bound
// validation, release with a reuse grace period, and expiry sweeps.
package identity

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

// Alphabet is the 36-symbol token alphabet: digits 1-9 and uppercase
// letters. Zero and lowercase are excluded to avoid visual ambiguity when
// tokens are spoken or typed.
const Alphabet = "123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

type activeRecord struct {
	address    string
	assignedAt time.Time
}

type releasedRecord struct {
	address    string
	releasedAt time.Time
}

// Allocator is the single source of session tokens. It is not safe for
// concurrent use; callers serialize access behind the engine's mutex.
type Allocator struct {
	active      map[relay.Token]activeRecord
	released    map[relay.Token]releasedRecord
	length      int
	maxAttempts int
	expiry      time.Duration
	logger      zerolog.Logger
}

// NewAllocator creates an allocator starting at the given token length.
func NewAllocator(length, maxAttempts int, expiry time.Duration, logger zerolog.Logger) *Allocator {
	if length < 1 {
		length = 1
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Allocator{
		active:      make(map[relay.Token]activeRecord),
		released:    make(map[relay.Token]releasedRecord),
		length:      length,
		maxAttempts: maxAttempts,
		expiry:      expiry,
		logger:      logger,
	}
}

// Allocate draws random tokens of the current length until one is free of
// both the active and released sets. After maxAttempts collisions it
// permanently grows the length for all future allocations and returns a
// token of the new length. Allocation always succeeds.
func (a *Allocator) Allocate(address string, now time.Time) relay.Token {
	token := a.uniqueToken()
	a.active[token] = activeRecord{address: address, assignedAt: now}
	delete(a.released, token)
	return token
}

// Validate reports whether token is active and bound to address.
func (a *Allocator) Validate(token relay.Token, address string) bool {
	rec, ok := a.active[token]
	return ok && rec.address == address
}

// Active reports whether token is currently assigned.
func (a *Allocator) Active(token relay.Token) bool {
	_, ok := a.active[token]
	return ok
}

// Reclaim reactivates a released token for a reconnecting peer. It succeeds
// only when the token is in the released set, the releasing address matches,
// and the grace window has not elapsed.
func (a *Allocator) Reclaim(token relay.Token, address string, now time.Time) bool {
	rec, ok := a.released[token]
	if !ok || rec.address != address || now.Sub(rec.releasedAt) > a.expiry {
		return false
	}
	delete(a.released, token)
	a.active[token] = activeRecord{address: address, assignedAt: now}
	return true
}

// Release moves token from the active set to the released set, starting its
// reuse grace period. Releasing an unknown token is a no-op returning false.
func (a *Allocator) Release(token relay.Token, now time.Time) bool {
	rec, ok := a.active[token]
	if !ok {
		return false
	}
	delete(a.active, token)
	a.released[token] = releasedRecord{address: rec.address, releasedAt: now}
	return true
}

// SweepReleased drops released tokens older than the grace window and
// returns how many were forgotten.
func (a *Allocator) SweepReleased(now time.Time) int {
	var expired []relay.Token
	for token, rec := range a.released {
		if now.Sub(rec.releasedAt) > a.expiry {
			expired = append(expired, token)
		}
	}
	for _, token := range expired {
		delete(a.released, token)
	}
	if len(expired) > 0 {
		a.logger.Info().Int("count", len(expired)).Msg("Expired released tokens forgotten.")
	}
	return len(expired)
}

// CurrentLength returns the length of the next allocated token.
func (a *Allocator) CurrentLength() int { return a.length }

// ActiveCount returns the number of assigned tokens.
func (a *Allocator) ActiveCount() int { return len(a.active) }

// ReleasedCount returns the number of tokens in their grace period.
func (a *Allocator) ReleasedCount() int { return len(a.released) }

func (a *Allocator) uniqueToken() relay.Token {
	for attempts := 0; attempts < a.maxAttempts; attempts++ {
		token := randomToken(a.length)
		if !a.inUse(token) {
			return token
		}
	}
	// The current length shows exhaustion. Grow permanently.
	a.length++
	a.logger.Warn().Int("length", a.length).Msg("Token space exhausted, growing token length.")
	return randomToken(a.length)
}

func (a *Allocator) inUse(token relay.Token) bool {
	if _, ok := a.active[token]; ok {
		return true
	}
	_, ok := a.released[token]
	return ok
}

func randomToken(length int) relay.Token {
	var b strings.Builder
	b.Grow(length)
	for i := 0; i < length; i++ {
		b.WriteByte(Alphabet[rand.IntN(len(Alphabet))])
	}
	return relay.Token(b.String())
}
