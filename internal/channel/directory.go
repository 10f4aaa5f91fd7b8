/*
File: internal/channel/directory.go
Description: Named channels as capacity-bounded, TTL-expiring FIFO lists of
publisher tokens. Eviction is lazy on read plus a periodic sweep.
*/
// Package channel maintains the publish/list channel directory.
package channel

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

type entry struct {
	token       relay.Token
	publishedAt time.Time
}

// Directory maps channel names to bounded entry lists. Not safe for
// concurrent use; serialized behind the engine's mutex.
type Directory struct {
	channels map[string][]entry
	capacity int
	ttl      time.Duration
	logger   zerolog.Logger
}

// NewDirectory creates a directory bounding each channel to capacity
// entries, each living at most ttl.
func NewDirectory(capacity int, ttl time.Duration, logger zerolog.Logger) *Directory {
	if capacity < 1 {
		capacity = 1
	}
	return &Directory{
		channels: make(map[string][]entry),
		capacity: capacity,
		ttl:      ttl,
		logger:   logger,
	}
}

// Publish appends token to the channel, refreshing its position and
// timestamp if already present. At most one entry per publisher per
// channel; the oldest entry is evicted when the list exceeds capacity.
func (d *Directory) Publish(channel string, token relay.Token, now time.Time) {
	entries := d.channels[channel]

	for i, e := range entries {
		if e.token == token {
			entries = append(entries[:i], entries[i+1:]...)
			break
		}
	}

	entries = append(entries, entry{token: token, publishedAt: now})
	if len(entries) > d.capacity {
		entries = entries[1:]
	}
	d.channels[channel] = entries
}

// List returns the channel's surviving tokens in insertion order, lazily
// evicting TTL-expired entries as a side effect.
func (d *Directory) List(channel string, now time.Time) []relay.Token {
	entries, ok := d.channels[channel]
	if !ok {
		return []relay.Token{}
	}

	valid := entries[:0]
	for _, e := range entries {
		if now.Sub(e.publishedAt) < d.ttl {
			valid = append(valid, e)
		}
	}
	d.channels[channel] = valid

	tokens := make([]relay.Token, len(valid))
	for i, e := range valid {
		tokens[i] = e.token
	}
	return tokens
}

// Sweep removes TTL-expired entries from every channel, deletes channels
// left empty, and returns the number of entries removed.
func (d *Directory) Sweep(now time.Time) int {
	removed := 0
	for name, entries := range d.channels {
		valid := entries[:0]
		for _, e := range entries {
			if now.Sub(e.publishedAt) < d.ttl {
				valid = append(valid, e)
			}
		}
		removed += len(entries) - len(valid)
		if len(valid) == 0 {
			delete(d.channels, name)
			continue
		}
		d.channels[name] = valid
	}
	if removed > 0 {
		d.logger.Info().Int("count", removed).Msg("Expired channel entries removed.")
	}
	return removed
}

// Capacity returns the per-channel entry bound.
func (d *Directory) Capacity() int { return d.capacity }

// ChannelCount returns the number of non-empty channels.
func (d *Directory) ChannelCount() int { return len(d.channels) }
