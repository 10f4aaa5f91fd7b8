package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

func TestRegistry_CreateAndGet(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	s := r.Create("ABCD", "10.0.0.1", nil, now)
	require.NotNil(t, s)
	assert.Equal(t, relay.Token("ABCD"), s.Token)
	assert.Equal(t, relay.ModeNone, s.Mode)
	assert.Equal(t, now, s.ConnectedAt)
	assert.Equal(t, now, s.LastActivityAt)

	assert.Same(t, s, r.Get("ABCD"))
	assert.Nil(t, r.Get("ZZZZ"))
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_Touch(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	r.Create("ABCD", "10.0.0.1", nil, now)

	later := now.Add(time.Minute)
	require.True(t, r.Touch("ABCD", later))
	assert.Equal(t, later, r.Get("ABCD").LastActivityAt)

	assert.False(t, r.Touch("ZZZZ", later))
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	s := r.Create("ABCD", "10.0.0.1", nil, time.Now())

	removed := r.Remove("ABCD")
	assert.Same(t, s, removed)
	assert.Nil(t, r.Get("ABCD"))
	assert.Zero(t, r.Len())

	// Removing twice is a safe no-op.
	assert.Nil(t, r.Remove("ABCD"))
}

func TestRegistry_InactiveTokens(t *testing.T) {
	r := NewRegistry()
	now := time.Now()
	window := 10 * time.Minute

	r.Create("OLD1", "10.0.0.1", nil, now.Add(-15*time.Minute))
	r.Create("NEW1", "10.0.0.2", nil, now.Add(-time.Minute))

	stale := r.InactiveTokens(now, window)
	require.Len(t, stale, 1)
	assert.Equal(t, relay.Token("OLD1"), stale[0])
}

func TestSession_SubscriberCount(t *testing.T) {
	s := &Session{}
	assert.Zero(t, s.SubscriberCount())
}
