package identity

import (
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-relay-service/pkg/relay"
)

const testExpiry = 10 * time.Minute

func newTestAllocator() *Allocator {
	return NewAllocator(4, 100, testExpiry, zerolog.Nop())
}

func TestAllocate_PairwiseDistinct(t *testing.T) {
	a := newTestAllocator()
	now := time.Now()

	seen := make(map[relay.Token]bool, 10000)
	for i := 0; i < 10000; i++ {
		token := a.Allocate("10.0.0.1", now)
		require.False(t, seen[token], "duplicate token %s at allocation %d", token, i)
		seen[token] = true
	}
	assert.Equal(t, 10000, a.ActiveCount())
}

func TestAllocate_AlphabetAndLength(t *testing.T) {
	a := newTestAllocator()
	now := time.Now()

	for i := 0; i < 100; i++ {
		token := string(a.Allocate("10.0.0.1", now))
		assert.Len(t, token, 4)
		for _, r := range token {
			assert.True(t, strings.ContainsRune(Alphabet, r), "token %q contains %q", token, r)
		}
	}
}

func TestAllocate_GrowsLengthUnderExhaustion(t *testing.T) {
	// With length 1 the space has exactly len(Alphabet) tokens. Exhaust it
	// and the next allocation must collide maxAttempts times and grow.
	a := NewAllocator(1, 100, testExpiry, zerolog.Nop())
	now := time.Now()

	for i := 0; i < len(Alphabet); i++ {
		a.Allocate("10.0.0.1", now)
	}
	require.Equal(t, len(Alphabet), a.ActiveCount())
	require.Equal(t, 1, a.CurrentLength())

	token := a.Allocate("10.0.0.1", now)
	assert.Len(t, string(token), 2)
	assert.Equal(t, 2, a.CurrentLength())
}

func TestValidate_AddressBound(t *testing.T) {
	a := newTestAllocator()
	now := time.Now()

	token := a.Allocate("10.0.0.1", now)
	assert.True(t, a.Validate(token, "10.0.0.1"))
	assert.False(t, a.Validate(token, "10.0.0.2"))
	assert.False(t, a.Validate("ZZZZ", "10.0.0.1"))
}

func TestRelease_RejectedByValidateUntilExpiry(t *testing.T) {
	a := newTestAllocator()
	now := time.Now()

	token := a.Allocate("10.0.0.1", now)
	require.True(t, a.Release(token, now))

	assert.False(t, a.Validate(token, "10.0.0.1"))
	assert.Equal(t, 1, a.ReleasedCount())

	// The grace period keeps the token out of circulation.
	removed := a.SweepReleased(now.Add(testExpiry - time.Second))
	assert.Zero(t, removed)
	assert.Equal(t, 1, a.ReleasedCount())

	removed = a.SweepReleased(now.Add(testExpiry + time.Second))
	assert.Equal(t, 1, removed)
	assert.Zero(t, a.ReleasedCount())
}

func TestRelease_UnknownTokenIsNoOp(t *testing.T) {
	a := newTestAllocator()
	assert.False(t, a.Release("ZZZZ", time.Now()))
}

func TestReclaim_SameAddressWithinWindow(t *testing.T) {
	a := newTestAllocator()
	now := time.Now()

	token := a.Allocate("10.0.0.1", now)
	require.True(t, a.Release(token, now))

	require.True(t, a.Reclaim(token, "10.0.0.1", now.Add(time.Minute)))
	assert.True(t, a.Validate(token, "10.0.0.1"))
	assert.Zero(t, a.ReleasedCount())
}

func TestReclaim_Rejections(t *testing.T) {
	a := newTestAllocator()
	now := time.Now()

	token := a.Allocate("10.0.0.1", now)
	require.True(t, a.Release(token, now))

	// Wrong address.
	assert.False(t, a.Reclaim(token, "10.0.0.2", now.Add(time.Minute)))
	// Past the grace window.
	assert.False(t, a.Reclaim(token, "10.0.0.1", now.Add(testExpiry+time.Second)))
	// Never issued.
	assert.False(t, a.Reclaim("ZZZZ", "10.0.0.1", now))
}

func TestReclaim_ActiveTokenNotReclaimable(t *testing.T) {
	a := newTestAllocator()
	now := time.Now()

	token := a.Allocate("10.0.0.1", now)
	assert.False(t, a.Reclaim(token, "10.0.0.1", now))
	assert.True(t, a.Active(token))
}
