// Package subscription maintains the host/guest relationship graph and the
// bounded directory of publicly discoverable hosts.
package subscription

import "github.com/tinywideclouds/go-relay-service/pkg/relay"

// FIFO is the bounded, deduplicated, order-preserving list of public host
// tokens. Oldest entries are evicted first on overflow. Not safe for
// concurrent use; serialized behind the engine's mutex.
type FIFO struct {
	tokens   []relay.Token
	capacity int
}

// NewFIFO creates a FIFO holding at most capacity tokens.
func NewFIFO(capacity int) *FIFO {
	if capacity < 1 {
		capacity = 1
	}
	return &FIFO{capacity: capacity}
}

// Add appends token at the tail, first removing any existing occurrence so
// re-adding moves it to the tail. The head is evicted on overflow.
func (f *FIFO) Add(token relay.Token) {
	f.Remove(token)
	f.tokens = append(f.tokens, token)
	if len(f.tokens) > f.capacity {
		f.tokens = f.tokens[1:]
	}
}

// Remove deletes token if present. Idempotent.
func (f *FIFO) Remove(token relay.Token) {
	for i, t := range f.tokens {
		if t == token {
			f.tokens = append(f.tokens[:i], f.tokens[i+1:]...)
			return
		}
	}
}

// List returns a defensive copy in FIFO order, oldest first.
func (f *FIFO) List() []relay.Token {
	out := make([]relay.Token, len(f.tokens))
	copy(out, f.tokens)
	return out
}

// Len returns the number of listed hosts.
func (f *FIFO) Len() int { return len(f.tokens) }

// Capacity returns the FIFO bound.
func (f *FIFO) Capacity() int { return f.capacity }
