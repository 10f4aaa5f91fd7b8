/*
File: pkg/relay/protocol.go
Description: Decodes inbound text frames into the closed set of relay
operations. Frames are decoded exactly once at the connection boundary;
everything past this point works with typed operations.
*/
package relay

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Op is one decoded inbound operation. The set of implementations is
// closed: DirectSend, Publish, ListChannel, SetMode, Subscribe,
// Unsubscribe, Broadcast, ListPublicHosts.
type Op interface {
	isOp()
}

// DirectSend delivers a message body to one or more target tokens.
// It is the default operation: a frame with no "type" discriminator.
type DirectSend struct {
	To      []Token
	Message string
}

// Publish adds the sender to a named channel's directory.
type Publish struct {
	Channel string
}

// ListChannel queries the surviving members of a named channel.
type ListChannel struct {
	Channel string
}

// SetMode transitions the sender between none/host/guest modes.
type SetMode struct {
	Mode       Mode
	Visibility Visibility
}

// Subscribe subscribes the (guest) sender to a host token.
type Subscribe struct {
	Host Token
}

// Unsubscribe removes the sender's current subscription.
type Unsubscribe struct{}

// Broadcast delivers a message body to every subscriber of the (host) sender.
type Broadcast struct {
	Message string
}

// ListPublicHosts queries the public host discovery FIFO.
type ListPublicHosts struct{}

func (DirectSend) isOp()      {}
func (Publish) isOp()         {}
func (ListChannel) isOp()     {}
func (SetMode) isOp()         {}
func (Subscribe) isOp()       {}
func (Unsubscribe) isOp()     {}
func (Broadcast) isOp()       {}
func (ListPublicHosts) isOp() {}

var (
	// ErrMalformedFrame covers frames that are not valid JSON objects.
	ErrMalformedFrame = errors.New("invalid frame: not a JSON object")
)

// frame is the raw wire shape before discrimination. "to" accepts either a
// single token string or an array of token strings.
type frame struct {
	Type       string          `json:"type"`
	To         json.RawMessage `json:"to"`
	Message    *string         `json:"message"`
	Channel    *string         `json:"channel"`
	Mode       string          `json:"mode"`
	Visibility string          `json:"visibility"`
}

// DecodeFrame parses one inbound text frame into an Op. Any returned error
// is a client-facing message suitable for an "error" event; the connection
// always stays open.
func DecodeFrame(data []byte) (Op, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, ErrMalformedFrame
	}

	switch f.Type {
	case "":
		return decodeDirectSend(f)
	case "publish":
		ch, err := requireChannel(f)
		if err != nil {
			return nil, err
		}
		return Publish{Channel: ch}, nil
	case "list":
		ch, err := requireChannel(f)
		if err != nil {
			return nil, err
		}
		return ListChannel{Channel: ch}, nil
	case "set_mode":
		return decodeSetMode(f)
	case "subscribe":
		host, err := decodeSingleToken(f.To)
		if err != nil || host == "" {
			return nil, errors.New(`"to" must name the host token to subscribe to`)
		}
		return Subscribe{Host: host}, nil
	case "unsubscribe":
		return Unsubscribe{}, nil
	case "broadcast":
		if f.Message == nil || *f.Message == "" {
			return nil, errors.New(`"message" is required for broadcast`)
		}
		return Broadcast{Message: *f.Message}, nil
	case "list_public_hosts":
		return ListPublicHosts{}, nil
	default:
		return nil, fmt.Errorf("unknown operation type: %q", f.Type)
	}
}

func decodeDirectSend(f frame) (Op, error) {
	if len(f.To) == 0 || f.Message == nil {
		return nil, errors.New(`invalid message format: must contain "to" and "message", or a "type" for named operations`)
	}
	targets, err := decodeTargets(f.To)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, errors.New(`"to" must contain at least one target token`)
	}
	return DirectSend{To: targets, Message: *f.Message}, nil
}

func decodeSetMode(f frame) (Op, error) {
	mode := Mode(f.Mode)
	if mode != ModeHost && mode != ModeGuest {
		return nil, errors.New(`"mode" must be "host" or "guest"`)
	}
	vis := Visibility(f.Visibility)
	if vis != "" && vis != VisibilityPublic && vis != VisibilityPrivate {
		return nil, errors.New(`"visibility" must be "public" or "private"`)
	}
	return SetMode{Mode: mode, Visibility: vis}, nil
}

func requireChannel(f frame) (string, error) {
	if f.Channel == nil || *f.Channel == "" {
		return "", errors.New("channel name required (string)")
	}
	return *f.Channel, nil
}

// decodeTargets accepts "to" as either "ABCD" or ["ABCD", "EFGH"].
func decodeTargets(raw json.RawMessage) ([]Token, error) {
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []Token{Token(one)}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err != nil {
		return nil, errors.New(`"to" must be a token string or an array of token strings`)
	}
	targets := make([]Token, 0, len(many))
	for _, t := range many {
		targets = append(targets, Token(t))
	}
	return targets, nil
}

func decodeSingleToken(raw json.RawMessage) (Token, error) {
	if len(raw) == 0 {
		return "", errors.New("token required")
	}
	var one string
	if err := json.Unmarshal(raw, &one); err != nil {
		return "", errors.New("token must be a string")
	}
	return Token(one), nil
}
