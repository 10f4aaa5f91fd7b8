/*
File: pkg/relay/events.go
Description: Every outbound event kind the relay can write to a peer.
Wire names and field shapes follow the frame format clients already speak.
*/
package relay

import "time"

// Outbound event type discriminators.
const (
	EventConnected              = "connected"
	EventConnectionEstablished  = "connection_established"
	EventMessage                = "message"
	EventMessageSent            = "message_sent"
	EventError                  = "error"
	EventPublished              = "published"
	EventChannelList            = "channel_list"
	EventModeSet                = "mode_set"
	EventSubscribed             = "subscribed"
	EventUnsubscribed           = "unsubscribed"
	EventNewSubscriber          = "new_subscriber"
	EventSubscriberLeft         = "subscriber_left"
	EventSubscriberDisconnected = "subscriber_disconnected"
	EventHostDisconnected       = "host_disconnected"
	EventBroadcastMessage       = "broadcast_message"
	EventBroadcastSent          = "broadcast_sent"
	EventPublicHostsList        = "public_hosts_list"
	EventDisconnected           = "disconnected"
)

// Connected greets a freshly connected peer with its assigned token.
type Connected struct {
	Type      string    `json:"type"`
	Token     Token     `json:"token"`
	Timestamp time.Time `json:"timestamp"`
}

// ConnectionEstablished greets a peer that reclaimed a token on reconnect.
type ConnectionEstablished struct {
	Type      string    `json:"type"`
	Token     Token     `json:"token"`
	Timestamp time.Time `json:"timestamp"`
}

// Message is a direct message delivered to a target peer.
type Message struct {
	Type      string    `json:"type"`
	From      Token     `json:"from"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// MessageSent acknowledges a direct/multicast send to its sender. Partial
// failure is a first-class result: Failed lists the unreachable targets.
type MessageSent struct {
	Type      string    `json:"type"`
	Sent      int       `json:"sent"`
	Total     int       `json:"total"`
	Failed    []Token   `json:"failed,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Error reports a recoverable client error. It never closes the connection.
type Error struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Published confirms a channel publish.
type Published struct {
	Type      string    `json:"type"`
	Channel   string    `json:"channel"`
	Timestamp time.Time `json:"timestamp"`
}

// ChannelList answers a channel membership query.
type ChannelList struct {
	Type       string    `json:"type"`
	Channel    string    `json:"channel"`
	Tokens     []Token   `json:"tokens"`
	Count      int       `json:"count"`
	MaxEntries int       `json:"maxEntries"`
	Timestamp  time.Time `json:"timestamp"`
}

// ModeSet confirms a mode transition.
type ModeSet struct {
	Type       string     `json:"type"`
	Mode       Mode       `json:"mode"`
	Visibility Visibility `json:"visibility,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Subscribed confirms a guest's subscription. AlreadySubscribed marks the
// idempotent re-subscribe to the same host.
type Subscribed struct {
	Type              string    `json:"type"`
	Host              Token     `json:"host"`
	AlreadySubscribed bool      `json:"alreadySubscribed,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// Unsubscribed confirms a guest's unsubscription.
type Unsubscribed struct {
	Type      string    `json:"type"`
	Host      Token     `json:"host"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSubscriber notifies a host that a guest subscribed.
type NewSubscriber struct {
	Type            string    `json:"type"`
	Token           Token     `json:"token"`
	SubscriberCount int       `json:"subscriberCount"`
	Timestamp       time.Time `json:"timestamp"`
}

// SubscriberLeft notifies a host that a guest unsubscribed.
type SubscriberLeft struct {
	Type            string    `json:"type"`
	Token           Token     `json:"token"`
	SubscriberCount int       `json:"subscriberCount"`
	Timestamp       time.Time `json:"timestamp"`
}

// SubscriberDisconnected notifies a host that a subscribed guest's
// connection went away.
type SubscriberDisconnected struct {
	Type            string    `json:"type"`
	Token           Token     `json:"token"`
	SubscriberCount int       `json:"subscriberCount"`
	Timestamp       time.Time `json:"timestamp"`
}

// HostDisconnected notifies a guest that its host departed, either by
// disconnecting or by leaving host mode.
type HostDisconnected struct {
	Type      string    `json:"type"`
	Host      Token     `json:"host"`
	Timestamp time.Time `json:"timestamp"`
}

// BroadcastMessage is a host broadcast delivered to one subscriber.
type BroadcastMessage struct {
	Type      string    `json:"type"`
	From      Token     `json:"from"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// BroadcastSent acknowledges a broadcast to the host.
type BroadcastSent struct {
	Type      string    `json:"type"`
	Sent      int       `json:"sent"`
	Timestamp time.Time `json:"timestamp"`
}

// PublicHostsList answers a public host directory query, oldest first.
type PublicHostsList struct {
	Type           string    `json:"type"`
	Hosts          []Token   `json:"hosts"`
	Count          int       `json:"count"`
	MaxPublicHosts int       `json:"maxPublicHosts"`
	Timestamp      time.Time `json:"timestamp"`
}

// Disconnected notifies a peer that a token it exchanged direct messages
// with has departed.
type Disconnected struct {
	Type      string    `json:"type"`
	Token     Token     `json:"token"`
	Timestamp time.Time `json:"timestamp"`
}
