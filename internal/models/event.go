package models

import "encoding/json"

// Realtime event names delivered on a room channel.
const (
	EventMessage    = "chat.message"
	EventReaction   = "chat.reaction"
	EventTyping     = "chat.typing"
	EventPresence   = "chat.presence"
	EventConnection = "chat.connection"
	EventDestroy    = "chat.destroy"
)

// Event is the envelope published on a room channel and forwarded to websocket clients.
type Event struct {
	Event     string          `json:"event"`
	RoomID    string          `json:"roomId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

// ReactionEvent carries the reaction delta plus the resulting reaction set.
type ReactionEvent struct {
	MessageID string     `json:"messageId"`
	Emoji     string     `json:"emoji"`
	Username  string     `json:"username"`
	Action    string     `json:"action"`
	Reactions []Reaction `json:"reactions"`
}

type TypingEvent struct {
	Username string `json:"username"`
	IsTyping bool   `json:"isTyping"`
}

type ConnectionEvent struct {
	Username string `json:"username"`
	Action   string `json:"action"`
}

type DestroyEvent struct {
	IsDestroyed bool `json:"isDestroyed"`
}
