package models

import "time"

// Room is the metadata of a self-destructing chat room.
type Room struct {
	ID              string    `json:"roomId"`
	CreatedAt       time.Time `json:"createdAt"`
	ConnectedTokens []string  `json:"-"`
}

// RoomStatus is the public view returned by the room check endpoint.
type RoomStatus struct {
	RoomID       string `json:"roomId"`
	CreatedAt    int64  `json:"createdAt"`
	Participants int    `json:"participants"`
	Capacity     int    `json:"capacity"`
	IsFull       bool   `json:"isFull"`
	TTL          int64  `json:"ttl"`
}

// Member binds a membership token to the username it joined with.
type Member struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}
